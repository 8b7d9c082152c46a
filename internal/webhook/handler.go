// Package webhook implements the authenticated webhook ingress (C8), per
// spec §4.5: HMAC-verified POST /webhook, per-kind declarative schema
// validation, task correlation, and derived auto-fix follow-up tasks.
// Grounded on internal/notify/webhook.go's HMAC-SHA256 signing convention,
// mirrored here with crypto/hmac for inbound verification; go-github is not
// used for parsing or verification (see DESIGN.md's C8 entry).
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/squireai/squire/internal/backend"
	"github.com/squireai/squire/internal/config"
	"github.com/squireai/squire/internal/logging"
	"github.com/squireai/squire/internal/metrics"
	"github.com/squireai/squire/internal/task"
)

const signatureHeader = "X-Squire-Signature-256"
const eventHeader = "X-Squire-Event"

// Handler serves the single POST /webhook endpoint.
type Handler struct {
	cfg     config.WebhookIngressConfig
	store   task.Store
	backend backend.Backend
	model   string
	image   string
	workers backend.WorkerConfig
	token   string
}

// NewHandler validates cfg (failing if RequireSecret is set with no Secret)
// and returns a Handler ready to mount.
func NewHandler(cfg config.WebhookIngressConfig, store task.Store, b backend.Backend, model, image, repoHostToken string) (*Handler, error) {
	if cfg.RequireSecret && strings.TrimSpace(cfg.Secret) == "" {
		return nil, fmt.Errorf("webhook: require_secret is set but no secret is configured")
	}
	return &Handler{
		cfg:     cfg,
		store:   store,
		backend: b,
		model:   model,
		image:   image,
		workers: backend.DefaultWorkerConfig(),
		token:   repoHostToken,
	}, nil
}

// Mux returns an http.Handler routing only POST /webhook; every other
// method/path yields 404, per §4.5.
func (h *Handler) Mux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /webhook", h.serve)
	return mux
}

func (h *Handler) serve(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()
	ctx := logging.WithTraceID(r.Context(), requestID)
	logger := logging.L(ctx, "webhook").With("requestId", requestID)
	start := time.Now()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.reject(ctx, w, requestID, http.StatusBadRequest, "reading request body", err)
		return
	}

	if strings.TrimSpace(h.cfg.Secret) != "" {
		if err := verifySignature(r.Header.Get(signatureHeader), body, h.cfg.Secret); err != nil {
			h.reject(ctx, w, requestID, http.StatusUnauthorized, "signature verification failed", err)
			return
		}
	}

	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		h.reject(ctx, w, requestID, http.StatusBadRequest, "invalid JSON body", err)
		return
	}

	kind := r.Header.Get(eventHeader)
	if _, known := requiredFields[kind]; !known {
		logging.Audit(ctx, "webhook", "accept-unknown-kind", map[string]any{"requestId": requestID, "kind": kind})
		metrics.Default().APIRequests.WithLabelValues("/webhook", "200").Inc()
		w.WriteHeader(http.StatusOK)
		return
	}

	if err := validateSchema(kind, doc); err != nil {
		h.reject(ctx, w, requestID, http.StatusBadRequest, "schema validation failed", err)
		return
	}

	if err := h.dispatch(ctx, kind, doc); err != nil {
		logger.Error("event handling failed", "kind", kind, "error", err)
		h.reject(ctx, w, requestID, http.StatusInternalServerError, "event handling failed", err)
		return
	}

	logging.Audit(ctx, "webhook", "accept", map[string]any{"requestId": requestID, "kind": kind})
	metrics.Default().APIRequests.WithLabelValues("/webhook", "200").Inc()
	metrics.Default().APIDuration.WithLabelValues("/webhook").Observe(time.Since(start).Seconds())
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) reject(ctx context.Context, w http.ResponseWriter, requestID string, status int, reason string, err error) {
	logging.Audit(ctx, "webhook", "reject", map[string]any{
		"requestId": requestID,
		"status":    status,
		"reason":    reason,
		"error":     err.Error(),
	})
	metrics.Default().APIRequests.WithLabelValues("/webhook", fmt.Sprintf("%d", status)).Inc()
	http.Error(w, reason, status)
}

func verifySignature(header string, body []byte, secret string) error {
	const prefix = "sha256="
	if !strings.HasPrefix(header, prefix) {
		return fmt.Errorf("missing or malformed signature header")
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	got := strings.TrimPrefix(header, prefix)
	if !hmac.Equal([]byte(expected), []byte(got)) {
		return fmt.Errorf("signature mismatch")
	}
	return nil
}
