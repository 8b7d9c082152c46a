package logging

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
)

// sensitiveKey matches metadata keys whose value must be redacted, per
// spec §4.7.
var sensitiveKey = regexp.MustCompile(`(?i)token|secret|password|passwd|apikey|api[_-]key|auth[_-]?token|authorization|credential|private[_-]?key|access[_-]?key`)

const redacted = "[REDACTED]"

// tokenish matches strings long and opaque enough to be worth fingerprinting
// even when their key didn't match sensitiveKey (e.g. a bearer value logged
// under an unrelated attribute name).
var tokenish = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// fingerprint replaces a long opaque string with first4...last4 so that it
// remains identifiable across log lines without leaking the full secret.
func fingerprint(s string) string {
	if len(s) <= 20 || !tokenish.MatchString(s) {
		return s
	}
	return s[:4] + "..." + s[len(s)-4:]
}

type redactingHandler struct {
	next  slog.Handler
	group string
}

func (h *redactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *redactingHandler) Handle(ctx context.Context, r slog.Record) error {
	nr := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		nr.AddAttrs(redactAttr(a))
		return true
	})
	return h.next.Handle(ctx, nr)
}

func (h *redactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		out[i] = redactAttr(a)
	}
	return &redactingHandler{next: h.next.WithAttrs(out), group: h.group}
}

func (h *redactingHandler) WithGroup(name string) slog.Handler {
	return &redactingHandler{next: h.next.WithGroup(name), group: name}
}

// redactAttr recurses into group-valued attributes (nested mappings) and
// redacts sensitive-keyed leaves; it also fingerprints long opaque string
// leaves regardless of key, and recurses into slices represented as
// slog.AnyValue([]any) or slog.GroupValue.
func redactAttr(a slog.Attr) slog.Attr {
	if sensitiveKey.MatchString(a.Key) {
		return slog.String(a.Key, redacted)
	}
	return slog.Attr{Key: a.Key, Value: redactValue(a.Value)}
}

func redactValue(v slog.Value) slog.Value {
	switch v.Kind() {
	case slog.KindGroup:
		attrs := v.Group()
		out := make([]slog.Attr, len(attrs))
		for i, a := range attrs {
			out[i] = redactAttr(a)
		}
		return slog.GroupValue(out...)
	case slog.KindString:
		return slog.StringValue(fingerprint(v.String()))
	case slog.KindAny:
		return redactAny(v)
	default:
		return v
	}
}

func redactAny(v slog.Value) slog.Value {
	switch x := v.Any().(type) {
	case map[string]any:
		return slog.AnyValue(redactMap(x))
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = redactInterface(e)
		}
		return slog.AnyValue(out)
	case string:
		return slog.StringValue(fingerprint(x))
	default:
		return v
	}
}

func redactMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if sensitiveKey.MatchString(k) {
			out[k] = redacted
			continue
		}
		out[k] = redactInterface(v)
	}
	return out
}

func redactInterface(v any) any {
	switch x := v.(type) {
	case map[string]any:
		return redactMap(x)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = redactInterface(e)
		}
		return out
	case string:
		return fingerprint(x)
	default:
		return v
	}
}

// redactKeyHint exists so callers building ad-hoc metadata maps can check a
// key without importing the regexp themselves.
func redactKeyHint(key string) bool {
	return sensitiveKey.MatchString(strings.ToLower(key))
}
