// Package backend defines the pluggable Worker Backend abstraction (C3) and
// the factory that installs one concrete implementation process-wide, per
// spec §4.2 and §9's "Backend polymorphism" note. Modeled directly on the
// teacher's internal/repository.RepoProvider interface + New(provider, cfg)
// factory-switch (see DESIGN.md's C3 entry).
package backend

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/squireai/squire/internal/config"
	"github.com/squireai/squire/models"
)

// WorkerConfig carries the per-worker resource and retry parameters of
// spec §4.2's StartRequest table.
type WorkerConfig struct {
	TimeoutMinutes        int
	MaxRetries            int
	CPULimit              float64 // cores
	MemoryLimitMB         int
	PreserveLogsOnFailure bool
}

// DefaultWorkerConfig returns the defaults named in spec §4.2.
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		TimeoutMinutes:        30,
		MaxRetries:            3,
		CPULimit:              2,
		MemoryLimitMB:         4096,
		PreserveLogsOnFailure: true,
	}
}

// StartRequest is the payload a Backend's Start operation consumes.
type StartRequest struct {
	Task          *models.Task
	RepoHostToken string
	Model         string
	Image         string
	Verbose       bool
	Config        WorkerConfig
}

// Backend is the abstract capability set every concrete worker backend must
// provide, per spec §4.2.
type Backend interface {
	// Start launches a worker for req and returns its backend-assigned id.
	Start(ctx context.Context, req StartRequest) (workerID string, err error)
	// Logs returns the worker's raw combined stdout/stderr stream. For
	// container backends this is the multiplexed stream verbatim — stripping
	// the 8-byte per-chunk header is left to the CLI consumer, per §9.
	Logs(ctx context.Context, workerID string, tail int) (string, error)
	IsRunning(ctx context.Context, workerID string) (bool, error)
	// ExitCode returns the worker's exit code, or ok=false if still running
	// or unknown.
	ExitCode(ctx context.Context, workerID string) (code int, ok bool, err error)
	Stop(ctx context.Context, workerID string) error
	Remove(ctx context.Context, workerID string) error
	List(ctx context.Context) ([]models.WorkerTaskInfo, error)
	// SupervisorInterval is how often the supervisor polls IsRunning for a
	// worker launched by this backend (5s container, 10s cluster per §4.2.6).
	SupervisorInterval() time.Duration
	// Name identifies the backend for logging/metrics labels.
	Name() string
}

var (
	mu      sync.RWMutex
	current Backend
)

// Constructor builds a Backend from cfg; one is registered per cfg.Backend
// name ("container" or "cluster"). Concrete constructors live in
// internal/backend/container and internal/backend/cluster and register
// themselves from their own init functions, so that
// internal/backend itself has no import-cycle-causing dependency on either
// concrete package's third-party SDKs.
type Constructor func(cfg *config.SquireConfig) (Backend, error)

var constructors = map[string]Constructor{}

// Register adds a named backend constructor. Concrete backend packages call
// this from an init() func, the same "polymorphic seam" the teacher's
// internal/repository.New switch encodes inline (here split across packages
// to keep the docker/k8s SDKs out of internal/backend's own import graph).
func Register(name string, ctor Constructor) {
	constructors[name] = ctor
}

// Install builds and installs the process-wide Backend instance named by
// cfg.Backend.
func Install(cfg *config.SquireConfig) error {
	ctor, ok := constructors[cfg.Backend]
	if !ok {
		return fmt.Errorf("unsupported worker backend %q (supported: container, cluster)", cfg.Backend)
	}
	b, err := ctor(cfg)
	if err != nil {
		return fmt.Errorf("installing %s backend: %w", cfg.Backend, err)
	}
	mu.Lock()
	current = b
	mu.Unlock()
	return nil
}

// Current returns the process-wide Backend instance.
func Current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// SetBackend installs b directly; exists solely to support tests, per §4.2's
// "a setBackend/resetBackend hook exists solely to support tests."
func SetBackend(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	current = b
}

// ResetBackend clears the process-wide backend; for tests only.
func ResetBackend() {
	mu.Lock()
	defer mu.Unlock()
	current = nil
}
