// Package task implements the Task Store (C2): one self-describing JSON
// record per task at a deterministic path, mutated under an exclusive
// per-record file lock, with no index file — list scans and parses every
// record in the directory. Grounded on the teacher's internal/config.Save
// atomic-JSON-write style, generalized here to per-record locking via
// gofrs/flock (see DESIGN.md's C2 entry).
package task

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/squireai/squire/internal/atomicfile"
	"github.com/squireai/squire/internal/logging"
	"github.com/squireai/squire/internal/metrics"
	"github.com/squireai/squire/models"
)

const (
	defaultAcquireTimeout = 5 * time.Second
	defaultStaleWindow    = 30 * time.Second
	retryMinDelay         = 100 * time.Millisecond
	retryMaxDelay         = 200 * time.Millisecond
)

// CreateInput is the payload accepted by Store.Create.
type CreateInput struct {
	Repo       string
	Prompt     string
	Branch     string
	BaseBranch string
}

// Store is the Task Store's operation contract, per spec §4.1.
type Store interface {
	Create(ctx context.Context, in CreateInput) (*models.Task, error)
	Get(ctx context.Context, id string) (*models.Task, bool, error)
	Update(ctx context.Context, id string, patch map[string]any) (*models.Task, bool, error)
	Delete(ctx context.Context, id string) (bool, error)
	List(ctx context.Context, status models.TaskStatus) ([]*models.Task, error)
	SetTasksDir(path string)
	GetTasksDir() string
}

// FileStore is the file-per-record implementation of Store.
type FileStore struct {
	mu       sync.RWMutex
	dir      string
	subs     []chan models.Task
	subsLock sync.Mutex
}

// NewFileStore returns a Store rooted at dir, creating it if absent.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating tasks directory %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) SetTasksDir(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dir = path
}

func (s *FileStore) GetTasksDir() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dir
}

func (s *FileStore) recordPath(id string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return filepath.Join(s.dir, id+".json")
}

func (s *FileStore) lockPath(id string) string {
	return s.recordPath(id) + ".lock"
}

// Create writes a new pending Task; per §4.1 this never returns an error
// from contention since the record does not yet exist to lock.
func (s *FileStore) Create(ctx context.Context, in CreateInput) (*models.Task, error) {
	id := uuid.NewString()
	branch := in.Branch
	if strings.TrimSpace(branch) == "" {
		branch = "squire/" + id
	}
	baseBranch := in.BaseBranch
	if strings.TrimSpace(baseBranch) == "" {
		baseBranch = "main"
	}
	t := &models.Task{
		ID:         id,
		Repo:       in.Repo,
		Prompt:     in.Prompt,
		Branch:     branch,
		BaseBranch: baseBranch,
		Status:     models.StatusPending,
		CreatedAt:  time.Now().UTC(),
	}
	if err := atomicfile.WriteJSON(s.recordPath(id), t); err != nil {
		return nil, fmt.Errorf("creating task %s: %w", id, err)
	}
	metrics.Default().TasksCreated.Inc()
	logging.Audit(ctx, "task-store", "create", map[string]any{"taskId": id, "repo": in.Repo})
	s.publish(*t)
	return t.Clone(), nil
}

// Get reads a task by id without acquiring the write lock (readers don't
// need exclusivity, only a consistent single read of the file).
func (s *FileStore) Get(ctx context.Context, id string) (*models.Task, bool, error) {
	var t models.Task
	if err := atomicfile.ReadJSON(s.recordPath(id), &t); err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("reading task %s: %w", id, err)
	}
	return &t, true, nil
}

// Update acquires the record's file lock, re-reads the current state,
// applies a field-wise merge of patch, and writes atomically. It enforces
// the monotonic status invariants of §3: a write that would move status
// backward from a terminal state is silently dropped (first writer to
// terminal wins, per §5's ordering guarantee).
func (s *FileStore) Update(ctx context.Context, id string, patch map[string]any) (*models.Task, bool, error) {
	path := s.recordPath(id)
	lock, err := s.acquire(ctx, id)
	if err != nil {
		return nil, false, err
	}
	defer s.release(lock)

	var t models.Task
	if err := atomicfile.ReadJSON(path, &t); err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("reading task %s: %w", id, err)
	}

	if t.Status.IsTerminal() {
		if newStatus, ok := patch["status"].(string); ok {
			if models.TaskStatus(newStatus) != t.Status && !models.TaskStatus(newStatus).IsTerminal() {
				delete(patch, "status")
			}
		}
	}

	applyPatch(&t, patch)

	if err := atomicfile.WriteJSON(path, &t); err != nil {
		return nil, false, fmt.Errorf("writing task %s: %w", id, err)
	}
	s.publish(t)
	return t.Clone(), true, nil
}

// Delete removes a task's record under its lock so a concurrent Update
// either fully completes before the delete or observes the task as absent
// afterward — never a partially-written record.
func (s *FileStore) Delete(ctx context.Context, id string) (bool, error) {
	lock, err := s.acquire(ctx, id)
	if err != nil {
		return false, err
	}
	defer s.release(lock)

	path := s.recordPath(id)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat task %s: %w", id, err)
	}
	if err := os.Remove(path); err != nil {
		return false, fmt.Errorf("deleting task %s: %w", id, err)
	}
	return true, nil
}

// List scans every record in the directory, optionally filtering by status,
// and returns them ordered by createdAt descending, ties broken by id.
func (s *FileStore) List(ctx context.Context, status models.TaskStatus) ([]*models.Task, error) {
	dir := s.GetTasksDir()
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("listing tasks dir %s: %w", dir, err)
	}
	out := make([]*models.Task, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		var t models.Task
		p := filepath.Join(dir, e.Name())
		if err := atomicfile.ReadJSON(p, &t); err != nil {
			logging.L(ctx, "task-store").Warn("skipping unparseable task record", "path", p, "error", err)
			continue
		}
		if status != "" && t.Status != status {
			continue
		}
		out = append(out, &t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Subscribe returns a channel receiving a copy of every task mutated via
// this Store (create/update). No CLI command subscribes to it.
func (s *FileStore) Subscribe() <-chan models.Task {
	ch := make(chan models.Task, 16)
	s.subsLock.Lock()
	s.subs = append(s.subs, ch)
	s.subsLock.Unlock()
	return ch
}

func (s *FileStore) publish(t models.Task) {
	s.subsLock.Lock()
	defer s.subsLock.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- t:
		default:
		}
	}
}

// acquire acquires the record's exclusive file lock, retrying with bounded
// jittered backoff until either the lock is obtained or acquireTimeout
// elapses; a lock whose backing file is older than staleWindow is forcibly
// reclaimed by removing it (the lock it guarded is presumed abandoned by a
// crashed holder).
func (s *FileStore) acquire(ctx context.Context, id string) (*flock.Flock, error) {
	path := s.lockPath(id)
	deadline := time.Now().Add(defaultAcquireTimeout)
	fl := flock.New(path)

	for {
		ok, err := fl.TryLock()
		if err == nil && ok {
			return fl, nil
		}

		if info, statErr := os.Stat(path); statErr == nil {
			if time.Since(info.ModTime()) > defaultStaleWindow {
				_ = os.Remove(path)
				fl = flock.New(path)
				continue
			}
		}

		if time.Now().After(deadline) {
			return nil, &LockError{FilePath: path, Cause: fmt.Errorf("timed out after %s", defaultAcquireTimeout)}
		}

		delay := retryMinDelay + time.Duration(rand.Int63n(int64(retryMaxDelay-retryMinDelay)))
		select {
		case <-ctx.Done():
			return nil, &LockError{FilePath: path, Cause: ctx.Err()}
		case <-time.After(delay):
		}
	}
}

func (s *FileStore) release(fl *flock.Flock) {
	_ = fl.Unlock()
}

// applyPatch performs a field-wise last-writer-wins merge of patch into t.
// Only recognized Task fields are applied; unrecognized keys are ignored.
func applyPatch(t *models.Task, patch map[string]any) {
	for k, v := range patch {
		switch k {
		case "status":
			if s, ok := v.(string); ok {
				t.Status = models.TaskStatus(s)
			}
		case "branch":
			if s, ok := v.(string); ok {
				t.Branch = s
			}
		case "baseBranch":
			if s, ok := v.(string); ok {
				t.BaseBranch = s
			}
		case "workerId":
			if s, ok := v.(string); ok {
				t.WorkerID = s
			}
		case "prUrl":
			if s, ok := v.(string); ok {
				t.PRUrl = s
			}
		case "prNumber":
			if n, ok := toInt(v); ok {
				t.PRNumber = n
			}
		case "prMerged":
			if b, ok := v.(bool); ok {
				t.PRMerged = b
			}
		case "prMergedAt":
			if tm, ok := toTime(v); ok {
				t.PRMergedAt = tm
			}
		case "prClosed":
			if b, ok := v.(bool); ok {
				t.PRClosed = b
			}
		case "prClosedAt":
			if tm, ok := toTime(v); ok {
				t.PRClosedAt = tm
			}
		case "ciFailed":
			if b, ok := v.(bool); ok {
				t.CIFailed = b
			}
		case "ciFailedAt":
			if tm, ok := toTime(v); ok {
				t.CIFailedAt = tm
			}
		case "ciFailedCheck":
			if s, ok := v.(string); ok {
				t.CIFailedCheck = s
			}
		case "ciFixTaskId":
			if s, ok := v.(string); ok {
				t.CIFixTaskID = s
			}
		case "reviewFixTaskId":
			if s, ok := v.(string); ok {
				t.ReviewFixTaskID = s
			}
		case "reviewFixedAt":
			if tm, ok := toTime(v); ok {
				t.ReviewFixedAt = tm
			}
		case "parentTaskId":
			if s, ok := v.(string); ok {
				t.ParentTaskID = s
			}
		case "error":
			if s, ok := v.(string); ok {
				t.Error = s
			}
		case "startedAt":
			if tm, ok := toTime(v); ok {
				t.StartedAt = tm
			}
		case "completedAt":
			if t.CompletedAt != nil {
				continue // completedAt is set exactly once, per §3
			}
			if tm, ok := toTime(v); ok {
				t.CompletedAt = tm
			}
		case "retryCount":
			if n, ok := toInt(v); ok {
				t.RetryCount = n
			}
		case "lastRetryAt":
			if tm, ok := toTime(v); ok {
				t.LastRetryAt = tm
			}
		}
	}
}

func toInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case int64:
		return int(x), true
	case float64:
		return int(x), true
	default:
		return 0, false
	}
}

func toTime(v any) (*time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return &x, true
	case *time.Time:
		return x, true
	default:
		return nil, false
	}
}
