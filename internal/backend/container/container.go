// Package container implements the Worker Backend (C4) that runs workers as
// local Docker containers via the Docker SDK. Grounded on
// other_examples/1a9bdaf4_dyluth-holt__internal-orchestrator-workers.go.go's
// WorkerManager: ContainerCreate/Start, label-filtered ContainerList for
// orphan discovery, ContainerWait-style polling, and ContainerLogs retrieval
// (see DESIGN.md's C4 entry).
package container

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"

	"github.com/squireai/squire/internal/backend"
	"github.com/squireai/squire/internal/config"
	"github.com/squireai/squire/internal/logging"
	"github.com/squireai/squire/internal/metrics"
	"github.com/squireai/squire/models"
)

const (
	labelManagedBy = "managed-by"
	labelTaskID    = "squire.task-id"
	labelRepo      = "squire.repo"
	labelRetry     = "squire.retry-count"
	managedByValue = "squire"

	supervisorInterval = 5 * time.Second
)

func init() {
	backend.Register("container", New)
}

// Backend runs workers as Docker containers on the local daemon.
type Backend struct {
	cli *client.Client
	cfg *config.SquireConfig
}

// New resolves a Docker client against the daemon, trying DOCKER_HOST, the
// default unix socket, and the rootless user socket in that order, mirroring
// how the teacher's doctor command probes for available runtimes.
func New(cfg *config.SquireConfig) (backend.Backend, error) {
	cli, err := resolveClient()
	if err != nil {
		return nil, fmt.Errorf("connecting to docker daemon: %w", err)
	}
	return &Backend{cli: cli, cfg: cfg}, nil
}

func resolveClient() (*client.Client, error) {
	if host := os.Getenv("DOCKER_HOST"); host != "" {
		return client.NewClientWithOpts(client.WithHost(host), client.FromEnv, client.WithAPIVersionNegotiation())
	}
	candidates := []string{"/var/run/docker.sock"}
	if runtimeDir := os.Getenv("XDG_RUNTIME_DIR"); runtimeDir != "" {
		candidates = append(candidates, filepath.Join(runtimeDir, "docker.sock"))
	}
	for _, sock := range candidates {
		if _, err := os.Stat(sock); err == nil {
			return client.NewClientWithOpts(client.WithHost("unix://"+sock), client.WithAPIVersionNegotiation())
		}
	}
	return client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
}

func (b *Backend) Name() string                          { return "container" }
func (b *Backend) SupervisorInterval() time.Duration      { return supervisorInterval }

// containerName derives a stable, Docker-legal container name from a task id.
func containerName(taskID string) string {
	return "squire-worker-" + taskID
}

// Start launches the task's worker container, retrying transient daemon
// errors per spec §4.2.4 via internal/backend.RetryStart.
func (b *Backend) Start(ctx context.Context, req backend.StartRequest) (string, error) {
	logger := logging.L(ctx, "backend.container").With("taskId", req.Task.ID)

	env := []string{
		"SQUIRE_TASK_ID=" + req.Task.ID,
		"SQUIRE_REPO=" + req.Task.Repo,
		"SQUIRE_PROMPT=" + req.Task.Prompt,
		"SQUIRE_BRANCH=" + req.Task.Branch,
		"SQUIRE_BASE_BRANCH=" + req.Task.BaseBranch,
		"SQUIRE_MODEL=" + req.Model,
		"REPO_HOST_TOKEN=" + req.RepoHostToken,
	}

	image := req.Image
	if image == "" {
		image = b.cfg.WorkerImage
	}

	id, err := backend.RetryStart(ctx, req.Config.MaxRetries, func(try int) (string, error) {
		return b.start(ctx, req, image, env, try)
	}, func(try int, retryErr error) {
		logger.Warn("worker start failed, retrying", "attempt", try, "error", retryErr)
		metrics.Default().ContainerStarts.WithLabelValues("container", "retry").Inc()
	})
	if err != nil {
		metrics.Default().ContainerStarts.WithLabelValues("container", "failed").Inc()
		return "", err
	}
	metrics.Default().ContainerStarts.WithLabelValues("container", "started").Inc()
	return id, nil
}

func (b *Backend) start(ctx context.Context, req backend.StartRequest, image string, env []string, retryCount int) (string, error) {
	labels := map[string]string{
		labelManagedBy: managedByValue,
		labelTaskID:    req.Task.ID,
		labelRepo:      req.Task.Repo,
		labelRetry:     strconv.Itoa(retryCount),
	}

	hostConfig := &container.HostConfig{
		AutoRemove: false,
		Resources: container.Resources{
			NanoCPUs: int64(req.Config.CPULimit * 1e9),
			Memory:   int64(req.Config.MemoryLimitMB) * 1024 * 1024,
		},
	}
	if b.cfg.ContainerRuntime != "" {
		hostConfig.Runtime = b.cfg.ContainerRuntime
	}
	if b.cfg.SkillsDir != "" {
		if _, err := os.Stat(b.cfg.SkillsDir); err == nil {
			hostConfig.Binds = []string{b.cfg.SkillsDir + ":/skills:ro"}
		}
	}

	containerCfg := &container.Config{
		Image:  image,
		Env:    env,
		Labels: labels,
	}

	name := containerName(req.Task.ID)
	resp, err := b.cli.ContainerCreate(ctx, containerCfg, hostConfig, nil, nil, name)
	if err != nil {
		return "", fmt.Errorf("creating worker container: %w", err)
	}

	if err := b.cli.ContainerStart(ctx, resp.ID, types.ContainerStartOptions{}); err != nil {
		_ = b.cli.ContainerRemove(ctx, resp.ID, types.ContainerRemoveOptions{Force: true})
		return "", fmt.Errorf("starting worker container: %w", err)
	}
	return resp.ID, nil
}

func (b *Backend) Logs(ctx context.Context, workerID string, tail int) (string, error) {
	opts := types.ContainerLogsOptions{ShowStdout: true, ShowStderr: true}
	if tail > 0 {
		opts.Tail = strconv.Itoa(tail)
	}
	reader, err := b.cli.ContainerLogs(ctx, workerID, opts)
	if err != nil {
		return "", fmt.Errorf("reading worker logs: %w", err)
	}
	defer reader.Close()
	raw, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("reading worker logs: %w", err)
	}
	return string(raw), nil
}

func (b *Backend) IsRunning(ctx context.Context, workerID string) (bool, error) {
	info, err := b.cli.ContainerInspect(ctx, workerID)
	if err != nil {
		if client.IsErrNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return info.State != nil && info.State.Running, nil
}

func (b *Backend) ExitCode(ctx context.Context, workerID string) (int, bool, error) {
	info, err := b.cli.ContainerInspect(ctx, workerID)
	if err != nil {
		if client.IsErrNotFound(err) {
			return 0, false, nil
		}
		return 0, false, err
	}
	if info.State == nil || info.State.Running {
		return 0, false, nil
	}
	return info.State.ExitCode, true, nil
}

func (b *Backend) Stop(ctx context.Context, workerID string) error {
	timeout := 10
	return b.cli.ContainerStop(ctx, workerID, container.StopOptions{Timeout: &timeout})
}

func (b *Backend) Remove(ctx context.Context, workerID string) error {
	return b.cli.ContainerRemove(ctx, workerID, types.ContainerRemoveOptions{Force: true})
}

// List returns every container squire manages, used by the reconciler (C7)
// to correlate live workers against stored tasks and to remove orphans.
func (b *Backend) List(ctx context.Context) ([]models.WorkerTaskInfo, error) {
	f := filters.NewArgs()
	f.Add("label", labelManagedBy+"="+managedByValue)

	containers, err := b.cli.ContainerList(ctx, types.ContainerListOptions{All: true, Filters: f})
	if err != nil {
		return nil, fmt.Errorf("listing worker containers: %w", err)
	}

	out := make([]models.WorkerTaskInfo, 0, len(containers))
	for _, c := range containers {
		retry, _ := strconv.Atoi(c.Labels[labelRetry])
		info := models.WorkerTaskInfo{
			TaskID:     c.Labels[labelTaskID],
			WorkerID:   c.ID,
			Running:    strings.EqualFold(c.State, "running"),
			Repo:       c.Labels[labelRepo],
			RetryCount: retry,
			CreatedAt:  time.Unix(c.Created, 0).UTC(),
		}
		if !info.Running {
			if code, ok, err := b.ExitCode(ctx, c.ID); err == nil && ok {
				info.ExitCode = &code
			}
		}
		out = append(out, info)
	}
	return out, nil
}
