// Package cluster implements the Worker Backend (C5) that runs workers as
// Kubernetes Jobs via k8s.io/client-go. Grounded on
// other_examples/97a86b74_jalet-mcp-fabric__operator-internal-controllers-task_controller.go.go's
// batchv1.Job construction, job-status-counter polling (succeeded/failed),
// and label-selector pod log retrieval — simplified here to direct CRUD plus
// polling per spec §4.2, since the spec asks for Job scheduling, not a full
// reconciling operator (see DESIGN.md's C5 entry).
package cluster

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/squireai/squire/internal/backend"
	"github.com/squireai/squire/internal/config"
	"github.com/squireai/squire/internal/logging"
	"github.com/squireai/squire/internal/metrics"
	"github.com/squireai/squire/models"
)

const (
	labelManagedBy = "managed-by"
	labelTaskID    = "squire-task-id"
	labelRepo      = "squire-repo"
	managedByValue = "squire"

	supervisorInterval = 10 * time.Second

	ttlSecondsAfterFinished = int32(3600)
)

func init() {
	backend.Register("cluster", New)
}

// Backend runs workers as Kubernetes Jobs in a configured namespace.
type Backend struct {
	clientset *kubernetes.Clientset
	namespace string
	cfg       *config.SquireConfig
}

// New builds a Backend from cfg.Cluster, using an in-cluster config when
// running inside a pod and falling back to the configured/$KUBECONFIG
// kubeconfig otherwise.
func New(cfg *config.SquireConfig) (backend.Backend, error) {
	restCfg, err := resolveRESTConfig(cfg.Cluster.Kubeconfig)
	if err != nil {
		return nil, fmt.Errorf("resolving kubernetes config: %w", err)
	}
	clientset, err := kubernetes.NewForConfig(restCfg)
	if err != nil {
		return nil, fmt.Errorf("building kubernetes client: %w", err)
	}
	namespace := cfg.Cluster.Namespace
	if namespace == "" {
		namespace = "default"
	}
	return &Backend{clientset: clientset, namespace: namespace, cfg: cfg}, nil
}

func resolveRESTConfig(kubeconfigPath string) (*rest.Config, error) {
	if kubeconfigPath != "" {
		return clientcmd.BuildConfigFromFlags("", kubeconfigPath)
	}
	if cfg, err := rest.InClusterConfig(); err == nil {
		return cfg, nil
	}
	return clientcmd.BuildConfigFromFlags("", clientcmd.RecommendedHomeFile)
}

func (b *Backend) Name() string                     { return "cluster" }
func (b *Backend) SupervisorInterval() time.Duration { return supervisorInterval }

var invalidJobNameChars = regexp.MustCompile(`[^a-z0-9-]`)

// jobName derives a DNS-1123-legal Job name from a task id, per §4.2's
// "lowercase, non-alphanumeric replaced with '-', prefixed, truncated to 63".
func jobName(taskID string) string {
	name := "squire-worker-" + invalidJobNameChars.ReplaceAllString(strings.ToLower(taskID), "-")
	if len(name) > 63 {
		name = name[:63]
	}
	return name
}

func (b *Backend) Start(ctx context.Context, req backend.StartRequest) (string, error) {
	logger := logging.L(ctx, "backend.cluster").With("taskId", req.Task.ID)

	image := req.Image
	if image == "" {
		image = b.cfg.WorkerImage
	}

	id, err := backend.RetryStart(ctx, req.Config.MaxRetries, func(try int) (string, error) {
		return b.start(ctx, req, image)
	}, func(try int, retryErr error) {
		logger.Warn("job create failed, retrying", "attempt", try, "error", retryErr)
		metrics.Default().ContainerStarts.WithLabelValues("cluster", "retry").Inc()
	})
	if err != nil {
		metrics.Default().ContainerStarts.WithLabelValues("cluster", "failed").Inc()
		return "", err
	}
	metrics.Default().ContainerStarts.WithLabelValues("cluster", "started").Inc()
	return id, nil
}

func (b *Backend) start(ctx context.Context, req backend.StartRequest, image string) (string, error) {
	name := jobName(req.Task.ID)

	// Resource requests are one quarter of the configured limits, per §4.2's
	// table of cluster-backend resource defaults.
	cpuLimit := resource.NewMilliQuantity(int64(req.Config.CPULimit*1000), resource.DecimalSI)
	cpuRequest := resource.NewMilliQuantity(int64(req.Config.CPULimit*1000/4), resource.DecimalSI)
	memLimit := resource.NewQuantity(int64(req.Config.MemoryLimitMB)*1024*1024, resource.BinarySI)
	memRequest := resource.NewQuantity(int64(req.Config.MemoryLimitMB)*1024*1024/4, resource.BinarySI)

	env := []corev1.EnvVar{
		{Name: "SQUIRE_TASK_ID", Value: req.Task.ID},
		{Name: "SQUIRE_REPO", Value: req.Task.Repo},
		{Name: "SQUIRE_PROMPT", Value: req.Task.Prompt},
		{Name: "SQUIRE_BRANCH", Value: req.Task.Branch},
		{Name: "SQUIRE_BASE_BRANCH", Value: req.Task.BaseBranch},
		{Name: "SQUIRE_MODEL", Value: req.Model},
	}
	if b.cfg.Cluster.TokenSecretName != "" {
		env = append(env,
			corev1.EnvVar{Name: "TOKEN_A", ValueFrom: &corev1.EnvVarSource{
				SecretKeyRef: &corev1.SecretKeySelector{
					LocalObjectReference: corev1.LocalObjectReference{Name: b.cfg.Cluster.TokenSecretName},
					Key:                  b.cfg.Cluster.TokenSecretKeyA,
				},
			}},
			corev1.EnvVar{Name: "TOKEN_B", ValueFrom: &corev1.EnvVarSource{
				SecretKeyRef: &corev1.SecretKeySelector{
					LocalObjectReference: corev1.LocalObjectReference{Name: b.cfg.Cluster.TokenSecretName},
					Key:                  b.cfg.Cluster.TokenSecretKeyB,
				},
			}},
		)
	} else {
		env = append(env, corev1.EnvVar{Name: "REPO_HOST_TOKEN", Value: req.RepoHostToken})
	}

	activeDeadline := int64(req.Config.TimeoutMinutes) * 60
	backoffLimit := int32(0) // squire's own retry loop drives restarts, not the Job controller's

	job := &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: b.namespace,
			Labels: map[string]string{
				labelManagedBy: managedByValue,
				labelTaskID:    req.Task.ID,
				labelRepo:      sanitizeLabel(req.Task.Repo),
			},
		},
		Spec: batchv1.JobSpec{
			ActiveDeadlineSeconds:   &activeDeadline,
			TTLSecondsAfterFinished: int32Ptr(ttlSecondsAfterFinished),
			BackoffLimit:            &backoffLimit,
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{
					Labels: map[string]string{
						labelManagedBy: managedByValue,
						labelTaskID:    req.Task.ID,
					},
				},
				Spec: corev1.PodSpec{
					RestartPolicy: corev1.RestartPolicyNever,
					Containers: []corev1.Container{
						{
							Name:  "worker",
							Image: image,
							Env:   env,
							Resources: corev1.ResourceRequirements{
								Limits: corev1.ResourceList{
									corev1.ResourceCPU:    *cpuLimit,
									corev1.ResourceMemory: *memLimit,
								},
								Requests: corev1.ResourceList{
									corev1.ResourceCPU:    *cpuRequest,
									corev1.ResourceMemory: *memRequest,
								},
							},
						},
					},
				},
			},
		},
	}

	created, err := b.clientset.BatchV1().Jobs(b.namespace).Create(ctx, job, metav1.CreateOptions{})
	if err != nil {
		return "", fmt.Errorf("creating worker job: %w", err)
	}
	return created.Name, nil
}

func sanitizeLabel(v string) string {
	if len(v) > 63 {
		v = v[:63]
	}
	return invalidJobNameChars.ReplaceAllString(v, "-")
}

func int32Ptr(v int32) *int32 { return &v }

func (b *Backend) Logs(ctx context.Context, workerID string, tail int) (string, error) {
	pods, err := b.clientset.CoreV1().Pods(b.namespace).List(ctx, metav1.ListOptions{
		LabelSelector: "job-name=" + workerID,
	})
	if err != nil {
		return "", fmt.Errorf("listing worker pods: %w", err)
	}
	if len(pods.Items) == 0 {
		return "", fmt.Errorf("no pods found for job %s", workerID)
	}

	opts := &corev1.PodLogOptions{Container: "worker"}
	if tail > 0 {
		tailLines := int64(tail)
		opts.TailLines = &tailLines
	}

	req := b.clientset.CoreV1().Pods(b.namespace).GetLogs(pods.Items[0].Name, opts)
	stream, err := req.Stream(ctx)
	if err != nil {
		return "", fmt.Errorf("streaming worker logs: %w", err)
	}
	defer stream.Close()

	raw, err := io.ReadAll(stream)
	if err != nil {
		return "", fmt.Errorf("reading worker logs: %w", err)
	}
	return string(raw), nil
}

func (b *Backend) getJob(ctx context.Context, workerID string) (*batchv1.Job, bool, error) {
	job, err := b.clientset.BatchV1().Jobs(b.namespace).Get(ctx, workerID, metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return job, true, nil
}

func (b *Backend) IsRunning(ctx context.Context, workerID string) (bool, error) {
	job, ok, err := b.getJob(ctx, workerID)
	if err != nil || !ok {
		return false, err
	}
	return job.Status.Active > 0, nil
}

func (b *Backend) ExitCode(ctx context.Context, workerID string) (int, bool, error) {
	job, ok, err := b.getJob(ctx, workerID)
	if err != nil || !ok {
		return 0, false, err
	}
	switch {
	case job.Status.Succeeded > 0:
		return 0, true, nil
	case job.Status.Failed > 0:
		return 1, true, nil
	default:
		return 0, false, nil
	}
}

func (b *Backend) Stop(ctx context.Context, workerID string) error {
	policy := metav1.DeletePropagationBackground
	return b.clientset.BatchV1().Jobs(b.namespace).Delete(ctx, workerID, metav1.DeleteOptions{
		PropagationPolicy: &policy,
	})
}

func (b *Backend) Remove(ctx context.Context, workerID string) error {
	return b.Stop(ctx, workerID)
}

func (b *Backend) List(ctx context.Context) ([]models.WorkerTaskInfo, error) {
	jobs, err := b.clientset.BatchV1().Jobs(b.namespace).List(ctx, metav1.ListOptions{
		LabelSelector: labelManagedBy + "=" + managedByValue,
	})
	if err != nil {
		return nil, fmt.Errorf("listing worker jobs: %w", err)
	}

	out := make([]models.WorkerTaskInfo, 0, len(jobs.Items))
	for _, job := range jobs.Items {
		info := models.WorkerTaskInfo{
			TaskID:    job.Labels[labelTaskID],
			WorkerID:  job.Name,
			Running:   job.Status.Active > 0,
			Repo:      job.Labels[labelRepo],
			CreatedAt: job.CreationTimestamp.Time,
		}
		if !info.Running {
			switch {
			case job.Status.Succeeded > 0:
				code := 0
				info.ExitCode = &code
			case job.Status.Failed > 0:
				code := 1
				info.ExitCode = &code
			}
		}
		out = append(out, info)
	}
	return out, nil
}
