package config

// SquireConfig is the root configuration for the Squire task dispatcher,
// per spec §6. It is resolved with env vars first, then overridden by the
// first candidate config file that exists — see LoadSquire.
type SquireConfig struct {
	// RepoHostToken authenticates calls to the configured repo host. If
	// empty, no other token source is consulted.
	RepoHostToken string `mapstructure:"repo_host_token" json:"repo_host_token"`
	// Model is the default LLM model id passed to workers.
	Model string `mapstructure:"model" json:"model"`
	// TasksDir is the Task Store's record directory.
	TasksDir string `mapstructure:"tasks_dir" json:"tasks_dir"`
	// LogsDir is the sibling directory preserved worker logs are written to.
	LogsDir string `mapstructure:"logs_dir" json:"logs_dir"`
	// WorkerImage is the container image (or cluster job image) run per task.
	WorkerImage string `mapstructure:"worker_image" json:"worker_image"`
	// SkillsDir, when the directory exists, is mounted read-only at /skills
	// in container-backend workers; the cluster backend does not mount it.
	SkillsDir string `mapstructure:"skills_dir" json:"skills_dir"`
	// MaxConcurrent is the admission controller's global worker cap.
	MaxConcurrent int `mapstructure:"max_concurrent" json:"max_concurrent"`
	// AutoCleanup controls whether the reconciler removes orphaned workers.
	AutoCleanup bool `mapstructure:"auto_cleanup" json:"auto_cleanup"`
	// ContainerRuntime names a sandboxing runtime (e.g. "runsc" for gVisor)
	// passed through to the container backend's HostConfig.Runtime.
	ContainerRuntime string `mapstructure:"container_runtime" json:"container_runtime"`

	// Backend selects "container" (default) or "cluster".
	Backend string `mapstructure:"backend" json:"backend"`

	// Webhook controls the inbound webhook ingress (§4.5).
	Webhook WebhookIngressConfig `mapstructure:"webhook" json:"webhook"`

	// Cluster holds cluster-job backend specifics, used when Backend == "cluster".
	Cluster ClusterConfig `mapstructure:"cluster" json:"cluster"`
}

// WebhookIngressConfig controls the inbound webhook HTTP endpoint.
type WebhookIngressConfig struct {
	Secret        string `mapstructure:"secret" json:"secret"` // #nosec G101 -- config field, not a hardcoded credential
	RequireSecret bool   `mapstructure:"require_secret" json:"require_secret"`
	Addr          string `mapstructure:"addr" json:"addr"`
	ReviewBotUsers []string `mapstructure:"review_bot_users" json:"review_bot_users"`
}

// ClusterConfig holds Kubernetes-specific settings for the cluster-job
// backend.
type ClusterConfig struct {
	Namespace        string `mapstructure:"namespace" json:"namespace"`
	Kubeconfig       string `mapstructure:"kubeconfig" json:"kubeconfig"`
	TokenSecretName  string `mapstructure:"token_secret_name" json:"token_secret_name"`
	TokenSecretKeyA  string `mapstructure:"token_secret_key_a" json:"token_secret_key_a"`
	TokenSecretKeyB  string `mapstructure:"token_secret_key_b" json:"token_secret_key_b"`
}

// StewardConfig is the root configuration for the Steward pipeline, resolved
// from env STEWARD_CONFIG_PATH, else ./steward.yaml, else /config/steward.yaml.
type StewardConfig struct {
	Goals     []GoalRef       `mapstructure:"goals" json:"goals" yaml:"goals"`
	Signals   SignalsConfig   `mapstructure:"signals" json:"signals" yaml:"signals"`
	Execution ExecutionConfig `mapstructure:"execution" json:"execution" yaml:"execution"`
	AutoMerge AutoMergeConfig `mapstructure:"auto_merge" json:"auto_merge" yaml:"auto_merge"`
	LLM       LLMConfig       `mapstructure:"llm" json:"llm" yaml:"llm"`
	Schedule  ScheduleConfig  `mapstructure:"schedule" json:"schedule" yaml:"schedule"`
}

// GoalRef is either an inline goal Text or a Path to a goals file.
type GoalRef struct {
	Path string `mapstructure:"path" json:"path,omitempty" yaml:"path,omitempty"`
	Text string `mapstructure:"text" json:"text,omitempty" yaml:"text,omitempty"`
}

// SignalsConfig configures signal collection sources.
type SignalsConfig struct {
	GitHub RepoHostWatch `mapstructure:"github" json:"github" yaml:"github"`
	GitLab RepoHostWatch `mapstructure:"gitlab" json:"gitlab" yaml:"gitlab"`
	Files  []string      `mapstructure:"files" json:"files" yaml:"files"`
}

// RepoHostWatch lists repos to enumerate and which signal kinds to watch.
type RepoHostWatch struct {
	Repos []string `mapstructure:"repos" json:"repos" yaml:"repos"`
	Watch []string `mapstructure:"watch" json:"watch" yaml:"watch"` // e.g. "prs", "ci", "issues", "reviews"
}

// ExecutionConfig controls how the Steward dispatch stage talks to Squire.
type ExecutionConfig struct {
	Backend string       `mapstructure:"backend" json:"backend" yaml:"backend"` // "squire"
	Squire  SquireExecConfig `mapstructure:"squire" json:"squire" yaml:"squire"`
}

// SquireExecConfig names the Squire-side dispatch parameters.
type SquireExecConfig struct {
	DefaultRepo   string   `mapstructure:"default_repo" json:"default_repo" yaml:"default_repo"`
	Repos         []string `mapstructure:"repos" json:"repos" yaml:"repos"`
	Model         string   `mapstructure:"model" json:"model" yaml:"model"`
	MaxConcurrent int      `mapstructure:"max_concurrent" json:"max_concurrent" yaml:"max_concurrent"`
	MaxPerRepo    int      `mapstructure:"max_per_repo" json:"max_per_repo" yaml:"max_per_repo"`
}

// AutoMergeConfig gates the confidence-filtered auto-merge stage.
type AutoMergeConfig struct {
	Enabled       bool `mapstructure:"enabled" json:"enabled" yaml:"enabled"`
	MinConfidence int  `mapstructure:"min_confidence" json:"min_confidence" yaml:"min_confidence"`
}

// LLMConfig names the model used by the Analyze stage.
type LLMConfig struct {
	Model string `mapstructure:"model" json:"model" yaml:"model"`
}

// ScheduleConfig controls the Steward watch loop.
type ScheduleConfig struct {
	Interval   string `mapstructure:"interval" json:"interval" yaml:"interval"` // duration string, e.g. "15m"
	QuietHours string `mapstructure:"quiet_hours" json:"quiet_hours" yaml:"quiet_hours"` // "HH:MM-HH:MM"
	Timezone   string `mapstructure:"timezone" json:"timezone" yaml:"timezone"`
}
