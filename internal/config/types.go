package config

import "time"

// CForgeConfig is the top-level configuration structure for cforge.
type CForgeConfig struct {
	// Namespace holds the CronJobs and Jobs managed by the controller.
	Namespace string `yaml:"namespace"`

	// WatchNamespace restricts which CForge resources are watched. Empty
	// watches all namespaces.
	WatchNamespace string `yaml:"watchNamespace,omitempty"`

	// ArtifactDir is the root of the build output tree (logs and tarballs).
	ArtifactDir string `yaml:"artifactDir"`

	Builder    BuilderConfig    `yaml:"builder"`
	Reconciler ReconcilerConfig `yaml:"reconciler"`
	Server     ServerConfig     `yaml:"server"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// BuilderConfig describes the container every build runs in.
type BuilderConfig struct {
	Image string `yaml:"image"`

	// ClaimName is the PersistentVolumeClaim mounted for build output.
	ClaimName string `yaml:"claimName"`

	// MountPath is where the claim is mounted inside the builder; it is also
	// passed to the builder as ARTIFACT_DIR.
	MountPath string `yaml:"mountPath"`

	// TTLSecondsAfterFinished bounds how long finished Jobs are retained.
	TTLSecondsAfterFinished int32 `yaml:"ttlSecondsAfterFinished"`
}

// WatchMode specifies where CForge resources are read from.
type WatchMode string

const (
	WatchModeAuto       WatchMode = "auto"
	WatchModeKubernetes WatchMode = "kubernetes"
	WatchModeFilesystem WatchMode = "filesystem"
)

// ReconcilerConfig tunes the reconcile manager.
type ReconcilerConfig struct {
	Mode WatchMode `yaml:"mode,omitempty"`

	// ManifestsPath is the directory of CForge manifests watched in
	// filesystem mode.
	ManifestsPath string `yaml:"manifestsPath,omitempty"`

	WorkerCount      int           `yaml:"workerCount,omitempty"`
	MaxRetries       int           `yaml:"maxRetries,omitempty"`
	InitialBackoff   time.Duration `yaml:"initialBackoff,omitempty"`
	MaxBackoff       time.Duration `yaml:"maxBackoff,omitempty"`
	DebounceInterval time.Duration `yaml:"debounceInterval,omitempty"`
	ReconcileTimeout time.Duration `yaml:"reconcileTimeout,omitempty"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Host    string `yaml:"host,omitempty"`
	Port    int    `yaml:"port,omitempty"`
	Enabled bool   `yaml:"enabled"`
}

// LoggingConfig selects level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}
