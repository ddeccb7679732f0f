package app

import (
	"time"

	"cforge/internal/cluster"
	"cforge/internal/config"
	"cforge/internal/reconciler"
)

// Config holds the application configuration
type Config struct {
	Debug bool

	// Silent discards all log output.
	Silent bool

	// ConfigPath is the directory holding config.yaml. Empty uses
	// ~/.config/cforge.
	ConfigPath string

	// Overrides are command line values applied on top of the file.
	Overrides Overrides

	// Cluster replaces the client built from the kubeconfig. Optional.
	Cluster cluster.Client

	// Detector replaces the change detector chosen from the watch mode.
	// Optional.
	Detector reconciler.ChangeDetector

	// CForgeConfig is populated during bootstrap.
	CForgeConfig *config.CForgeConfig
}

// Overrides carries flag values; zero values leave the file setting alone.
type Overrides struct {
	Namespace      string
	WatchNamespace string
	ArtifactDir    string
	ManifestsPath  string
	Mode           string
	Host           string
	Port           int
	Workers        int
	Timeout        time.Duration
	LogFormat      string
	DisableServer  bool
}

// Apply writes the non-zero overrides into cfg.
func (o Overrides) Apply(cfg *config.CForgeConfig) {
	if o.Namespace != "" {
		cfg.Namespace = o.Namespace
	}
	if o.WatchNamespace != "" {
		cfg.WatchNamespace = o.WatchNamespace
	}
	if o.ArtifactDir != "" {
		cfg.ArtifactDir = o.ArtifactDir
	}
	if o.ManifestsPath != "" {
		cfg.Reconciler.ManifestsPath = o.ManifestsPath
	}
	if o.Mode != "" {
		cfg.Reconciler.Mode = config.WatchMode(o.Mode)
	}
	if o.Host != "" {
		cfg.Server.Host = o.Host
	}
	if o.Port != 0 {
		cfg.Server.Port = o.Port
	}
	if o.Workers != 0 {
		cfg.Reconciler.WorkerCount = o.Workers
	}
	if o.Timeout != 0 {
		cfg.Reconciler.ReconcileTimeout = o.Timeout
	}
	if o.LogFormat != "" {
		cfg.Logging.Format = o.LogFormat
	}
	if o.DisableServer {
		cfg.Server.Enabled = false
	}
}

// NewConfig creates a new application configuration
func NewConfig(debug bool, configPath string) *Config {
	return &Config{
		Debug:      debug,
		ConfigPath: configPath,
	}
}
