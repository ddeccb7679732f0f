package config

import "time"

const (
	DefaultNamespace   = "cforge"
	DefaultArtifactDir = "./artifacts"

	DefaultBuilderImage            = "ghcr.io/stenius/cforge/builder:latest"
	DefaultClaimName               = "artifacts"
	DefaultMountPath               = "/mnt/data"
	DefaultTTLSecondsAfterFinished = 100

	DefaultServerHost = "0.0.0.0"
	DefaultServerPort = 8000
)

// GetDefaultConfig returns the default configuration.
func GetDefaultConfig() CForgeConfig {
	return CForgeConfig{
		Namespace:   DefaultNamespace,
		ArtifactDir: DefaultArtifactDir,
		Builder: BuilderConfig{
			Image:                   DefaultBuilderImage,
			ClaimName:               DefaultClaimName,
			MountPath:               DefaultMountPath,
			TTLSecondsAfterFinished: DefaultTTLSecondsAfterFinished,
		},
		Reconciler: ReconcilerConfig{
			Mode:             WatchModeAuto,
			WorkerCount:      2,
			MaxRetries:       5,
			InitialBackoff:   time.Second,
			MaxBackoff:       5 * time.Minute,
			DebounceInterval: 500 * time.Millisecond,
			ReconcileTimeout: 30 * time.Second,
		},
		Server: ServerConfig{
			Host:    DefaultServerHost,
			Port:    DefaultServerPort,
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
