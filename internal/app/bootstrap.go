package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"cforge/internal/config"
	"cforge/pkg/logging"
)

// Application bootstraps and runs the cforge controller.
type Application struct {
	config   *Config
	services *Services
}

// NewApplication loads configuration, initialises logging and builds every
// service. Nothing is started until Run.
func NewApplication(cfg *Config) (*Application, error) {
	cforgeCfg, err := LoadConfig(cfg)
	if err != nil {
		return nil, err
	}
	cfg.CForgeConfig = &cforgeCfg

	services, err := InitializeServices(cfg)
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to initialize services")
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	return &Application{
		config:   cfg,
		services: services,
	}, nil
}

// LoadConfig initialises logging, reads config.yaml and applies the
// command line overrides. The logger is re-initialised with the configured
// level and format once the file is read.
func LoadConfig(cfg *Config) (config.CForgeConfig, error) {
	var logOutput io.Writer = os.Stderr
	if cfg.Silent {
		logOutput = io.Discard
	}
	logging.InitForCLI(bootstrapLevel(cfg.Debug), logOutput)

	configPath := cfg.ConfigPath
	if configPath == "" {
		configPath = config.GetDefaultConfigPathOrPanic()
	}

	cforgeCfg, err := config.LoadConfig(configPath)
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to load configuration from %s", configPath)
		return config.CForgeConfig{}, fmt.Errorf("failed to load configuration from %s: %w", configPath, err)
	}

	cfg.Overrides.Apply(&cforgeCfg)
	if err := cforgeCfg.Validate(); err != nil {
		return config.CForgeConfig{}, fmt.Errorf("invalid configuration: %w", err)
	}

	level := logging.LevelDebug
	if !cfg.Debug {
		if level, err = logging.ParseLevel(cforgeCfg.Logging.Level); err != nil {
			return config.CForgeConfig{}, err
		}
	}
	logging.InitWithFormat(level, logging.Format(cforgeCfg.Logging.Format), logOutput)

	return cforgeCfg, nil
}

func bootstrapLevel(debug bool) logging.LogLevel {
	if debug {
		return logging.LevelDebug
	}
	return logging.LevelInfo
}

// Services returns the wired components.
func (a *Application) Services() *Services {
	return a.services
}

// Run starts the controller and blocks until ctx is cancelled, a
// termination signal arrives, or a component fails.
func (a *Application) Run(ctx context.Context) error {
	return runServe(ctx, a.services)
}
