package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cforge/pkg/logging"

	"gopkg.in/yaml.v3"
)

const (
	userConfigDir  = ".config/cforge"
	configFileName = "config.yaml"

	// ArtifactDirEnv overrides CForgeConfig.ArtifactDir.
	ArtifactDirEnv = "ARTIFACT_DIR"
)

func GetDefaultConfigPathOrPanic() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		panic(fmt.Errorf("could not determine user config directory: %w", err))
	}

	return filepath.Join(homeDir, userConfigDir)
}

// LoadConfig loads configuration from config.yaml in configPath on top of
// the defaults, then applies environment overrides.
func LoadConfig(configPath string) (CForgeConfig, error) {
	configFilePath := filepath.Join(configPath, configFileName)
	config := GetDefaultConfig()

	data, err := os.ReadFile(configFilePath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logging.Info("ConfigLoader", "No config.yaml found at %s, using defaults", configFilePath)
	case err != nil:
		return CForgeConfig{}, fmt.Errorf("error reading config from %s: %w", configFilePath, err)
	default:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return CForgeConfig{}, fmt.Errorf("error loading config from %s: %w", configFilePath, err)
		}
		logging.Info("ConfigLoader", "Loaded configuration from %s", configFilePath)
	}

	applyEnvOverrides(&config)

	if err := config.Validate(); err != nil {
		return CForgeConfig{}, fmt.Errorf("invalid config in %s: %w", configFilePath, err)
	}
	return config, nil
}

func applyEnvOverrides(config *CForgeConfig) {
	if dir := os.Getenv(ArtifactDirEnv); dir != "" {
		config.ArtifactDir = dir
	}
}
