package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a validation error with context
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	if ve.Field == "" {
		return ve.Message
	}
	return fmt.Sprintf("field '%s': %s", ve.Field, ve.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for multiple validation errors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}

	var messages []string
	for _, err := range ve {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

// HasErrors returns true if there are any validation errors
func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}

// Add adds a new validation error
func (ve *ValidationErrors) Add(field, message string, value ...interface{}) {
	var val interface{}
	if len(value) > 0 {
		val = value[0]
	}
	*ve = append(*ve, ValidationError{
		Field:   field,
		Value:   val,
		Message: message,
	})
}

// Validate checks the configuration for values the controller cannot run with.
func (c CForgeConfig) Validate() error {
	var errs ValidationErrors

	if strings.TrimSpace(c.Namespace) == "" {
		errs.Add("namespace", "is required")
	}
	if strings.TrimSpace(c.ArtifactDir) == "" {
		errs.Add("artifactDir", "is required")
	}
	if c.Builder.Image == "" {
		errs.Add("builder.image", "is required")
	}
	if c.Builder.ClaimName == "" {
		errs.Add("builder.claimName", "is required")
	}
	if !strings.HasPrefix(c.Builder.MountPath, "/") {
		errs.Add("builder.mountPath", "must be an absolute path", c.Builder.MountPath)
	}
	if c.Builder.TTLSecondsAfterFinished < 0 {
		errs.Add("builder.ttlSecondsAfterFinished", "must not be negative", c.Builder.TTLSecondsAfterFinished)
	}

	switch c.Reconciler.Mode {
	case "", WatchModeAuto, WatchModeKubernetes:
	case WatchModeFilesystem:
		if c.Reconciler.ManifestsPath == "" {
			errs.Add("reconciler.manifestsPath", "is required in filesystem mode")
		}
	default:
		errs.Add("reconciler.mode", "must be one of auto, kubernetes, filesystem", c.Reconciler.Mode)
	}
	if c.Reconciler.WorkerCount < 0 {
		errs.Add("reconciler.workerCount", "must not be negative", c.Reconciler.WorkerCount)
	}
	if c.Reconciler.MaxBackoff > 0 && c.Reconciler.InitialBackoff > c.Reconciler.MaxBackoff {
		errs.Add("reconciler.initialBackoff", "must not exceed maxBackoff", c.Reconciler.InitialBackoff)
	}

	if c.Server.Enabled && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		errs.Add("server.port", "must be between 1 and 65535", c.Server.Port)
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}
