// Package config loads the cforge configuration.
//
// Configuration is read from config.yaml in a single directory. The default
// directory is ~/.config/cforge; commands accept --config-path to point
// elsewhere. A missing file is not an error: the defaults are used.
//
// Example config.yaml:
//
//	namespace: cforge
//	artifactDir: /mnt/data
//	builder:
//	  image: ghcr.io/stenius/cforge/builder:latest
//	  claimName: artifacts
//	  ttlSecondsAfterFinished: 100
//	reconciler:
//	  mode: kubernetes
//	  workerCount: 2
//	  maxRetries: 5
//	  initialBackoff: 1s
//	  maxBackoff: 5m
//	server:
//	  host: 0.0.0.0
//	  port: 8000
//
// The ARTIFACT_DIR environment variable overrides artifactDir, matching the
// variable the builder image reads.
package config
