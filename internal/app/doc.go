// Package app wires the cforge controller together.
//
// Bootstrap loads configuration, initialises logging and builds the
// long-lived components:
//
//   - the cluster client writing CronJobs, Jobs, status and events
//   - the CForge reconciler and the reconcile Manager driving it
//   - the build history aggregator over the artifact tree
//   - the HTTP API server and its Prometheus registry
//
// Application.Run starts the Manager and the HTTP server in one errgroup and
// returns once both have stopped, either because the context was cancelled,
// a termination signal arrived, or one of them failed.
//
// # Usage
//
//	cfg := app.NewConfig(debug, configPath)
//	cfg.Overrides.ManifestsPath = "./manifests"
//	application, err := app.NewApplication(cfg)
//	if err != nil {
//		return err
//	}
//	return application.Run(ctx)
package app
