// Package logging provides the structured logging used throughout cforge.
//
// It is a thin layer over Go's slog package. Every entry carries a subsystem
// name so that reconciler, detector, HTTP and history messages can be told
// apart in aggregated output:
//
//	logging.InitForCLI(logging.LevelInfo, os.Stdout)
//
//	logging.Info("Reconciler", "Created CronJob %s", name)
//	logging.Error("HistoryAPI", err, "Failed to scan %s", root)
//
// Output is text by default; InitWithFormat selects JSON for log collectors.
// Initialization also installs the same handler as the controller-runtime
// logger, so informer and client-go messages are formatted consistently.
//
// Messages below the configured level are dropped before formatting.
package logging
