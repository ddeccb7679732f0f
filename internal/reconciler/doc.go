// Package reconciler turns CForge resources into build definitions and runs.
//
// # Overview
//
// A CForge lists projects that should be built on a schedule. Each project
// becomes a CronJob (the definition) in the build namespace. The reconciler
// keeps the set of definitions owned by a CForge equal to its declared
// projects, and starts one Job (a run) whenever a definition is created or
// replaced.
//
// # Architecture
//
//   - Manager: queue, worker pool and retry with exponential backoff
//   - ChangeDetector: Kubernetes informer or fsnotify manifest watcher
//   - CForgeReconciler: list, diff and apply pass for one CForge
//   - Cloner: instantiates a run from a definition under a fresh name
//
// Create and update events run the same pass. Each pass lists the current
// definitions, computes the changes with Diff and applies them. A conflict
// from the API server aborts the pass and the whole pass is retried against
// a fresh listing.
//
// # Usage
//
//	manager := reconciler.NewManager(reconciler.ManagerConfig{
//	    Mode:      reconciler.WatchModeKubernetes,
//	    Namespace: "default",
//	})
//	if err := manager.RegisterReconciler(reconciler.NewCForgeReconciler(c, tmpl)); err != nil {
//	    return err
//	}
//	if err := manager.Start(ctx); err != nil {
//	    return fmt.Errorf("failed to start reconciliation: %w", err)
//	}
//	defer manager.Stop()
//
// # Ownership
//
// Definitions carry the owner label of the CForge that created them. A
// definition owned by another CForge is never modified; the project is
// reported as blocked instead.
package reconciler
