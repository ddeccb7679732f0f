package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"cforge/internal/app"
)

// serveOverrides collects the serve flags; zero values keep config.yaml.
var serveOverrides app.Overrides

// serveCmd runs the controller and the HTTP API.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the cforge controller and HTTP API",
	Long: `Runs the cforge controller until interrupted.

CForge resources are read from the cluster, or from a directory of
manifests when --manifests is set (or --mode=filesystem). For every
declared project the controller keeps a CronJob in the build namespace and
starts an immediate run whenever the project is created or changed.

The HTTP API serves:
  GET  /api/projects              build history of every project
  GET  /api/projects/{name}       builds of one project
  POST /api/projects/{name}/runs  start a run now
  GET  /artifacts/...             build logs and artifacts
  GET  /healthz, /metrics

Configuration is read from config.yaml in --config-path; the flags below
override it.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

// runServe is the main entry point for the serve command
func runServe(cmd *cobra.Command, args []string) error {
	cfg := app.NewConfig(rootDebug, rootConfigPath)
	cfg.Overrides = serveOverrides

	application, err := app.NewApplication(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return application.Run(ctx)
}

func init() {
	rootCmd.AddCommand(serveCmd)

	f := serveCmd.Flags()
	f.StringVar(&serveOverrides.Namespace, "namespace", "", "Namespace holding build CronJobs and Jobs")
	f.StringVar(&serveOverrides.WatchNamespace, "watch-namespace", "", "Only watch CForge resources in this namespace")
	f.StringVar(&serveOverrides.ArtifactDir, "artifact-dir", "", "Root of the build log and artifact tree")
	f.StringVar(&serveOverrides.ManifestsPath, "manifests", "", "Directory of CForge manifests to watch instead of the cluster")
	f.StringVar(&serveOverrides.Mode, "mode", "", "Watch mode (auto, kubernetes, filesystem)")
	f.StringVar(&serveOverrides.Host, "host", "", "HTTP listen host")
	f.IntVar(&serveOverrides.Port, "port", 0, "HTTP listen port")
	f.IntVar(&serveOverrides.Workers, "workers", 0, "Concurrent reconcile workers")
	f.DurationVar(&serveOverrides.Timeout, "reconcile-timeout", 0, "Upper bound for a single reconcile pass")
	f.StringVar(&serveOverrides.LogFormat, "log-format", "", "Log format (text, json)")
	f.BoolVar(&serveOverrides.DisableServer, "no-server", false, "Do not start the HTTP API")
}
