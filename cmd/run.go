package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"cforge/internal/app"
	"cforge/internal/formatting"
	"cforge/internal/naming"
	"cforge/internal/reconciler"
)

var errNoDefinition = errors.New("no build definition")

var (
	runOutputFormat string
	runNamespace    string
)

// newClusterClient is replaced in tests.
var newClusterClient = app.NewClusterClient

// runCmd starts a one-off build from a project's CronJob.
var runCmd = &cobra.Command{
	Use:   "run <project>",
	Short: "Start a build of a project now",
	Long: `Creates a Job from the project's CronJob, exactly as the controller
does after a change. The project must already have a build definition.`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	project := args[0]
	if err := naming.Validate(project); err != nil {
		return err
	}

	format, ok := formatting.ParseFormat(runOutputFormat)
	if !ok {
		return fmt.Errorf("unsupported output format %q", runOutputFormat)
	}

	cfg := app.NewConfig(rootDebug, rootConfigPath)
	cfg.Silent = !rootDebug
	cfg.Overrides.Namespace = runNamespace
	cforgeCfg, err := app.LoadConfig(cfg)
	if err != nil {
		return err
	}

	client, err := newClusterClient(cforgeCfg)
	if err != nil {
		return err
	}

	job, err := reconciler.NewCloner(client, nil).CloneAsRun(cmd.Context(), project)
	if err != nil {
		return fmt.Errorf("starting run of %s: %w", project, err)
	}
	if job == nil {
		return fmt.Errorf("project %s in namespace %s: %w", project, client.Namespace(), errNoDefinition)
	}

	formatter := formatting.NewFactory().CreateFormatter(formatting.Options{
		Format: format,
		Out:    cmd.OutOrStdout(),
	})
	return formatter.FormatRun(formatting.RunResult{
		Project:   project,
		Run:       job.Name,
		Namespace: job.Namespace,
	})
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runOutputFormat, "output", "o", "console", "Output format (console, table, json, yaml)")
	runCmd.Flags().StringVar(&runNamespace, "namespace", "", "Namespace holding build CronJobs")
}
