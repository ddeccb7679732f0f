package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"cforge/internal/app"
	"cforge/internal/formatting"
	"cforge/internal/history"
)

var (
	projectsOutputFormat string
	projectsQuiet        bool
	projectsArtifactDir  string
)

// projectsCmd prints build history read from the artifact tree.
var projectsCmd = &cobra.Command{
	Use:   "projects [name]",
	Short: "Show build history",
	Long: `Lists every project with builds under the artifact directory, or
every build of one project when a name is given.

A build is successful when its artifact tarball exists next to the log.`,
	Example: `  cforge projects
  cforge projects website -o yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runProjects,
}

func runProjects(cmd *cobra.Command, args []string) error {
	format, ok := formatting.ParseFormat(projectsOutputFormat)
	if !ok {
		return fmt.Errorf("unsupported output format %q", projectsOutputFormat)
	}

	cfg := app.NewConfig(rootDebug, rootConfigPath)
	cfg.Silent = !rootDebug
	cfg.Overrides.ArtifactDir = projectsArtifactDir
	cforgeCfg, err := app.LoadConfig(cfg)
	if err != nil {
		return err
	}

	aggregator := history.NewAggregator(cforgeCfg.ArtifactDir)
	formatter := formatting.NewFactory().CreateFormatter(formatting.Options{
		Format: format,
		Quiet:  projectsQuiet,
		Out:    cmd.OutOrStdout(),
	})

	if len(args) == 0 {
		projects, err := aggregator.ListProjects(cmd.Context())
		if err != nil {
			return err
		}
		return formatter.FormatProjects(projects)
	}

	project, err := aggregator.LookupProject(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("project %s: %w", args[0], err)
	}
	return formatter.FormatProject(project)
}

func init() {
	rootCmd.AddCommand(projectsCmd)

	projectsCmd.Flags().StringVarP(&projectsOutputFormat, "output", "o", "table", "Output format (table, console, json, yaml)")
	projectsCmd.Flags().BoolVarP(&projectsQuiet, "quiet", "q", false, "Suppress decorative output")
	projectsCmd.Flags().StringVar(&projectsArtifactDir, "artifact-dir", "", "Root of the build log and artifact tree")
}
