package cmd

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"cforge/internal/history"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeNotFound indicates the named project has no builds or no definition.
	ExitCodeNotFound = 2
)

// Flags shared by every subcommand.
var (
	rootConfigPath string
	rootDebug      bool
)

// rootCmd represents the base command for the cforge application.
var rootCmd = &cobra.Command{
	Use:   "cforge",
	Short: "Scheduled container builds driven by CForge resources",
	Long: `cforge turns CForge resources into Kubernetes CronJobs that build
projects on a schedule, starts an immediate run whenever a project changes,
and serves the resulting build logs and artifacts over HTTP.`,
	// Errors are reported by Execute; usage output would only bury them.
	SilenceUsage: true,
}

// SetVersion sets the version for the root command.
// This function is typically called from the main package to inject the application version at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute runs the root command and exits with a code derived from the
// returned error. It is called by main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "cforge version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode determines the appropriate exit code based on the error type.
func getExitCode(err error) int {
	if errors.Is(err, history.ErrProjectNotFound) || errors.Is(err, errNoDefinition) {
		return ExitCodeNotFound
	}
	return ExitCodeError
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootConfigPath, "config-path", "", "Configuration directory (default is $HOME/.config/cforge)")
	rootCmd.PersistentFlags().BoolVar(&rootDebug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
}
