// Package formatting renders build history and run results for the cforge
// CLI in console, table, JSON or YAML form.
package formatting

import (
	"io"
	"os"

	"cforge/internal/history"
)

// OutputFormat represents the desired output format
type OutputFormat string

const (
	FormatConsole OutputFormat = "console" // Simple console output
	FormatJSON    OutputFormat = "json"    // JSON output
	FormatYAML    OutputFormat = "yaml"    // YAML output
	FormatTable   OutputFormat = "table"   // Rich table output
)

// ParseFormat maps a flag value to an OutputFormat.
func ParseFormat(s string) (OutputFormat, bool) {
	switch OutputFormat(s) {
	case FormatConsole, FormatJSON, FormatYAML, FormatTable:
		return OutputFormat(s), true
	case "":
		return FormatTable, true
	}
	return "", false
}

// Options configures the formatter behavior
type Options struct {
	Format OutputFormat
	Quiet  bool // Suppress decorative elements
	Color  bool // Enable colored output

	// Out receives the rendered output. Defaults to os.Stdout.
	Out io.Writer
}

func (o Options) writer() io.Writer {
	if o.Out == nil {
		return os.Stdout
	}
	return o.Out
}

// RunResult describes a manually started run.
type RunResult struct {
	Project   string `json:"project" yaml:"project"`
	Run       string `json:"run" yaml:"run"`
	Namespace string `json:"namespace" yaml:"namespace"`
}

// Formatter renders cforge CLI results.
type Formatter interface {
	FormatProjects(projects []history.ProjectSummary) error
	FormatProject(project history.ProjectSummary) error
	FormatRun(result RunResult) error

	SetOptions(options Options)
	GetOptions() Options
}

// Factory creates formatters for different output formats
type Factory interface {
	CreateFormatter(options Options) Formatter
}

// NewFactory creates a new formatter factory
func NewFactory() Factory {
	return &factory{}
}

type factory struct{}

// CreateFormatter creates the appropriate formatter based on options
func (f *factory) CreateFormatter(options Options) Formatter {
	switch options.Format {
	case FormatJSON:
		return NewJSONFormatter(options)
	case FormatYAML:
		return NewYAMLFormatter(options)
	case FormatTable:
		return NewTableFormatter(options)
	case FormatConsole:
		fallthrough
	default:
		return NewConsoleFormatter(options)
	}
}
