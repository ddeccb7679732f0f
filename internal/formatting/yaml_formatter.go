package formatting

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"cforge/internal/history"
)

// YAMLFormatter provides YAML output formatting
type YAMLFormatter struct {
	options Options
}

// NewYAMLFormatter creates a new YAML formatter
func NewYAMLFormatter(options Options) Formatter {
	return &YAMLFormatter{options: options}
}

func (f *YAMLFormatter) FormatProjects(projects []history.ProjectSummary) error {
	if projects == nil {
		projects = []history.ProjectSummary{}
	}
	return f.encode(projects)
}

func (f *YAMLFormatter) FormatProject(project history.ProjectSummary) error {
	return f.encode(project)
}

func (f *YAMLFormatter) FormatRun(result RunResult) error {
	return f.encode(result)
}

func (f *YAMLFormatter) encode(v any) error {
	enc := yaml.NewEncoder(f.options.writer())
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding YAML: %w", err)
	}
	return enc.Close()
}

// SetOptions updates the formatter options
func (f *YAMLFormatter) SetOptions(options Options) {
	f.options = options
}

// GetOptions returns the current formatter options
func (f *YAMLFormatter) GetOptions() Options {
	return f.options
}
