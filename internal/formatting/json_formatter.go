package formatting

import (
	"encoding/json"
	"fmt"

	"cforge/internal/history"
)

// JSONFormatter provides structured JSON output formatting
type JSONFormatter struct {
	options Options
}

// NewJSONFormatter creates a new JSON formatter
func NewJSONFormatter(options Options) Formatter {
	return &JSONFormatter{options: options}
}

func (f *JSONFormatter) FormatProjects(projects []history.ProjectSummary) error {
	if projects == nil {
		projects = []history.ProjectSummary{}
	}
	return f.encode(projects)
}

func (f *JSONFormatter) FormatProject(project history.ProjectSummary) error {
	return f.encode(project)
}

func (f *JSONFormatter) FormatRun(result RunResult) error {
	return f.encode(result)
}

func (f *JSONFormatter) encode(v any) error {
	enc := json.NewEncoder(f.options.writer())
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding JSON: %w", err)
	}
	return nil
}

// SetOptions updates the formatter options
func (f *JSONFormatter) SetOptions(options Options) {
	f.options = options
}

// GetOptions returns the current formatter options
func (f *JSONFormatter) GetOptions() Options {
	return f.options
}
