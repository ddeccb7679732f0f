package formatting

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/text"

	"cforge/internal/history"
)

// ConsoleFormatter writes one plain line per item, suited to piping.
type ConsoleFormatter struct {
	options Options
}

// NewConsoleFormatter creates a new console formatter
func NewConsoleFormatter(options Options) Formatter {
	return &ConsoleFormatter{options: options}
}

func (f *ConsoleFormatter) FormatProjects(projects []history.ProjectSummary) error {
	w := f.options.writer()
	for _, p := range projects {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			p.Name,
			f.status(p.LatestBuild.Status),
			ShortRevision(p.LatestBuild.Revision),
			FormatTimestamp(p.LatestBuild.Timestamp))
	}
	return nil
}

func (f *ConsoleFormatter) FormatProject(project history.ProjectSummary) error {
	w := f.options.writer()
	if !f.options.Quiet {
		fmt.Fprintf(w, "%s (%d builds)\n", project.Name, len(project.Builds))
	}
	for _, b := range project.Builds {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			ShortRevision(b.Revision),
			f.status(b.Status),
			FormatTimestamp(b.Timestamp),
			b.LogPath)
	}
	return nil
}

func (f *ConsoleFormatter) FormatRun(result RunResult) error {
	if f.options.Quiet {
		fmt.Fprintln(f.options.writer(), result.Run)
		return nil
	}
	fmt.Fprintf(f.options.writer(), "Started run %s for project %s in namespace %s\n",
		result.Run, result.Project, result.Namespace)
	return nil
}

// SetOptions updates the formatter options
func (f *ConsoleFormatter) SetOptions(options Options) {
	f.options = options
}

// GetOptions returns the current formatter options
func (f *ConsoleFormatter) GetOptions() Options {
	return f.options
}

func (f *ConsoleFormatter) status(s history.Status) string {
	if !f.options.Color {
		return string(s)
	}
	if s == history.StatusSuccess {
		return text.FgGreen.Sprint(s)
	}
	return text.FgRed.Sprint(s)
}
