package formatting

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"cforge/internal/history"
)

// TableFormatter provides rich table output formatting
type TableFormatter struct {
	options Options
}

// NewTableFormatter creates a new table formatter
func NewTableFormatter(options Options) Formatter {
	return &TableFormatter{options: options}
}

// FormatProjects renders one row per project with its latest build.
func (f *TableFormatter) FormatProjects(projects []history.ProjectSummary) error {
	if len(projects) == 0 {
		f.emptyMessage("No builds found")
		return nil
	}

	t := f.createTable()
	t.AppendHeader(f.header("PROJECT", "STATUS", "REVISION", "BUILDS", "LAST BUILD"))
	for _, p := range projects {
		latest := p.LatestBuild
		t.AppendRow(table.Row{
			f.paint(text.FgHiCyan, p.Name),
			f.status(latest.Status),
			ShortRevision(latest.Revision),
			len(p.Builds),
			FormatTimestamp(latest.Timestamp),
		})
	}
	t.Render()

	if !f.options.Quiet {
		fmt.Fprintf(f.options.writer(), "\n%s %d projects\n", f.paint(text.FgHiBlue, "Total:"), len(projects))
	}
	return nil
}

// FormatProject renders every build of a single project.
func (f *TableFormatter) FormatProject(project history.ProjectSummary) error {
	if len(project.Builds) == 0 {
		f.emptyMessage(fmt.Sprintf("No builds found for %s", project.Name))
		return nil
	}

	t := f.createTable()
	if !f.options.Quiet {
		t.SetTitle(project.Name)
	}
	t.AppendHeader(f.header("REVISION", "STATUS", "TIME", "LOG", "ARTIFACT"))
	for _, b := range project.Builds {
		artifact := b.ArtifactPath
		if artifact == "" {
			artifact = "-"
		}
		t.AppendRow(table.Row{
			ShortRevision(b.Revision),
			f.status(b.Status),
			FormatTimestamp(b.Timestamp),
			b.LogPath,
			artifact,
		})
	}
	t.Render()
	return nil
}

func (f *TableFormatter) FormatRun(result RunResult) error {
	t := f.createTable()
	t.AppendHeader(f.header("PROJECT", "RUN", "NAMESPACE"))
	t.AppendRow(table.Row{result.Project, f.paint(text.FgHiGreen, result.Run), result.Namespace})
	t.Render()
	return nil
}

// SetOptions updates the formatter options
func (f *TableFormatter) SetOptions(options Options) {
	f.options = options
}

// GetOptions returns the current formatter options
func (f *TableFormatter) GetOptions() Options {
	return f.options
}

func (f *TableFormatter) createTable() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(f.options.writer())
	if f.options.Quiet {
		t.SetStyle(table.StyleLight)
		t.Style().Options.DrawBorder = false
		t.Style().Options.SeparateColumns = false
	} else {
		t.SetStyle(table.StyleRounded)
	}
	return t
}

func (f *TableFormatter) header(cols ...string) table.Row {
	row := make(table.Row, len(cols))
	for i, c := range cols {
		row[i] = f.paint(text.FgHiCyan, c)
	}
	return row
}

func (f *TableFormatter) status(s history.Status) string {
	switch s {
	case history.StatusSuccess:
		return f.paint(text.FgGreen, string(s))
	case history.StatusFailure:
		return f.paint(text.FgRed, string(s))
	}
	return string(s)
}

func (f *TableFormatter) paint(c text.Color, s string) string {
	if !f.options.Color {
		return s
	}
	return c.Sprint(s)
}

func (f *TableFormatter) emptyMessage(msg string) {
	fmt.Fprintln(f.options.writer(), f.paint(text.FgYellow, msg))
}
