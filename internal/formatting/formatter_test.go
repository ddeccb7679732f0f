package formatting

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"cforge/internal/history"
)

func sampleProjects() []history.ProjectSummary {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ok := history.BuildRecord{
		Project:      "website",
		Revision:     "0123456789abcdef",
		LogPath:      "website/0123456789abcdef.log",
		ArtifactPath: "website/0123456789abcdef.tar.gz",
		Status:       history.StatusSuccess,
		Timestamp:    ts,
	}
	failed := history.BuildRecord{
		Project:   "docs",
		Revision:  "feedbeef",
		LogPath:   "docs/feedbeef.log",
		Status:    history.StatusFailure,
		Timestamp: ts.Add(-time.Hour),
	}
	return []history.ProjectSummary{
		{Name: "docs", Builds: []history.BuildRecord{failed}, LatestBuild: failed},
		{Name: "website", Builds: []history.BuildRecord{ok}, LatestBuild: ok},
	}
}

func render(t *testing.T, format OutputFormat, fn func(Formatter) error) string {
	t.Helper()
	var buf bytes.Buffer
	f := NewFactory().CreateFormatter(Options{Format: format, Out: &buf})
	require.NoError(t, fn(f))
	return buf.String()
}

func TestFactory(t *testing.T) {
	factory := NewFactory()

	assert.IsType(t, &JSONFormatter{}, factory.CreateFormatter(Options{Format: FormatJSON}))
	assert.IsType(t, &YAMLFormatter{}, factory.CreateFormatter(Options{Format: FormatYAML}))
	assert.IsType(t, &TableFormatter{}, factory.CreateFormatter(Options{Format: FormatTable}))
	assert.IsType(t, &ConsoleFormatter{}, factory.CreateFormatter(Options{Format: "unknown"}))
}

func TestParseFormat(t *testing.T) {
	f, ok := ParseFormat("")
	assert.True(t, ok)
	assert.Equal(t, FormatTable, f)

	f, ok = ParseFormat("yaml")
	assert.True(t, ok)
	assert.Equal(t, FormatYAML, f)

	_, ok = ParseFormat("xml")
	assert.False(t, ok)
}

func TestSetOptions(t *testing.T) {
	f := NewTableFormatter(Options{Format: FormatTable})
	f.SetOptions(Options{Format: FormatTable, Quiet: true})
	assert.True(t, f.GetOptions().Quiet)
}

func TestJSONFormatter(t *testing.T) {
	out := render(t, FormatJSON, func(f Formatter) error { return f.FormatProjects(sampleProjects()) })

	var decoded []history.ProjectSummary
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, sampleProjects(), decoded)

	out = render(t, FormatJSON, func(f Formatter) error { return f.FormatProjects(nil) })
	assert.JSONEq(t, "[]", out)

	out = render(t, FormatJSON, func(f Formatter) error {
		return f.FormatRun(RunResult{Project: "website", Run: "website-abcd1234", Namespace: "cforge"})
	})
	assert.JSONEq(t, `{"project":"website","run":"website-abcd1234","namespace":"cforge"}`, out)
}

func TestYAMLFormatter(t *testing.T) {
	project := sampleProjects()[1]
	out := render(t, FormatYAML, func(f Formatter) error { return f.FormatProject(project) })

	assert.Contains(t, out, "name: website")
	assert.Contains(t, out, "status: success")

	var decoded history.ProjectSummary
	require.NoError(t, yaml.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, project.LatestBuild.ArtifactPath, decoded.LatestBuild.ArtifactPath)
	assert.True(t, project.LatestBuild.Timestamp.Equal(decoded.LatestBuild.Timestamp))
}

func TestTableFormatter_Projects(t *testing.T) {
	out := render(t, FormatTable, func(f Formatter) error { return f.FormatProjects(sampleProjects()) })

	assert.Contains(t, out, "PROJECT")
	assert.Contains(t, out, "website")
	assert.Contains(t, out, "0123456789ab")
	assert.NotContains(t, out, "0123456789abcdef")
	assert.Contains(t, out, "2024-05-01 12:00:00")
	assert.Contains(t, out, "Total: 2 projects")
	// Without Color no escape sequences are written.
	assert.NotContains(t, out, "\x1b[")
}

func TestTableFormatter_Project(t *testing.T) {
	out := render(t, FormatTable, func(f Formatter) error { return f.FormatProject(sampleProjects()[0]) })

	assert.Contains(t, out, "docs/feedbeef.log")
	assert.Contains(t, out, "failure")
	assert.Contains(t, out, "ARTIFACT")
}

func TestTableFormatter_Empty(t *testing.T) {
	out := render(t, FormatTable, func(f Formatter) error { return f.FormatProjects(nil) })
	assert.Equal(t, "No builds found\n", out)
}

func TestConsoleFormatter(t *testing.T) {
	out := render(t, FormatConsole, func(f Formatter) error { return f.FormatProjects(sampleProjects()) })
	assert.Equal(t,
		"docs\tfailure\tfeedbeef\t2024-05-01 11:00:00\n"+
			"website\tsuccess\t0123456789ab\t2024-05-01 12:00:00\n",
		out)

	var buf bytes.Buffer
	quiet := NewConsoleFormatter(Options{Quiet: true, Out: &buf})
	require.NoError(t, quiet.FormatRun(RunResult{Project: "website", Run: "website-abcd1234"}))
	assert.Equal(t, "website-abcd1234\n", buf.String())
}
