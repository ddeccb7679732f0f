package cmd

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cforge/internal/history"
)

func artifactTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	for _, rel := range []string{"website/abc.log", "website/abc.tar.gz", "docs/def.log"} {
		p := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	}
	return root
}

func TestProjectsCommand_JSON(t *testing.T) {
	root := artifactTree(t)

	out, err := executeCommand(t, "projects", "--config-path", t.TempDir(), "--artifact-dir", root, "-o", "json")
	require.NoError(t, err)

	var projects []history.ProjectSummary
	require.NoError(t, json.Unmarshal([]byte(out), &projects))
	require.Len(t, projects, 2)
	assert.Equal(t, "docs", projects[0].Name)
	assert.Equal(t, "website", projects[1].Name)
}

func TestProjectsCommand_Table(t *testing.T) {
	root := artifactTree(t)

	out, err := executeCommand(t, "projects", "--config-path", t.TempDir(), "--artifact-dir", root)
	require.NoError(t, err)
	assert.Contains(t, out, "PROJECT")
	assert.Contains(t, out, "website")
	assert.Contains(t, out, "success")
}

func TestProjectsCommand_SingleProject(t *testing.T) {
	root := artifactTree(t)

	out, err := executeCommand(t, "projects", "website", "--config-path", t.TempDir(), "--artifact-dir", root, "-o", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "name: website")
	assert.Contains(t, out, "artifactPath: website/abc.tar.gz")
}

func TestProjectsCommand_Errors(t *testing.T) {
	root := artifactTree(t)

	_, err := executeCommand(t, "projects", "missing", "--config-path", t.TempDir(), "--artifact-dir", root)
	assert.True(t, errors.Is(err, history.ErrProjectNotFound))
	assert.Equal(t, ExitCodeNotFound, getExitCode(err))

	_, err = executeCommand(t, "projects", "--config-path", t.TempDir(), "-o", "xml")
	assert.ErrorContains(t, err, "unsupported output format")

	_, err = executeCommand(t, "projects", "a", "b")
	assert.Error(t, err)
}
