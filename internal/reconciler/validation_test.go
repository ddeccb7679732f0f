package reconciler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cforgev1 "cforge/pkg/apis/cforge/v1"
)

func TestValidateProjects(t *testing.T) {
	projects := []cforgev1.Project{
		project("website", "https://git.example/website", "0 3 * * *"),
		project("", "https://git.example/anon", ""),
		project("Website", "https://git.example/upper", ""),
		project(strings.Repeat("a", 53), "https://git.example/long", ""),
		project("norepo", "   ", ""),
		project("badcron", "https://git.example/badcron", "every day"),
		project("website", "https://git.example/dup", ""),
		project("tools", "https://git.example/tools", ""),
	}

	valid, invalid := ValidateProjects(projects)

	require.Len(t, valid, 2)
	assert.Equal(t, "website", valid[0].Name)
	assert.Equal(t, "https://git.example/website", valid[0].RepoURL, "first declaration wins")
	assert.Equal(t, "tools", valid[1].Name)

	require.Len(t, invalid, 6)
	indexes := make([]int, 0, len(invalid))
	for _, e := range invalid {
		indexes = append(indexes, e.Index)
	}
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, indexes)

	assert.Equal(t, "project #1: name is required", invalid[0].Error())
	assert.Contains(t, invalid[2].Error(), "52 characters")
	assert.Contains(t, invalid[3].Error(), "repo_url is required")
	assert.Contains(t, invalid[4].Error(), "invalid cron schedule")
	assert.Equal(t, `project "website": duplicate project name`, invalid[len(invalid)-1].Error())
}

func TestValidateProjects_MaxLengthAccepted(t *testing.T) {
	valid, invalid := ValidateProjects([]cforgev1.Project{
		project(strings.Repeat("a", 52), "https://git.example/long", ""),
	})
	assert.Len(t, valid, 1)
	assert.Empty(t, invalid)
}

func TestShadowedNames(t *testing.T) {
	valid, invalid := ValidateProjects([]cforgev1.Project{
		project("website", "https://git.example/website", ""),
		project("website", "https://git.example/dup", "bogus"),
		project("docs", "https://git.example/docs", "bogus"),
		project("", "https://git.example/anon", ""),
	})

	shadowed := shadowedNames(valid, invalid)

	assert.Equal(t, map[string]bool{"docs": true}, shadowed)
}
