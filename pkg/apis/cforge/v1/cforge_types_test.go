package v1

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"sigs.k8s.io/yaml"
)

func TestCForgeDecodesRepoURLTag(t *testing.T) {
	manifest := `
apiVersion: cforge.steni.us/v1
kind: CForge
metadata:
  name: builds
spec:
  projects:
    - name: hello
      repo_url: https://example.com/hello.git
      schedule: "0 3 * * *"
    - name: tools
      repo_url: https://example.com/tools.git
`
	var cf CForge
	require.NoError(t, yaml.Unmarshal([]byte(manifest), &cf))

	assert.Equal(t, "builds", cf.Name)
	require.Len(t, cf.Spec.Projects, 2)
	assert.Equal(t, "https://example.com/hello.git", cf.Spec.Projects[0].RepoURL)
	assert.Equal(t, "0 3 * * *", cf.Spec.Projects[0].Schedule)
	assert.Empty(t, cf.Spec.Projects[1].Schedule)
	assert.Equal(t, []string{"hello", "tools"}, cf.ProjectNames())
}

func TestCForgeDeepCopyIsIndependent(t *testing.T) {
	orig := &CForge{
		ObjectMeta: metav1.ObjectMeta{Name: "builds"},
		Spec: CForgeSpec{Projects: []Project{
			{Name: "hello", RepoURL: "https://example.com/hello.git"},
		}},
		Status: CForgeStatus{
			Projects:   []ProjectStatus{{Name: "hello", Schedule: "* * 31 2 *", Suspended: true}},
			Conditions: []metav1.Condition{{Type: "Ready", Status: metav1.ConditionTrue}},
		},
	}

	cp := orig.DeepCopy()
	cp.Spec.Projects[0].RepoURL = "changed"
	cp.Status.Projects[0].LastRun = "hello-abc"
	cp.Status.Conditions[0].Status = metav1.ConditionFalse

	assert.Equal(t, "https://example.com/hello.git", orig.Spec.Projects[0].RepoURL)
	assert.Empty(t, orig.Status.Projects[0].LastRun)
	assert.Equal(t, metav1.ConditionTrue, orig.Status.Conditions[0].Status)
}

func TestAddToSchemeRegistersKinds(t *testing.T) {
	scheme := runtime.NewScheme()
	require.NoError(t, AddToScheme(scheme))

	assert.True(t, scheme.Recognizes(GroupVersion.WithKind("CForge")))
	assert.True(t, scheme.Recognizes(GroupVersion.WithKind("CForgeList")))
}
