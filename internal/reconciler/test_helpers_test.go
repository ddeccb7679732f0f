package reconciler

import (
	"context"
	"testing"
	"time"

	batchv1 "k8s.io/api/batch/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/wait"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"
	"sigs.k8s.io/controller-runtime/pkg/client/interceptor"

	"cforge/internal/buildjob"
	"cforge/internal/cluster"
	"cforge/internal/config"
	cforgev1 "cforge/pkg/apis/cforge/v1"
)

const (
	testNamespace      = "cforge"
	testForgeNamespace = "default"
)

// testForge returns a CForge declaring the given projects.
func testForge(name string, projects ...cforgev1.Project) *cforgev1.CForge {
	return &cforgev1.CForge{
		TypeMeta: metav1.TypeMeta{
			APIVersion: cforgev1.GroupVersion.String(),
			Kind:       "CForge",
		},
		ObjectMeta: metav1.ObjectMeta{
			Name:       name,
			Namespace:  testForgeNamespace,
			Generation: 1,
		},
		Spec: cforgev1.CForgeSpec{Projects: projects},
	}
}

func project(name, repo, sched string) cforgev1.Project {
	return cforgev1.Project{Name: name, RepoURL: repo, Schedule: sched}
}

func testTemplate() buildjob.Template {
	return buildjob.TemplateFromConfig(config.GetDefaultConfig())
}

// definitionFor renders the CronJob the reconciler would create.
func definitionFor(owner string, p cforgev1.Project) *batchv1.CronJob {
	cj := testTemplate().NewCronJob(owner, p)
	cj.Namespace = testNamespace
	return cj
}

// newFakeClient builds a fake cluster holding objs, with funcs intercepting
// calls.
func newFakeClient(t *testing.T, funcs interceptor.Funcs, objs ...client.Object) (cluster.Client, client.Client) {
	t.Helper()
	fc := fake.NewClientBuilder().
		WithScheme(cluster.NewScheme()).
		WithObjects(objs...).
		WithStatusSubresource(&cforgev1.CForge{}).
		WithInterceptorFuncs(funcs).
		Build()
	return cluster.New(fc, testNamespace), fc
}

// noDelayBackoff keeps conflict retries instant in tests.
var noDelayBackoff = wait.Backoff{Steps: 5, Duration: time.Millisecond}

func newTestReconciler(c cluster.Client, opts ...Option) *CForgeReconciler {
	opts = append([]Option{WithConflictBackoff(noDelayBackoff)}, opts...)
	return NewCForgeReconciler(c, testTemplate(), opts...)
}

func reconcileRequest(cf *cforgev1.CForge, op ChangeOperation, source ChangeSource) ReconcileRequest {
	return ReconcileRequest{
		Type:      ResourceTypeCForge,
		Name:      cf.Name,
		Namespace: cf.Namespace,
		Operation: op,
		Source:    source,
		Object:    cf,
		Attempt:   1,
	}
}

func listCronJobs(t *testing.T, fc client.Client) map[string]batchv1.CronJob {
	t.Helper()
	list := &batchv1.CronJobList{}
	if err := fc.List(context.Background(), list, client.InNamespace(testNamespace)); err != nil {
		t.Fatalf("listing cronjobs: %v", err)
	}
	out := make(map[string]batchv1.CronJob, len(list.Items))
	for _, cj := range list.Items {
		out[cj.Name] = cj
	}
	return out
}

func listJobs(t *testing.T, fc client.Client) []batchv1.Job {
	t.Helper()
	list := &batchv1.JobList{}
	if err := fc.List(context.Background(), list, client.InNamespace(testNamespace)); err != nil {
		t.Fatalf("listing jobs: %v", err)
	}
	return list.Items
}

func repoOf(cj batchv1.CronJob) string {
	def, _ := buildjob.DefinitionFromCronJob(&cj)
	return def.RepoURL
}
