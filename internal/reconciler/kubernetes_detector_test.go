package reconciler

import (
	"context"
	"testing"
	"time"

	toolscache "k8s.io/client-go/tools/cache"

	cforgev1 "cforge/pkg/apis/cforge/v1"
)

// runningDetector returns a detector wired to a buffered channel without
// starting a cache, so the handlers can be driven directly.
func runningDetector(t *testing.T, buffer int) (*KubernetesDetector, chan ChangeEvent) {
	t.Helper()
	detector, err := NewKubernetesDetector(nil, "default")
	if err != nil {
		t.Fatalf("failed to create detector: %v", err)
	}
	changes := make(chan ChangeEvent, buffer)
	detector.ctx, detector.cancel = context.WithCancel(context.Background())
	t.Cleanup(detector.cancel)
	detector.changeChan = changes
	detector.running = true
	return detector, changes
}

func receive(t *testing.T, changes chan ChangeEvent) ChangeEvent {
	t.Helper()
	select {
	case event := <-changes:
		return event
	default:
		t.Fatal("expected a change event")
		return ChangeEvent{}
	}
}

func expectNone(t *testing.T, changes chan ChangeEvent) {
	t.Helper()
	select {
	case event := <-changes:
		t.Errorf("expected no change event, got %s %s", event.Operation, event.Name)
	default:
	}
}

func TestNewKubernetesDetector(t *testing.T) {
	detector, err := NewKubernetesDetector(nil, "default")
	if err != nil {
		t.Fatalf("failed to create detector: %v", err)
	}

	if detector.namespace != "default" {
		t.Errorf("namespace = %q, want %q", detector.namespace, "default")
	}
	if detector.scheme == nil {
		t.Fatal("scheme is nil")
	}
	if !detector.scheme.Recognizes(cforgev1.GroupVersion.WithKind("CForge")) {
		t.Error("scheme does not know the CForge kind")
	}
	if detector.namespaceDisplay() != "default" {
		t.Errorf("namespaceDisplay() = %q", detector.namespaceDisplay())
	}

	all, _ := NewKubernetesDetector(nil, "")
	if all.namespaceDisplay() != "all namespaces" {
		t.Errorf("namespaceDisplay() = %q, want all namespaces", all.namespaceDisplay())
	}
}

func TestKubernetesDetectorGetSource(t *testing.T) {
	detector, _ := NewKubernetesDetector(nil, "")
	if source := detector.GetSource(); source != SourceKubernetes {
		t.Errorf("GetSource() = %v, want %v", source, SourceKubernetes)
	}
}

func TestKubernetesDetectorResourceTypes(t *testing.T) {
	detector, _ := NewKubernetesDetector(nil, "default")

	if err := detector.AddResourceType(ResourceTypeCForge); err != nil {
		t.Fatalf("AddResourceType(CForge) failed: %v", err)
	}
	if !detector.resourceTypes[ResourceTypeCForge] {
		t.Error("CForge not in resourceTypes")
	}

	if err := detector.AddResourceType("CronJob"); err == nil {
		t.Error("expected error for unsupported resource type")
	}

	if err := detector.RemoveResourceType(ResourceTypeCForge); err != nil {
		t.Errorf("RemoveResourceType failed: %v", err)
	}
	if detector.resourceTypes[ResourceTypeCForge] {
		t.Error("CForge still in resourceTypes after removal")
	}
}

func TestKubernetesDetectorStopWithoutStart(t *testing.T) {
	detector, _ := NewKubernetesDetector(nil, "default")
	if err := detector.Stop(); err != nil {
		t.Errorf("Stop() returned error: %v", err)
	}
}

func TestKubernetesDetectorHandleAdd(t *testing.T) {
	detector, changes := runningDetector(t, 1)

	cf := testForge("builds", project("website", "https://git.example/website", ""))
	detector.handleAdd(ResourceTypeCForge, cf)

	event := receive(t, changes)
	if event.Operation != OperationCreate {
		t.Errorf("Operation = %s, want Create", event.Operation)
	}
	if event.Source != SourceKubernetes {
		t.Errorf("Source = %s, want Kubernetes", event.Source)
	}
	if event.Name != "builds" || event.Namespace != testForgeNamespace {
		t.Errorf("unexpected key %s/%s", event.Namespace, event.Name)
	}
	if event.Object == nil || event.Object == cf {
		t.Fatal("expected a private copy of the object")
	}
	if event.Object.Spec.Projects[0].Name != "website" {
		t.Errorf("unexpected body %+v", event.Object.Spec)
	}
}

func TestKubernetesDetectorHandleUpdate(t *testing.T) {
	detector, changes := runningDetector(t, 2)

	old := testForge("builds", project("website", "https://git.example/website", ""))
	statusOnly := old.DeepCopy()
	statusOnly.Status.ObservedGeneration = 1

	detector.handleUpdate(ResourceTypeCForge, old, statusOnly)
	expectNone(t, changes)

	changed := old.DeepCopy()
	changed.Generation = 2
	changed.Spec.Projects[0].RepoURL = "https://git.example/moved"

	detector.handleUpdate(ResourceTypeCForge, old, changed)
	event := receive(t, changes)
	if event.Operation != OperationUpdate {
		t.Errorf("Operation = %s, want Update", event.Operation)
	}
	if event.Object.Spec.Projects[0].RepoURL != "https://git.example/moved" {
		t.Error("expected the new body")
	}
}

func TestKubernetesDetectorHandleDelete(t *testing.T) {
	detector, changes := runningDetector(t, 2)

	cf := testForge("builds", project("website", "https://git.example/website", ""))
	detector.handleDelete(ResourceTypeCForge, cf)
	if event := receive(t, changes); event.Operation != OperationDelete {
		t.Errorf("Operation = %s, want Delete", event.Operation)
	}

	detector.handleDelete(ResourceTypeCForge, toolscache.DeletedFinalStateUnknown{
		Key: "default/builds",
		Obj: cf,
	})
	event := receive(t, changes)
	if event.Operation != OperationDelete || event.Object == nil {
		t.Errorf("expected unwrapped delete, got %+v", event)
	}
}

func TestKubernetesDetectorIgnoresForeignObjects(t *testing.T) {
	detector, changes := runningDetector(t, 1)

	detector.handleAdd(ResourceTypeCForge, "not an object")
	detector.handleDelete(ResourceTypeCForge, toolscache.DeletedFinalStateUnknown{Key: "x", Obj: 42})
	expectNone(t, changes)
}

func TestKubernetesDetectorWaitsWhenChannelFull(t *testing.T) {
	detector, changes := runningDetector(t, 1)

	detector.handleAdd(ResourceTypeCForge, testForge("first"))

	sent := make(chan struct{})
	go func() {
		detector.handleDelete(ResourceTypeCForge, testForge("second"))
		close(sent)
	}()

	select {
	case <-sent:
		t.Fatal("expected the delete to wait for room in the channel")
	case <-time.After(50 * time.Millisecond):
	}

	if event := receive(t, changes); event.Name != "first" {
		t.Errorf("expected first event, got %s", event.Name)
	}

	select {
	case <-sent:
	case <-time.After(time.Second):
		t.Fatal("delete was not delivered after the channel drained")
	}
	event := receive(t, changes)
	if event.Name != "second" || event.Operation != OperationDelete {
		t.Errorf("expected delete of second, got %s %s", event.Operation, event.Name)
	}
}

func TestKubernetesDetectorStopReleasesBlockedSend(t *testing.T) {
	detector, changes := runningDetector(t, 1)
	detector.handleAdd(ResourceTypeCForge, testForge("first"))

	sent := make(chan struct{})
	go func() {
		detector.handleAdd(ResourceTypeCForge, testForge("second"))
		close(sent)
	}()
	time.Sleep(20 * time.Millisecond)

	if err := detector.Stop(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	select {
	case <-sent:
	case <-time.After(time.Second):
		t.Fatal("stop did not release the blocked send")
	}

	if event := receive(t, changes); event.Name != "first" {
		t.Errorf("expected first event, got %s", event.Name)
	}
	expectNone(t, changes)
}

func TestKubernetesDetectorNotRunning(t *testing.T) {
	detector, changes := runningDetector(t, 1)
	detector.running = false

	detector.handleAdd(ResourceTypeCForge, testForge("builds"))
	expectNone(t, changes)
}
