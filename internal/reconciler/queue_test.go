package reconciler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	cforgev1 "cforge/pkg/apis/cforge/v1"
)

func forgeRequest(name string, seq uint64, op ChangeOperation) ReconcileRequest {
	return ReconcileRequest{Type: ResourceTypeCForge, Name: name, Namespace: testForgeNamespace, Operation: op, Sequence: seq, Attempt: 1}
}

func getWithin(t *testing.T, q ReconcileQueue, d time.Duration) (ReconcileRequest, bool) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return q.Get(ctx)
}

func TestRequestKey(t *testing.T) {
	tests := []struct {
		req  ReconcileRequest
		want string
	}{
		{ReconcileRequest{Type: ResourceTypeCForge, Name: "builds"}, "CForge/builds"},
		{ReconcileRequest{Type: ResourceTypeCForge, Name: "builds", Namespace: "ci"}, "CForge/ci/builds"},
	}
	for _, tt := range tests {
		if got := requestKey(tt.req); got != tt.want {
			t.Errorf("requestKey(%+v) = %q, want %q", tt.req, got, tt.want)
		}
	}
	if statusKey(ResourceTypeCForge, "builds", "ci") != "CForge/ci/builds" {
		t.Error("statusKey must match requestKey")
	}
}

func TestWorkQueue_FIFOAcrossKeys(t *testing.T) {
	q := NewQueue()
	for i, name := range []string{"c", "a", "b"} {
		q.Add(forgeRequest(name, uint64(i+1), OperationCreate))
	}
	if q.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", q.Len())
	}

	for _, want := range []string{"c", "a", "b"} {
		got, ok := getWithin(t, q, time.Second)
		if !ok {
			t.Fatalf("expected %s, queue returned nothing", want)
		}
		if got.Name != want {
			t.Errorf("got %s, want %s", got.Name, want)
		}
		q.Done(got)
	}
}

func TestWorkQueue_SameKeyMerged(t *testing.T) {
	q := NewQueue()
	first := forgeRequest("builds", 0, OperationUpdate)
	second := first
	second.Attempt = 2

	q.Add(first)
	q.Add(second)
	if q.Len() != 1 {
		t.Fatalf("Len() = %d after adding one key twice, want 1", q.Len())
	}

	got, ok := getWithin(t, q, time.Second)
	if !ok {
		t.Fatal("expected a request")
	}
	if got.Attempt != 2 {
		t.Errorf("Attempt = %d, want the later request's 2", got.Attempt)
	}
	q.Done(got)
}

func TestWorkQueue_AddWhileActiveIsParked(t *testing.T) {
	q := NewQueue()
	q.Add(forgeRequest("builds", 1, OperationCreate))

	active, _ := getWithin(t, q, time.Second)
	q.Add(forgeRequest("builds", 2, OperationUpdate))
	if q.Len() != 0 {
		t.Errorf("Len() = %d while the key is active, want 0", q.Len())
	}

	q.Done(active)
	if q.Len() != 1 {
		t.Fatalf("Len() = %d after Done, want 1", q.Len())
	}
	next, ok := getWithin(t, q, time.Second)
	if !ok || next.Sequence != 2 {
		t.Fatalf("expected the parked request, got %+v (ok=%v)", next, ok)
	}
	q.Done(next)
}

func TestWorkQueue_ShutdownUnblocksGet(t *testing.T) {
	q := NewQueue()

	result := make(chan bool, 1)
	go func() {
		_, ok := q.Get(context.Background())
		result <- ok
	}()
	time.Sleep(20 * time.Millisecond)
	q.Shutdown()

	select {
	case ok := <-result:
		if ok {
			t.Error("Get returned a request after Shutdown")
		}
	case <-time.After(time.Second):
		t.Fatal("Get still blocked after Shutdown")
	}

	q.Add(forgeRequest("late", 1, OperationCreate))
	if q.Len() != 0 {
		t.Error("Add after Shutdown must be ignored")
	}
}

func TestWorkQueue_ContextCancelUnblocksGet(t *testing.T) {
	q := NewQueue()
	if _, ok := getWithin(t, q, 20*time.Millisecond); ok {
		t.Fatal("expected Get on an empty queue to give up with its context")
	}
}

func TestWorkQueue_ConcurrentProducers(t *testing.T) {
	q := NewQueue()
	const producers, perProducer = 5, 10

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Add(forgeRequest(fmt.Sprintf("forge-%d-%d", p, i), 1, OperationCreate))
			}
		}(p)
	}
	wg.Wait()

	var consumed atomic.Int32
	var consumers sync.WaitGroup
	for c := 0; c < 3; c++ {
		consumers.Add(1)
		go func() {
			defer consumers.Done()
			for {
				req, ok := getWithin(t, q, 100*time.Millisecond)
				if !ok {
					return
				}
				consumed.Add(1)
				q.Done(req)
			}
		}()
	}
	consumers.Wait()

	if got := consumed.Load(); got != producers*perProducer {
		t.Errorf("consumed %d requests, want %d", got, producers*perProducer)
	}
}

func TestDelayedQueue_AddAfter(t *testing.T) {
	q := NewDelayedQueue()
	defer q.Shutdown()

	const delay = 80 * time.Millisecond
	start := time.Now()
	q.AddAfter(forgeRequest("delayed", 1, OperationUpdate), delay)

	if q.Len() != 0 {
		t.Error("request visible before its delay")
	}
	got, ok := getWithin(t, q, time.Second)
	if !ok || got.Name != "delayed" {
		t.Fatalf("expected the delayed request, got %+v (ok=%v)", got, ok)
	}
	if elapsed := time.Since(start); elapsed < delay {
		t.Errorf("returned after %v, before the %v delay", elapsed, delay)
	}
	q.Done(got)
}

func TestDelayedQueue_AddAfterReplacesTimer(t *testing.T) {
	q := NewDelayedQueue()
	defer q.Shutdown()

	q.AddAfter(forgeRequest("builds", 1, OperationUpdate), 20*time.Millisecond)
	q.AddAfter(forgeRequest("builds", 2, OperationUpdate), time.Hour)

	if _, ok := getWithin(t, q, 100*time.Millisecond); ok {
		t.Error("the replaced timer still fired")
	}
}

func TestDelayedQueue_ShutdownCancelsTimers(t *testing.T) {
	q := NewDelayedQueue()
	q.AddAfter(forgeRequest("cancelled", 1, OperationUpdate), 10*time.Millisecond)
	q.Shutdown()

	time.Sleep(30 * time.Millisecond)
	if q.Len() != 0 {
		t.Errorf("Len() = %d after Shutdown, want 0", q.Len())
	}
}

func TestMergeOperations(t *testing.T) {
	tests := []struct {
		old, new, want ChangeOperation
	}{
		{"", OperationUpdate, OperationUpdate},
		{OperationCreate, OperationUpdate, OperationCreate},
		{OperationCreate, OperationDelete, OperationDelete},
		{OperationUpdate, OperationDelete, OperationDelete},
		{OperationDelete, OperationDelete, OperationDelete},
		{OperationDelete, OperationCreate, OperationUpdate},
		{OperationDelete, OperationUpdate, OperationUpdate},
		{OperationUpdate, OperationUpdate, OperationUpdate},
		{OperationUpdate, OperationCreate, OperationCreate},
	}

	for _, tt := range tests {
		if got := mergeOperations(tt.old, tt.new); got != tt.want {
			t.Errorf("mergeOperations(%q, %q) = %q, want %q", tt.old, tt.new, got, tt.want)
		}
	}
}

func TestWorkQueue_MergeKeepsNewestBody(t *testing.T) {
	q := NewQueue()

	newer := testForge("builds", cforgev1.Project{Name: "a", RepoURL: "u2"})
	older := testForge("builds", cforgev1.Project{Name: "a", RepoURL: "u1"})

	q.Add(ReconcileRequest{Type: ResourceTypeCForge, Name: "builds", Operation: OperationUpdate, Object: newer, Sequence: 7})
	// A delayed retry of an older event must not overwrite the newer body.
	q.Add(ReconcileRequest{Type: ResourceTypeCForge, Name: "builds", Operation: OperationCreate, Object: older, Sequence: 3, Attempt: 2})

	if q.Len() != 1 {
		t.Fatalf("expected queue length 1, got %d", q.Len())
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	got, ok := q.Get(ctx)
	if !ok {
		t.Fatal("expected to get item from queue")
	}
	if got.Object != newer {
		t.Error("expected the newer body to win the merge")
	}
	if got.Sequence != 7 {
		t.Errorf("expected sequence 7, got %d", got.Sequence)
	}
	if got.Operation != OperationCreate {
		t.Errorf("expected merged operation Create, got %s", got.Operation)
	}
	q.Done(got)
}

func TestWorkQueue_DirtyMerge(t *testing.T) {
	q := NewQueue()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	q.Add(ReconcileRequest{Type: ResourceTypeCForge, Name: "builds", Operation: OperationCreate, Sequence: 1})
	got, _ := q.Get(ctx)

	q.Add(ReconcileRequest{Type: ResourceTypeCForge, Name: "builds", Operation: OperationDelete, Sequence: 2})
	q.Add(ReconcileRequest{Type: ResourceTypeCForge, Name: "builds", Operation: OperationCreate, Sequence: 3})
	q.Done(got)

	again, ok := q.Get(ctx)
	if !ok {
		t.Fatal("expected dirty item to be requeued")
	}
	if again.Operation != OperationUpdate {
		t.Errorf("expected Delete+Create to merge into Update, got %s", again.Operation)
	}
	if again.Sequence != 3 {
		t.Errorf("expected sequence 3, got %d", again.Sequence)
	}
	q.Done(again)
}

func TestWorkQueue_PerKeySerialization(t *testing.T) {
	q := NewQueue()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	q.Add(ReconcileRequest{Type: ResourceTypeCForge, Name: "a"})
	q.Add(ReconcileRequest{Type: ResourceTypeCForge, Name: "b"})

	first, _ := q.Get(ctx)
	q.Add(ReconcileRequest{Type: ResourceTypeCForge, Name: first.Name})

	// Only the other key is available while first is processing.
	second, ok := q.Get(ctx)
	if !ok {
		t.Fatal("expected second key")
	}
	if second.Name == first.Name {
		t.Fatalf("key %s handed out while still processing", first.Name)
	}

	shortCtx, shortCancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer shortCancel()
	if _, ok := q.Get(shortCtx); ok {
		t.Fatal("expected no item while both keys are processing")
	}

	q.Done(first)
	third, ok := q.Get(ctx)
	if !ok || third.Name != first.Name {
		t.Fatalf("expected %s to be requeued after Done, got %+v", first.Name, third)
	}
	q.Done(second)
	q.Done(third)
}
