package reconciler

import (
	"sort"
	"sync"
	"time"
)

// statusBook records the last known reconcile state per resource.
type statusBook struct {
	mu      sync.RWMutex
	entries map[string]*ReconcileStatus
}

func newStatusBook() *statusBook {
	return &statusBook{entries: make(map[string]*ReconcileStatus)}
}

// statusKey generates a unique key for status tracking.
func statusKey(resourceType ResourceType, name, namespace string) string {
	return requestKey(ReconcileRequest{Type: resourceType, Name: name, Namespace: namespace})
}

// set moves the resource to state. Entering StateSynced stamps the
// reconcile time and clears the retry count; entering StateError counts a
// retry.
func (b *statusBook) set(resourceType ResourceType, name, namespace string, state ReconcileState, errMsg string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := statusKey(resourceType, name, namespace)
	entry := b.entries[key]
	if entry == nil {
		entry = &ReconcileStatus{ResourceType: resourceType, Name: name, Namespace: namespace}
		b.entries[key] = entry
	}

	entry.State = state
	entry.LastError = errMsg
	if state == StateSynced {
		now := time.Now()
		entry.LastReconcileTime = &now
		entry.RetryCount = 0
	}
	if state == StateError {
		entry.RetryCount++
	}
}

// get returns a copy of the entry for the resource.
func (b *statusBook) get(resourceType ResourceType, name, namespace string) (*ReconcileStatus, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	entry, ok := b.entries[statusKey(resourceType, name, namespace)]
	if !ok {
		return nil, false
	}
	snapshot := *entry
	return &snapshot, true
}

// list returns copies of all entries ordered by key.
func (b *statusBook) list() []ReconcileStatus {
	b.mu.RLock()
	defer b.mu.RUnlock()

	keys := make([]string, 0, len(b.entries))
	for key := range b.entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := make([]ReconcileStatus, 0, len(keys))
	for _, key := range keys {
		out = append(out, *b.entries[key])
	}
	return out
}
