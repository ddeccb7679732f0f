package reconciler

import (
	"context"
	"time"

	cforgev1 "cforge/pkg/apis/cforge/v1"
)

// ResourceType names a kind of object the manager can reconcile.
type ResourceType string

// ResourceTypeCForge is the CForge custom resource, from the cluster or
// from a manifests directory.
const ResourceTypeCForge ResourceType = "CForge"

// ValidResourceTypes is the set of resource types the manager accepts.
var ValidResourceTypes = map[ResourceType]bool{
	ResourceTypeCForge: true,
}

// IsValidResourceType reports whether s names a known resource type.
func IsValidResourceType(s string) bool {
	return ValidResourceTypes[ResourceType(s)]
}

// ChangeOperation is what happened to a resource.
type ChangeOperation string

const (
	OperationCreate ChangeOperation = "Create"
	OperationUpdate ChangeOperation = "Update"
	OperationDelete ChangeOperation = "Delete"
)

// ChangeSource is where a change was observed. Only SourceKubernetes
// changes get status and events written back.
type ChangeSource string

const (
	SourceFilesystem ChangeSource = "Filesystem"
	SourceKubernetes ChangeSource = "Kubernetes"
	// SourceManual marks reconciles requested through TriggerReconcile.
	SourceManual ChangeSource = "Manual"
)

// ChangeEvent is emitted by a ChangeDetector for every observed change.
// Object carries the full CForge; on delete it is the last known body.
// FilePath is only set by the filesystem detector.
type ChangeEvent struct {
	Type      ResourceType
	Name      string
	Namespace string
	Operation ChangeOperation
	Source    ChangeSource
	Timestamp time.Time
	FilePath  string
	Object    *cforgev1.CForge
}

// ReconcileRequest is one unit of work in the queue. Requests for the same
// resource are merged; Sequence orders them and the highest wins.
type ReconcileRequest struct {
	Type      ResourceType
	Name      string
	Namespace string

	Operation ChangeOperation
	Source    ChangeSource
	Object    *cforgev1.CForge

	Sequence uint64

	// Attempt starts at 1 and grows with every retry.
	Attempt   int
	LastError error
}

// ReconcileResult tells the manager what to do after an attempt.
//
// An Error with Requeue set is retried with backoff until MaxRetries; an
// Error without it is permanent. Without an Error, Requeue or RequeueAfter
// schedule another pass.
type ReconcileResult struct {
	Requeue      bool
	RequeueAfter time.Duration
	Error        error
}

// Reconciler drives one resource type towards its declared state.
// Reconcile must be idempotent.
type Reconciler interface {
	Reconcile(ctx context.Context, req ReconcileRequest) ReconcileResult
	GetResourceType() ResourceType
}

// ChangeDetector watches a source of resources and sends ChangeEvents to
// the channel passed to Start until Stop or ctx cancellation.
type ChangeDetector interface {
	Start(ctx context.Context, changes chan<- ChangeEvent) error
	Stop() error
	GetSource() ChangeSource
	AddResourceType(resourceType ResourceType) error
	RemoveResourceType(resourceType ResourceType) error
}

// ReconcileQueue holds pending requests, at most one per resource.
type ReconcileQueue interface {
	// Add queues req, merging it with a pending request for the same
	// resource.
	Add(req ReconcileRequest)
	// Get blocks until a request is available. It returns false once the
	// queue is shut down or ctx is done.
	Get(ctx context.Context) (ReconcileRequest, bool)
	// Done releases a request handed out by Get.
	Done(req ReconcileRequest)
	Len() int
	Shutdown()
}

// WatchMode selects the ChangeDetector.
type WatchMode string

const (
	WatchModeFilesystem WatchMode = "filesystem"
	WatchModeKubernetes WatchMode = "kubernetes"
	// WatchModeAuto uses the filesystem when FilesystemPath is set.
	WatchModeAuto WatchMode = "auto"
)

// ManagerConfig configures a Manager. Zero values take the defaults noted
// on each field.
type ManagerConfig struct {
	Mode WatchMode

	// FilesystemPath is the manifests directory for WatchModeFilesystem.
	FilesystemPath string

	// Namespace limits the Kubernetes watch; empty watches all namespaces.
	Namespace string

	WorkerCount      int           // 2
	MaxRetries       int           // 5
	InitialBackoff   time.Duration // 1s
	MaxBackoff       time.Duration // 5m
	DebounceInterval time.Duration // 500ms
	ReconcileTimeout time.Duration // 30s

	// Detector replaces the detector Mode would select.
	Detector ChangeDetector

	// Metrics is optional.
	Metrics *Metrics

	DisabledResourceTypes map[ResourceType]bool
}

// ReconcileState is the manager's view of a resource.
type ReconcileState string

const (
	StatePending     ReconcileState = "Pending"
	StateReconciling ReconcileState = "Reconciling"
	StateSynced      ReconcileState = "Synced"
	// StateError is a failed attempt that will be retried.
	StateError ReconcileState = "Error"
	// StateFailed is a permanent error or exhausted retries.
	StateFailed ReconcileState = "Failed"
)

// ReconcileStatus is the last known state of one resource. Namespace is
// empty in filesystem mode for manifests without one.
type ReconcileStatus struct {
	ResourceType      ResourceType
	Name              string
	Namespace         string
	State             ReconcileState
	LastError         string
	RetryCount        int
	LastReconcileTime *time.Time
}
