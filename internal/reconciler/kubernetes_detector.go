package reconciler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/discovery"
	"k8s.io/client-go/rest"
	toolscache "k8s.io/client-go/tools/cache"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/cache"

	"cforge/internal/cluster"
	cforgev1 "cforge/pkg/apis/cforge/v1"
	"cforge/pkg/logging"
)

const k8sDetectorSubsystem = "KubernetesDetector"

// KubernetesDetector watches CForge objects through a controller-runtime
// cache. Every create, spec change and delete becomes a ChangeEvent carrying
// a copy of the object. Updates that keep metadata.generation (status
// writes, label edits) are dropped.
type KubernetesDetector struct {
	mu sync.RWMutex

	restConfig *rest.Config
	namespace  string // empty watches all namespaces
	scheme     *runtime.Scheme

	resourceTypes map[ResourceType]bool

	cache      cache.Cache
	ctx        context.Context
	cancel     context.CancelFunc
	changeChan chan<- ChangeEvent
	running    bool
}

// NewKubernetesDetector creates a detector for namespace. The cache is only
// built on Start, so restConfig may be nil until then.
func NewKubernetesDetector(restConfig *rest.Config, namespace string) (*KubernetesDetector, error) {
	return &KubernetesDetector{
		restConfig:    restConfig,
		namespace:     namespace,
		scheme:        cluster.NewScheme(),
		resourceTypes: make(map[ResourceType]bool),
	}, nil
}

// Start builds the cache, registers handlers for the watched types and
// blocks until the initial list has synced.
func (d *KubernetesDetector) Start(ctx context.Context, changes chan<- ChangeEvent) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return nil
	}

	opts := cache.Options{Scheme: d.scheme}
	if d.namespace != "" {
		opts.DefaultNamespaces = map[string]cache.Config{d.namespace: {}}
	}
	c, err := cache.New(d.restConfig, opts)
	if err != nil {
		d.mu.Unlock()
		return fmt.Errorf("failed to create cache: %w", err)
	}

	d.cache = c
	d.ctx, d.cancel = context.WithCancel(ctx)
	d.changeChan = changes
	d.running = true

	watched := make([]ResourceType, 0, len(d.resourceTypes))
	for rt := range d.resourceTypes {
		watched = append(watched, rt)
	}
	d.mu.Unlock()

	fail := func(err error) error {
		_ = d.Stop()
		return err
	}

	for _, rt := range watched {
		if err := d.register(rt); err != nil {
			return fail(fmt.Errorf("failed to setup informers: %w", err))
		}
	}

	go func() {
		if err := c.Start(d.ctx); err != nil {
			logging.Error(k8sDetectorSubsystem, err, "Cache stopped with error")
		}
	}()
	if !c.WaitForCacheSync(d.ctx) {
		return fail(errors.New("failed to sync cache"))
	}

	logging.Info(k8sDetectorSubsystem, "Started watching Kubernetes resources in namespace: %s", d.namespaceDisplay())
	return nil
}

// register adds event handlers for rt to the running cache.
func (d *KubernetesDetector) register(rt ResourceType) error {
	if rt != ResourceTypeCForge {
		return fmt.Errorf("unsupported resource type: %s", rt)
	}

	d.mu.RLock()
	c, ctx := d.cache, d.ctx
	d.mu.RUnlock()

	informer, err := c.GetInformer(ctx, &cforgev1.CForge{})
	if err != nil {
		return fmt.Errorf("failed to get informer for %s: %w", rt, err)
	}

	// Handlers live as long as the cache; Stop discards both.
	_, err = informer.AddEventHandler(toolscache.ResourceEventHandlerFuncs{
		AddFunc:    func(obj interface{}) { d.handleAdd(rt, obj) },
		UpdateFunc: func(oldObj, newObj interface{}) { d.handleUpdate(rt, oldObj, newObj) },
		DeleteFunc: func(obj interface{}) { d.handleDelete(rt, obj) },
	})
	if err != nil {
		return fmt.Errorf("failed to add event handler for %s: %w", rt, err)
	}

	logging.Debug(k8sDetectorSubsystem, "Watching %s", rt)
	return nil
}

func (d *KubernetesDetector) handleAdd(rt ResourceType, obj interface{}) {
	if cf := d.copyOf(obj, OperationCreate); cf != nil {
		d.emit(rt, OperationCreate, cf)
	}
}

func (d *KubernetesDetector) handleUpdate(rt ResourceType, oldObj, newObj interface{}) {
	cf := d.copyOf(newObj, OperationUpdate)
	if cf == nil {
		return
	}
	if old, ok := oldObj.(*cforgev1.CForge); ok && old != nil && old.Generation != 0 && old.Generation == cf.Generation {
		logging.Debug(k8sDetectorSubsystem, "Ignoring update of %s/%s without spec change", cf.Namespace, cf.Name)
		return
	}
	d.emit(rt, OperationUpdate, cf)
}

func (d *KubernetesDetector) handleDelete(rt ResourceType, obj interface{}) {
	// Deletes missed while the watch was down arrive wrapped.
	if tombstone, ok := obj.(toolscache.DeletedFinalStateUnknown); ok {
		obj = tombstone.Obj
	}
	if cf := d.copyOf(obj, OperationDelete); cf != nil {
		d.emit(rt, OperationDelete, cf)
	}
}

// copyOf returns a private copy of an informer object, or nil for anything
// that is not a CForge. Cache objects are shared and must not be mutated.
func (d *KubernetesDetector) copyOf(obj interface{}, op ChangeOperation) *cforgev1.CForge {
	cf, ok := obj.(*cforgev1.CForge)
	if !ok || cf == nil {
		logging.Warn(k8sDetectorSubsystem, "Unexpected object type %T in %s event", obj, op)
		return nil
	}
	return cf.DeepCopy()
}

// emit hands the event to the manager, waiting while the channel is full.
// Stop releases a blocked send.
func (d *KubernetesDetector) emit(rt ResourceType, op ChangeOperation, cf *cforgev1.CForge) {
	d.mu.RLock()
	out, running, ctx := d.changeChan, d.running, d.ctx
	d.mu.RUnlock()

	if !running || out == nil {
		return
	}

	var done <-chan struct{}
	if ctx != nil {
		done = ctx.Done()
	}

	event := ChangeEvent{
		Type:      rt,
		Name:      cf.Name,
		Namespace: cf.Namespace,
		Operation: op,
		Source:    SourceKubernetes,
		Timestamp: time.Now(),
		Object:    cf,
	}
	select {
	case out <- event:
		logging.Debug(k8sDetectorSubsystem, "Emitted %s %s %s/%s", op, rt, cf.Namespace, cf.Name)
	case <-done:
		logging.Debug(k8sDetectorSubsystem, "Detector stopped, discarding %s %s %s/%s", op, rt, cf.Namespace, cf.Name)
	}
}

// Stop cancels the cache. It is safe to call before Start.
func (d *KubernetesDetector) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running {
		return nil
	}
	d.running = false
	d.cancel()
	d.cache = nil

	logging.Info(k8sDetectorSubsystem, "Stopped Kubernetes detector")
	return nil
}

func (d *KubernetesDetector) GetSource() ChangeSource {
	return SourceKubernetes
}

// AddResourceType starts watching rt, immediately if the detector is
// running.
func (d *KubernetesDetector) AddResourceType(rt ResourceType) error {
	if !ValidResourceTypes[rt] {
		return fmt.Errorf("unsupported resource type: %s", rt)
	}

	d.mu.Lock()
	already := d.resourceTypes[rt]
	d.resourceTypes[rt] = true
	live := d.running && d.cache != nil
	d.mu.Unlock()

	if live && !already {
		return d.register(rt)
	}
	return nil
}

// RemoveResourceType forgets rt. Handlers already registered on a running
// cache stay until Stop.
func (d *KubernetesDetector) RemoveResourceType(rt ResourceType) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.resourceTypes, rt)
	return nil
}

func (d *KubernetesDetector) namespaceDisplay() string {
	if d.namespace == "" {
		return "all namespaces"
	}
	return d.namespace
}

// GetRestConfig resolves the REST config the way controller-runtime does:
// --kubeconfig, KUBECONFIG, in-cluster, then ~/.kube/config.
func GetRestConfig() (*rest.Config, error) {
	return ctrl.GetConfig()
}

// IsKubernetesAvailable reports whether an API server answers within a
// couple of seconds.
func IsKubernetesAvailable() bool {
	config, err := GetRestConfig()
	if err != nil {
		return false
	}
	config = rest.CopyConfig(config)
	config.Timeout = 2 * time.Second

	dc, err := discovery.NewDiscoveryClientForConfig(config)
	if err != nil {
		return false
	}
	_, err = dc.ServerVersion()
	return err == nil
}
