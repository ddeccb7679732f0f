package reconciler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	cforgev1 "cforge/pkg/apis/cforge/v1"
	"cforge/pkg/logging"
)

const managerSubsystem = "ReconcileManager"

// Manager turns change events into reconcile requests and runs them on a
// pool of workers, retrying failures with exponential backoff.
type Manager struct {
	mu     sync.RWMutex
	config ManagerConfig

	detector    ChangeDetector
	reconcilers map[ResourceType]Reconciler

	queue    *delayedQueue
	statuses *statusBook
	events   chan ChangeEvent

	// seq numbers requests; newest holds the latest number seen per key.
	seq    uint64
	newest map[string]uint64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	running bool
}

// withDefaults fills unset fields of the config.
func (c ManagerConfig) withDefaults() ManagerConfig {
	setDuration := func(d *time.Duration, def time.Duration) {
		if *d == 0 {
			*d = def
		}
	}
	if c.WorkerCount == 0 {
		c.WorkerCount = 2
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 5
	}
	setDuration(&c.InitialBackoff, time.Second)
	setDuration(&c.MaxBackoff, 5*time.Minute)
	setDuration(&c.DebounceInterval, 500*time.Millisecond)
	setDuration(&c.ReconcileTimeout, 30*time.Second)
	if c.DisabledResourceTypes == nil {
		c.DisabledResourceTypes = make(map[ResourceType]bool)
	}
	return c
}

// NewManager creates a new reconciliation manager.
func NewManager(config ManagerConfig) *Manager {
	return &Manager{
		config:      config.withDefaults(),
		reconcilers: make(map[ResourceType]Reconciler),
		queue:       NewDelayedQueue(),
		statuses:    newStatusBook(),
		events:      make(chan ChangeEvent, 100),
		newest:      make(map[string]uint64),
	}
}

// RegisterReconciler adds r for its resource type. A type can only be
// registered once.
func (m *Manager) RegisterReconciler(r Reconciler) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rt := r.GetResourceType()
	if m.reconcilers[rt] != nil {
		return fmt.Errorf("reconciler for %s already registered", rt)
	}
	m.reconcilers[rt] = r
	logging.Info(managerSubsystem, "Registered reconciler for %s", rt)

	if m.detector != nil {
		m.watch(rt)
	}
	return nil
}

func (m *Manager) watch(rt ResourceType) {
	if err := m.detector.AddResourceType(rt); err != nil {
		logging.Warn(managerSubsystem, "Failed to add watch for %s: %v", rt, err)
	}
}

// Start picks a change detector, starts it and launches the workers.
// Calling Start on a running manager is a no-op.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return nil
	}

	if err := m.setupChangeDetector(); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("failed to setup change detector: %w", err)
	}
	for rt := range m.reconcilers {
		m.watch(rt)
	}

	m.ctx, m.cancel = context.WithCancel(ctx)
	m.running = true
	detector := m.detector
	m.mu.Unlock()

	if err := detector.Start(m.ctx, m.events); err != nil {
		m.mu.Lock()
		m.running = false
		m.cancel()
		m.mu.Unlock()
		return fmt.Errorf("failed to start change detector: %w", err)
	}

	m.wg.Add(1 + m.config.WorkerCount)
	go m.processChangeEvents()
	for id := 0; id < m.config.WorkerCount; id++ {
		go m.worker(id)
	}

	logging.Info(managerSubsystem, "Started with %d workers", m.config.WorkerCount)
	return nil
}

// setupChangeDetector resolves the watch mode into a detector. An explicit
// Detector in the config wins over Mode.
func (m *Manager) setupChangeDetector() error {
	if m.config.Detector != nil {
		m.detector = m.config.Detector
		return nil
	}

	mode := m.config.Mode
	if mode == "" || mode == WatchModeAuto {
		mode = m.autoDetectMode()
	}

	switch mode {
	case WatchModeFilesystem:
		if m.config.FilesystemPath == "" {
			return errors.New("filesystem path required for filesystem mode")
		}
		m.detector = NewFilesystemDetector(m.config.FilesystemPath, m.config.DebounceInterval)
		return nil

	case WatchModeKubernetes:
		restConfig, err := GetRestConfig()
		if err != nil {
			return fmt.Errorf("failed to get Kubernetes config: %w", err)
		}
		detector, err := NewKubernetesDetector(restConfig, m.config.Namespace)
		if err != nil {
			return fmt.Errorf("failed to create Kubernetes detector: %w", err)
		}
		m.detector = detector
		return nil
	}
	return fmt.Errorf("unknown watch mode: %s", mode)
}

// autoDetectMode picks filesystem mode when a manifests directory is
// configured and Kubernetes mode otherwise. Builds always run in the
// cluster; only the source of CForge resources changes.
func (m *Manager) autoDetectMode() WatchMode {
	if path := m.config.FilesystemPath; path != "" {
		logging.Info(managerSubsystem, "Auto-detected filesystem mode (%s)", path)
		return WatchModeFilesystem
	}
	if IsKubernetesAvailable() {
		logging.Info(managerSubsystem, "Auto-detected Kubernetes mode")
	} else {
		logging.Warn(managerSubsystem, "No manifests path configured and no cluster reachable, trying Kubernetes mode anyway")
	}
	return WatchModeKubernetes
}

func (m *Manager) processChangeEvents() {
	defer m.wg.Done()
	for {
		select {
		case <-m.ctx.Done():
			return
		case event, ok := <-m.events:
			if !ok {
				return
			}
			m.handleChangeEvent(event)
		}
	}
}

// handleChangeEvent numbers the event and queues it as a first attempt.
func (m *Manager) handleChangeEvent(event ChangeEvent) {
	if !m.IsResourceTypeEnabled(event.Type) {
		logging.Debug(managerSubsystem, "Skipping %s %s/%s, resource type disabled",
			event.Operation, event.Type, event.Name)
		return
	}
	logging.Debug(managerSubsystem, "Change event: %s %s/%s", event.Operation, event.Type, event.Name)

	req := ReconcileRequest{
		Type:      event.Type,
		Name:      event.Name,
		Namespace: event.Namespace,
		Operation: event.Operation,
		Source:    event.Source,
		Object:    event.Object,
		Attempt:   1,
	}

	m.mu.Lock()
	m.seq++
	req.Sequence = m.seq
	m.newest[requestKey(req)] = m.seq
	m.mu.Unlock()

	m.statuses.set(req.Type, req.Name, req.Namespace, StatePending, "")
	m.queue.Add(req)
}

// isSuperseded reports whether a newer change for the same resource has
// been seen since req was created. The newer request carries its own
// retries. A resource without an entry has been deleted and forgotten, so
// anything still in flight for it is stale too.
func (m *Manager) isSuperseded(req ReconcileRequest) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	newest, ok := m.newest[requestKey(req)]
	return !ok || newest > req.Sequence
}

// forget drops the sequence entry of a resource whose delete has been
// applied, unless a newer change arrived meanwhile.
func (m *Manager) forget(req ReconcileRequest) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := requestKey(req)
	if m.newest[key] == req.Sequence {
		delete(m.newest, key)
	}
}

func (m *Manager) worker(id int) {
	defer m.wg.Done()
	logging.Debug(managerSubsystem, "Worker %d started", id)

	for {
		req, ok := m.queue.Get(m.ctx)
		if !ok {
			logging.Debug(managerSubsystem, "Worker %d shutting down", id)
			return
		}
		m.processRequest(req)
		m.queue.Done(req)
	}
}

// processRequest runs one attempt of req under ReconcileTimeout and routes
// the result.
func (m *Manager) processRequest(req ReconcileRequest) {
	m.mu.RLock()
	r := m.reconcilers[req.Type]
	timeout := m.config.ReconcileTimeout
	m.mu.RUnlock()

	if r == nil {
		logging.Warn(managerSubsystem, "No reconciler for resource type: %s", req.Type)
		return
	}
	if m.isSuperseded(req) {
		logging.Debug(managerSubsystem, "Dropping superseded request for %s/%s (attempt %d)",
			req.Type, req.Name, req.Attempt)
		return
	}

	m.statuses.set(req.Type, req.Name, req.Namespace, StateReconciling, "")
	logging.Debug(managerSubsystem, "Reconciling %s %s/%s (attempt %d)",
		req.Operation, req.Type, req.Name, req.Attempt)

	ctx, cancel := context.WithTimeout(m.ctx, timeout)
	defer cancel()

	started := time.Now()
	result := r.Reconcile(ctx, req)
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		result.Error = fmt.Errorf("reconciliation timed out after %v", timeout)
		result.Requeue = true
	}

	outcome := m.settle(req, result)
	m.config.Metrics.RecordReconcile(req.Operation, outcome, time.Since(started))
}

// settle records the result of an attempt, schedules any follow-up and
// returns the metrics result label.
func (m *Manager) settle(req ReconcileRequest, result ReconcileResult) string {
	if result.Error != nil {
		return m.handleReconcileError(req, result)
	}

	m.statuses.set(req.Type, req.Name, req.Namespace, StateSynced, "")
	if !result.Requeue && result.RequeueAfter <= 0 {
		if req.Operation == OperationDelete {
			m.forget(req)
		}
		logging.Debug(managerSubsystem, "Successfully reconciled %s/%s", req.Type, req.Name)
		return ResultSuccess
	}

	delay := result.RequeueAfter
	if delay <= 0 {
		delay = m.config.InitialBackoff
	}
	m.queue.AddAfter(req, delay)
	logging.Debug(managerSubsystem, "Requeuing %s/%s after %v", req.Type, req.Name, delay)
	return ResultRequeue
}

// handleReconcileError marks the resource Failed for permanent errors and
// exhausted retries, otherwise Error with a delayed retry.
func (m *Manager) handleReconcileError(req ReconcileRequest, result ReconcileResult) string {
	logging.Warn(managerSubsystem, "Reconciliation failed for %s/%s: %v", req.Type, req.Name, result.Error)
	msg := SanitizeErrorMessage(result.Error.Error())

	var giveUp string
	switch {
	case !result.Requeue:
		giveUp = "the error is permanent"
	case req.Attempt >= m.config.MaxRetries:
		giveUp = fmt.Sprintf("max retries (%d) exceeded", m.config.MaxRetries)
	}
	if giveUp != "" {
		logging.Error(managerSubsystem, result.Error, "Not retrying %s/%s, %s", req.Type, req.Name, giveUp)
		m.statuses.set(req.Type, req.Name, req.Namespace, StateFailed, msg)
		return ResultFailed
	}

	m.statuses.set(req.Type, req.Name, req.Namespace, StateError, msg)

	delay := m.calculateBackoff(req.Attempt)
	retry := req
	retry.Attempt++
	retry.LastError = result.Error
	m.queue.AddAfter(retry, delay)

	logging.Debug(managerSubsystem, "Retrying %s/%s after %v (attempt %d)",
		req.Type, req.Name, delay, retry.Attempt)
	return ResultError
}

// calculateBackoff returns InitialBackoff doubled for every attempt after
// the first, capped at MaxBackoff.
func (m *Manager) calculateBackoff(attempt int) time.Duration {
	backoff := m.config.InitialBackoff
	for n := 1; n < attempt; n++ {
		if backoff >= m.config.MaxBackoff {
			break
		}
		backoff *= 2
	}
	return min(backoff, m.config.MaxBackoff)
}

// Stop cancels the workers, stops the detector and waits for in-flight
// reconciles to return.
func (m *Manager) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = false
	cancel, detector := m.cancel, m.detector
	m.mu.Unlock()

	logging.Info(managerSubsystem, "Stopping reconciliation manager...")
	cancel()
	if err := detector.Stop(); err != nil {
		logging.Error(managerSubsystem, err, "Error stopping change detector")
	}
	m.queue.Shutdown()
	m.wg.Wait()

	logging.Info(managerSubsystem, "Reconciliation manager stopped")
	return nil
}

// GetStatus returns a snapshot of the reconcile status for a resource.
func (m *Manager) GetStatus(resourceType ResourceType, name, namespace string) (*ReconcileStatus, bool) {
	return m.statuses.get(resourceType, name, namespace)
}

// GetAllStatuses returns snapshots of every tracked resource.
func (m *Manager) GetAllStatuses() []ReconcileStatus {
	return m.statuses.list()
}

// TriggerReconcile queues an immediate reconcile of obj.
func (m *Manager) TriggerReconcile(obj *cforgev1.CForge) {
	m.handleChangeEvent(ChangeEvent{
		Type:      ResourceTypeCForge,
		Name:      obj.Name,
		Namespace: obj.Namespace,
		Operation: OperationUpdate,
		Timestamp: time.Now(),
		Source:    SourceManual,
		Object:    obj.DeepCopy(),
	})
}

func (m *Manager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

func (m *Manager) GetQueueLength() int {
	return m.queue.Len()
}

// GetWatchMode reports the mode of the active detector, or the configured
// mode before Start.
func (m *Manager) GetWatchMode() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.detector != nil {
		switch m.detector.GetSource() {
		case SourceKubernetes:
			return string(WatchModeKubernetes)
		case SourceFilesystem:
			return string(WatchModeFilesystem)
		}
	}
	return string(m.config.Mode)
}

// GetEnabledResourceTypes lists registered types that are not disabled.
func (m *Manager) GetEnabledResourceTypes() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var types []string
	for rt := range m.reconcilers {
		if !m.config.DisabledResourceTypes[rt] {
			types = append(types, string(rt))
		}
	}
	return types
}

// IsResourceTypeEnabled reports whether rt is registered and not disabled.
func (m *Manager) IsResourceTypeEnabled(rt ResourceType) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.reconcilers[rt] != nil && !m.config.DisabledResourceTypes[rt]
}

func (m *Manager) DisableResourceType(rt ResourceType) {
	m.setResourceTypeDisabled(rt, true)
}

func (m *Manager) EnableResourceType(rt ResourceType) {
	m.setResourceTypeDisabled(rt, false)
}

func (m *Manager) setResourceTypeDisabled(rt ResourceType, disabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if disabled {
		m.config.DisabledResourceTypes[rt] = true
		logging.Info(managerSubsystem, "Disabled reconciliation for %s", rt)
		return
	}
	delete(m.config.DisabledResourceTypes, rt)
	logging.Info(managerSubsystem, "Enabled reconciliation for %s", rt)
}
