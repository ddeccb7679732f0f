package reconciler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	cforgev1 "cforge/pkg/apis/cforge/v1"
	"cforge/pkg/logging"
)

const fsDetectorSubsystem = "FilesystemDetector"

// FilesystemDetector watches one directory of CForge manifests, one
// resource per YAML file. Changes to a file are debounced into a single
// event carrying the parsed body. Files present at Start are reported as
// creates; a removed file reports a delete with the last body read from it.
type FilesystemDetector struct {
	mu sync.Mutex

	dir              string
	debounceInterval time.Duration
	resourceTypes    map[ResourceType]bool

	watcher *fsnotify.Watcher
	done    chan struct{}

	// pending holds the debounce timer and merged operation per file.
	pending map[string]*pendingChange
	// known is the last body parsed from each file.
	known map[string]*cforgev1.CForge
}

type pendingChange struct {
	op    ChangeOperation
	timer *time.Timer
}

// NewFilesystemDetector creates a detector for dir. A zero debounce
// interval means 500ms.
func NewFilesystemDetector(dir string, debounceInterval time.Duration) *FilesystemDetector {
	if debounceInterval == 0 {
		debounceInterval = 500 * time.Millisecond
	}
	return &FilesystemDetector{
		dir:              filepath.Clean(dir),
		debounceInterval: debounceInterval,
		resourceTypes:    make(map[ResourceType]bool),
		pending:          make(map[string]*pendingChange),
		known:            make(map[string]*cforgev1.CForge),
	}
}

// Start creates the directory if needed, reports the manifests already in
// it and begins watching.
func (d *FilesystemDetector) Start(ctx context.Context, changes chan<- ChangeEvent) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.watcher != nil {
		return nil
	}

	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create manifests directory: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(d.dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", d.dir, err)
	}

	d.watcher = watcher
	d.done = make(chan struct{})
	go d.loop(ctx, watcher, d.done, changes)

	existing, err := d.listManifests()
	if err != nil {
		logging.Warn(fsDetectorSubsystem, "Failed to list %s: %v", d.dir, err)
	}
	if d.resourceTypes[ResourceTypeCForge] {
		go func() {
			for _, path := range existing {
				d.emit(path, OperationCreate, changes)
			}
		}()
	}

	logging.Info(fsDetectorSubsystem, "Started watching %s for CForge manifests", d.dir)
	return nil
}

// listManifests returns the YAML files directly in the directory, sorted.
func (d *FilesystemDetector) listManifests() ([]string, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, entry := range entries {
		if !entry.IsDir() && isYAMLFile(entry.Name()) {
			paths = append(paths, filepath.Join(d.dir, entry.Name()))
		}
	}
	slices.Sort(paths)
	return paths, nil
}

func (d *FilesystemDetector) loop(ctx context.Context, watcher *fsnotify.Watcher, done <-chan struct{}, changes chan<- ChangeEvent) {
	defer d.cancelPending()

	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			d.handleFsEvent(event, changes)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logging.Error(fsDetectorSubsystem, err, "Filesystem watcher error")
		}
	}
}

// fsOperation maps an fsnotify op to a change. A rename is the old name
// going away; the new name, if still in the directory, arrives as a create.
func fsOperation(op fsnotify.Op) (ChangeOperation, bool) {
	switch {
	case op.Has(fsnotify.Create):
		return OperationCreate, true
	case op.Has(fsnotify.Write):
		return OperationUpdate, true
	case op.Has(fsnotify.Remove), op.Has(fsnotify.Rename):
		return OperationDelete, true
	}
	return "", false
}

// handleFsEvent debounces a raw event for a manifest in the watched
// directory. Everything else is ignored.
func (d *FilesystemDetector) handleFsEvent(event fsnotify.Event, changes chan<- ChangeEvent) {
	if filepath.Dir(event.Name) != d.dir || !isYAMLFile(event.Name) {
		return
	}
	op, ok := fsOperation(event.Op)
	if !ok {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.resourceTypes[ResourceTypeCForge] {
		return
	}

	path := event.Name
	if prev := d.pending[path]; prev != nil {
		prev.timer.Stop()
		op = mergeOperations(prev.op, op)
	}

	change := &pendingChange{op: op}
	change.timer = time.AfterFunc(d.debounceInterval, func() {
		d.mu.Lock()
		current := d.pending[path]
		if current == change {
			delete(d.pending, path)
		}
		d.mu.Unlock()

		if current == change {
			d.emit(path, change.op, changes)
		}
	})
	d.pending[path] = change
}

// emit reads the settled file and sends the event. Creates and updates
// re-parse the file; deletes use the last known body. The send blocks until
// the manager takes the event or Stop is called.
func (d *FilesystemDetector) emit(path string, op ChangeOperation, changes chan<- ChangeEvent) {
	cf, op, ok := d.resolve(path, op)
	if !ok {
		return
	}

	event := ChangeEvent{
		Type:      ResourceTypeCForge,
		Name:      cf.Name,
		Namespace: cf.Namespace,
		Operation: op,
		Source:    SourceFilesystem,
		Timestamp: time.Now(),
		FilePath:  path,
		Object:    cf.DeepCopy(),
	}
	d.mu.Lock()
	done := d.done
	d.mu.Unlock()

	select {
	case changes <- event:
		logging.Debug(fsDetectorSubsystem, "Emitted %s %s from %s", op, cf.Name, path)
	case <-done:
		logging.Debug(fsDetectorSubsystem, "Detector stopped, discarding %s %s", op, cf.Name)
	}
}

// resolve returns the body for a change to path and the operation to report.
func (d *FilesystemDetector) resolve(path string, op ChangeOperation) (*cforgev1.CForge, ChangeOperation, bool) {
	if op == OperationDelete {
		d.mu.Lock()
		cf := d.known[path]
		delete(d.known, path)
		d.mu.Unlock()

		if cf == nil {
			logging.Debug(fsDetectorSubsystem, "No previous manifest for removed file %s", path)
			return nil, op, false
		}
		return cf, op, true
	}

	cf, err := loadManifest(path)
	if err != nil {
		logging.Warn(fsDetectorSubsystem, "Ignoring %s: %v", path, err)
		return nil, op, false
	}

	d.mu.Lock()
	_, seen := d.known[path]
	d.known[path] = cf
	d.mu.Unlock()

	// Editors that replace files report Create for a file we already know.
	if seen && op == OperationCreate {
		op = OperationUpdate
	}
	return cf, op, true
}

func (d *FilesystemDetector) cancelPending() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for path, change := range d.pending {
		change.timer.Stop()
		delete(d.pending, path)
	}
}

// Stop closes the watcher. It is safe to call more than once.
func (d *FilesystemDetector) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.watcher == nil {
		return nil
	}
	close(d.done)
	if err := d.watcher.Close(); err != nil {
		logging.Error(fsDetectorSubsystem, err, "Error closing filesystem watcher")
	}
	d.watcher = nil

	logging.Info(fsDetectorSubsystem, "Stopped filesystem detector")
	return nil
}

func (d *FilesystemDetector) GetSource() ChangeSource {
	return SourceFilesystem
}

// AddResourceType enables watching rt. Only CForge manifests live on disk.
func (d *FilesystemDetector) AddResourceType(rt ResourceType) error {
	if rt != ResourceTypeCForge {
		return fmt.Errorf("unsupported resource type: %s", rt)
	}
	d.mu.Lock()
	d.resourceTypes[rt] = true
	d.mu.Unlock()
	return nil
}

func (d *FilesystemDetector) RemoveResourceType(rt ResourceType) error {
	d.mu.Lock()
	delete(d.resourceTypes, rt)
	d.mu.Unlock()
	return nil
}
