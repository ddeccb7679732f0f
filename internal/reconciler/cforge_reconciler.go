package reconciler

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/util/retry"

	"cforge/internal/buildjob"
	"cforge/internal/cluster"
	cforgev1 "cforge/pkg/apis/cforge/v1"
	"cforge/pkg/logging"
)

const subsystem = "CForgeReconciler"

// CForgeReconciler converges the build CronJobs in the cluster with the
// projects declared by CForge resources.
//
// Create and Update requests run the same pass: list the definitions owned
// by the resource, diff them against the declared projects and apply the
// result. Every pass starts from a fresh listing, so replaying a request is
// harmless. Delete requests remove every definition the resource owns.
type CForgeReconciler struct {
	client   cluster.Client
	template buildjob.Template
	cloner   *Cloner
	metrics  *Metrics

	// conflictBackoff paces re-running a pass after a Conflict.
	conflictBackoff wait.Backoff
}

// Option configures a CForgeReconciler.
type Option func(*CForgeReconciler)

// WithMetrics sets the metrics sink.
func WithMetrics(m *Metrics) Option {
	return func(r *CForgeReconciler) {
		r.metrics = m
	}
}

// WithConflictBackoff overrides retry.DefaultRetry for conflict retries.
func WithConflictBackoff(b wait.Backoff) Option {
	return func(r *CForgeReconciler) {
		r.conflictBackoff = b
	}
}

// WithCloner overrides the cloner used for runs.
func WithCloner(c *Cloner) Option {
	return func(r *CForgeReconciler) {
		r.cloner = c
	}
}

// NewCForgeReconciler creates a reconciler writing through c.
func NewCForgeReconciler(c cluster.Client, tmpl buildjob.Template, opts ...Option) *CForgeReconciler {
	r := &CForgeReconciler{
		client:          c,
		template:        tmpl,
		conflictBackoff: retry.DefaultRetry,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.cloner == nil {
		r.cloner = NewCloner(c, r.metrics)
	}
	return r
}

// GetResourceType returns ResourceTypeCForge.
func (r *CForgeReconciler) GetResourceType() ResourceType {
	return ResourceTypeCForge
}

// pass carries the state of one reconcile invocation.
type pass struct {
	id     string
	cf     *cforgev1.CForge
	owner  string
	events bool

	// runs maps project name to the Job started for it in this pass.
	runs map[string]string

	// blocked lists projects whose definition belongs to another CForge.
	blocked map[string]string
}

func (p *pass) logPrefix() string {
	return fmt.Sprintf("[%s %s]", p.id, p.owner)
}

// Reconcile implements Reconciler.
func (r *CForgeReconciler) Reconcile(ctx context.Context, req ReconcileRequest) ReconcileResult {
	if req.Object == nil {
		logging.Warn(subsystem, "Request for %s/%s carries no CForge body, ignoring", req.Namespace, req.Name)
		return ReconcileResult{}
	}

	p := &pass{
		id:      uuid.NewString()[:8],
		cf:      req.Object,
		owner:   req.Object.Name,
		events:  req.Source == SourceKubernetes,
		runs:    make(map[string]string),
		blocked: make(map[string]string),
	}

	var err error
	switch req.Operation {
	case OperationDelete:
		logging.Info(subsystem, "%s Removing definitions of deleted CForge", p.logPrefix())
		err = r.reconcileDelete(ctx, p)
	default:
		logging.Info(subsystem, "%s Reconciling %d declared project(s) (%s, attempt %d)",
			p.logPrefix(), len(p.cf.Spec.Projects), req.Operation, req.Attempt)
		err = r.reconcileProjects(ctx, p)
	}

	if err != nil {
		return ReconcileResult{Requeue: errIsRetryable(err), Error: err}
	}
	return ReconcileResult{}
}

// reconcileProjects validates the declared projects, converges definitions
// and writes status.
func (r *CForgeReconciler) reconcileProjects(ctx context.Context, p *pass) error {
	valid, invalid := ValidateProjects(p.cf.Spec.Projects)
	for _, e := range invalid {
		logging.Warn(subsystem, "%s Skipping invalid project: %v", p.logPrefix(), e)
		r.metrics.RecordInvalidProject()
		r.recordEvent(ctx, p, corev1.EventTypeWarning, "InvalidProject", e.Error())
	}
	shadowed := shadowedNames(valid, invalid)

	err := retry.OnError(r.conflictBackoff, apierrors.IsConflict, func() error {
		return r.sync(ctx, p, valid, shadowed)
	})
	if err != nil {
		logging.Error(subsystem, err, "%s Pass failed", p.logPrefix())
	}

	r.updateStatus(ctx, p, valid, invalid, err)
	return err
}

// sync is one list, diff, apply round. A Conflict aborts it so the caller
// can start over from a fresh listing; other failures are collected until
// every independent action has been attempted.
func (r *CForgeReconciler) sync(ctx context.Context, p *pass, valid []cforgev1.Project, shadowed map[string]bool) error {
	items, err := r.client.ListDefinitions(ctx, p.owner)
	if err != nil {
		return fmt.Errorf("listing definitions of %s: %w", p.owner, err)
	}

	observed := make([]buildjob.Definition, 0, len(items))
	for i := range items {
		def, err := buildjob.DefinitionFromCronJob(&items[i])
		if err != nil {
			// Still diffed: a declared name is replaced, an orphan deleted.
			logging.Warn(subsystem, "%s %v", p.logPrefix(), err)
		}
		if shadowed[def.Name] {
			logging.Debug(subsystem, "%s Leaving definition %s alone, its project entry is invalid", p.logPrefix(), def.Name)
			continue
		}
		observed = append(observed, def)
	}

	changes := Diff(valid, observed)
	if changes.IsEmpty() {
		logging.Debug(subsystem, "%s All %d definition(s) up to date", p.logPrefix(), len(changes.Unchanged))
		return nil
	}
	logging.Info(subsystem, "%s Applying changes: %d create, %d replace, %d delete, %d unchanged", p.logPrefix(),
		len(changes.ToCreate), len(changes.ToReplace), len(changes.ToDelete), len(changes.Unchanged))

	var errs []error
	collect := func(err error) error {
		if err == nil {
			return nil
		}
		if apierrors.IsConflict(err) {
			return err
		}
		errs = append(errs, err)
		return nil
	}

	for _, project := range changes.ToCreate {
		if err := collect(r.ensureDefinition(ctx, p, project)); err != nil {
			return err
		}
	}
	for _, rep := range changes.ToReplace {
		if err := collect(r.replaceDefinition(ctx, p, rep.Project, rep.Observed.ResourceVersion)); err != nil {
			return err
		}
	}
	for _, def := range changes.ToDelete {
		if err := collect(r.deleteDefinition(ctx, p, def.Name, def.ResourceVersion)); err != nil {
			return err
		}
	}

	return utilerrors.NewAggregate(errs)
}

// ensureDefinition creates the definition of a project and starts its first
// run. An existing definition of the same name is compared instead: left
// alone if it matches, replaced if it drifted or carries no owner, and
// skipped if another CForge owns it.
func (r *CForgeReconciler) ensureDefinition(ctx context.Context, p *pass, project cforgev1.Project) error {
	err := r.client.CreateDefinition(ctx, r.template.NewCronJob(p.owner, project))
	if err == nil {
		logging.Info(subsystem, "%s CronJob %s created", p.logPrefix(), project.Name)
		r.metrics.RecordDefinitionAction(ActionCreate)
		r.startRun(ctx, p, project.Name)
		return nil
	}
	if !apierrors.IsAlreadyExists(err) {
		return fmt.Errorf("creating definition %s: %w", project.Name, err)
	}

	existing, err := r.client.GetDefinition(ctx, project.Name)
	if apierrors.IsNotFound(err) {
		return raceConflict(project.Name, "deleted after create reported it as existing")
	}
	if err != nil {
		return fmt.Errorf("reading existing definition %s: %w", project.Name, err)
	}
	def, malformed := buildjob.DefinitionFromCronJob(existing)

	switch {
	case def.Owner != "" && def.Owner != p.owner:
		logging.Warn(subsystem, "%s CronJob %s belongs to CForge %s, skipping project", p.logPrefix(), project.Name, def.Owner)
		p.blocked[project.Name] = def.Owner
		r.metrics.RecordDefinitionAction(ActionSkip)
		r.recordEvent(ctx, p, corev1.EventTypeWarning, "DefinitionConflict",
			fmt.Sprintf("CronJob %s is owned by CForge %s", project.Name, def.Owner))
		return nil
	case def.Owner == p.owner && malformed == nil && !hasDrifted(project, def):
		logging.Debug(subsystem, "%s CronJob %s already up to date", p.logPrefix(), project.Name)
		return nil
	}

	return r.replaceDefinition(ctx, p, project, def.ResourceVersion)
}

// replaceDefinition deletes the stale definition and creates the declared
// one, strictly in that order, then starts a run. If the create fails the
// definition stays absent; the next pass classifies it as new.
func (r *CForgeReconciler) replaceDefinition(ctx context.Context, p *pass, project cforgev1.Project, precondition string) error {
	err := r.client.DeleteDefinition(ctx, project.Name, precondition, metav1.DeletePropagationBackground)
	if err := cluster.IgnoreNotFound(err); err != nil {
		return fmt.Errorf("deleting stale definition %s: %w", project.Name, err)
	}

	err = r.client.CreateDefinition(ctx, r.template.NewCronJob(p.owner, project))
	if apierrors.IsAlreadyExists(err) {
		return raceConflict(project.Name, "recreated by another writer during replacement")
	}
	if err != nil {
		return fmt.Errorf("recreating definition %s: %w", project.Name, err)
	}

	logging.Info(subsystem, "%s CronJob %s replaced", p.logPrefix(), project.Name)
	r.metrics.RecordDefinitionAction(ActionReplace)
	r.recordEvent(ctx, p, corev1.EventTypeNormal, "DefinitionReplaced",
		fmt.Sprintf("CronJob %s recreated with the declared repository and schedule", project.Name))
	r.startRun(ctx, p, project.Name)
	return nil
}

// raceConflict reports that another writer changed definition name while a
// pass was acting on it. The pass restarts from a fresh listing, which
// compares whatever is there now with the declared project.
func raceConflict(name, what string) error {
	return apierrors.NewConflict(batchv1.Resource("cronjobs"), name, errors.New(what))
}

func (r *CForgeReconciler) deleteDefinition(ctx context.Context, p *pass, name, precondition string) error {
	err := r.client.DeleteDefinition(ctx, name, precondition, metav1.DeletePropagationForeground)
	if apierrors.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("deleting definition %s: %w", name, err)
	}

	logging.Info(subsystem, "%s CronJob %s deleted", p.logPrefix(), name)
	r.metrics.RecordDefinitionAction(ActionDelete)
	return nil
}

// startRun clones a one-off run. A failed run does not fail the pass: the
// definition is in place and the project can be rebuilt on demand.
func (r *CForgeReconciler) startRun(ctx context.Context, p *pass, project string) {
	job, err := r.cloner.CloneAsRun(ctx, project)
	if err != nil {
		logging.Error(subsystem, err, "%s Could not start run for %s", p.logPrefix(), project)
		r.metrics.RecordRunFailure()
		r.recordEvent(ctx, p, corev1.EventTypeWarning, "RunFailed", SanitizeErrorMessage(err.Error()))
		return
	}
	if job == nil {
		return
	}

	p.runs[project] = job.Name
	r.recordEvent(ctx, p, corev1.EventTypeNormal, "RunCreated", fmt.Sprintf("Job %s started for %s", job.Name, project))
}

// reconcileDelete removes the definitions of a deleted CForge: everything
// labelled as owned by it plus unlabelled CronJobs named after its declared
// projects.
func (r *CForgeReconciler) reconcileDelete(ctx context.Context, p *pass) error {
	return retry.OnError(r.conflictBackoff, apierrors.IsConflict, func() error {
		targets, err := r.deleteTargets(ctx, p)
		if err != nil {
			return err
		}

		names := make([]string, 0, len(targets))
		for name := range targets {
			names = append(names, name)
		}
		sort.Strings(names)

		var errs []error
		for _, name := range names {
			err := r.deleteDefinition(ctx, p, name, targets[name])
			if apierrors.IsConflict(err) {
				return err
			}
			if err != nil {
				errs = append(errs, err)
			}
		}
		return utilerrors.NewAggregate(errs)
	})
}

// deleteTargets maps definition names to their delete precondition.
func (r *CForgeReconciler) deleteTargets(ctx context.Context, p *pass) (map[string]string, error) {
	items, err := r.client.ListDefinitions(ctx, p.owner)
	if err != nil {
		return nil, fmt.Errorf("listing definitions of %s: %w", p.owner, err)
	}

	targets := make(map[string]string, len(items))
	for _, cj := range items {
		targets[cj.Name] = cj.ResourceVersion
	}

	var errs []error
	for _, project := range p.cf.Spec.Projects {
		if project.Name == "" {
			continue
		}
		if _, ok := targets[project.Name]; ok {
			continue
		}

		cj, err := r.client.GetDefinition(ctx, project.Name)
		if apierrors.IsNotFound(err) {
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("reading definition %s: %w", project.Name, err))
			continue
		}
		if owner := cj.Labels[buildjob.OwnerLabel]; owner != "" && owner != p.owner {
			logging.Warn(subsystem, "%s CronJob %s belongs to CForge %s, not deleting", p.logPrefix(), project.Name, owner)
			continue
		}
		targets[project.Name] = cj.ResourceVersion
	}

	if len(errs) > 0 {
		return nil, utilerrors.NewAggregate(errs)
	}
	return targets, nil
}

func (r *CForgeReconciler) recordEvent(ctx context.Context, p *pass, eventType, reason, message string) {
	if !p.events {
		return
	}
	if err := r.client.RecordEvent(ctx, p.cf, eventType, reason, message); err != nil {
		logging.Debug(subsystem, "%s Failed to record %s event: %v", p.logPrefix(), reason, err)
	}
}

// errIsRetryable reports whether a pass error should be retried by the
// manager.
func errIsRetryable(err error) bool {
	var agg utilerrors.Aggregate
	if errors.As(err, &agg) {
		for _, e := range agg.Errors() {
			if cluster.IsRetryable(e) {
				return true
			}
		}
		return false
	}
	return cluster.IsRetryable(err)
}
