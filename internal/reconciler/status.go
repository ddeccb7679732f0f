package reconciler

import (
	"context"
	"fmt"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/util/retry"

	"cforge/internal/schedule"
	cforgev1 "cforge/pkg/apis/cforge/v1"
	"cforge/pkg/logging"
)

const (
	// ConditionReady is True when the last pass converged every valid project.
	ConditionReady = "Ready"

	ReasonReconciled      = "Reconciled"
	ReasonReconcileFailed = "ReconcileFailed"
)

// buildStatus renders the status for a pass over cf.
func buildStatus(p *pass, valid []cforgev1.Project, invalid []*InvalidProjectError, passErr error) cforgev1.CForgeStatus {
	previousRuns := make(map[string]string, len(p.cf.Status.Projects))
	for _, ps := range p.cf.Status.Projects {
		previousRuns[ps.Name] = ps.LastRun
	}

	status := *p.cf.Status.DeepCopy()
	status.ObservedGeneration = p.cf.Generation

	status.Projects = make([]cforgev1.ProjectStatus, 0, len(valid))
	for _, project := range valid {
		if _, blocked := p.blocked[project.Name]; blocked {
			continue
		}
		lastRun, ok := p.runs[project.Name]
		if !ok {
			lastRun = previousRuns[project.Name]
		}
		status.Projects = append(status.Projects, cforgev1.ProjectStatus{
			Name:      project.Name,
			Schedule:  schedule.Normalize(project.Schedule),
			Suspended: schedule.IsSuspended(project.Schedule),
			LastRun:   lastRun,
		})
	}

	status.InvalidProjects = nil
	for _, e := range invalid {
		status.InvalidProjects = append(status.InvalidProjects, e.Error())
	}
	for _, project := range valid {
		if owner, blocked := p.blocked[project.Name]; blocked {
			status.InvalidProjects = append(status.InvalidProjects,
				fmt.Sprintf("project %q: definition is owned by CForge %s", project.Name, owner))
		}
	}

	cond := metav1.Condition{
		Type:               ConditionReady,
		Status:             metav1.ConditionTrue,
		ObservedGeneration: p.cf.Generation,
		Reason:             ReasonReconciled,
		Message:            fmt.Sprintf("%d project(s) reconciled", len(status.Projects)),
	}
	if n := len(status.InvalidProjects); n > 0 {
		cond.Message += fmt.Sprintf(", %d skipped", n)
	}
	if passErr != nil {
		cond.Status = metav1.ConditionFalse
		cond.Reason = ReasonReconcileFailed
		cond.Message = SanitizeErrorMessage(passErr.Error())
	}
	meta.SetStatusCondition(&status.Conditions, cond)

	return status
}

// updateStatus writes the pass outcome to the CForge status subresource.
// Failures are logged and counted, never returned: status is informational.
func (r *CForgeReconciler) updateStatus(ctx context.Context, p *pass, valid []cforgev1.Project, invalid []*InvalidProjectError, passErr error) {
	if !p.events {
		return
	}

	status := buildStatus(p, valid, invalid, passErr)

	target := p.cf.DeepCopy()
	err := retry.RetryOnConflict(retry.DefaultBackoff, func() error {
		target.Status = status
		err := r.client.UpdateCForgeStatus(ctx, target)
		if !apierrors.IsConflict(err) {
			return err
		}

		latest, getErr := r.client.GetCForge(ctx, p.cf.Namespace, p.cf.Name)
		if getErr != nil {
			return getErr
		}
		if latest.Generation != p.cf.Generation {
			// A newer spec is on its way through the queue; its pass
			// writes the status.
			return nil
		}
		target = latest
		return err
	})
	if err != nil {
		r.metrics.RecordStatusWriteFailure()
		logging.Warn(subsystem, "%s Failed to update status: %v", p.logPrefix(), err)
	}
}
