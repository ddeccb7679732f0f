package reconciler

import (
	"context"
	"fmt"

	batchv1 "k8s.io/api/batch/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"

	"cforge/internal/buildjob"
	"cforge/internal/cluster"
	"cforge/internal/naming"
	"cforge/pkg/logging"
)

// maxRunNameAttempts bounds name regeneration after AlreadyExists.
const maxRunNameAttempts = 5

// Cloner starts one-off runs from a project's CronJob template.
type Cloner struct {
	client  cluster.Client
	metrics *Metrics

	// generateName is naming.Generate outside tests.
	generateName func(base string) string
}

// NewCloner creates a Cloner. metrics may be nil.
func NewCloner(c cluster.Client, metrics *Metrics) *Cloner {
	return &Cloner{
		client:       c,
		metrics:      metrics,
		generateName: naming.Generate,
	}
}

// CloneAsRun creates a Job from the jobTemplate of the CronJob named project.
//
// If the CronJob does not exist it returns (nil, nil): the definition was
// removed concurrently and there is nothing to run. A generated name that
// is already taken is regenerated, up to maxRunNameAttempts times.
func (c *Cloner) CloneAsRun(ctx context.Context, project string) (*batchv1.Job, error) {
	cj, err := c.client.GetDefinition(ctx, project)
	if apierrors.IsNotFound(err) {
		logging.Info("Cloner", "Definition %s no longer exists, not starting a run", project)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading definition %s: %w", project, err)
	}

	var lastErr error
	for attempt := 1; attempt <= maxRunNameAttempts; attempt++ {
		job := buildjob.NewRunFromCronJob(cj, c.generateName(project))

		err := c.client.CreateRun(ctx, job)
		if err == nil {
			logging.Info("Cloner", "Job %s created from CronJob %s", job.Name, project)
			c.metrics.RecordRunCreated()
			return job, nil
		}
		if !apierrors.IsAlreadyExists(err) {
			return nil, fmt.Errorf("creating run %s: %w", job.Name, err)
		}

		logging.Debug("Cloner", "Run name %s already taken (attempt %d/%d)", job.Name, attempt, maxRunNameAttempts)
		lastErr = err
	}

	return nil, fmt.Errorf("no free run name for %s after %d attempts: %w", project, maxRunNameAttempts, lastErr)
}
