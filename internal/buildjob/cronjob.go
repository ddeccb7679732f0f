package buildjob

import (
	"errors"
	"fmt"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/utils/ptr"

	"cforge/internal/config"
	"cforge/internal/schedule"
	cforgev1 "cforge/pkg/apis/cforge/v1"
)

// ErrMalformedDefinition is returned when a CronJob does not have the shape
// NewCronJob produces.
var ErrMalformedDefinition = errors.New("malformed build definition")

// Definition is the observed state of one project's CronJob.
type Definition struct {
	Name string

	// Schedule is the CronJob schedule as stored, already effective.
	Schedule  string
	RepoURL   string
	Suspended bool

	// Owner is the CForge named by OwnerLabel; empty for unlabelled CronJobs.
	Owner string

	// ResourceVersion is used as a delete precondition.
	ResourceVersion string
	UID             string
}

// Template carries everything NewCronJob needs besides the project itself.
type Template struct {
	Namespace string
	Builder   config.BuilderConfig
}

// TemplateFromConfig extracts the template settings from the configuration.
func TemplateFromConfig(cfg config.CForgeConfig) Template {
	return Template{Namespace: cfg.Namespace, Builder: cfg.Builder}
}

// NewCronJob renders the CronJob for a project owned by the named CForge.
//
// A project without a schedule gets the never-firing sentinel schedule and
// is created suspended, so it only ever builds through one-off runs.
func (t Template) NewCronJob(owner string, project cforgev1.Project) *batchv1.CronJob {
	labels := definitionLabels(owner, project.Name)

	return &batchv1.CronJob{
		TypeMeta: metav1.TypeMeta{
			APIVersion: batchv1.SchemeGroupVersion.String(),
			Kind:       "CronJob",
		},
		ObjectMeta: metav1.ObjectMeta{
			Name:      project.Name,
			Namespace: t.Namespace,
			Labels:    labels,
		},
		Spec: batchv1.CronJobSpec{
			Schedule:          schedule.Normalize(project.Schedule),
			Suspend:           ptr.To(schedule.IsSuspended(project.Schedule)),
			ConcurrencyPolicy: batchv1.AllowConcurrent,
			JobTemplate: batchv1.JobTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{
					Labels: definitionLabels("", project.Name),
				},
				Spec: t.jobSpec(project),
			},
		},
	}
}

func (t Template) jobSpec(project cforgev1.Project) batchv1.JobSpec {
	spec := batchv1.JobSpec{
		Template: corev1.PodTemplateSpec{
			ObjectMeta: metav1.ObjectMeta{
				Labels: definitionLabels("", project.Name),
			},
			Spec: corev1.PodSpec{
				RestartPolicy: corev1.RestartPolicyNever,
				Containers: []corev1.Container{
					{
						Name:  project.Name,
						Image: t.Builder.Image,
						Args:  []string{project.Name, project.RepoURL},
						Env: []corev1.EnvVar{
							{Name: ArtifactDirEnv, Value: t.Builder.MountPath},
						},
						VolumeMounts: []corev1.VolumeMount{
							{Name: ArtifactVolumeName, MountPath: t.Builder.MountPath},
						},
					},
				},
				Volumes: []corev1.Volume{
					{
						Name: ArtifactVolumeName,
						VolumeSource: corev1.VolumeSource{
							PersistentVolumeClaim: &corev1.PersistentVolumeClaimVolumeSource{
								ClaimName: t.Builder.ClaimName,
							},
						},
					},
				},
			},
		},
	}
	if t.Builder.TTLSecondsAfterFinished > 0 {
		spec.TTLSecondsAfterFinished = ptr.To(t.Builder.TTLSecondsAfterFinished)
	}
	return spec
}

// DefinitionFromCronJob extracts the comparable state of a live CronJob.
// The repository URL is the second argument of the first container.
func DefinitionFromCronJob(cj *batchv1.CronJob) (Definition, error) {
	def := Definition{
		Name:            cj.Name,
		Schedule:        cj.Spec.Schedule,
		Suspended:       ptr.Deref(cj.Spec.Suspend, false),
		Owner:           cj.Labels[OwnerLabel],
		ResourceVersion: cj.ResourceVersion,
		UID:             string(cj.UID),
	}

	containers := cj.Spec.JobTemplate.Spec.Template.Spec.Containers
	if len(containers) == 0 {
		return def, fmt.Errorf("%w: cronjob %s has no containers", ErrMalformedDefinition, cj.Name)
	}
	if len(containers[0].Args) < 2 {
		return def, fmt.Errorf("%w: cronjob %s container %s has %d args, want 2",
			ErrMalformedDefinition, cj.Name, containers[0].Name, len(containers[0].Args))
	}
	def.RepoURL = containers[0].Args[1]
	return def, nil
}
