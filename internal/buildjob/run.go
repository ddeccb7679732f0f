package buildjob

import (
	batchv1 "k8s.io/api/batch/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/utils/ptr"
)

// NewRunFromCronJob builds a Job named name from the CronJob's jobTemplate.
//
// The Job gets a controller reference to the CronJob so it is garbage
// collected together with its definition.
func NewRunFromCronJob(cj *batchv1.CronJob, name string) *batchv1.Job {
	annotations := map[string]string{InstantiateAnnotation: InstantiateManual}
	for k, v := range cj.Spec.JobTemplate.Annotations {
		annotations[k] = v
	}

	labels := make(map[string]string, len(cj.Spec.JobTemplate.Labels))
	for k, v := range cj.Spec.JobTemplate.Labels {
		labels[k] = v
	}

	return &batchv1.Job{
		TypeMeta: metav1.TypeMeta{
			APIVersion: batchv1.SchemeGroupVersion.String(),
			Kind:       "Job",
		},
		ObjectMeta: metav1.ObjectMeta{
			Name:        name,
			Namespace:   cj.Namespace,
			Labels:      labels,
			Annotations: annotations,
			OwnerReferences: []metav1.OwnerReference{
				{
					APIVersion:         batchv1.SchemeGroupVersion.String(),
					Kind:               "CronJob",
					Name:               cj.Name,
					UID:                cj.UID,
					Controller:         ptr.To(true),
					BlockOwnerDeletion: ptr.To(true),
				},
			},
		},
		Spec: *cj.Spec.JobTemplate.Spec.DeepCopy(),
	}
}
