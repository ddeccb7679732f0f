package v1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// Project declares a single repository to build.
type Project struct {
	// Name identifies the project. It doubles as the CronJob name, so it must
	// be a valid DNS-1123 label.
	// +kubebuilder:validation:Required
	// +kubebuilder:validation:Pattern="^[a-z0-9]([-a-z0-9]*[a-z0-9])?$"
	// +kubebuilder:validation:MaxLength=52
	Name string `json:"name" yaml:"name"`

	// RepoURL is the source repository handed to the builder image.
	// +kubebuilder:validation:Required
	// +kubebuilder:validation:MinLength=1
	RepoURL string `json:"repo_url" yaml:"repo_url"`

	// Schedule is a standard cron expression. Projects without a schedule
	// are only built when declared, changed, or triggered manually.
	Schedule string `json:"schedule,omitempty" yaml:"schedule,omitempty"`
}

// CForgeSpec defines the desired state of CForge
type CForgeSpec struct {
	// Projects is the list of projects to keep scheduled.
	Projects []Project `json:"projects,omitempty" yaml:"projects,omitempty"`
}

// ProjectStatus reports the definition that was reconciled for a project.
type ProjectStatus struct {
	Name string `json:"name" yaml:"name"`

	// Schedule is the effective schedule of the CronJob.
	Schedule string `json:"schedule" yaml:"schedule"`

	Suspended bool `json:"suspended,omitempty" yaml:"suspended,omitempty"`

	// LastRun is the name of the last one-off Job started by the controller.
	LastRun string `json:"lastRun,omitempty" yaml:"lastRun,omitempty"`
}

// CForgeStatus defines the observed state of CForge
type CForgeStatus struct {
	// ObservedGeneration is the generation last handled by the controller.
	ObservedGeneration int64 `json:"observedGeneration,omitempty" yaml:"observedGeneration,omitempty"`

	// Projects lists the projects with a reconciled CronJob.
	Projects []ProjectStatus `json:"projects,omitempty" yaml:"projects,omitempty"`

	// InvalidProjects holds one message per skipped project entry.
	InvalidProjects []string `json:"invalidProjects,omitempty" yaml:"invalidProjects,omitempty"`

	// Conditions represent the latest available observations of the resource's state.
	Conditions []metav1.Condition `json:"conditions,omitempty" yaml:"conditions,omitempty"`
}

//+kubebuilder:object:root=true
//+kubebuilder:subresource:status
//+kubebuilder:resource:path=cforge,singular=cforge
//+kubebuilder:printcolumn:name="Projects",type="integer",JSONPath=".status.projects[*].name"
//+kubebuilder:printcolumn:name="Age",type="date",JSONPath=".metadata.creationTimestamp"

// CForge is the Schema for the cforge API
type CForge struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   CForgeSpec   `json:"spec,omitempty"`
	Status CForgeStatus `json:"status,omitempty"`
}

//+kubebuilder:object:root=true

// CForgeList contains a list of CForge
type CForgeList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []CForge `json:"items"`
}

// ProjectNames returns the declared project names in declaration order.
func (c *CForge) ProjectNames() []string {
	names := make([]string, 0, len(c.Spec.Projects))
	for _, p := range c.Spec.Projects {
		names = append(names, p.Name)
	}
	return names
}

func init() {
	SchemeBuilder.Register(&CForge{}, &CForgeList{})
}
