package buildjob

const (
	// MaxNameLength is the longest project name usable as a CronJob name;
	// the controller appends 11 characters to CronJob names for its Jobs.
	MaxNameLength = 52

	// OwnerLabel names the CForge resource a CronJob was created for.
	OwnerLabel = "cforge.steni.us/owner"

	// ProjectLabel carries the project name on CronJobs, Jobs and their pods.
	ProjectLabel = "cforge.steni.us/project"

	// ManagedByLabel marks every object created by the controller.
	ManagedByLabel = "app.kubernetes.io/managed-by"
	ManagedByValue = "cforge"

	// InstantiateAnnotation is set on Jobs created outside the CronJob
	// schedule, matching what kubectl sets.
	InstantiateAnnotation = "cronjob.kubernetes.io/instantiate"
	InstantiateManual     = "manual"

	// ArtifactVolumeName is the pod volume holding build output.
	ArtifactVolumeName = "artifacts"

	// ArtifactDirEnv tells the builder where to write logs and tarballs.
	ArtifactDirEnv = "ARTIFACT_DIR"
)

func definitionLabels(owner, project string) map[string]string {
	labels := map[string]string{
		ProjectLabel:   project,
		ManagedByLabel: ManagedByValue,
	}
	if owner != "" {
		labels[OwnerLabel] = owner
	}
	return labels
}
