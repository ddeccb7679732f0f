package reconciler

import (
	"fmt"
	"strings"

	"cforge/internal/buildjob"
	"cforge/internal/naming"
	"cforge/internal/schedule"
	cforgev1 "cforge/pkg/apis/cforge/v1"
)

// InvalidProjectError describes a declared project the engine skipped.
type InvalidProjectError struct {
	// Index is the position of the project in spec.projects.
	Index   int
	Project string
	Reason  string
}

func (e *InvalidProjectError) Error() string {
	if e.Project == "" {
		return fmt.Sprintf("project #%d: %s", e.Index, e.Reason)
	}
	return fmt.Sprintf("project %q: %s", e.Project, e.Reason)
}

// ValidateProjects splits declared projects into valid ones, in declaration
// order, and the errors for the rest. The first declaration of a name wins;
// later ones are invalid.
func ValidateProjects(projects []cforgev1.Project) ([]cforgev1.Project, []*InvalidProjectError) {
	valid := make([]cforgev1.Project, 0, len(projects))
	var invalid []*InvalidProjectError
	seen := make(map[string]bool, len(projects))

	for i, p := range projects {
		reason := validateProject(p)
		if reason == "" && seen[p.Name] {
			reason = "duplicate project name"
		}
		if reason != "" {
			invalid = append(invalid, &InvalidProjectError{Index: i, Project: p.Name, Reason: reason})
			continue
		}
		seen[p.Name] = true
		valid = append(valid, p)
	}

	return valid, invalid
}

func validateProject(p cforgev1.Project) string {
	if p.Name == "" {
		return "name is required"
	}
	if err := naming.Validate(p.Name); err != nil {
		return err.Error()
	}
	if len(p.Name) > buildjob.MaxNameLength {
		return fmt.Sprintf("name must be no more than %d characters", buildjob.MaxNameLength)
	}
	if strings.TrimSpace(p.RepoURL) == "" {
		return "repo_url is required"
	}
	if err := schedule.Validate(p.Schedule); err != nil {
		return err.Error()
	}
	return ""
}

// shadowedNames returns the names of invalid projects that do not also name
// a valid project. Definitions with these names are left alone so a broken
// entry never tears down a working definition.
func shadowedNames(valid []cforgev1.Project, invalid []*InvalidProjectError) map[string]bool {
	validNames := make(map[string]bool, len(valid))
	for _, p := range valid {
		validNames[p.Name] = true
	}

	shadowed := make(map[string]bool)
	for _, e := range invalid {
		if e.Project != "" && !validNames[e.Project] {
			shadowed[e.Project] = true
		}
	}
	return shadowed
}
