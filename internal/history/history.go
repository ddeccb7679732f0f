package history

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"cforge/pkg/logging"
)

const (
	// LogSuffix marks a build log; its stem is the revision.
	LogSuffix = ".log"

	// ArtifactSuffix marks the packaged output of a successful build.
	ArtifactSuffix = ".tar.gz"
)

var (
	// ErrProjectNotFound is returned by LookupProject for unknown projects
	// and for names that do not denote a directory directly under the root.
	ErrProjectNotFound = errors.New("project not found")

	// ErrHistoryUnavailable wraps filesystem failures other than a missing
	// root, such as permission errors.
	ErrHistoryUnavailable = errors.New("build history unavailable")
)

// Status is the outcome of a build.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// BuildRecord is one build of a project. Paths are slash-separated and
// relative to the aggregator root.
type BuildRecord struct {
	Project      string    `json:"project" yaml:"project"`
	Revision     string    `json:"revision" yaml:"revision"`
	LogPath      string    `json:"logPath" yaml:"logPath"`
	ArtifactPath string    `json:"artifactPath,omitempty" yaml:"artifactPath,omitempty"`
	Status       Status    `json:"status" yaml:"status"`
	Timestamp    time.Time `json:"timestamp" yaml:"timestamp"`
}

// ProjectSummary lists the builds of a project, most recent first.
type ProjectSummary struct {
	Name        string        `json:"name" yaml:"name"`
	Builds      []BuildRecord `json:"builds" yaml:"builds"`
	LatestBuild BuildRecord   `json:"latestBuild" yaml:"latestBuild"`
}

// Aggregator reads build history below a root directory.
type Aggregator struct {
	root string
}

// NewAggregator creates an Aggregator for root. The directory does not
// need to exist yet.
func NewAggregator(root string) *Aggregator {
	return &Aggregator{root: root}
}

// Root returns the directory the aggregator reads.
func (a *Aggregator) Root() string {
	return a.root
}

// ListProjects returns every project with at least one build, sorted by
// name. A missing root yields an empty result.
func (a *Aggregator) ListProjects(ctx context.Context) ([]ProjectSummary, error) {
	entries, err := os.ReadDir(a.root)
	if errors.Is(err, fs.ErrNotExist) {
		logging.Debug("History", "Artifact directory %s does not exist", a.root)
		return []ProjectSummary{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHistoryUnavailable, err)
	}

	projects := make([]ProjectSummary, 0, len(entries))
	for _, entry := range entries {
		if info, err := statEntry(a.root, entry); err != nil || !info.IsDir() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		summary, err := a.scanProject(entry.Name())
		if err != nil {
			return nil, err
		}
		if len(summary.Builds) == 0 {
			continue
		}
		projects = append(projects, summary)
	}

	sort.Slice(projects, func(i, j int) bool {
		return projects[i].Name < projects[j].Name
	})
	return projects, nil
}

// LookupProject returns the builds of a single project.
func (a *Aggregator) LookupProject(ctx context.Context, name string) (ProjectSummary, error) {
	if !isProjectName(name) {
		return ProjectSummary{}, fmt.Errorf("%w: %q", ErrProjectNotFound, name)
	}
	if err := ctx.Err(); err != nil {
		return ProjectSummary{}, err
	}

	info, err := os.Stat(filepath.Join(a.root, name))
	if errors.Is(err, fs.ErrNotExist) || (err == nil && !info.IsDir()) {
		return ProjectSummary{}, fmt.Errorf("%w: %q", ErrProjectNotFound, name)
	}
	if err != nil {
		return ProjectSummary{}, fmt.Errorf("%w: %w", ErrHistoryUnavailable, err)
	}

	summary, err := a.scanProject(name)
	if err != nil {
		return ProjectSummary{}, err
	}
	if len(summary.Builds) == 0 {
		return ProjectSummary{}, fmt.Errorf("%w: %q", ErrProjectNotFound, name)
	}
	return summary, nil
}

// scanProject collects the build records of one project directory.
func (a *Aggregator) scanProject(name string) (ProjectSummary, error) {
	dir := filepath.Join(a.root, name)
	summary := ProjectSummary{Name: name}

	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		// Removed while scanning.
		return summary, nil
	}
	if err != nil {
		return summary, fmt.Errorf("%w: %w", ErrHistoryUnavailable, err)
	}

	files := make(map[string]fs.FileInfo, len(entries))
	for _, entry := range entries {
		info, err := statEntry(dir, entry)
		if errors.Is(err, fs.ErrNotExist) {
			// Removed while scanning, or a dangling link.
			continue
		}
		if err != nil {
			return summary, fmt.Errorf("%w: %w", ErrHistoryUnavailable, err)
		}
		if !info.IsDir() {
			files[entry.Name()] = info
		}
	}

	for fileName, info := range files {
		if !strings.HasSuffix(fileName, LogSuffix) {
			continue
		}
		revision := strings.TrimSuffix(fileName, LogSuffix)
		if revision == "" {
			continue
		}

		record := BuildRecord{
			Project:   name,
			Revision:  revision,
			LogPath:   path.Join(name, fileName),
			Status:    StatusFailure,
			Timestamp: info.ModTime(),
		}
		if artifact := revision + ArtifactSuffix; files[artifact] != nil {
			record.ArtifactPath = path.Join(name, artifact)
			record.Status = StatusSuccess
		}
		summary.Builds = append(summary.Builds, record)
	}

	sortBuilds(summary.Builds)
	if len(summary.Builds) > 0 {
		summary.LatestBuild = summary.Builds[0]
	}
	logging.Debug("History", "Project %s has %d build(s)", name, len(summary.Builds))
	return summary, nil
}

// statEntry returns the file info of entry, following symbolic links so
// linked project directories and logs are listed like regular ones.
func statEntry(dir string, entry fs.DirEntry) (fs.FileInfo, error) {
	if entry.Type()&fs.ModeSymlink != 0 {
		return os.Stat(filepath.Join(dir, entry.Name()))
	}
	return entry.Info()
}

// sortBuilds orders records newest first; equal timestamps fall back to
// revision, descending, so the order is stable across scans.
func sortBuilds(builds []BuildRecord) {
	sort.Slice(builds, func(i, j int) bool {
		if !builds[i].Timestamp.Equal(builds[j].Timestamp) {
			return builds[i].Timestamp.After(builds[j].Timestamp)
		}
		return builds[i].Revision > builds[j].Revision
	})
}

// isProjectName rejects names that would resolve outside the root.
func isProjectName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`) && filepath.Base(name) == name
}
