// Package matcher resolves an inbound repository and branch against the
// repository map.
package matcher

import (
	"errors"
	"fmt"

	"github.com/livinlefevreloca/hookdeploy/internal/repomap"
)

// Standard errors
var (
	ErrNoRepository = errors.New("matcher: no repository entry matches")
	ErrNoBranch     = errors.New("matcher: branch not configured")
)

// Resolution is everything the executor needs for one job
type Resolution struct {
	Repository string
	Path       string
	CloneURL   string
	Branch     string
	Pipeline   []repomap.Step
}

// Resolve finds the entry named repoName and flattens the action groups of
// branch into a pipeline. The pipeline is freshly allocated for every call.
func Resolve(repoName, branch, cloneURL string, m *repomap.Map) (*Resolution, error) {
	repo, ok := findRepository(repoName, m)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoRepository, repoName)
	}

	b, ok := repo.Branches[branch]
	if !ok {
		return nil, fmt.Errorf("%w: %q has no branch %q", ErrNoBranch, repoName, branch)
	}

	return &Resolution{
		Repository: repo.Name,
		Path:       repo.Path,
		CloneURL:   cloneURL,
		Branch:     branch,
		Pipeline:   Flatten(b),
	}, nil
}

// Flatten concatenates the steps of every action group in order
func Flatten(b repomap.Branch) []repomap.Step {
	n := 0
	for _, group := range b.Actions {
		n += len(group.Steps)
	}

	pipeline := make([]repomap.Step, 0, n)
	for _, group := range b.Actions {
		pipeline = append(pipeline, group.Steps...)
	}
	return pipeline
}

func findRepository(name string, m *repomap.Map) (repomap.Repository, bool) {
	if m == nil {
		return repomap.Repository{}, false
	}
	for _, repo := range m.Repositories {
		if repo.Name == name {
			return repo, true
		}
	}
	return repomap.Repository{}, false
}
