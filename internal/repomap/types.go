package repomap

import (
	"errors"
	"fmt"
)

// SyncSentinel is the reserved command that stands for "bring the working
// copy up to date" instead of a shell command
const SyncSentinel = "@sync"

// Standard errors
var (
	ErrInvalid       = errors.New("repomap: invalid repository map")
	ErrDuplicateName = errors.New("repomap: duplicate repository name")
)

// Step is one entry of an action pipeline: either SyncStep or ShellStep
type Step interface {
	// String returns the step as written in the repository map
	String() string
	isStep()
}

// SyncStep clones or pulls the target repository
type SyncStep struct{}

func (SyncStep) String() string { return SyncSentinel }
func (SyncStep) isStep()        {}

// ShellStep runs a command through the shell in the target directory
type ShellStep struct {
	Command string
}

func (s ShellStep) String() string { return s.Command }
func (ShellStep) isStep()          {}

// ParseStep resolves one command string from the repository map
func ParseStep(command string) Step {
	if command == SyncSentinel {
		return SyncStep{}
	}
	return ShellStep{Command: command}
}

// ActionGroup is a named list of steps under a branch
type ActionGroup struct {
	Name  string
	Steps []Step
}

// Branch holds the action groups of one branch, in document order
type Branch struct {
	Name    string
	Actions []ActionGroup
}

// Repository is one entry of the repository map
type Repository struct {
	Key      string
	Name     string
	Path     string
	Branches map[string]Branch
}

// Map is the loaded repository map. Entries keep document order.
// A Map handed out by a Source is shared and must not be modified.
type Map struct {
	Repositories []Repository
}

// Validate checks that every entry has a name and a path and that no two
// entries share a name
func (m *Map) Validate() error {
	seen := make(map[string]string, len(m.Repositories))

	for _, repo := range m.Repositories {
		if repo.Name == "" {
			return fmt.Errorf("%w: entry %q has no repo_info.name", ErrInvalid, repo.Key)
		}
		if repo.Path == "" {
			return fmt.Errorf("%w: entry %q has no repo_info.path", ErrInvalid, repo.Key)
		}
		if other, ok := seen[repo.Name]; ok {
			return fmt.Errorf("%w: %q is used by entries %q and %q", ErrDuplicateName, repo.Name, other, repo.Key)
		}
		seen[repo.Name] = repo.Key

		for branchName, branch := range repo.Branches {
			for _, group := range branch.Actions {
				for i, step := range group.Steps {
					if shell, ok := step.(ShellStep); ok && shell.Command == "" {
						return fmt.Errorf("%w: entry %q branch %q action %q command %d is empty",
							ErrInvalid, repo.Key, branchName, group.Name, i)
					}
				}
			}
		}
	}

	return nil
}
