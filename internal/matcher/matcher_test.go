package matcher

import (
	"testing"

	"github.com/livinlefevreloca/hookdeploy/internal/repomap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMap() *repomap.Map {
	return &repomap.Map{Repositories: []repomap.Repository{
		{
			Key:  "svc-entry",
			Name: "svc",
			Path: "/srv/svc",
			Branches: map[string]repomap.Branch{
				"main": {
					Name: "main",
					Actions: []repomap.ActionGroup{
						{Name: "g1", Steps: []repomap.Step{repomap.ShellStep{Command: "a"}, repomap.ShellStep{Command: "b"}}},
						{Name: "g2", Steps: []repomap.Step{repomap.ShellStep{Command: "c"}}},
					},
				},
				"empty": {Name: "empty"},
			},
		},
		{
			Key:  "api",
			Name: "api",
			Path: "/srv/api",
			Branches: map[string]repomap.Branch{
				"main": {
					Name: "main",
					Actions: []repomap.ActionGroup{
						{Name: "deploy", Steps: []repomap.Step{repomap.SyncStep{}, repomap.ShellStep{Command: "make deploy"}}},
					},
				},
			},
		},
	}}
}

func TestResolve_FlattensInGroupOrder(t *testing.T) {
	res, err := Resolve("svc", "main", "https://example.com/svc.git", testMap())
	require.NoError(t, err)

	assert.Equal(t, "svc", res.Repository)
	assert.Equal(t, "/srv/svc", res.Path)
	assert.Equal(t, "https://example.com/svc.git", res.CloneURL)
	assert.Equal(t, "main", res.Branch)
	assert.Equal(t, []repomap.Step{
		repomap.ShellStep{Command: "a"},
		repomap.ShellStep{Command: "b"},
		repomap.ShellStep{Command: "c"},
	}, res.Pipeline)
}

func TestResolve_MatchesByNameNotKey(t *testing.T) {
	_, err := Resolve("svc-entry", "main", "", testMap())
	assert.ErrorIs(t, err, ErrNoRepository)

	res, err := Resolve("api", "main", "", testMap())
	require.NoError(t, err)
	assert.Equal(t, []repomap.Step{repomap.SyncStep{}, repomap.ShellStep{Command: "make deploy"}}, res.Pipeline)
}

func TestResolve_NoRepository(t *testing.T) {
	_, err := Resolve("unknown", "main", "", testMap())
	assert.ErrorIs(t, err, ErrNoRepository)

	_, err = Resolve("svc", "main", "", nil)
	assert.ErrorIs(t, err, ErrNoRepository)
}

func TestResolve_NoBranch(t *testing.T) {
	_, err := Resolve("svc", "develop", "", testMap())
	assert.ErrorIs(t, err, ErrNoBranch)
}

func TestResolve_EmptyBranchYieldsEmptyPipeline(t *testing.T) {
	res, err := Resolve("svc", "empty", "", testMap())
	require.NoError(t, err)
	assert.NotNil(t, res.Pipeline)
	assert.Empty(t, res.Pipeline)
}

func TestResolve_PipelineIsFreshPerCall(t *testing.T) {
	m := testMap()
	first, err := Resolve("svc", "main", "", m)
	require.NoError(t, err)

	first.Pipeline[0] = repomap.ShellStep{Command: "rm -rf /"}

	second, err := Resolve("svc", "main", "", m)
	require.NoError(t, err)
	assert.Equal(t, repomap.ShellStep{Command: "a"}, second.Pipeline[0])
	assert.Equal(t, repomap.ShellStep{Command: "a"}, m.Repositories[0].Branches["main"].Actions[0].Steps[0])
}
