package repomap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==============================================================================
// Test Fixtures
// ==============================================================================

const svcYAML = `
svc:
  repo_info:
    name: svc
    path: /srv/svc
  branches:
    main:
      actions:
        update:
          commands:
            - "@sync"
        deploy:
          commands:
            - make build
            - make deploy
    staging:
      actions:
        deploy:
          commands:
            - make staging
other:
  repo_info:
    name: other-repo
    path: /srv/other
`

const svcJSONC = `{
	// deployment map for svc
	"svc": {
		"repo_info": {"name": "svc", "path": "/srv/svc"},
		"branches": {
			"main": {
				"actions": {
					"zeta":  {"commands": ["@sync"]},
					"alpha": {"commands": ["make deploy",]},
				},
			},
		},
	},
}`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// ==============================================================================
// Step Tests
// ==============================================================================

func TestParseStep(t *testing.T) {
	assert.Equal(t, SyncStep{}, ParseStep("@sync"))
	assert.Equal(t, ShellStep{Command: "make deploy"}, ParseStep("make deploy"))

	// Only the exact sentinel is special
	assert.Equal(t, ShellStep{Command: "@sync "}, ParseStep("@sync "))
	assert.Equal(t, ShellStep{Command: "echo @sync"}, ParseStep("echo @sync"))

	assert.Equal(t, SyncSentinel, SyncStep{}.String())
}

// ==============================================================================
// Parse Tests
// ==============================================================================

func TestParse_YAML(t *testing.T) {
	m, err := Parse([]byte(svcYAML), FormatYAML)
	require.NoError(t, err)
	require.Len(t, m.Repositories, 2)

	svc := m.Repositories[0]
	assert.Equal(t, "svc", svc.Key)
	assert.Equal(t, "svc", svc.Name)
	assert.Equal(t, "/srv/svc", svc.Path)
	require.Contains(t, svc.Branches, "main")
	require.Contains(t, svc.Branches, "staging")

	main := svc.Branches["main"]
	require.Len(t, main.Actions, 2)
	assert.Equal(t, "update", main.Actions[0].Name)
	assert.Equal(t, []Step{SyncStep{}}, main.Actions[0].Steps)
	assert.Equal(t, "deploy", main.Actions[1].Name)
	assert.Equal(t, []Step{
		ShellStep{Command: "make build"},
		ShellStep{Command: "make deploy"},
	}, main.Actions[1].Steps)

	other := m.Repositories[1]
	assert.Equal(t, "other", other.Key)
	assert.Equal(t, "other-repo", other.Name)
	assert.Empty(t, other.Branches)
}

func TestParse_JSONCKeepsDocumentOrder(t *testing.T) {
	m, err := Parse([]byte(svcJSONC), FormatJSON)
	require.NoError(t, err)
	require.Len(t, m.Repositories, 1)

	main := m.Repositories[0].Branches["main"]
	require.Len(t, main.Actions, 2)

	// Document order, not alphabetical
	assert.Equal(t, "zeta", main.Actions[0].Name)
	assert.Equal(t, "alpha", main.Actions[1].Name)
	assert.Equal(t, []Step{ShellStep{Command: "make deploy"}}, main.Actions[1].Steps)
}

func TestParse_Empty(t *testing.T) {
	for _, input := range []string{"", "\n", "~", "# nothing here\n"} {
		m, err := Parse([]byte(input), FormatYAML)
		require.NoError(t, err, "input %q", input)
		assert.Empty(t, m.Repositories)
	}
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{
			name: "duplicate repository name",
			input: `
a:
  repo_info: {name: svc, path: /srv/a}
b:
  repo_info: {name: svc, path: /srv/b}
`,
			wantErr: ErrDuplicateName,
		},
		{
			name:    "missing name",
			input:   "a:\n  repo_info: {path: /srv/a}\n",
			wantErr: ErrInvalid,
		},
		{
			name:    "missing path",
			input:   "a:\n  repo_info: {name: svc}\n",
			wantErr: ErrInvalid,
		},
		{
			name:    "top level sequence",
			input:   "- a\n- b\n",
			wantErr: ErrInvalid,
		},
		{
			name: "empty command",
			input: `
a:
  repo_info: {name: svc, path: /srv/a}
  branches:
    main:
      actions:
        deploy:
          commands: [""]
`,
			wantErr: ErrInvalid,
		},
		{
			name:    "malformed yaml",
			input:   "a: [unterminated\n",
			wantErr: ErrInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.input), FormatYAML)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestFormatFromPath(t *testing.T) {
	assert.Equal(t, FormatYAML, FormatFromPath("repos.yaml"))
	assert.Equal(t, FormatYAML, FormatFromPath("repos.yml"))
	assert.Equal(t, FormatJSON, FormatFromPath("repos.json"))
	assert.Equal(t, FormatJSON, FormatFromPath("/etc/hookdeploy/repos.JSONC"))
	assert.Equal(t, FormatYAML, FormatFromPath("repos"))
}

func TestParseFile(t *testing.T) {
	m, err := ParseFile(writeFile(t, "repos.jsonc", svcJSONC))
	require.NoError(t, err)
	assert.Equal(t, "svc", m.Repositories[0].Name)

	_, err = ParseFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParse_JSONStringEscapes(t *testing.T) {
	input := `{
		"a": {
			"repo_info": {"name": "sv\u0063", "path": "\/srv\/svc"},
			"branches": {
				"main": {"actions": {"deploy": {"commands": ["echo a\tb", "make \"deploy\""]}}}
			}
		}
	}`

	m, err := Parse([]byte(input), FormatJSON)
	require.NoError(t, err)
	require.Len(t, m.Repositories, 1)

	repo := m.Repositories[0]
	assert.Equal(t, "svc", repo.Name)
	assert.Equal(t, "/srv/svc", repo.Path)
	assert.Equal(t, []Step{
		ShellStep{Command: "echo a\tb"},
		ShellStep{Command: `make "deploy"`},
	}, repo.Branches["main"].Actions[0].Steps)
}

func TestParse_JSONRejects(t *testing.T) {
	tests := map[string]string{
		"top level array":   `[{"repo_info": {"name": "svc", "path": "/srv"}}]`,
		"truncated":         `{"a": {"repo_info": {"name": "svc"`,
		"trailing garbage":  `{} {}`,
		"commands not list": `{"a": {"repo_info": {"name": "svc", "path": "/srv"}, "branches": {"main": {"actions": {"x": {"commands": "make"}}}}}}`,
	}

	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(input), FormatJSON)
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestParse_JSONEmpty(t *testing.T) {
	for _, input := range []string{"", "// nothing configured yet\n", "null", "{}"} {
		m, err := Parse([]byte(input), FormatJSON)
		require.NoError(t, err, "input %q", input)
		assert.Empty(t, m.Repositories)
	}
}
