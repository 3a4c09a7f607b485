package repomap

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Format identifies the encoding of a repository map file
type Format int

const (
	FormatYAML Format = iota
	FormatJSON
)

// FormatFromPath picks the format from the file extension. Anything that
// is not .json or .jsonc is treated as YAML.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		return FormatJSON
	default:
		return FormatYAML
	}
}

// ParseFile reads and parses a repository map file
func ParseFile(path string) (*Map, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading repository map %s: %w", path, err)
	}

	m, err := Parse(data, FormatFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Parse decodes and validates a repository map. JSON input may carry
// comments and trailing commas.
func Parse(data []byte, format Format) (*Map, error) {
	var doc *yaml.Node
	var err error
	if format == FormatJSON {
		doc, err = jsonDocument(jsonc.ToJSON(data))
	} else {
		doc = &yaml.Node{}
		err = yaml.Unmarshal(data, doc)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	m := &Map{Repositories: make([]Repository, 0)}

	// Empty document
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return m, nil
	}

	root := doc.Content[0]
	if root.Kind == yaml.ScalarNode && root.Tag == "!!null" {
		return m, nil
	}
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: line %d: top level must be a mapping", ErrInvalid, root.Line)
	}

	for i := 0; i+1 < len(root.Content); i += 2 {
		repo, err := decodeRepository(root.Content[i].Value, root.Content[i+1])
		if err != nil {
			return nil, err
		}
		m.Repositories = append(m.Repositories, repo)
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

type rawRepository struct {
	RepoInfo struct {
		Name string `yaml:"name"`
		Path string `yaml:"path"`
	} `yaml:"repo_info"`
	Branches yaml.Node `yaml:"branches"`
}

type rawBranch struct {
	Actions yaml.Node `yaml:"actions"`
}

type rawActionGroup struct {
	Commands []string `yaml:"commands"`
}

func decodeRepository(key string, node *yaml.Node) (Repository, error) {
	var raw rawRepository
	if err := node.Decode(&raw); err != nil {
		return Repository{}, fmt.Errorf("%w: entry %q: %v", ErrInvalid, key, err)
	}

	repo := Repository{
		Key:      key,
		Name:     raw.RepoInfo.Name,
		Path:     raw.RepoInfo.Path,
		Branches: make(map[string]Branch),
	}

	branches, err := mappingPairs(&raw.Branches)
	if err != nil {
		return Repository{}, fmt.Errorf("%w: entry %q branches: %v", ErrInvalid, key, err)
	}

	for _, pair := range branches {
		branch, err := decodeBranch(pair.key, pair.value)
		if err != nil {
			return Repository{}, fmt.Errorf("%w: entry %q branch %q: %v", ErrInvalid, key, pair.key, err)
		}
		repo.Branches[pair.key] = branch
	}

	return repo, nil
}

func decodeBranch(name string, node *yaml.Node) (Branch, error) {
	var raw rawBranch
	if err := node.Decode(&raw); err != nil {
		return Branch{}, err
	}

	groups, err := mappingPairs(&raw.Actions)
	if err != nil {
		return Branch{}, fmt.Errorf("actions: %v", err)
	}

	branch := Branch{Name: name, Actions: make([]ActionGroup, 0, len(groups))}
	for _, pair := range groups {
		var rawGroup rawActionGroup
		if err := pair.value.Decode(&rawGroup); err != nil {
			return Branch{}, fmt.Errorf("action %q: %v", pair.key, err)
		}

		group := ActionGroup{Name: pair.key, Steps: make([]Step, 0, len(rawGroup.Commands))}
		for _, command := range rawGroup.Commands {
			group.Steps = append(group.Steps, ParseStep(command))
		}
		branch.Actions = append(branch.Actions, group)
	}

	return branch, nil
}

type nodePair struct {
	key   string
	value *yaml.Node
}

// mappingPairs returns the key/value pairs of a mapping node in document
// order. A missing or null node yields no pairs.
func mappingPairs(node *yaml.Node) ([]nodePair, error) {
	if node.Kind == 0 || (node.Kind == yaml.ScalarNode && node.Tag == "!!null") {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: expected a mapping", node.Line)
	}

	pairs := make([]nodePair, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		pairs = append(pairs, nodePair{key: node.Content[i].Value, value: node.Content[i+1]})
	}
	return pairs, nil
}
