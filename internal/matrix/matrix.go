// Package matrix parses declarative build matrices (ZMK build.yaml) and
// resolves every target into the west invocation that builds it, the
// directory its output lands in, and the copy step that renames the
// toolchain's generic output into the target's artifact name.
package matrix

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Norgate-AV/kbfw/internal/fsio"
)

// DefaultFileName is the conventional build matrix file in a config repository.
const DefaultFileName = "build.yaml"

// Target is one board/shield combination to build.
type Target struct {
	Board        string   `yaml:"board"`
	Shield       string   `yaml:"shield,omitempty"`
	ArtifactName string   `yaml:"artifact-name,omitempty"`
	Snippet      string   `yaml:"snippet,omitempty"`
	ExtraFlags   []string `yaml:"cmake-args,omitempty"`
}

// Name returns the artifact name, deriving "<shield>-<board>-fw" when unset.
// Multiple shields and HWMv2 board qualifiers are flattened with dashes and
// underscores so the result is usable as a file name.
func (t Target) Name() string {
	if t.ArtifactName != "" {
		return t.ArtifactName
	}

	board := strings.ReplaceAll(t.Board, "/", "_")
	if t.Shield == "" {
		return board + "-fw"
	}

	return strings.Join(strings.Fields(t.Shield), "-") + "-" + board + "-fw"
}

// BuildMatrix is the ordered list of targets to build.
type BuildMatrix struct {
	Targets []Target
}

// stringList accepts either a scalar or a sequence of scalars.
type stringList []string

func (s *stringList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		if value.Value != "" {
			*s = []string{value.Value}
		}

		return nil
	case yaml.SequenceNode:
		var items []string
		if err := value.Decode(&items); err != nil {
			return err
		}

		*s = items
		return nil
	}

	return fmt.Errorf("line %d: expected string or list", value.Line)
}

// flagList accepts a whitespace separated string or a sequence of flags.
type flagList []string

func (f *flagList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		*f = strings.Fields(value.Value)
		return nil
	case yaml.SequenceNode:
		var items []string
		if err := value.Decode(&items); err != nil {
			return err
		}

		*f = items
		return nil
	}

	return fmt.Errorf("line %d: expected cmake-args string or list", value.Line)
}

type rawTarget struct {
	Board        string   `yaml:"board"`
	Shield       string   `yaml:"shield"`
	ArtifactName string   `yaml:"artifact-name"`
	Snippet      string   `yaml:"snippet"`
	CMakeArgs    flagList `yaml:"cmake-args"`
}

type rawMatrix struct {
	Board   stringList  `yaml:"board"`
	Shield  stringList  `yaml:"shield"`
	Include []rawTarget `yaml:"include"`
}

// Parse decodes a build.yaml document. Top-level board and shield lists
// expand as a cartesian product and come before the include entries.
func Parse(data []byte) (*BuildMatrix, error) {
	var raw rawMatrix
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse build matrix: %w", err)
	}

	m := &BuildMatrix{}

	for _, board := range raw.Board {
		if len(raw.Shield) == 0 {
			m.Targets = append(m.Targets, Target{Board: board})
			continue
		}

		for _, shield := range raw.Shield {
			m.Targets = append(m.Targets, Target{Board: board, Shield: shield})
		}
	}

	for _, inc := range raw.Include {
		m.Targets = append(m.Targets, Target{
			Board:        strings.TrimSpace(inc.Board),
			Shield:       strings.TrimSpace(inc.Shield),
			ArtifactName: strings.TrimSpace(inc.ArtifactName),
			Snippet:      strings.TrimSpace(inc.Snippet),
			ExtraFlags:   []string(inc.CMakeArgs),
		})
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}

	return m, nil
}

// Load reads and parses a build matrix file.
func Load(fs fsio.FileAdapter, path string) (*BuildMatrix, error) {
	data, err := fs.ReadBinary(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read build matrix %s: %w", path, err)
	}

	return Parse(data)
}

// Validate checks the matrix has targets and every target names a board.
func (m *BuildMatrix) Validate() error {
	if m == nil || len(m.Targets) == 0 {
		return fmt.Errorf("build matrix has no targets")
	}

	for i, t := range m.Targets {
		if strings.TrimSpace(t.Board) == "" {
			return fmt.Errorf("build matrix target %d: board is required", i)
		}
	}

	return nil
}

// Boards returns the artifact names in matrix order, used as the board
// identities for progress reporting.
func (m *BuildMatrix) Boards() []string {
	names := make([]string, 0, len(m.Targets))
	for _, t := range m.Targets {
		names = append(names, t.Name())
	}

	return names
}

// Marshal renders the matrix back into build.yaml form using include entries.
func (m *BuildMatrix) Marshal() ([]byte, error) {
	type out struct {
		Include []Target `yaml:"include"`
	}

	return yaml.Marshal(out{Include: m.Targets})
}

// Single returns a matrix with one target, used when no build.yaml is given.
func Single(board, shield string) *BuildMatrix {
	return &BuildMatrix{Targets: []Target{{Board: board, Shield: shield}}}
}
