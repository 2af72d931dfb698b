package matrix

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Norgate-AV/kbfw/internal/fsio"
)

// ManifestFileName is the west manifest file name.
const ManifestFileName = "west.yml"

// DefaultImportedRepositories approximates how many projects west pulls in
// through the zmk -> zephyr import chain when the manifest imports one.
const DefaultImportedRepositories = 39

// Remote is a west manifest remote.
type Remote struct {
	Name    string `yaml:"name"`
	URLBase string `yaml:"url-base"`
}

// Project is a west manifest project entry.
type Project struct {
	Name     string `yaml:"name"`
	Remote   string `yaml:"remote,omitempty"`
	URL      string `yaml:"url,omitempty"`
	Revision string `yaml:"revision,omitempty"`
	Path     string `yaml:"path,omitempty"`
	Import   any    `yaml:"import,omitempty"`
}

// Self describes the manifest repository itself.
type Self struct {
	Path   string `yaml:"path,omitempty"`
	Import any    `yaml:"import,omitempty"`
}

// Defaults are manifest-wide project defaults.
type Defaults struct {
	Remote   string `yaml:"remote,omitempty"`
	Revision string `yaml:"revision,omitempty"`
}

// ManifestBody is the content under the top-level manifest key.
type ManifestBody struct {
	Defaults *Defaults `yaml:"defaults,omitempty"`
	Remotes  []Remote  `yaml:"remotes,omitempty"`
	Projects []Project `yaml:"projects"`
	Self     *Self     `yaml:"self,omitempty"`
}

// Manifest is a west.yml document.
type Manifest struct {
	Manifest ManifestBody `yaml:"manifest"`
}

// ParseManifest decodes a west.yml document.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse west manifest: %w", err)
	}

	if len(m.Manifest.Projects) == 0 {
		return nil, fmt.Errorf("west manifest has no projects")
	}

	for i, p := range m.Manifest.Projects {
		if p.Name == "" {
			return nil, fmt.Errorf("west manifest project %d: name is required", i)
		}
	}

	return &m, nil
}

// LoadManifest reads and parses a west manifest file.
func LoadManifest(fs fsio.FileAdapter, path string) (*Manifest, error) {
	data, err := fs.ReadBinary(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read west manifest %s: %w", path, err)
	}

	return ParseManifest(data)
}

// RepositoryCount estimates how many repositories `west update` will fetch.
func (m *Manifest) RepositoryCount() int {
	count := len(m.Manifest.Projects)

	for _, p := range m.Manifest.Projects {
		if importsManifest(p.Import) {
			count += DefaultImportedRepositories
			break
		}
	}

	return count
}

func importsManifest(v any) bool {
	switch imp := v.(type) {
	case nil:
		return false
	case bool:
		return imp
	case string:
		return imp != ""
	default:
		return true
	}
}

// Marshal renders the manifest as YAML.
func (m *Manifest) Marshal() ([]byte, error) {
	return yaml.Marshal(m)
}

// GenerateManifest builds a west manifest that imports the firmware
// repository ("owner/name" on GitHub, or a full URL) at the given revision.
func GenerateManifest(repository, revision string, extra ...Project) (*Manifest, error) {
	repository = strings.TrimSuffix(strings.TrimSpace(repository), ".git")
	if repository == "" {
		return nil, fmt.Errorf("repository is required")
	}

	if revision == "" {
		revision = "main"
	}

	urlBase := "https://github.com"
	owner, name := "", repository

	if i := strings.LastIndex(repository, "/"); i >= 0 {
		owner, name = repository[:i], repository[i+1:]
	}

	if strings.Contains(owner, "://") {
		urlBase, owner = owner, ""
	}

	remoteName := owner
	base := urlBase
	if owner != "" {
		base = urlBase + "/" + owner
		remoteName = owner[strings.LastIndex(owner, "/")+1:]
	} else {
		remoteName = "origin"
	}

	m := &Manifest{Manifest: ManifestBody{
		Remotes: []Remote{{Name: remoteName, URLBase: base}},
		Projects: append([]Project{{
			Name:     name,
			Remote:   remoteName,
			Revision: revision,
			Import:   "app/west.yml",
		}}, extra...),
		Self: &Self{Path: "config"},
	}}

	return m, nil
}
