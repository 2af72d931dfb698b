package cache

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"gopkg.in/ini.v1"

	"github.com/Norgate-AV/kbfw/internal/fsio"
)

const (
	// DefaultRepository is assumed when a workspace carries no remote.
	DefaultRepository = "zmkfirmware/zmk"

	// DefaultBranch is assumed when HEAD cannot be resolved.
	DefaultBranch = "main"
)

// ExpectedComponents are the source trees making up a workspace.
var ExpectedComponents = []string{"zmk", "zephyr", "modules"}

// OptionalComponents are copied along when present.
var OptionalComponents = []string{".west"}

// ErrNotWorkspace is returned when a directory holds none of the expected
// components.
var ErrNotWorkspace = errors.New("directory is not a recognizable workspace")

// WorkspaceInfo is what auto-detection learned about a directory.
type WorkspaceInfo struct {
	Path       string   `json:"path"`
	Repository string   `json:"repository"`
	Branch     string   `json:"branch"`
	CommitHash string   `json:"commit_hash,omitempty"`
	Components []string `json:"components"`
}

// DetectComponents lists the expected and optional components present
// under root, in declaration order.
func DetectComponents(fs fsio.FileAdapter, root string) []string {
	var found []string

	for _, c := range append(append([]string{}, ExpectedComponents...), OptionalComponents...) {
		if fs.IsDir(filepath.Join(root, c)) {
			found = append(found, c)
		}
	}

	return found
}

func hasExpectedComponent(components []string) bool {
	for _, c := range components {
		for _, e := range ExpectedComponents {
			if c == e {
				return true
			}
		}
	}

	return false
}

// AutoDetectWorkspaceInfo inspects dir for components and version control
// metadata. It fails when no expected component is present.
func AutoDetectWorkspaceInfo(fs fsio.FileAdapter, dir string) (*WorkspaceInfo, error) {
	if !fs.IsDir(dir) {
		return nil, fmt.Errorf("workspace %s does not exist", dir)
	}

	components := DetectComponents(fs, dir)
	if !hasExpectedComponent(components) {
		return nil, fmt.Errorf("%w: %s has none of %s", ErrNotWorkspace, dir, strings.Join(ExpectedComponents, ", "))
	}

	info := &WorkspaceInfo{
		Path:       dir,
		Repository: DefaultRepository,
		Branch:     DefaultBranch,
		Components: components,
	}

	if vcs, ok := detectGit(fs, dir); ok {
		if vcs.repository != "" {
			info.Repository = vcs.repository
		}

		if vcs.branch != "" {
			info.Branch = vcs.branch
		}

		info.CommitHash = vcs.commit
	}

	return info, nil
}

// HasVCSMetadata reports whether dir or its zmk component is a git checkout.
func HasVCSMetadata(fs fsio.FileAdapter, dir string) bool {
	for _, cand := range gitCandidates(fs, dir) {
		if fs.Exists(filepath.Join(cand, ".git")) {
			return true
		}
	}

	return false
}

type gitInfo struct {
	repository string
	branch     string
	commit     string
}

// gitCandidates lists directories that may hold the workspace's checkout:
// the root, the zmk component and the west manifest repository.
func gitCandidates(fs fsio.FileAdapter, dir string) []string {
	candidates := []string{dir, filepath.Join(dir, "zmk")}

	if manifest := westManifestPath(fs, dir); manifest != "" {
		// walk up from the manifest path, which may sit inside its repository
		for p := manifest; p != "." && p != "/" && p != ""; p = path.Dir(p) {
			candidates = append(candidates, filepath.Join(dir, filepath.FromSlash(p)))
		}
	}

	return candidates
}

func detectGit(fs fsio.FileAdapter, dir string) (gitInfo, bool) {
	for _, cand := range gitCandidates(fs, dir) {
		gitDir := filepath.Join(cand, ".git")
		if !fs.IsDir(gitDir) {
			continue
		}

		info := gitInfo{repository: readRemote(fs, gitDir)}
		info.branch, info.commit = readHead(fs, gitDir)

		return info, true
	}

	return gitInfo{}, false
}

// westManifestPath reads manifest.path from .west/config.
func westManifestPath(fs fsio.FileAdapter, dir string) string {
	data, err := fs.ReadBinary(filepath.Join(dir, ".west", "config"))
	if err != nil {
		return ""
	}

	cfg, err := ini.LoadSources(ini.LoadOptions{IgnoreInlineComment: true}, data)
	if err != nil {
		return ""
	}

	return strings.TrimSpace(cfg.Section("manifest").Key("path").String())
}

// readRemote returns the origin remote of a git directory as owner/name.
func readRemote(fs fsio.FileAdapter, gitDir string) string {
	data, err := fs.ReadBinary(filepath.Join(gitDir, "config"))
	if err != nil {
		return ""
	}

	cfg, err := ini.LoadSources(ini.LoadOptions{IgnoreInlineComment: true, AllowNestedValues: true}, data)
	if err != nil {
		return ""
	}

	url := cfg.Section(`remote "origin"`).Key("url").String()
	if url == "" {
		for _, sec := range cfg.Sections() {
			if strings.HasPrefix(sec.Name(), "remote ") && sec.HasKey("url") {
				url = sec.Key("url").String()
				break
			}
		}
	}

	return NormalizeRepository(url)
}

// readHead resolves HEAD to a branch name and commit hash.
func readHead(fs fsio.FileAdapter, gitDir string) (branch, commit string) {
	head, err := fs.ReadText(filepath.Join(gitDir, "HEAD"))
	if err != nil {
		return "", ""
	}

	head = strings.TrimSpace(head)

	ref, ok := strings.CutPrefix(head, "ref: ")
	if !ok {
		// detached HEAD
		return "", head
	}

	branch = strings.TrimPrefix(ref, "refs/heads/")

	if sha, err := fs.ReadText(filepath.Join(gitDir, filepath.FromSlash(ref))); err == nil {
		return branch, strings.TrimSpace(sha)
	}

	return branch, packedRef(fs, gitDir, ref)
}

func packedRef(fs fsio.FileAdapter, gitDir, ref string) string {
	data, err := fs.ReadText(filepath.Join(gitDir, "packed-refs"))
	if err != nil {
		return ""
	}

	for _, line := range strings.Split(data, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || line[0] == '#' || line[0] == '^' {
			continue
		}

		sha, name, ok := strings.Cut(line, " ")
		if ok && name == ref {
			return sha
		}
	}

	return ""
}

// NormalizeRepository reduces a git remote URL to owner/name.
func NormalizeRepository(url string) string {
	url = strings.TrimSpace(url)
	if url == "" {
		return ""
	}

	url = strings.TrimSuffix(strings.TrimSuffix(url, "/"), ".git")

	for _, prefix := range []string{"https://", "http://", "ssh://", "git://"} {
		if rest, ok := strings.CutPrefix(url, prefix); ok {
			url = rest
			if i := strings.Index(url, "@"); i >= 0 && i < strings.Index(url+"/", "/") {
				url = url[i+1:]
			}

			if _, p, ok := strings.Cut(url, "/"); ok {
				url = p
			}

			return url
		}
	}

	// scp-like syntax: git@github.com:owner/name
	if _, p, ok := strings.Cut(url, ":"); ok && strings.Contains(url[:strings.Index(url, ":")], "@") {
		return p
	}

	return url
}
