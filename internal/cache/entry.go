package cache

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Tier is a cache granularity, ordered from most to least reusable.
type Tier string

const (
	TierRepo       Tier = "repo"
	TierRepoBranch Tier = "repo_branch"
	TierFull       Tier = "full"
	TierBuild      Tier = "build"
)

// Tiers lists every tier from most to least reusable.
var Tiers = []Tier{TierRepo, TierRepoBranch, TierFull, TierBuild}

// DefaultTTL is how long an entry of each tier lives without being read.
var DefaultTTL = map[Tier]time.Duration{
	TierRepo:       720 * time.Hour,
	TierRepoBranch: 168 * time.Hour,
	TierFull:       24 * time.Hour,
	TierBuild:      1 * time.Hour,
}

// ParseTier accepts the lower-case tier names and their upper-case forms
// (REPO, REPO_BRANCH, FULL, BUILD).
func ParseTier(s string) (Tier, error) {
	t := Tier(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Tiers {
		if t == known {
			return t, nil
		}
	}

	return "", fmt.Errorf("unknown cache tier %q", s)
}

// Refreshes reports whether a hit extends the entry's lifetime. Build
// entries are written once and left untouched so the build they describe
// stays reproducible.
func (t Tier) Refreshes() bool {
	return t != TierBuild
}

func (t Tier) order() int {
	for i, known := range Tiers {
		if t == known {
			return i
		}
	}

	return len(Tiers)
}

// Metadata describes one cached workspace tier.
type Metadata struct {
	// CacheKey names the entry in the metadata store and on disk.
	CacheKey string `json:"cache_key"`

	// WorkspacePath is where the workspace bytes live. Alias tiers point at
	// their canonical entry's directory.
	WorkspacePath string `json:"workspace_path"`

	Repository string `json:"repository"`
	Branch     string `json:"branch"`
	CommitHash string `json:"commit_hash,omitempty"`
	Tier       Tier   `json:"tier"`

	// CanonicalKey is set on alias tiers and names the entry owning the bytes.
	CanonicalKey string `json:"canonical_key,omitempty"`

	// AliasKeys lists the tiers sharing this entry's bytes.
	AliasKeys []string `json:"alias_keys,omitempty"`

	CreatedAt    time.Time `json:"created_at"`
	LastAccessed time.Time `json:"last_accessed"`

	KeymapHash string `json:"keymap_hash,omitempty"`
	ConfigHash string `json:"config_hash,omitempty"`

	AutoDetected       bool   `json:"auto_detected"`
	AutoDetectedSource string `json:"auto_detected_source,omitempty"`

	BuildID      string `json:"build_id,omitempty"`
	BuildProfile string `json:"build_profile,omitempty"`

	CachedComponents []string `json:"cached_components"`
	SizeBytes        int64    `json:"size_bytes,omitempty"`
	Notes            string   `json:"notes,omitempty"`
}

// IsAlias reports whether the entry shares another tier's bytes.
func (m *Metadata) IsAlias() bool {
	return m.CanonicalKey != "" && m.CanonicalKey != m.CacheKey
}

// Age is the time since the entry was created.
func (m *Metadata) Age(now time.Time) time.Duration {
	return now.Sub(m.CreatedAt)
}

// NoteOrphaned marks entries rebuilt from directories without metadata.
const NoteOrphaned = "orphaned: directory has no metadata record"

const noteLegacy = "upgraded from legacy record"

// decodeMetadata parses a stored record. Records written by older versions
// hold only the workspace path; those are reported as legacy with just
// WorkspacePath set.
func decodeMetadata(data []byte) (meta *Metadata, legacy bool, err error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, false, fmt.Errorf("empty cache record")
	}

	switch trimmed[0] {
	case '{':
		var m Metadata
		if err := json.Unmarshal(trimmed, &m); err != nil {
			return nil, false, fmt.Errorf("failed to decode cache metadata: %w", err)
		}

		return &m, false, nil
	case '"':
		var path string
		if err := json.Unmarshal(trimmed, &path); err != nil {
			return nil, false, fmt.Errorf("failed to decode legacy cache record: %w", err)
		}

		return &Metadata{WorkspacePath: path}, true, nil
	default:
		return &Metadata{WorkspacePath: string(trimmed)}, true, nil
	}
}

func encodeMetadata(m *Metadata) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode cache metadata: %w", err)
	}

	return data, nil
}
