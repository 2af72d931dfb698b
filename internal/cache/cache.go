// Package cache keeps west workspaces between builds so a compile can skip
// the multi-gigabyte checkout of zmk, zephyr and their modules.
//
// Workspaces are cached per tier:
//
//  1. REPO entries are shared by every branch of a repository
//  2. REPO_BRANCH and FULL entries are specific to one branch
//  3. BUILD entries hold the artifacts of one keymap/config pair
//
// The first tier of a cache write receives the bytes; later tiers of the
// same write are recorded as aliases of it. Records live in a MetadataStore
// (BoltDB by default) and directories are named by their CacheKey.
package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Norgate-AV/kbfw/internal/ctxlog"
	"github.com/Norgate-AV/kbfw/internal/fsio"
)

const (
	// UnknownRepository selects orphan cleanup in DeleteCachedWorkspace.
	UnknownRepository = "unknown"

	// tempPrefix marks directories still being populated.
	tempPrefix = ".tmp-"
)

// ConventionalBranches are swept when a repository is deleted without a branch.
var ConventionalBranches = []string{"main", "master", "develop", "dev"}

// ErrEntryExists is returned when adding a workspace over an existing entry.
var ErrEntryExists = errors.New("workspace already cached")

// DefaultRoot returns the per-user workspace cache directory.
func DefaultRoot() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate user cache directory: %w", err)
	}

	return filepath.Join(dir, "kbfw", "workspaces"), nil
}

// Manager owns the cache root and its metadata store.
type Manager struct {
	root  string
	store MetadataStore
	fs    fsio.FileAdapter
	ttl   map[Tier]time.Duration
	locks *keyLocks
	now   func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithStore sets the metadata store. The default is a BoltStore in the root.
func WithStore(s MetadataStore) Option {
	return func(m *Manager) { m.store = s }
}

// WithFS sets the filesystem adapter.
func WithFS(fs fsio.FileAdapter) Option {
	return func(m *Manager) { m.fs = fs }
}

// WithTTL overrides tier lifetimes; tiers not present keep their default.
func WithTTL(ttl map[Tier]time.Duration) Option {
	return func(m *Manager) {
		for t, d := range ttl {
			if d > 0 {
				m.ttl[t] = d
			}
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// New creates a manager rooted at root, or DefaultRoot when root is empty.
func New(root string, opts ...Option) (*Manager, error) {
	if root == "" {
		r, err := DefaultRoot()
		if err != nil {
			return nil, err
		}

		root = r
	}

	m := &Manager{
		root:  root,
		fs:    fsio.NewOS(),
		ttl:   make(map[Tier]time.Duration, len(DefaultTTL)),
		locks: newKeyLocks(),
		now:   time.Now,
	}

	for t, d := range DefaultTTL {
		m.ttl[t] = d
	}

	for _, opt := range opts {
		opt(m)
	}

	if err := m.fs.MkdirAll(root); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	if m.store == nil {
		store, err := OpenBoltStore(root)
		if err != nil {
			return nil, err
		}

		m.store = store
	}

	return m, nil
}

// Root is the cache root directory.
func (m *Manager) Root() string {
	return m.root
}

// Close releases the metadata store.
func (m *Manager) Close() error {
	if m.store != nil {
		return m.store.Close()
	}

	return nil
}

// Lookup is the outcome of GetCachedWorkspace.
type Lookup struct {
	Found    bool
	Path     string
	Metadata *Metadata
}

// GetCachedWorkspace looks up a tier. Entries whose directory vanished are
// deleted and reported as a miss. Hits refresh last_accessed and the TTL
// except on the build tier. Store failures are logged and treated as a miss.
func (m *Manager) GetCachedWorkspace(ctx context.Context, repository, branch string, tier Tier) Lookup {
	key := CacheKey(repository, branch, tier)
	log := ctxlog.FromContext(ctx).With("key", key, "tier", tier)

	meta, legacy, ok, err := m.load(ctx, key)
	if err != nil {
		log.Warn("cache lookup failed", "error", err)
		return Lookup{}
	}

	if !ok {
		return Lookup{}
	}

	if legacy {
		meta = m.upgrade(meta, key, repository, branch, tier)
		log.Debug("upgrading legacy cache record", "path", meta.WorkspacePath)
	}

	if !m.fs.IsDir(meta.WorkspacePath) {
		log.Info("dropping cache entry with missing workspace", "path", meta.WorkspacePath)
		if err := m.store.Delete(ctx, key); err != nil {
			log.Warn("failed to delete stale cache entry", "error", err)
		}

		return Lookup{}
	}

	if tier.Refreshes() {
		meta.LastAccessed = m.now()
	}

	if legacy || tier.Refreshes() {
		if err := m.save(ctx, meta); err != nil {
			log.Warn("failed to refresh cache entry", "error", err)
		}
	}

	return Lookup{Found: true, Path: meta.WorkspacePath, Metadata: meta}
}

// CacheRequest describes a workspace to cache.
type CacheRequest struct {
	Path       string
	Repository string
	Branch     string
	CommitHash string

	// Tiers to record; the first receives the bytes.
	Tiers []Tier

	// Components restricts what is copied. Empty means every detected
	// expected and optional component.
	Components []string

	AutoDetected       bool
	AutoDetectedSource string
	BuildID            string
	BuildProfile       string
	KeymapFile         string
	ConfigFile         string
	Notes              string

	Progress ProgressFunc
}

// CacheResult reports what CacheWorkspace stored.
type CacheResult struct {
	Success  bool
	Path     string
	Metadata []*Metadata
}

// CacheWorkspace copies the workspace into the cache under the first tier
// and aliases the remaining tiers to it. Population goes through a
// uniquely named temporary directory renamed into place, so a concurrent
// writer that wins the race leaves this call a successful no-op. A cache
// directory whose record expired is replaced rather than reused. Existing
// build tier records are never overwritten.
func (m *Manager) CacheWorkspace(ctx context.Context, req CacheRequest) (*CacheResult, error) {
	if len(req.Tiers) == 0 {
		return nil, fmt.Errorf("no cache tiers requested")
	}

	if !m.fs.IsDir(req.Path) {
		return nil, fmt.Errorf("workspace %s does not exist", req.Path)
	}

	components := m.selectComponents(req)
	if len(components) == 0 {
		return nil, fmt.Errorf("%w: nothing to cache in %s", ErrNotWorkspace, req.Path)
	}

	_, size, err := componentStats(m.fs, req.Path, components)
	if err != nil {
		return nil, err
	}

	base := Metadata{
		Repository:         req.Repository,
		CommitHash:         req.CommitHash,
		AutoDetected:       req.AutoDetected,
		AutoDetectedSource: req.AutoDetectedSource,
		BuildID:            req.BuildID,
		BuildProfile:       req.BuildProfile,
		CachedComponents:   components,
		SizeBytes:          size,
		Notes:              req.Notes,
	}

	if req.KeymapFile != "" {
		if base.KeymapHash, err = HashFile(m.fs, req.KeymapFile); err != nil {
			return nil, fmt.Errorf("failed to hash keymap: %w", err)
		}
	}

	if req.ConfigFile != "" {
		if base.ConfigHash, err = HashFile(m.fs, req.ConfigFile); err != nil {
			return nil, fmt.Errorf("failed to hash config: %w", err)
		}
	}

	tiers := uniqueTiers(req.Tiers)
	keys := make([]string, len(tiers))
	for i, t := range tiers {
		keys[i] = CacheKey(req.Repository, req.Branch, t)
	}

	canonicalKey := keys[0]
	canonicalPath := filepath.Join(m.root, canonicalKey)
	now := m.now()

	metas := make([]*Metadata, len(tiers))
	for i, tier := range tiers {
		meta := base
		meta.CacheKey = keys[i]
		meta.Tier = tier
		meta.Branch = tierBranch(req.Branch, tier)
		meta.WorkspacePath = canonicalPath
		meta.CreatedAt = now
		meta.LastAccessed = now

		if i > 0 {
			meta.CanonicalKey = canonicalKey
		}

		metas[i] = &meta
	}

	canonical, existing, err := m.writeCanonical(ctx, metas[0], keys[1:], req)
	if err != nil {
		return nil, err
	}

	result := &CacheResult{Success: true, Path: canonical.WorkspacePath, Metadata: []*Metadata{canonical}}
	if existing {
		return result, nil
	}

	for _, meta := range metas[1:] {
		unlock := m.locks.lock(meta.CacheKey)
		stored, err := m.writeTier(ctx, meta, true)
		unlock()

		if err != nil {
			return result, err
		}

		result.Metadata = append(result.Metadata, stored)
	}

	return result, nil
}

// writeCanonical populates and records the tier owning the bytes, all under
// its key lock. It reports true when a build tier record already existed
// and was kept.
func (m *Manager) writeCanonical(ctx context.Context, meta *Metadata, aliases []string, req CacheRequest) (*Metadata, bool, error) {
	unlock := m.locks.lock(meta.CacheKey)
	defer unlock()

	if existing, ok := m.liveBuildRecord(ctx, meta.Tier, meta.CacheKey); ok {
		ctxlog.FromContext(ctx).Debug("build tier already cached", "key", meta.CacheKey)
		return existing, true, nil
	}

	if err := m.populate(ctx, meta.CacheKey, req.Path, meta.CachedComponents, req.Progress); err != nil {
		return nil, false, err
	}

	meta.AliasKeys = m.mergeAliases(ctx, meta.CacheKey, aliases)

	stored, err := m.writeTier(ctx, meta, false)
	if err != nil {
		return nil, false, err
	}

	return stored, false, nil
}

// populate materializes the canonical directory for key. The caller holds
// the key lock. A directory with a live record is kept; one without is left
// over from an expired entry and is replaced.
func (m *Manager) populate(ctx context.Context, key, src string, components []string, progress ProgressFunc) error {
	log := ctxlog.FromContext(ctx).With("key", key)
	dst := filepath.Join(m.root, key)

	if m.fs.Exists(dst) || m.fs.IsSymlink(dst) {
		if _, _, ok, err := m.load(ctx, key); err == nil && ok {
			log.Debug("cache directory already populated")
			return nil
		}

		log.Debug("replacing cache directory without a live record")

		if err := m.fs.RemoveAll(dst); err != nil {
			return fmt.Errorf("failed to remove stale cache directory: %w", err)
		}
	}

	tmp := filepath.Join(m.root, tempPrefix+uuid.NewString())

	if err := copyComponents(ctx, m.fs, src, tmp, components, progress); err != nil {
		_ = m.fs.RemoveAll(tmp)
		return fmt.Errorf("failed to copy workspace into cache: %w", err)
	}

	if err := m.fs.Rename(tmp, dst); err != nil {
		_ = m.fs.RemoveAll(tmp)

		// another process renamed into place first
		if m.fs.Exists(dst) {
			return nil
		}

		return fmt.Errorf("failed to move workspace into cache: %w", err)
	}

	return nil
}

// writeTier stores a tier record, linking alias directories where the
// filesystem allows it. The caller holds the key lock.
func (m *Manager) writeTier(ctx context.Context, meta *Metadata, alias bool) (*Metadata, error) {
	log := ctxlog.FromContext(ctx).With("key", meta.CacheKey, "tier", meta.Tier)

	if existing, ok := m.liveBuildRecord(ctx, meta.Tier, meta.CacheKey); ok {
		log.Debug("keeping existing build tier record")
		return existing, nil
	}

	if alias {
		link := filepath.Join(m.root, meta.CacheKey)

		if m.fs.IsDir(link) && !m.fs.IsSymlink(link) {
			if err := m.fs.RemoveAll(link); err != nil {
				log.Warn("failed to replace cache directory with alias", "error", err)
			}
		}

		if !m.fs.IsSymlink(link) && !m.fs.Exists(link) {
			if err := m.fs.Symlink(meta.WorkspacePath, link); err != nil && !errors.Is(err, fsio.ErrSymlinkUnsupported) {
				log.Warn("failed to link cache alias", "error", err)
			}
		}
	}

	if err := m.save(ctx, meta); err != nil {
		return nil, err
	}

	return meta, nil
}

// liveBuildRecord returns an existing build tier record still backed by
// its directory.
func (m *Manager) liveBuildRecord(ctx context.Context, tier Tier, key string) (*Metadata, bool) {
	if tier != TierBuild {
		return nil, false
	}

	meta, legacy, ok, err := m.load(ctx, key)
	if err != nil || !ok || legacy || !m.fs.IsDir(meta.WorkspacePath) {
		return nil, false
	}

	return meta, true
}

func (m *Manager) mergeAliases(ctx context.Context, key string, aliases []string) []string {
	seen := map[string]bool{key: true}

	var merged []string

	add := func(k string) {
		if !seen[k] {
			seen[k] = true
			merged = append(merged, k)
		}
	}

	if existing, legacy, ok, err := m.load(ctx, key); err == nil && ok && !legacy {
		for _, k := range existing.AliasKeys {
			add(k)
		}
	}

	for _, k := range aliases {
		add(k)
	}

	return merged
}

func (m *Manager) selectComponents(req CacheRequest) []string {
	if len(req.Components) == 0 {
		return DetectComponents(m.fs, req.Path)
	}

	var present []string

	for _, c := range req.Components {
		if m.fs.IsDir(filepath.Join(req.Path, c)) {
			present = append(present, c)
		}
	}

	return present
}

// AddExternalWorkspace caches an existing workspace under the repo and
// repo_branch tiers using auto-detected identity. An existing repo tier
// entry is only replaced when force is set.
func (m *Manager) AddExternalWorkspace(ctx context.Context, source, repository string, force bool) (*CacheResult, error) {
	info, err := AutoDetectWorkspaceInfo(m.fs, source)
	if err != nil {
		return nil, err
	}

	if repository == "" {
		repository = info.Repository
	}

	repoKey := CacheKey(repository, "", TierRepo)

	if meta, legacy, ok, err := m.load(ctx, repoKey); err == nil && ok && (legacy || m.fs.IsDir(meta.WorkspacePath)) {
		if !force {
			return nil, fmt.Errorf("%w: %s (use force to overwrite)", ErrEntryExists, repository)
		}

		m.deleteKey(ctx, repoKey)
		m.deleteKey(ctx, CacheKey(repository, info.Branch, TierRepoBranch))
	}

	return m.CacheWorkspace(ctx, CacheRequest{
		Path:               source,
		Repository:         repository,
		Branch:             info.Branch,
		CommitHash:         info.CommitHash,
		Tiers:              []Tier{TierRepo, TierRepoBranch},
		Components:         info.Components,
		AutoDetected:       true,
		AutoDetectedSource: source,
	})
}

// ListCachedWorkspaces returns every valid entry, one per repository and
// branch, followed by orphaned directories that look like checkouts.
// Records whose directory vanished are deleted along the way.
func (m *Manager) ListCachedWorkspaces(ctx context.Context) ([]*Metadata, error) {
	log := ctxlog.FromContext(ctx)

	keys, err := m.store.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list cache entries: %w", err)
	}

	known := make(map[string]bool, len(keys))
	byIdentity := make(map[string]*Metadata)

	var legacyEntries []*Metadata

	for _, key := range keys {
		known[key] = true

		meta, legacy, ok, err := m.load(ctx, key)
		if err != nil {
			log.Warn("skipping unreadable cache entry", "key", key, "error", err)
			continue
		}

		if !ok {
			continue
		}

		if !m.fs.IsDir(meta.WorkspacePath) {
			log.Info("dropping cache entry with missing workspace", "key", key, "path", meta.WorkspacePath)
			m.deleteKey(ctx, key)
			continue
		}

		if legacy {
			meta.CacheKey = key
			meta.Notes = "legacy record"
			legacyEntries = append(legacyEntries, meta)
			continue
		}

		id := meta.Repository + "|" + meta.Branch
		if prev, ok := byIdentity[id]; ok && !preferEntry(meta, prev) {
			continue
		}

		byIdentity[id] = meta
	}

	entries := make([]*Metadata, 0, len(byIdentity)+len(legacyEntries))
	for _, meta := range byIdentity {
		entries = append(entries, meta)
	}

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Repository != b.Repository {
			return a.Repository < b.Repository
		}

		if a.Branch != b.Branch {
			return a.Branch < b.Branch
		}

		return a.Tier.order() < b.Tier.order()
	})

	entries = append(entries, legacyEntries...)

	orphans, err := m.orphans(known)
	if err != nil {
		return entries, err
	}

	for _, dir := range orphans {
		if !HasVCSMetadata(m.fs, dir) {
			continue
		}

		entries = append(entries, m.orphanEntry(dir))
	}

	return entries, nil
}

// preferEntry picks between two records for the same repository and
// branch: owners of bytes win over aliases, then the most recently used.
func preferEntry(candidate, current *Metadata) bool {
	if candidate.IsAlias() != current.IsAlias() {
		return !candidate.IsAlias()
	}

	return candidate.LastAccessed.After(current.LastAccessed)
}

func (m *Manager) orphanEntry(dir string) *Metadata {
	meta := &Metadata{
		CacheKey:         filepath.Base(dir),
		WorkspacePath:    dir,
		Repository:       UnknownRepository,
		CachedComponents: DetectComponents(m.fs, dir),
		Notes:            NoteOrphaned,
	}

	if info, err := AutoDetectWorkspaceInfo(m.fs, dir); err == nil {
		meta.Repository = info.Repository
		meta.Branch = info.Branch
		meta.CommitHash = info.CommitHash
	}

	return meta
}

// orphans lists directories (and alias links) under the root without a
// metadata record. Directories still being populated are skipped.
func (m *Manager) orphans(known map[string]bool) ([]string, error) {
	entries, err := m.fs.ListDir(m.root)
	if err != nil {
		return nil, err
	}

	var dirs []string

	for _, e := range entries {
		name := e.Name()
		if known[name] || fsio.HasPrefixDir(name, tempPrefix) {
			continue
		}

		if !e.IsDir() && e.Mode()&os.ModeSymlink == 0 {
			continue
		}

		dirs = append(dirs, filepath.Join(m.root, name))
	}

	return dirs, nil
}

// DeleteCachedWorkspace removes a repository's entries. Without a branch,
// the repo tier and every conventional branch are removed. The repository
// "unknown" removes every cache directory that has no metadata instead.
func (m *Manager) DeleteCachedWorkspace(ctx context.Context, repository, branch string) (bool, error) {
	if repository == UnknownRepository {
		n, err := m.deleteOrphans(ctx)
		return n > 0, err
	}

	targets := make(map[string]bool)

	branches := []string{branch}
	if branch == "" {
		branches = ConventionalBranches
		targets[CacheKey(repository, "", TierRepo)] = true
	}

	for _, b := range branches {
		for _, t := range Tiers {
			if t != TierRepo {
				targets[CacheKey(repository, b, t)] = true
			}
		}
	}

	keys, err := m.store.Keys(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to list cache entries: %w", err)
	}

	for _, key := range keys {
		meta, legacy, ok, err := m.load(ctx, key)
		if err != nil || !ok || legacy || meta.Repository != repository {
			continue
		}

		if branch == "" || meta.Branch == branch || strings.HasPrefix(meta.Branch, branch+"@") {
			targets[key] = true
		}
	}

	deleted := false

	for key := range targets {
		if m.deleteKey(ctx, key) {
			deleted = true
		}
	}

	return deleted, nil
}

func (m *Manager) deleteOrphans(ctx context.Context) (int, error) {
	keys, err := m.store.Keys(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list cache entries: %w", err)
	}

	known := make(map[string]bool, len(keys))
	for _, k := range keys {
		known[k] = true
	}

	dirs, err := m.orphans(known)
	if err != nil {
		return 0, err
	}

	removed := 0

	for _, dir := range dirs {
		if err := m.fs.RemoveAll(dir); err != nil {
			ctxlog.FromContext(ctx).Warn("failed to remove orphaned cache directory", "path", dir, "error", err)
			continue
		}

		removed++
	}

	return removed, nil
}

// CleanupStaleEntries deletes every entry created more than maxAgeHours ago.
func (m *Manager) CleanupStaleEntries(ctx context.Context, maxAgeHours int) (int, error) {
	maxAge := time.Duration(maxAgeHours) * time.Hour
	now := m.now()

	keys, err := m.store.Keys(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list cache entries: %w", err)
	}

	removed := 0

	for _, key := range keys {
		meta, legacy, ok, err := m.load(ctx, key)
		if err != nil || !ok || legacy {
			continue
		}

		if meta.Age(now) > maxAge {
			m.deleteKey(ctx, key)
			removed++
		}
	}

	return removed, nil
}

// RestoreWorkspace copies a cached workspace's components into dest.
func (m *Manager) RestoreWorkspace(ctx context.Context, meta *Metadata, dest string, progress ProgressFunc) error {
	components := meta.CachedComponents
	if len(components) == 0 {
		components = DetectComponents(m.fs, meta.WorkspacePath)
	}

	var present []string

	for _, c := range components {
		if m.fs.IsDir(filepath.Join(meta.WorkspacePath, c)) {
			present = append(present, c)
		}
	}

	if len(present) == 0 {
		return fmt.Errorf("%w: cached workspace %s is empty", ErrNotWorkspace, meta.WorkspacePath)
	}

	return copyComponents(ctx, m.fs, meta.WorkspacePath, dest, present, progress)
}

// Stats returns the number of entries and the bytes held by their
// canonical directories.
func (m *Manager) Stats(ctx context.Context) (int, int64, error) {
	keys, err := m.store.Keys(ctx)
	if err != nil {
		return 0, 0, err
	}

	var total int64

	for _, key := range keys {
		meta, _, ok, err := m.load(ctx, key)
		if err != nil || !ok || meta.IsAlias() || !m.fs.IsDir(meta.WorkspacePath) {
			continue
		}

		_, size, err := fsio.DirStats(m.fs, meta.WorkspacePath)
		if err != nil {
			continue
		}

		total += size
	}

	return len(keys), total, nil
}

func (m *Manager) load(ctx context.Context, key string) (*Metadata, bool, bool, error) {
	data, ok, err := m.store.Get(ctx, key)
	if err != nil || !ok {
		return nil, false, ok, err
	}

	meta, legacy, err := decodeMetadata(data)
	if err != nil {
		return nil, false, false, err
	}

	return meta, legacy, true, nil
}

func (m *Manager) save(ctx context.Context, meta *Metadata) error {
	data, err := encodeMetadata(meta)
	if err != nil {
		return err
	}

	if err := m.store.Set(ctx, meta.CacheKey, data, m.ttl[meta.Tier]); err != nil {
		return fmt.Errorf("failed to store cache metadata: %w", err)
	}

	return nil
}

// deleteKey removes a record and the directory or alias link named by it.
func (m *Manager) deleteKey(ctx context.Context, key string) bool {
	log := ctxlog.FromContext(ctx).With("key", key)
	deleted := false

	if _, ok, err := m.store.Get(ctx, key); err == nil && ok {
		if err := m.store.Delete(ctx, key); err != nil {
			log.Warn("failed to delete cache record", "error", err)
		} else {
			deleted = true
		}
	}

	dir := filepath.Join(m.root, key)
	if m.fs.Exists(dir) || m.fs.IsSymlink(dir) {
		if err := m.fs.RemoveAll(dir); err != nil {
			log.Warn("failed to remove cache directory", "error", err)
		} else {
			deleted = true
		}
	}

	return deleted
}

func (m *Manager) upgrade(legacy *Metadata, key, repository, branch string, tier Tier) *Metadata {
	now := m.now()

	return &Metadata{
		CacheKey:         key,
		WorkspacePath:    legacy.WorkspacePath,
		Repository:       repository,
		Branch:           tierBranch(branch, tier),
		Tier:             tier,
		CreatedAt:        now,
		LastAccessed:     now,
		CachedComponents: DetectComponents(m.fs, legacy.WorkspacePath),
		Notes:            noteLegacy,
	}
}

func uniqueTiers(tiers []Tier) []Tier {
	seen := make(map[Tier]bool, len(tiers))

	var out []Tier

	for _, t := range tiers {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}

	return out
}

func tierBranch(branch string, tier Tier) string {
	if tier == TierRepo {
		return ""
	}

	return branch
}
