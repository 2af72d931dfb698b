package compiler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Norgate-AV/kbfw/internal/artifacts"
	"github.com/Norgate-AV/kbfw/internal/cache"
	"github.com/Norgate-AV/kbfw/internal/ctxlog"
	"github.com/Norgate-AV/kbfw/internal/docker"
	"github.com/Norgate-AV/kbfw/internal/fsio"
	"github.com/Norgate-AV/kbfw/internal/matrix"
	"github.com/Norgate-AV/kbfw/internal/progress"
)

// Workspace relative directories used by every strategy.
const (
	ArtifactsDir = "artifacts"
	workPrefix   = "kbfw-build-"
)

// run is the state of one pipeline execution.
type run struct {
	job     *Job
	cfg     *CompilationConfig
	fs      fsio.FileAdapter
	log     *slog.Logger
	tracker progress.Coordinator
	builder *CommandBuilder
	mw      docker.Middleware
	result  *BuildResult

	image      string
	workspace  string
	repository string
	branch     string
	restored   bool

	matrix       *matrix.BuildMatrix
	repositories int
	keymapHash   string
	configHash   string
}

// execute drives the shared pipeline. Errors are recorded on the result;
// artifacts are collected whether or not the build step succeeded.
func execute(ctx context.Context, s steps, rt docker.Runtime, job *Job) *BuildResult {
	r := &run{
		job:    job,
		cfg:    job.Config,
		fs:     job.FS,
		result: newResult(job.BuildID),
		image:  job.Config.image(s.defaultImage()),
	}

	r.result.Strategy = s.name()
	r.repository, r.branch = s.identity(r.cfg)
	r.log = ctxlog.FromContext(ctx).With("build_id", job.BuildID, "strategy", s.name())
	ctx = ctxlog.WithLogger(ctx, r.log)

	r.tracker = progress.New(s.name(), job.Progress, progress.WithLogger(r.log))
	r.tracker.SetStrategy(s.name(), r.image)
	r.tracker.TransitionToPhase(progress.PhaseInitialization, "Checking inputs")

	if err := r.hashInputs(); err != nil {
		r.result.AddError(err)
		return r.result
	}

	if err := s.ensureImage(ctx, r); err != nil {
		r.result.AddError(err)
		return r.result
	}

	if r.useCache() {
		r.tracker.TransitionToPhase(progress.PhaseCacheRestoration, "Checking build cache")

		if r.serveBuildCache(ctx) {
			return r.result
		}
	}

	workspace, err := r.createWorkspace()
	if err != nil {
		r.result.AddError(err)
		return r.result
	}

	r.workspace = workspace
	defer r.removeWorkspace()

	r.builder = NewCommandBuilder(rt, r.image, workspace, job.User)
	if job.User.Enabled {
		// mapped users have no home directory in the image
		r.builder.SetEnv("HOME", "/tmp")
	}

	r.mw = docker.Chain{job.BuildLog, NewProgressParser(r.tracker, s.repositoryLine()), job.Middleware}

	if r.useCache() && s.cachesWorkspace() {
		r.restoreWorkspace(ctx)
	}

	fetched := false
	buildErr := r.setup(ctx, s)

	if buildErr == nil && !r.restored {
		if buildErr = s.fetch(ctx, r); buildErr == nil {
			fetched = true
		}
	}

	if buildErr == nil {
		r.tracker.TransitionToPhase(progress.PhaseBuilding, fmt.Sprintf("Building %d target(s)", len(r.matrix.Targets)))
		buildErr = s.build(ctx, r)
	}

	r.result.AddError(buildErr)
	r.collect()

	if r.useCache() {
		r.tracker.TransitionToPhase(progress.PhaseCacheSaving, "Saving workspace cache")

		if fetched && s.cachesWorkspace() {
			r.saveWorkspace(ctx)
		}

		if r.result.Success {
			r.saveBuild(ctx)
		}
	}

	r.writeBuildInfo(false)

	if r.result.Success {
		r.tracker.CompleteAllBuilds()
	}

	return r.result
}

func (r *run) useCache() bool {
	return r.cfg.UseCache && r.job.Cache != nil
}

func (r *run) now() time.Time {
	if r.job.Now != nil {
		return r.job.Now()
	}

	return time.Now()
}

// hashInputs checks the keymap and config exist and fingerprints them.
func (r *run) hashInputs() error {
	if r.job.KeymapFile == "" {
		return errorf(KindConfiguration, "read inputs", "keymap file is required")
	}

	for _, f := range []string{r.job.KeymapFile, r.job.ConfigFile} {
		if f != "" && !r.fs.IsFile(f) {
			return errorf(KindConfiguration, "read inputs", "input file %s does not exist", f)
		}
	}

	var err error

	if r.keymapHash, err = cache.HashFile(r.fs, r.job.KeymapFile); err != nil {
		return newError(KindConfiguration, "hash keymap", err)
	}

	if r.job.ConfigFile != "" {
		if r.configHash, err = cache.HashFile(r.fs, r.job.ConfigFile); err != nil {
			return newError(KindConfiguration, "hash config", err)
		}
	}

	return nil
}

func (r *run) buildBranch() string {
	return cache.BuildBranch(r.branch, r.keymapHash, r.configHash)
}

// serveBuildCache delivers firmware from a build tier hit whose input
// hashes still match.
func (r *run) serveBuildCache(ctx context.Context) bool {
	hit := r.job.Cache.GetCachedWorkspace(ctx, r.repository, r.buildBranch(), cache.TierBuild)
	if !hit.Found {
		return false
	}

	meta := hit.Metadata
	if meta.KeymapHash != r.keymapHash || meta.ConfigHash != r.configHash {
		r.log.Debug("build cache inputs differ", "key", meta.CacheKey)
		return false
	}

	files := artifacts.NewScanner(r.fs).ScanFirmwareFiles(hit.Path, "")
	if len(files) == 0 {
		r.log.Debug("build cache holds no firmware", "path", hit.Path)
		return false
	}

	if errs := r.validate(files); len(errs) > 0 {
		r.log.Warn("cached firmware failed validation", "path", hit.Path, "error", errors.Join(errs...))
		return false
	}

	out, err := artifacts.NewCollector(r.fs).Collect(files, r.job.OutputDir)
	if err != nil {
		r.log.Warn("failed to copy cached firmware", "error", err)
		return false
	}

	r.result.OutputFiles = out
	r.result.FromCache = true
	r.result.AddMessage("Using cached build %s", meta.BuildID)

	r.tracker.CompleteBuildSuccess("Using cached build")
	r.writeBuildInfo(true)

	return true
}

func (r *run) createWorkspace() (string, error) {
	root := r.job.WorkRoot
	if root == "" {
		root = os.TempDir()
	}

	dir, err := r.fs.TempDir(root, workPrefix)
	if err != nil {
		return "", newError(KindWorkspace, "create workspace", err)
	}

	return dir, nil
}

func (r *run) removeWorkspace() {
	if r.job.Profile.KeepWorkspace {
		r.log.Info("keeping build workspace", "path", r.workspace)
		return
	}

	if err := r.fs.RemoveAll(r.workspace); err != nil {
		r.log.Warn("failed to remove build workspace", "path", r.workspace, "error", err)
	}
}

// restoreWorkspace copies the most specific cached workspace into the build
// workspace. Any failure degrades to a fresh workspace.
func (r *run) restoreWorkspace(ctx context.Context) {
	for _, tier := range []cache.Tier{cache.TierRepoBranch, cache.TierRepo} {
		hit := r.job.Cache.GetCachedWorkspace(ctx, r.repository, r.branch, tier)
		if !hit.Found {
			continue
		}

		r.tracker.UpdateCacheProgress(progress.CacheRestore, 0, 1, "Restoring "+string(tier)+" workspace", "restoring")

		err := r.job.Cache.RestoreWorkspace(ctx, hit.Metadata, r.workspace, r.tracker.UpdateWorkspaceProgress)
		if err != nil {
			r.log.Warn("failed to restore cached workspace", "tier", tier, "error", err)
			r.resetWorkspace()

			continue
		}

		r.tracker.UpdateCacheProgress(progress.CacheRestore, 1, 1, "Restored "+string(tier)+" workspace", "done")
		r.result.AddMessage("Restored %s workspace from cache", tier)
		r.restored = true

		return
	}
}

func (r *run) resetWorkspace() {
	entries, err := r.fs.ListDir(r.workspace)
	if err != nil {
		return
	}

	for _, e := range entries {
		_ = r.fs.RemoveAll(filepath.Join(r.workspace, e.Name()))
	}
}

// setup prepares the workspace and stages the inputs into config/.
func (r *run) setup(ctx context.Context, s steps) error {
	desc := "Creating workspace"
	if r.restored {
		desc = "Preparing cached workspace"
	}

	r.tracker.TransitionToPhase(progress.PhaseWorkspaceSetup, desc)

	if err := s.prepare(ctx, r); err != nil {
		return err
	}

	if r.matrix == nil || len(r.matrix.Targets) == 0 {
		return errorf(KindConfiguration, "resolve build matrix", "no build targets")
	}

	if err := r.stageInputs(); err != nil {
		return err
	}

	r.tracker.SetTotals(len(r.matrix.Targets), r.repositories)

	return nil
}

// stageInputs copies the keymap and config into config/, once under their
// own names and once per keymap name the targets look for.
func (r *run) stageInputs() error {
	configDir := filepath.Join(r.workspace, DefaultConfigPath)
	if err := r.fs.MkdirAll(configDir); err != nil {
		return newError(KindWorkspace, "stage inputs", err)
	}

	names := keymapNames(r.matrix)

	for _, src := range []string{r.job.KeymapFile, r.job.ConfigFile} {
		if src == "" {
			continue
		}

		ext := filepath.Ext(src)
		dests := []string{filepath.Base(src)}
		for _, n := range names {
			dests = append(dests, n+ext)
		}

		for _, d := range dedupe(dests) {
			if _, err := r.fs.CopyFile(src, filepath.Join(configDir, d)); err != nil {
				return newError(KindWorkspace, "stage inputs", fmt.Errorf("failed to copy %s: %w", src, err))
			}
		}
	}

	return nil
}

// keymapNames derives the keymap base names the firmware build searches
// ZMK_CONFIG for: the shield or board without split suffixes.
func keymapNames(m *matrix.BuildMatrix) []string {
	var names []string

	for _, t := range m.Targets {
		name := t.Board
		if fields := strings.Fields(t.Shield); len(fields) > 0 {
			name = fields[0]
		}

		if i := strings.Index(name, "/"); i >= 0 {
			name = name[:i]
		}

		for _, suffix := range []string{"_left", "_right", "_lh", "_rh"} {
			name = strings.TrimSuffix(name, suffix)
		}

		names = append(names, name)
	}

	return dedupe(names)
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0:0]

	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}

		seen[s] = true
		out = append(out, s)
	}

	return out
}

// collect copies whatever firmware exists into the output directory.
func (r *run) collect() {
	scanner := artifacts.NewScanner(r.fs)

	files := scanner.ScanFirmwareFiles(filepath.Join(r.workspace, ArtifactsDir), "")
	if len(files) == 0 {
		files = scanner.ScanWorkspaceAndOutput(r.workspace, r.job.OutputDir, "")
	}

	if len(files) == 0 {
		if r.result.Success {
			r.result.AddError(errorf(KindArtifact, "collect artifacts", "no firmware files were produced"))
		}

		return
	}

	out, err := artifacts.NewCollector(r.fs).Collect(files, r.job.OutputDir)
	r.result.OutputFiles = out

	if err != nil {
		r.result.AddError(newError(KindArtifact, "collect artifacts", err))
		return
	}

	if r.job.Profile.KeepWorkspace {
		out.ArtifactsDir = filepath.Join(r.workspace, ArtifactsDir)
	}

	r.result.AddMessage("Collected %d firmware file(s) into %s", len(out.Files), out.OutputDir)

	for _, err := range r.validate(out.Files) {
		r.result.AddError(err)
	}
}

// validate checks every binary and returns one error per invalid file.
func (r *run) validate(files []string) []error {
	var errs []error

	report := artifacts.NewValidator(r.fs).GetValidationReport(files)
	for _, f := range report.Files {
		if !f.Valid {
			errs = append(errs, errorf(KindArtifact, "validate artifacts", "%s: %s", filepath.Base(f.Path), f.Error))
		}
	}

	return errs
}

// saveWorkspace stores a freshly fetched workspace under the repo tiers.
func (r *run) saveWorkspace(ctx context.Context) {
	res, err := r.job.Cache.CacheWorkspace(ctx, cache.CacheRequest{
		Path:         r.workspace,
		Repository:   r.repository,
		Branch:       r.branch,
		Tiers:        []cache.Tier{cache.TierRepo, cache.TierRepoBranch},
		Components:   append(append([]string{}, cache.ExpectedComponents...), cache.OptionalComponents...),
		BuildID:      r.job.BuildID,
		BuildProfile: r.job.Profile.String(),
		Progress:     r.cacheProgress,
	})
	if err != nil {
		r.log.Warn("failed to cache workspace", "error", err)
		return
	}

	r.result.AddMessage("Cached workspace at %s", res.Path)
}

// saveBuild records the build tier for the current inputs.
func (r *run) saveBuild(ctx context.Context) {
	_, err := r.job.Cache.CacheWorkspace(ctx, cache.CacheRequest{
		Path:         r.workspace,
		Repository:   r.repository,
		Branch:       r.buildBranch(),
		Tiers:        []cache.Tier{cache.TierBuild},
		Components:   []string{ArtifactsDir},
		BuildID:      r.job.BuildID,
		BuildProfile: r.job.Profile.String(),
		KeymapFile:   r.job.KeymapFile,
		ConfigFile:   r.job.ConfigFile,
	})
	if err != nil {
		r.log.Warn("failed to cache build", "error", err)
	}
}

func (r *run) cacheProgress(files, totalFiles int, _, _ int64, currentFile, component string) {
	r.tracker.UpdateCacheProgress(progress.CacheSave, files, totalFiles, currentFile, component)
}

func (r *run) writeBuildInfo(fromCache bool) {
	if r.result.OutputFiles.Empty() {
		return
	}

	info := artifacts.BuildInfo{
		BuildID:      r.job.BuildID,
		Timestamp:    r.now().UTC(),
		BuildMode:    r.result.Strategy,
		Profile:      r.job.Profile.String(),
		Success:      r.result.Success,
		FromCache:    fromCache,
		KeymapFile:   r.job.KeymapFile,
		KeymapSHA256: r.keymapHash,
		ConfigFile:   r.job.ConfigFile,
		ConfigSHA256: r.configHash,
		Binaries:     r.result.OutputFiles.Files,
	}

	if _, err := artifacts.WriteBuildInfo(r.fs, r.job.OutputDir, info); err != nil {
		r.log.Warn("failed to write build info", "error", err)
	}
}

// westFetch initializes the west workspace from config/west.yml and fetches
// every project.
func westFetch(ctx context.Context, r *run) error {
	r.tracker.TransitionToPhase(progress.PhaseWestUpdate, "Fetching firmware sources")

	_, err := r.builder.ExecuteScript(ctx, "west update", []string{
		"west init -l " + DefaultConfigPath,
		"west update",
		"west zephyr-export",
	}, r.mw)
	if err != nil {
		return asKind(err, KindWorkspace)
	}

	return nil
}

// westBuild runs every matrix target and copies outputs to artifacts/.
func westBuild(ctx context.Context, r *run, extraModules []string) error {
	opts := matrix.DefaultResolveOptions()
	opts.ConfigDir = WorkspaceMount + "/" + DefaultConfigPath
	opts.ArtifactsDir = ArtifactsDir
	opts.ExtraModules = extraModules

	resolutions := r.matrix.ResolveAll(opts)
	for _, res := range resolutions {
		r.log.Debug("resolved target", "target", res.ArtifactName, "command", res.BuildScript())
	}

	if r.job.BuildInfo != nil {
		r.builder.PrintBuildInfo(r.job.BuildInfo, r.result.Strategy, resolutions)
	}

	_, err := r.builder.ExecuteScript(ctx, "west build", BuildScript(resolutions, ArtifactsDir), r.mw)

	return err
}

// imageOutput is the chain for image pulls and builds, which report no
// progress.
func (r *run) imageOutput() docker.Middleware {
	return docker.Chain{r.job.BuildLog, r.job.Middleware}
}

// asKind reclassifies a build execution failure; killed processes keep
// their kind.
func asKind(err error, kind Kind) error {
	var e *Error
	if errors.As(err, &e) && e.Kind == KindBuildExecution {
		return &Error{Kind: kind, Op: e.Op, Err: e.Err}
	}

	return err
}
