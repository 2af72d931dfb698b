package compiler

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Norgate-AV/kbfw/internal/artifacts"
	"github.com/Norgate-AV/kbfw/internal/docker"
	"github.com/Norgate-AV/kbfw/internal/progress"
)

// handlerFunc plays the part of a container: it receives the script and
// the host directory mounted as the workspace.
type handlerFunc func(script, workspace string, mw docker.Middleware) (int, error)

// fakeRuntime is an in-process docker.Runtime.
type fakeRuntime struct {
	mu        sync.Mutex
	available bool
	images    map[string]bool
	handler   handlerFunc
	scripts   []string
	pulled    []string
	built     []string
	env       map[string]string
}

func newFakeRuntime(handler handlerFunc) *fakeRuntime {
	return &fakeRuntime{available: true, images: map[string]bool{}, handler: handler}
}

func (f *fakeRuntime) IsAvailable(context.Context) bool {
	return f.available
}

func (f *fakeRuntime) ImageExists(_ context.Context, name, tag string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.images[name+":"+tag]
}

func (f *fakeRuntime) PullImage(_ context.Context, name, tag string, _ docker.Middleware) (docker.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.pulled = append(f.pulled, name+":"+tag)
	f.images[name+":"+tag] = true

	return docker.Result{}, nil
}

func (f *fakeRuntime) BuildImage(_ context.Context, contextDir, name, tag string, _ docker.Middleware) (docker.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.built = append(f.built, contextDir)
	f.images[name+":"+tag] = true

	return docker.Result{}, nil
}

func (f *fakeRuntime) RunContainer(_ context.Context, opts docker.RunOptions, mw docker.Middleware) (docker.Result, error) {
	script := opts.Command[len(opts.Command)-1]

	f.mu.Lock()
	f.scripts = append(f.scripts, script)
	f.env = opts.Env
	handler := f.handler
	f.mu.Unlock()

	if handler == nil {
		return docker.Result{}, nil
	}

	code, err := handler(script, opts.Volumes[0].Host, mw)

	return docker.Result{ExitCode: code}, err
}

// ran counts container runs whose script contains substr.
func (f *fakeRuntime) ran(substr string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, s := range f.scripts {
		if strings.Contains(s, substr) {
			n++
		}
	}

	return n
}

func emit(mw docker.Middleware, lines ...string) {
	for _, l := range lines {
		mw.Process(l, docker.Stdout)
	}
}

func uf2(size int) []byte {
	data := make([]byte, size)
	binary.LittleEndian.PutUint32(data, artifacts.UF2Magic)

	return data
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

// westHandler simulates west update and west build. Targets at or after
// failAt are not built and the build exits 1; failAt < 0 never fails.
func westHandler(t *testing.T, targets []string, failAt int) handlerFunc {
	return func(script, ws string, mw docker.Middleware) (int, error) {
		switch {
		case strings.Contains(script, "west update"):
			for _, c := range []string{"zmk/app", "zephyr", "modules/hal"} {
				writeFile(t, filepath.Join(ws, c, "README"), []byte(c))
			}

			writeFile(t, filepath.Join(ws, ".west", "config"), []byte("[manifest]\npath = config\n"))

			for i := 0; i < 40; i++ {
				emit(mw, fmt.Sprintf("=== updating project-%d (modules/p%d):", i, i))
			}

		case strings.Contains(script, "west build"):
			for i, name := range targets {
				if failAt >= 0 && i >= failAt {
					emit(mw, "FAILED: zephyr/CMakeFiles/zephyr.dir/drivers.c.obj")
					return 1, nil
				}

				emit(mw,
					"-- west build: making build dir /workspace/build/"+name+" pristine",
					"[1/2] Building C object",
					"[2/2] Linking C executable zephyr/zmk.elf",
					"Wrote 600 bytes to zmk.uf2",
				)
				writeFile(t, filepath.Join(ws, ArtifactsDir, name+".uf2"), uf2(600))
				writeFile(t, filepath.Join(ws, ArtifactsDir, name+".elf"), []byte("elf"))
			}
		}

		return 0, nil
	}
}

// recorder collects progress snapshots.
type recorder struct {
	mu    sync.Mutex
	snaps []progress.Snapshot
}

func (r *recorder) callback(s progress.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.snaps = append(r.snaps, s)
}

func (r *recorder) phases() []progress.Phase {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []progress.Phase
	for _, s := range r.snaps {
		if len(out) == 0 || out[len(out)-1] != s.Phase {
			out = append(out, s.Phase)
		}
	}

	return out
}

func (r *recorder) last() progress.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.snaps[len(r.snaps)-1]
}

// inputs writes a keymap and config and returns their paths.
func inputs(t *testing.T, keymap string) (string, string) {
	dir := t.TempDir()
	km := filepath.Join(dir, "corne.keymap")
	conf := filepath.Join(dir, "corne.conf")

	writeFile(t, km, []byte(keymap))
	writeFile(t, conf, []byte("CONFIG_ZMK_SLEEP=y\n"))

	return km, conf
}
