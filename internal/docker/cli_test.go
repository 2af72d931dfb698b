package docker

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockCommand implements Command for testing
type mockCommand struct {
	stdout  string
	stderr  string
	waitErr error
	started bool
}

func (m *mockCommand) StdoutPipe() (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(m.stdout)), nil
}

func (m *mockCommand) StderrPipe() (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(m.stderr)), nil
}

func (m *mockCommand) Start() error {
	m.started = true
	return nil
}

func (m *mockCommand) Wait() error {
	return m.waitErr
}

type exitError struct {
	code int
}

func (e *exitError) Error() string { return "exit status" }
func (e *exitError) ExitCode() int { return e.code }

func newMockCLI(cmd *mockCommand, gotArgs *[]string) *CLI {
	c := NewCLI("docker")
	c.execCommand = func(ctx context.Context, name string, args ...string) Command {
		if gotArgs != nil {
			*gotArgs = append([]string{name}, args...)
		}

		return cmd
	}

	return c
}

func TestBuildRunArgs(t *testing.T) {
	tests := []struct {
		name        string
		opts        RunOptions
		wantArgs    []string
		wantErr     bool
		errContains string
	}{
		{
			name: "minimal run",
			opts: RunOptions{
				Image:   "zmkfirmware/zmk-build-arm:stable",
				Command: []string{"west", "build"},
			},
			wantArgs: []string{"run", "--rm", "zmkfirmware/zmk-build-arm:stable", "west", "build"},
		},
		{
			name: "volumes, sorted env, user and workdir",
			opts: RunOptions{
				Image:   "img:tag",
				Command: []string{"sh", "-c", "true"},
				Volumes: []Volume{
					{Host: "/tmp/ws", Container: "/workspace"},
					{Host: "/tmp/cfg", Container: "/config", ReadOnly: true},
				},
				Env:     map[string]string{"ZEPHYR_BASE": "/workspace/zephyr", "BOARD": "nice_nano_v2"},
				User:    UserContext{Enabled: true, UID: 1000, GID: 1000},
				WorkDir: "/workspace",
			},
			wantArgs: []string{
				"run", "--rm",
				"-v", "/tmp/ws:/workspace",
				"-v", "/tmp/cfg:/config:ro",
				"-e", "BOARD=nice_nano_v2",
				"-e", "ZEPHYR_BASE=/workspace/zephyr",
				"-u", "1000:1000",
				"-w", "/workspace",
				"img:tag", "sh", "-c", "true",
			},
		},
		{
			name: "incomplete volume is skipped",
			opts: RunOptions{
				Image:   "img",
				Command: []string{"true"},
				Volumes: []Volume{{Host: "", Container: "/x"}},
			},
			wantArgs: []string{"run", "--rm", "img", "true"},
		},
		{
			name:        "missing image",
			opts:        RunOptions{Command: []string{"true"}},
			wantErr:     true,
			errContains: "image is required",
		},
		{
			name:        "missing command",
			opts:        RunOptions{Image: "img"},
			wantErr:     true,
			errContains: "command is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args, err := BuildRunArgs(tt.opts)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestSplitImage(t *testing.T) {
	tests := []struct {
		ref      string
		wantName string
		wantTag  string
	}{
		{"zmkfirmware/zmk-build-arm:stable", "zmkfirmware/zmk-build-arm", "stable"},
		{"ubuntu", "ubuntu", "latest"},
		{"registry:5000/zmk", "registry:5000/zmk", "latest"},
		{"registry:5000/zmk:3.5", "registry:5000/zmk", "3.5"},
	}

	for _, tt := range tests {
		name, tag := SplitImage(tt.ref)
		assert.Equal(t, tt.wantName, name, "SplitImage(%q)", tt.ref)
		assert.Equal(t, tt.wantTag, tag, "SplitImage(%q)", tt.ref)
	}
}

func TestCLI_RunContainer_CollectsBothStreams(t *testing.T) {
	cmd := &mockCommand{
		stdout: "-- west build: generating a build system\n[1/10] Building C object\n",
		stderr: "warning: unused variable\n",
	}

	var gotArgs []string
	c := newMockCLI(cmd, &gotArgs)

	res, err := c.RunContainer(context.Background(), RunOptions{Image: "img", Command: []string{"west", "build"}}, nil)
	require.NoError(t, err)

	assert.True(t, cmd.started)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, []string{"-- west build: generating a build system", "[1/10] Building C object"}, res.Stdout)
	assert.Equal(t, []string{"warning: unused variable"}, res.Stderr)
	assert.Equal(t, []string{"docker", "run", "--rm", "img", "west", "build"}, gotArgs)
}

func TestCLI_RunContainer_MiddlewareChain(t *testing.T) {
	cmd := &mockCommand{stdout: "keep\ndrop\nkeep too\n", stderr: "err line\n"}
	c := newMockCLI(cmd, nil)

	var mu sync.Mutex
	seen := map[Stream]int{}

	counter := MiddlewareFunc(func(line string, stream Stream) (string, bool) {
		mu.Lock()
		seen[stream]++
		mu.Unlock()

		return line, true
	})

	filter := MiddlewareFunc(func(line string, _ Stream) (string, bool) {
		return strings.ToUpper(line), line != "drop"
	})

	res, err := c.RunContainer(context.Background(), RunOptions{Image: "img", Command: []string{"true"}}, Chain{counter, filter})
	require.NoError(t, err)

	assert.Equal(t, []string{"KEEP", "KEEP TOO"}, res.Stdout)
	assert.Equal(t, []string{"ERR LINE"}, res.Stderr)
	assert.Equal(t, 3, seen[Stdout])
	assert.Equal(t, 1, seen[Stderr])
}

func TestCLI_RunContainer_NonZeroExit(t *testing.T) {
	cmd := &mockCommand{stdout: "FAILED: zephyr/zmk.elf\n", waitErr: &exitError{code: 1}}
	c := newMockCLI(cmd, nil)

	res, err := c.RunContainer(context.Background(), RunOptions{Image: "img", Command: []string{"west", "build"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.ExitCode)
	assert.Equal(t, []string{"FAILED: zephyr/zmk.elf"}, res.Stdout)
}

func TestCLI_RunContainer_KilledExit(t *testing.T) {
	cmd := &mockCommand{waitErr: &exitError{code: 137}}
	c := newMockCLI(cmd, nil)

	res, err := c.RunContainer(context.Background(), RunOptions{Image: "img", Command: []string{"west", "build"}}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProcessKilled)
	assert.Equal(t, 137, res.ExitCode)
}

func TestCLI_RunContainer_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cmd := &mockCommand{waitErr: errors.New("signal: killed")}
	c := newMockCLI(cmd, nil)

	res, err := c.RunContainer(ctx, RunOptions{Image: "img", Command: []string{"west", "build"}}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProcessKilled)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, -1, res.ExitCode)
}

func TestCLI_RunContainer_NonExitError(t *testing.T) {
	cmd := &mockCommand{waitErr: errors.New("command not found")}
	c := newMockCLI(cmd, nil)

	_, err := c.RunContainer(context.Background(), RunOptions{Image: "img", Command: []string{"true"}}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "command not found")
}

func TestCLI_ImageExists(t *testing.T) {
	var gotArgs []string
	c := newMockCLI(&mockCommand{}, &gotArgs)
	assert.True(t, c.ImageExists(context.Background(), "zmk", "stable"))
	assert.Equal(t, []string{"docker", "image", "inspect", "zmk:stable"}, gotArgs)

	c = newMockCLI(&mockCommand{waitErr: &exitError{code: 1}}, nil)
	assert.False(t, c.ImageExists(context.Background(), "zmk", "missing"))
}

func TestCLI_IsAvailable(t *testing.T) {
	c := newMockCLI(&mockCommand{stdout: "27.1.1\n"}, nil)
	assert.True(t, c.IsAvailable(context.Background()))

	c = newMockCLI(&mockCommand{waitErr: errors.New("cannot connect to the docker daemon")}, nil)
	assert.False(t, c.IsAvailable(context.Background()))
}

func TestNewCLI(t *testing.T) {
	c := NewCLI("")
	assert.NotNil(t, c)
	assert.Equal(t, "docker", c.binary)
	assert.NotNil(t, c.execCommand)
}
