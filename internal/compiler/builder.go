package compiler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"strings"

	"github.com/Norgate-AV/kbfw/internal/codes"
	"github.com/Norgate-AV/kbfw/internal/docker"
	"github.com/Norgate-AV/kbfw/internal/matrix"
)

// WorkspaceMount is where the build workspace is mounted in the container.
const WorkspaceMount = "/workspace"

// CommandBuilder turns shell scripts into container runs against one
// mounted workspace.
type CommandBuilder struct {
	runtime   docker.Runtime
	image     string
	workspace string
	mount     string
	user      docker.UserContext
	env       map[string]string
}

// NewCommandBuilder creates a builder that mounts workspace at WorkspaceMount.
func NewCommandBuilder(rt docker.Runtime, image, workspace string, user docker.UserContext) *CommandBuilder {
	return &CommandBuilder{
		runtime:   rt,
		image:     image,
		workspace: workspace,
		mount:     WorkspaceMount,
		user:      user,
		env:       map[string]string{},
	}
}

// SetEnv adds an environment variable to every run.
func (cb *CommandBuilder) SetEnv(key, value string) {
	cb.env[key] = value
}

// BuildRunOptions builds the container run for a script. Lines run in
// order under `set -e`.
func (cb *CommandBuilder) BuildRunOptions(script []string) (docker.RunOptions, error) {
	if cb.image == "" {
		return docker.RunOptions{}, fmt.Errorf("container image is required")
	}

	if cb.workspace == "" {
		return docker.RunOptions{}, fmt.Errorf("workspace directory is required")
	}

	var lines []string
	for _, l := range script {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}

	if len(lines) == 0 {
		return docker.RunOptions{}, fmt.Errorf("script is empty")
	}

	return docker.RunOptions{
		Image:   cb.image,
		Command: []string{"sh", "-c", "set -e\n" + strings.Join(lines, "\n")},
		Volumes: []docker.Volume{{Host: cb.workspace, Container: cb.mount}},
		Env:     maps.Clone(cb.env),
		User:    cb.user,
		WorkDir: cb.mount,
	}, nil
}

// ExecuteScript runs a script and classifies the outcome. Signals map to
// KindProcessKilled, any other non-zero exit to KindBuildExecution.
func (cb *CommandBuilder) ExecuteScript(ctx context.Context, op string, script []string, mw docker.Middleware) (docker.Result, error) {
	opts, err := cb.BuildRunOptions(script)
	if err != nil {
		return docker.Result{ExitCode: -1}, newError(KindConfiguration, op, err)
	}

	res, err := cb.runtime.RunContainer(ctx, opts, mw)
	if err != nil {
		if errors.Is(err, docker.ErrProcessKilled) {
			return res, newError(KindProcessKilled, op, err)
		}

		return res, newError(KindBuildExecution, op, err)
	}

	if codes.IsKilled(res.ExitCode) {
		return res, errorf(KindProcessKilled, op, "%w: exit code %d (%s)", docker.ErrProcessKilled, res.ExitCode, codes.GetErrorMessage(res.ExitCode))
	}

	if !codes.IsSuccess(res.ExitCode) {
		msg := fmt.Sprintf("exit code %d (%s)", res.ExitCode, codes.GetErrorMessage(res.ExitCode))
		if last := lastLine(res.Stderr); last != "" {
			msg += ": " + last
		}

		return res, newError(KindBuildExecution, op, errors.New(msg))
	}

	return res, nil
}

// BuildScript renders the west build and artifact copy for every target.
func BuildScript(resolutions []matrix.Resolution, artifactsDir string) []string {
	var script []string
	for _, r := range resolutions {
		script = append(script, r.BuildScript(), r.CopyScript(artifactsDir))
	}

	return script
}

// PrintBuildInfo prints the image, mount and per-target commands of a build.
func (cb *CommandBuilder) PrintBuildInfo(w io.Writer, strategy string, resolutions []matrix.Resolution) {
	fmt.Fprintf(w, "Strategy: %s\nImage: %s\nWorkspace: %s -> %s\n", strategy, cb.image, cb.workspace, cb.mount)

	for _, r := range resolutions {
		fmt.Fprintf(w, "Target: %s\nCommand: %s\n", r.ArtifactName, r.BuildScript())
	}
}

func lastLine(lines []string) string {
	for i := len(lines) - 1; i >= 0; i-- {
		if s := strings.TrimSpace(lines[i]); s != "" {
			return s
		}
	}

	return ""
}
