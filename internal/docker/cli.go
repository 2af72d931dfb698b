package docker

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"github.com/Norgate-AV/kbfw/internal/codes"
	"github.com/Norgate-AV/kbfw/internal/ctxlog"
)

// Command is the subset of *exec.Cmd used by the CLI runtime.
type Command interface {
	StdoutPipe() (io.ReadCloser, error)
	StderrPipe() (io.ReadCloser, error)
	Start() error
	Wait() error
}

type exitCoder interface {
	ExitCode() int
}

// CLI is a Runtime backed by the docker command line client.
type CLI struct {
	binary      string
	execCommand func(ctx context.Context, name string, args ...string) Command
}

// NewCLI creates a runtime that invokes the given docker-compatible binary.
func NewCLI(binary string) *CLI {
	if binary == "" {
		binary = "docker"
	}

	return &CLI{
		binary: binary,
		execCommand: func(ctx context.Context, name string, args ...string) Command {
			return exec.CommandContext(ctx, name, args...)
		},
	}
}

func (c *CLI) IsAvailable(ctx context.Context) bool {
	res, err := c.run(ctx, []string{"info", "--format", "{{.ServerVersion}}"}, nil)
	return err == nil && codes.IsSuccess(res.ExitCode)
}

func (c *CLI) ImageExists(ctx context.Context, name, tag string) bool {
	res, err := c.run(ctx, []string{"image", "inspect", name + ":" + tag}, nil)
	return err == nil && codes.IsSuccess(res.ExitCode)
}

func (c *CLI) PullImage(ctx context.Context, name, tag string, mw Middleware) (Result, error) {
	return c.run(ctx, []string{"pull", name + ":" + tag}, mw)
}

func (c *CLI) BuildImage(ctx context.Context, contextDir, name, tag string, mw Middleware) (Result, error) {
	return c.run(ctx, []string{"build", "-t", name + ":" + tag, contextDir}, mw)
}

func (c *CLI) RunContainer(ctx context.Context, opts RunOptions, mw Middleware) (Result, error) {
	args, err := BuildRunArgs(opts)
	if err != nil {
		return Result{ExitCode: -1}, err
	}

	return c.run(ctx, args, mw)
}

// run executes the docker binary, reading stdout and stderr concurrently.
// Each stream keeps its own line order; there is no ordering between them.
func (c *CLI) run(ctx context.Context, args []string, mw Middleware) (Result, error) {
	log := ctxlog.FromContext(ctx)
	log.Debug("running container command", "binary", c.binary, "args", args)

	cmd := c.execCommand(ctx, c.binary, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Result{ExitCode: -1}, fmt.Errorf("stdout pipe error: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return Result{ExitCode: -1}, fmt.Errorf("stderr pipe error: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return Result{ExitCode: -1}, fmt.Errorf("failed to start %s: %w", c.binary, err)
	}

	var res Result
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		res.Stdout = streamPipe(stdout, Stdout, mw)
	}()

	go func() {
		defer wg.Done()
		res.Stderr = streamPipe(stderr, Stderr, mw)
	}()

	// Pipes must be drained before Wait closes them.
	wg.Wait()
	waitErr := cmd.Wait()

	if ctx.Err() != nil {
		res.ExitCode = -1
		return res, fmt.Errorf("%w: %w", ErrProcessKilled, ctx.Err())
	}

	if waitErr != nil {
		var ec exitCoder
		if !errors.As(waitErr, &ec) {
			res.ExitCode = -1
			return res, waitErr
		}

		res.ExitCode = ec.ExitCode()
	}

	if codes.IsKilled(res.ExitCode) {
		return res, fmt.Errorf("%w: exit code %d (%s)", ErrProcessKilled, res.ExitCode, codes.GetErrorMessage(res.ExitCode))
	}

	return res, nil
}

func streamPipe(pipe io.Reader, stream Stream, mw Middleware) []string {
	var lines []string

	scanner := bufio.NewScanner(pipe)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		keep := true

		if mw != nil {
			line, keep = mw.Process(line, stream)
		}

		if keep {
			lines = append(lines, line)
		}
	}

	if err := scanner.Err(); err != nil {
		lines = append(lines, fmt.Sprintf("log stream error: %v", err))
	}

	return lines
}
