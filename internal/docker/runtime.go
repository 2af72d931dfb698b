// Package docker is the container runtime collaborator. It defines the
// Runtime contract the build strategies depend on and a CLI-backed
// implementation that shells out to the docker binary.
package docker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
)

// ErrProcessKilled is returned when a container run was cancelled or killed
// by a signal before it could finish.
var ErrProcessKilled = errors.New("build process killed")

// Stream identifies which output stream a line came from.
type Stream string

const (
	Stdout Stream = "stdout"
	Stderr Stream = "stderr"
)

// Volume is a host directory mounted into the container.
type Volume struct {
	Host      string
	Container string
	ReadOnly  bool
}

func (v Volume) String() string {
	s := v.Host + ":" + v.Container
	if v.ReadOnly {
		s += ":ro"
	}

	return s
}

// UserContext maps the container process onto a host user so files written
// into mounted volumes stay owned by the caller.
type UserContext struct {
	Enabled bool
	UID     int
	GID     int
}

// CurrentUser returns the user context of the running process. User mapping
// is disabled on platforms without numeric ids.
func CurrentUser() UserContext {
	uid, gid := os.Getuid(), os.Getgid()
	if uid < 0 || gid < 0 {
		return UserContext{}
	}

	return UserContext{Enabled: true, UID: uid, GID: gid}
}

// RunOptions describes a single container invocation.
type RunOptions struct {
	Image   string
	Command []string
	Volumes []Volume
	Env     map[string]string
	User    UserContext
	WorkDir string
}

// Result is the outcome of a container or image command.
type Result struct {
	ExitCode int
	Stdout   []string
	Stderr   []string
}

// Runtime is everything the build strategies need from a container engine.
type Runtime interface {
	IsAvailable(ctx context.Context) bool
	ImageExists(ctx context.Context, name, tag string) bool
	PullImage(ctx context.Context, name, tag string, mw Middleware) (Result, error)
	BuildImage(ctx context.Context, contextDir, name, tag string, mw Middleware) (Result, error)
	RunContainer(ctx context.Context, opts RunOptions, mw Middleware) (Result, error)
}

// SplitImage splits "name:tag" into its parts, defaulting the tag to latest.
// Registry ports ("host:5000/name") are not mistaken for tags.
func SplitImage(ref string) (string, string) {
	slash := strings.LastIndex(ref, "/")
	colon := strings.LastIndex(ref, ":")
	if colon > slash {
		return ref[:colon], ref[colon+1:]
	}

	return ref, "latest"
}

// BuildRunArgs builds the docker CLI arguments for a container run
func BuildRunArgs(opts RunOptions) ([]string, error) {
	if opts.Image == "" {
		return nil, fmt.Errorf("image is required")
	}

	if len(opts.Command) == 0 {
		return nil, fmt.Errorf("command is required")
	}

	args := []string{"run", "--rm"}

	for _, v := range opts.Volumes {
		if v.Host == "" || v.Container == "" {
			continue
		}

		args = append(args, "-v", v.String())
	}

	keys := make([]string, 0, len(opts.Env))
	for k := range opts.Env {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	for _, k := range keys {
		args = append(args, "-e", k+"="+opts.Env[k])
	}

	if opts.User.Enabled {
		args = append(args, "-u", fmt.Sprintf("%d:%d", opts.User.UID, opts.User.GID))
	}

	if opts.WorkDir != "" {
		args = append(args, "-w", opts.WorkDir)
	}

	args = append(args, opts.Image)
	args = append(args, opts.Command...)

	return args, nil
}
