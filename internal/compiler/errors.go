package compiler

import (
	"errors"
	"fmt"

	"github.com/Norgate-AV/kbfw/internal/docker"
)

// Kind classifies compile failures.
type Kind string

const (
	KindConfiguration     Kind = "configuration"
	KindStrategySelection Kind = "strategy_selection"
	KindWorkspace         Kind = "workspace"
	KindBuildExecution    Kind = "build_execution"
	KindArtifact          Kind = "artifact"
	KindCache             Kind = "cache"
	KindProcessKilled     Kind = "process_killed"
)

// Sentinels matched by errors.Is against an *Error of the same kind.
var (
	ErrConfiguration     = errors.New("invalid configuration")
	ErrStrategySelection = errors.New("no suitable strategy")
	ErrWorkspace         = errors.New("workspace error")
	ErrBuildExecution    = errors.New("build failed")
	ErrArtifact          = errors.New("artifact error")
	ErrCache             = errors.New("cache error")
	ErrProcessKilled     = docker.ErrProcessKilled
)

var sentinels = map[Kind]error{
	KindConfiguration:     ErrConfiguration,
	KindStrategySelection: ErrStrategySelection,
	KindWorkspace:         ErrWorkspace,
	KindBuildExecution:    ErrBuildExecution,
	KindArtifact:          ErrArtifact,
	KindCache:             ErrCache,
	KindProcessKilled:     ErrProcessKilled,
}

// Error is a classified failure raised somewhere in a compile.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}

	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's kind.
func (e *Error) Is(target error) bool {
	s, ok := sentinels[e.Kind]
	return ok && s == target
}

// newError wraps err with a kind and operation.
func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// errorf builds a classified error from a format string.
func errorf(kind Kind, op, format string, args ...any) *Error {
	return newError(kind, op, fmt.Errorf(format, args...))
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}

	return "", false
}
