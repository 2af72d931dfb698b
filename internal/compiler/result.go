package compiler

import (
	"errors"
	"fmt"

	"github.com/Norgate-AV/kbfw/internal/artifacts"
)

// BuildResult is the outcome of a compile. A failed result always carries
// at least one error and may still hold partial output files.
type BuildResult struct {
	Success     bool                   `json:"success"`
	Messages    []string               `json:"messages"`
	Errors      []string               `json:"errors"`
	OutputFiles *artifacts.OutputFiles `json:"output_files,omitempty"`
	BuildID     string                 `json:"build_id"`
	Strategy    string                 `json:"strategy,omitempty"`
	FromCache   bool                   `json:"from_cache"`

	errs []error
}

func newResult(buildID string) *BuildResult {
	return &BuildResult{Success: true, BuildID: buildID}
}

// AddMessage appends an informational message.
func (r *BuildResult) AddMessage(format string, args ...any) {
	r.Messages = append(r.Messages, fmt.Sprintf(format, args...))
}

// AddError records err and marks the result failed.
func (r *BuildResult) AddError(err error) {
	if err == nil {
		return
	}

	r.Success = false
	r.Errors = append(r.Errors, err.Error())
	r.errs = append(r.errs, err)
}

// Err joins every recorded error, or returns nil on success.
func (r *BuildResult) Err() error {
	if len(r.errs) == 0 {
		if !r.Success {
			return ErrBuildExecution
		}

		return nil
	}

	return errors.Join(r.errs...)
}

// failed returns a failed result carrying err.
func failed(buildID string, err error) *BuildResult {
	r := newResult(buildID)
	r.AddError(err)

	return r
}
