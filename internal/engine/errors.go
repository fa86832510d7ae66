package engine

import (
	"errors"
	"fmt"
)

// PassError is returned when user code or the renderer fails during a pass.
//
// The pass stops at the failing boundary. Instructions emitted before the
// failure stay in the host logs and are not rolled back; boundaries still
// pending stay pending until the next trigger.
type PassError struct {
	// Code identifies the error category.
	Code PassErrorCode

	// Boundary is the path of the failing boundary, e.g. "main/App/Card".
	Boundary string

	// Hook names the lifecycle hook for ErrCodeHookFailed.
	Hook string

	// Host names the host for ErrCodeCommitFailed.
	Host string

	Err error
}

// PassErrorCode categorizes pass errors.
type PassErrorCode string

const (
	// ErrCodeRenderFailed indicates a component's render returned an error.
	ErrCodeRenderFailed PassErrorCode = "RENDER_FAILED"

	// ErrCodeHookFailed indicates a lifecycle hook returned an error.
	ErrCodeHookFailed PassErrorCode = "HOOK_FAILED"

	// ErrCodeCommitFailed indicates the renderer rejected an instruction log.
	ErrCodeCommitFailed PassErrorCode = "COMMIT_FAILED"
)

// Error implements the error interface.
func (e *PassError) Error() string {
	switch {
	case e.Hook != "":
		return fmt.Sprintf("%s: %s in %s: %v", e.Code, e.Hook, e.Boundary, e.Err)
	case e.Host != "":
		return fmt.Sprintf("%s: host %s: %v", e.Code, e.Host, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Boundary, e.Err)
}

// Unwrap returns the underlying error.
func (e *PassError) Unwrap() error { return e.Err }

var errNoConstructor = errors.New("component type has no constructor")

func newRenderError(b *Boundary, err error) *PassError {
	return &PassError{Code: ErrCodeRenderFailed, Boundary: b.Path(), Err: err}
}

func newHookError(b *Boundary, hook string, err error) *PassError {
	return &PassError{Code: ErrCodeHookFailed, Boundary: b.Path(), Hook: hook, Err: err}
}

func newCommitError(h *Host, err error) *PassError {
	return &PassError{Code: ErrCodeCommitFailed, Host: h.name, Err: err}
}

func hasCode(err error, code PassErrorCode) bool {
	var pe *PassError
	if errors.As(err, &pe) {
		return pe.Code == code
	}
	return false
}

// IsRenderError reports whether err came from a render call.
func IsRenderError(err error) bool { return hasCode(err, ErrCodeRenderFailed) }

// IsHookError reports whether err came from a lifecycle hook.
func IsHookError(err error) bool { return hasCode(err, ErrCodeHookFailed) }

// IsCommitError reports whether err came from the renderer.
func IsCommitError(err error) bool { return hasCode(err, ErrCodeCommitFailed) }
