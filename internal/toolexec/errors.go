package toolexec

import (
	"errors"
	"fmt"

	"github.com/linggen/linggen-agent/pkg/models"
)

// Sentinel errors surfaced by the executor's own bookkeeping, distinct from
// the per-call ToolResult error variant a tool returns for the model to
// observe.
var (
	ErrToolNotFound = errors.New("tool not found")
	ErrToolTimeout  = errors.New("tool execution timed out")
	ErrToolPanic    = errors.New("tool panicked")
	ErrBackpressure = errors.New("backpressure: system overloaded")
)

// FatalError marks an error as belonging to the Fatal kind of the five-kind
// taxonomy (storage corruption, configuration load failure): these
// terminate the run or process with a non-zero exit rather than being fed
// back to the model as an observation.
type FatalError struct {
	Message string
	Cause   error
}

func (e *FatalError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("fatal: %s: %v", e.Message, e.Cause)
	}
	return "fatal: " + e.Message
}

func (e *FatalError) Unwrap() error { return e.Cause }

// ClassifyError maps an internal error into the five-kind taxonomy used by
// models.ErrorKind, for tools that fail via a Go error rather than
// constructing their own ToolResult.
func ClassifyError(err error) models.ErrorKind {
	switch {
	case errors.Is(err, ErrToolTimeout):
		return models.ErrorKindTimeout
	case errors.Is(err, ErrToolNotFound):
		return models.ErrorKindNotFound
	case errors.Is(err, ErrToolPanic):
		return models.ErrorKindExternal
	default:
		return models.ErrorKindExternal
	}
}
