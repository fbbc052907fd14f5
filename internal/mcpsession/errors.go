package mcpsession

import (
	"context"
	"errors"
	"fmt"
)

// Dispatch errors. These are the reasons a ToolDispatchError can carry
// the workload lookup or session-open step failed before any RPC
// was attempted.
var (
	ErrWorkloadNotFound   = errors.New("workload_not_found")
	ErrWorkloadNotRunning = errors.New("workload_not_running")
	ErrNoURL              = errors.New("no_url")
)

// ErrCallTimeout is returned by CallTool/BatchCall (and any other RPC) when
// the per-call deadline elapses before the remote replies.
var ErrCallTimeout = errors.New("timeout")

// callDeadlineErr reports the reason a call's context ended: ErrCallTimeout
// when its own per-call deadline (set by call()'s context.WithTimeout) fired,
// or ctx.Err() unchanged for an outer cancellation (e.g. the caller's ctx).
func callDeadlineErr(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrCallTimeout
	}
	return ctx.Err()
}

// BatchError reports a partial failure during BatchCall: the call at Index
// (1-indexed) failed; Succeeded results from earlier calls are preserved so
// the agent can resume manually.
type BatchError struct {
	Index      int
	Total      int
	Succeeded  []ToolResult
	Underlying error
}

func (e *BatchError) Error() string {
	pending := e.Total - e.Index
	return fmt.Sprintf("batch tool call failed at item %d of %d. Completed: %d successful, %d pending: %v",
		e.Index, e.Total, len(e.Succeeded), pending, e.Underlying)
}

func (e *BatchError) Unwrap() error { return e.Underlying }
