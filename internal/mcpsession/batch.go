package mcpsession

import "context"

// callTooler is the subset of Session that batchCall needs, so both
// transport implementations can share the sequential dispatch logic.
type callTooler interface {
	CallTool(ctx context.Context, name string, args map[string]any) (ToolResult, error)
}

// batchCall issues len(argsList) tool calls sequentially over an
// already-open session. This is the hot path for fan-out: one
// connect/handshake amortized over every line instead of one per line.
// Calls are awaited one at a time even though the session is reused — the
// reuse buys latency, not parallelism.
func batchCall(ctx context.Context, s callTooler, name string, argsList []map[string]any) ([]ToolResult, error) {
	results := make([]ToolResult, 0, len(argsList))
	for i, args := range argsList {
		result, err := s.CallTool(ctx, name, args)
		if err != nil {
			return results, &BatchError{
				Index:      i + 1,
				Total:      len(argsList),
				Succeeded:  results,
				Underlying: err,
			}
		}
		results = append(results, result)
	}
	return results, nil
}
