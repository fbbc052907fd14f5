package mcpsession

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCallTooler struct {
	failAt  int // 1-indexed; 0 means never fail
	results []ToolResult
	calls   int
}

func (f *fakeCallTooler) CallTool(_ context.Context, _ string, _ map[string]any) (ToolResult, error) {
	f.calls++
	if f.failAt != 0 && f.calls == f.failAt {
		return ToolResult{}, errors.New("remote error")
	}
	return f.results[f.calls-1], nil
}

func TestBatchCall_AllSucceed(t *testing.T) {
	fake := &fakeCallTooler{results: []ToolResult{{IsError: false}, {IsError: false}}}
	results, err := batchCall(context.Background(), fake, "tool", []map[string]any{{"a": 1}, {"a": 2}})
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestBatchCall_PartialFailureReportsE7Shape(t *testing.T) {
	fake := &fakeCallTooler{
		failAt:  3,
		results: []ToolResult{{}, {}, {}, {}, {}},
	}
	argsList := []map[string]any{{}, {}, {}, {}, {}}
	results, err := batchCall(context.Background(), fake, "tool", argsList)
	require.Error(t, err)
	assert.Len(t, results, 2, "two calls succeeded before the third failed")

	var batchErr *BatchError
	require.ErrorAs(t, err, &batchErr)
	assert.Equal(t, 3, batchErr.Index)
	assert.Equal(t, 5, batchErr.Total)
	assert.Len(t, batchErr.Succeeded, 2)
	assert.Equal(t, "batch tool call failed at item 3 of 5. Completed: 2 successful, 2 pending: remote error", batchErr.Error())
}

func TestBatchCall_FailsOnFirstItem(t *testing.T) {
	fake := &fakeCallTooler{failAt: 1, results: []ToolResult{{}}}
	results, err := batchCall(context.Background(), fake, "tool", []map[string]any{{}})
	require.Error(t, err)
	assert.Empty(t, results)
	var batchErr *BatchError
	require.ErrorAs(t, err, &batchErr)
	assert.Equal(t, 0, len(batchErr.Succeeded))
}
