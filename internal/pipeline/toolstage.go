package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"mcpshell/internal/dispatch"
	"mcpshell/internal/mcpsession"
)

// runToolStage drives the Tool Stage protocol to completion, producing a
// single string. Non-fan-out and fan-out follow different merge and
// dispatch rules for the Tool Stage protocol.
//
// Non-fan-out: the trimmed upstream is parsed as JSON. An object is merged
// with the caller's args, caller winning on key conflict. A non-object JSON
// value, or text that doesn't parse as JSON at all, is bound to the "input"
// key — unless "input" is already present in args, in which case the
// caller's value wins. This precedence (caller-provided "input" always
// wins) is deliberate and documented prominently per the open design
// question it resolves: do not silently change it.
func runToolStage(ctx context.Context, d *dispatch.Dispatcher, stage ToolStage, upstream io.Reader) (string, error) {
	if stage.ForEach {
		return runToolStageForEach(ctx, d, stage, upstream)
	}
	return runToolStageOnce(ctx, d, stage, upstream)
}

func runToolStageOnce(ctx context.Context, d *dispatch.Dispatcher, stage ToolStage, upstream io.Reader) (string, error) {
	raw, err := io.ReadAll(upstream)
	if err != nil {
		return "", fmt.Errorf("reading upstream: %w", err)
	}
	input := strings.TrimSpace(string(raw))

	args := mergeBaseArgs(stage.Args)
	if input != "" {
		var parsed any
		if err := json.Unmarshal([]byte(input), &parsed); err == nil {
			if obj, ok := parsed.(map[string]any); ok {
				for k, v := range obj {
					if _, exists := args[k]; !exists {
						args[k] = v
					}
				}
			} else {
				bindInput(args, parsed)
			}
		} else {
			bindInput(args, input)
		}
	}

	session, err := d.Open(ctx, stage.Server)
	if err != nil {
		return "", err
	}
	defer session.Close()

	result, err := session.CallTool(ctx, stage.Name, args)
	if err != nil {
		return "", err
	}
	return resultText(result), nil
}

func runToolStageForEach(ctx context.Context, d *dispatch.Dispatcher, stage ToolStage, upstream io.Reader) (string, error) {
	lines, err := collectNonBlankLines(upstream)
	if err != nil {
		return "", fmt.Errorf("reading upstream: %w", err)
	}

	argsList := make([]map[string]any, 0, len(lines))
	for _, nl := range lines {
		var parsed any
		if err := json.Unmarshal([]byte(nl.Text), &parsed); err != nil {
			return "", &ForEachJSONError{Line: nl.Number, Text: nl.Text, Inner: err}
		}
		obj, ok := parsed.(map[string]any)
		if !ok {
			return "", &ForEachJSONError{Line: nl.Number, Text: nl.Text}
		}
		merged := mergeBaseArgs(stage.Args)
		for k, v := range obj {
			if _, exists := merged[k]; !exists {
				merged[k] = v
			}
		}
		argsList = append(argsList, merged)
	}

	if len(argsList) == 0 {
		return "", nil
	}

	session, err := d.Open(ctx, stage.Server)
	if err != nil {
		return "", err
	}
	defer session.Close()

	results, err := session.BatchCall(ctx, stage.Name, argsList)
	if err != nil {
		if partial := partialBatchText(err); partial != "" {
			return "", fmt.Errorf("%w. Partial results:\n%s", err, partial)
		}
		return "", err
	}

	texts := make([]string, len(results))
	for i, r := range results {
		texts[i] = resultText(r)
	}
	return strings.Join(texts, "\n"), nil
}

func mergeBaseArgs(args map[string]any) map[string]any {
	merged := make(map[string]any, len(args))
	for k, v := range args {
		merged[k] = v
	}
	return merged
}

// bindInput binds value to the "input" key unless args already carries one
// (in which case the caller-provided value wins, per the open design
// question this resolves).
func bindInput(args map[string]any, value any) {
	if _, exists := args["input"]; exists {
		return
	}
	args["input"] = value
}

func resultText(r mcpsession.ToolResult) string {
	if text := r.Text(); text != "" {
		return text
	}
	raw, err := json.Marshal(r)
	if err != nil {
		return ""
	}
	return string(raw)
}

// partialBatchText recovers the joined text of whatever calls succeeded
// before a BatchError, so runToolStageForEach can append it to the stage
// error (E7: partial texts of items 1 and 2 when item 3 fails).
func partialBatchText(err error) string {
	var batchErr *mcpsession.BatchError
	if !asBatchError(err, &batchErr) {
		return ""
	}
	texts := make([]string, len(batchErr.Succeeded))
	for i, r := range batchErr.Succeeded {
		texts[i] = resultText(r)
	}
	return strings.Join(texts, "\n")
}

func asBatchError(err error, target **mcpsession.BatchError) bool {
	for err != nil {
		if be, ok := err.(*mcpsession.BatchError); ok {
			*target = be
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
