package pipeline

import "fmt"

// ValidationError is rejected at entry and never enters the engine.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// ForEachJSONError is raised when a fan-out ToolStage's upstream line fails
// to parse as a JSON object. It always names the line number (1-indexed),
// the first 100 characters of the offending line, and a remediation hint.
type ForEachJSONError struct {
	Line  int
	Text  string
	Inner error
}

func (e *ForEachJSONError) Error() string {
	excerpt := e.Text
	if len(excerpt) > 100 {
		excerpt = excerpt[:100]
	}
	hint := "use a JSON filter to restructure, e.g. jq -c '{param_name: .}'"
	if e.Inner != nil {
		return fmt.Sprintf("Line %d: invalid JSON in for_each mode. Got: %s... %s (%v)", e.Line, excerpt, hint, e.Inner)
	}
	return fmt.Sprintf("Line %d: expected a JSON object. Got: %s... %s", e.Line, excerpt, hint)
}

func (e *ForEachJSONError) Unwrap() error { return e.Inner }

// StageError wraps any stage-fatal failure with its 1-indexed stage
// position and kind, formatted as:
// "Stage {i+1} ({kind}) failed: {inner}".
type StageError struct {
	Index int // 0-indexed; Error() reports Index+1
	Kind  string
	Inner error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("Stage %d (%s) failed: %v", e.Index+1, e.Kind, e.Inner)
}

func (e *StageError) Unwrap() error { return e.Inner }

func stageErr(index int, kind string, inner error) error {
	return &StageError{Index: index, Kind: kind, Inner: inner}
}
