package pipeline

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStageError_Format(t *testing.T) {
	err := stageErr(2, "command", errors.New("boom"))
	assert.Equal(t, "Stage 3 (command) failed: boom", err.Error())
}

func TestForEachJSONError_ExcerptTruncatedAt100Chars(t *testing.T) {
	long := ""
	for i := 0; i < 150; i++ {
		long += "x"
	}
	err := &ForEachJSONError{Line: 4, Text: long}
	msg := err.Error()
	assert.Contains(t, msg, "Line 4")
	assert.Contains(t, msg, "jq -c")
	// Excerpt is bounded to the first 100 characters of the line.
	assert.NotContains(t, msg, long)
}

func TestForEachJSONError_Unwrap(t *testing.T) {
	inner := errors.New("invalid character")
	err := &ForEachJSONError{Line: 1, Text: "not json", Inner: inner}
	assert.ErrorIs(t, err, inner)
}

func TestValidationError(t *testing.T) {
	err := &ValidationError{Reason: "pipeline must contain at least one stage"}
	assert.Equal(t, "pipeline must contain at least one stage", err.Error())
}
