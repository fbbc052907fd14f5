package pipeline

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcpshell/internal/sandbox"
)

func TestRunCommandStage_Streaming(t *testing.T) {
	runner := sandbox.NewDirectRunner()
	out, err := runCommandStage(context.Background(), runner, CommandStage{
		Command: "wc",
		Args:    []string{"-l"},
	}, strings.NewReader("a\nb\nc\n"))
	require.NoError(t, err)
	assert.Equal(t, "3", strings.TrimSpace(out))
}

func TestRunCommandStage_ForEachRunsOncePerLine(t *testing.T) {
	runner := sandbox.NewDirectRunner()
	out, err := runCommandStage(context.Background(), runner, CommandStage{
		Command: "tr",
		Args:    []string{"a-z", "A-Z"},
		ForEach: true,
	}, strings.NewReader("abc\n\ndef\n"))
	require.NoError(t, err)
	assert.Equal(t, "ABC\nDEF", out)
}

func TestRunCommandStage_RejectsDisallowedCommand(t *testing.T) {
	runner := sandbox.NewDirectRunner()
	_, err := runCommandStage(context.Background(), runner, CommandStage{
		Command: "rm",
	}, strings.NewReader(""))
	assert.ErrorIs(t, err, sandbox.ErrCommandNotAllowed)
}
