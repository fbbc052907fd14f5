package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectNonBlankLines(t *testing.T) {
	input := "first\n\nsecond\n   \nthird"
	lines, err := collectNonBlankLines(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, lines, 3)
	assert.Equal(t, numberedLine{Number: 1, Text: "first"}, lines[0])
	assert.Equal(t, numberedLine{Number: 3, Text: "second"}, lines[1])
	assert.Equal(t, numberedLine{Number: 5, Text: "third"}, lines[2])
}

func TestCollectNonBlankLines_MissingTrailingNewlineKeepsFinalLine(t *testing.T) {
	lines, err := collectNonBlankLines(strings.NewReader("only"))
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "only", lines[0].Text)
}

func TestCollectNonBlankLines_Empty(t *testing.T) {
	lines, err := collectNonBlankLines(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestLineFeed_StopsOnHandlerError(t *testing.T) {
	var seen []string
	boom := assert.AnError
	err := lineFeed(strings.NewReader("a\nb\nc\n"), func(_ int, line string) error {
		seen = append(seen, line)
		if line == "b" {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"a", "b"}, seen)
}

func TestTrimmedEmpty(t *testing.T) {
	assert.True(t, trimmedEmpty("   \t\r"))
	assert.False(t, trimmedEmpty("  x "))
}
