package pipeline

import (
	"fmt"
	"io"
	"strings"
)

// runPreviewStage collects the full upstream and emits a bounded, explicitly
// non-JSON summary envelope: a byte count, a truncation flag, and the first
// Chars characters of the stream. It exists so an agent can inspect a large
// intermediate byte stream without either piping megabytes back into its own
// context or accidentally treating the preview as machine-parseable JSON
// PreviewStage output is explicitly marked as not valid JSON.
func runPreviewStage(stage PreviewStage, upstream io.Reader) (string, error) {
	raw, err := io.ReadAll(upstream)
	if err != nil {
		return "", fmt.Errorf("reading upstream: %w", err)
	}
	full := string(raw)

	limit := stage.Chars
	if limit <= 0 {
		limit = DefaultPreviewChars
	}

	truncated := false
	excerpt := full
	if len(full) > limit {
		excerpt = full[:limit]
		truncated = true
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[preview: not JSON; %d bytes total", len(full))
	if truncated {
		fmt.Fprintf(&b, ", showing first %d characters", limit)
	}
	b.WriteString("]\n")
	b.WriteString(excerpt)
	return b.String(), nil
}
