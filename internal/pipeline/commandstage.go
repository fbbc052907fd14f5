package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"mcpshell/internal/sandbox"
)

// DefaultCommandTimeout bounds a CommandStage invocation when the stage
// itself does not override it.
const DefaultCommandTimeout = 30 * time.Second

// runCommandStage drives the Command Stage protocol: a non-for_each stage
// streams the whole upstream into a single sandboxed invocation; a for_each
// stage runs one invocation per non-blank upstream line, feeding that line
// (plus a trailing newline) as stdin, and joins the per-line stdouts with
// newlines in order.
func runCommandStage(ctx context.Context, runner *sandbox.Runner, stage CommandStage, upstream io.Reader) (string, error) {
	timeout := DefaultCommandTimeout
	if stage.Timeout != nil {
		timeout = time.Duration(*stage.Timeout * float64(time.Second))
	}
	argv := append([]string{stage.Command}, stage.Args...)

	if !stage.ForEach {
		out, err := runner.Run(ctx, argv, upstream, timeout)
		if err != nil {
			return "", err
		}
		defer out.Close()
		raw, err := io.ReadAll(out)
		if err != nil {
			return "", err
		}
		return string(raw), nil
	}

	lines, err := collectNonBlankLines(upstream)
	if err != nil {
		return "", fmt.Errorf("reading upstream: %w", err)
	}

	results := make([]string, 0, len(lines))
	for _, nl := range lines {
		stdin := strings.NewReader(nl.Text + "\n")
		out, err := runner.Run(ctx, argv, stdin, timeout)
		if err != nil {
			return "", err
		}
		var buf bytes.Buffer
		_, copyErr := io.Copy(&buf, out)
		out.Close()
		if copyErr != nil {
			return "", copyErr
		}
		results = append(results, strings.TrimRight(buf.String(), "\n"))
	}
	return strings.Join(results, "\n"), nil
}
