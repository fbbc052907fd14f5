package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"mcpshell/internal/dispatch"
	"mcpshell/internal/sandbox"
	"mcpshell/internal/telemetry"
)

// Engine executes a validated Pipeline by walking its stages in order,
// piping each stage's output into the next as a byte stream — the
// Unix-pipe model stages are built on.
type Engine struct {
	dispatcher *dispatch.Dispatcher
	runner     *sandbox.Runner
	obs        *telemetry.Observability
}

// NewEngine builds an Engine. runner may be nil if the process has no
// sandbox available; pipelines that never reach a CommandStage still work,
// and one that does fails with sandbox.ErrSandboxUnavailable.
func NewEngine(dispatcher *dispatch.Dispatcher, runner *sandbox.Runner, obs *telemetry.Observability) *Engine {
	if obs == nil {
		obs = telemetry.New(nil, nil, nil)
	}
	return &Engine{dispatcher: dispatcher, runner: runner, obs: obs}
}

// Execute runs every stage of p against an initially empty upstream,
// returning the final stage's output. Any stage failure is wrapped in a
// *StageError naming the stage's 1-indexed position and kind, per
// the error-propagation rule: the first failing stage halts the
// pipeline, and no later stage runs.
func (e *Engine) Execute(ctx context.Context, p Pipeline) (string, error) {
	op := telemetry.Operation{Component: "pipeline", Name: "execute"}
	runID := uuid.NewString()
	start := time.Now()
	ctx, span := e.obs.StartSpan(ctx, op, attribute.String("run_id", runID))

	upstream := ""
	for i, stage := range p {
		kind, out, err := e.runStage(ctx, stage, upstream)
		if err != nil {
			stageErrWrapped := stageErr(i, kind, err)
			e.obs.EndSpan(span, telemetry.OutcomeError, stageErrWrapped)
			e.obs.Record(ctx, telemetry.Event{Op: op, Duration: time.Since(start), Outcome: telemetry.OutcomeError, Err: stageErrWrapped, Attrs: []any{"run_id", runID}})
			return "", stageErrWrapped
		}
		upstream = out
	}
	e.obs.EndSpan(span, telemetry.OutcomeSuccess, nil)
	e.obs.Record(ctx, telemetry.Event{Op: op, Duration: time.Since(start), Outcome: telemetry.OutcomeSuccess, Attrs: []any{"run_id", runID}})
	return upstream, nil
}

func (e *Engine) runStage(ctx context.Context, stage Stage, upstream string) (kind, out string, err error) {
	switch s := stage.(type) {
	case ToolStage:
		kind = fmt.Sprintf("tool %s/%s", s.Server, s.Name)
		out, err = runToolStage(ctx, e.dispatcher, s, strings.NewReader(upstream))
		return kind, out, err
	case CommandStage:
		kind = "command"
		if e.runner == nil {
			return kind, "", sandbox.ErrSandboxUnavailable
		}
		out, err = runCommandStage(ctx, e.runner, s, strings.NewReader(upstream))
		return kind, out, err
	case PreviewStage:
		kind = "preview"
		out, err = runPreviewStage(s, strings.NewReader(upstream))
		return kind, out, err
	default:
		return "unknown", "", fmt.Errorf("unrecognized stage type %T", stage)
	}
}
