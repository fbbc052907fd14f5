// Package pipeline implements the pipeline execution engine: stage
// scheduling, inter-stage streaming, the JSON⇄stdio boundary, the fan-out
// dispatch mode, and error propagation with stage context.
package pipeline

import (
	"encoding/json"
	"fmt"
)

// Stage is one element of a Pipeline's discriminated union. Concrete types
// are ToolStage, CommandStage, and PreviewStage.
type Stage interface {
	stageType() string
}

// ToolStage dispatches to a remote workload's tool.
type ToolStage struct {
	Name    string         `json:"name"`
	Server  string         `json:"server"`
	Args    map[string]any `json:"args,omitempty"`
	ForEach bool           `json:"for_each,omitempty"`
}

func (ToolStage) stageType() string { return "tool" }

// CommandStage dispatches to the sandboxed allowlisted utility.
type CommandStage struct {
	Command string   `json:"command"`
	Args    []string `json:"args,omitempty"`
	ForEach bool      `json:"for_each,omitempty"`
	// Timeout, if set, overrides the engine's default command deadline.
	Timeout *float64 `json:"timeout,omitempty"`
}

func (CommandStage) stageType() string { return "command" }

// PreviewStage summarizes the upstream for the agent without feeding it
// back into a JSON-oriented stage.
type PreviewStage struct {
	Chars int `json:"chars,omitempty"`
}

func (PreviewStage) stageType() string { return "preview" }

// DefaultPreviewChars is used when a PreviewStage omits chars.
const DefaultPreviewChars = 3000

// Pipeline is an ordered, non-empty sequence of stages.
type Pipeline []Stage

type wireStage struct {
	Type    string          `json:"type"`
	Name    string          `json:"name"`
	Server  string          `json:"server"`
	Args    json.RawMessage `json:"args"`
	ForEach bool            `json:"for_each"`
	Command string          `json:"command"`
	Timeout *float64        `json:"timeout"`
	Chars   int             `json:"chars"`
}

// ParsePipeline decodes a pipeline description from JSON, dispatching on
// the "type" discriminator. It performs no semantic validation: minimum
// lengths and positivity are schema.go's job, which the RPC adapter runs
// before the pipeline ever reaches Execute, and allowlist membership is
// checked by the sandbox runner when a command stage runs.
func ParsePipeline(raw []byte) (Pipeline, error) {
	var wires []wireStage
	if err := json.Unmarshal(raw, &wires); err != nil {
		return nil, fmt.Errorf("decoding pipeline: %w", err)
	}
	if len(wires) == 0 {
		return nil, fmt.Errorf("pipeline must contain at least one stage")
	}

	stages := make(Pipeline, 0, len(wires))
	for i, w := range wires {
		switch w.Type {
		case "tool":
			var args map[string]any
			if len(w.Args) > 0 {
				if err := json.Unmarshal(w.Args, &args); err != nil {
					return nil, fmt.Errorf("stage %d: tool args must be an object: %w", i+1, err)
				}
			}
			stages = append(stages, ToolStage{Name: w.Name, Server: w.Server, Args: args, ForEach: w.ForEach})
		case "command":
			var args []string
			if len(w.Args) > 0 {
				if err := json.Unmarshal(w.Args, &args); err != nil {
					return nil, fmt.Errorf("stage %d: command args must be an array of strings: %w", i+1, err)
				}
			}
			stages = append(stages, CommandStage{Command: w.Command, Args: args, ForEach: w.ForEach, Timeout: w.Timeout})
		case "preview":
			chars := w.Chars
			if chars == 0 {
				chars = DefaultPreviewChars
			}
			stages = append(stages, PreviewStage{Chars: chars})
		default:
			return nil, fmt.Errorf("stage %d: unknown stage type %q", i+1, w.Type)
		}
	}
	return stages, nil
}
