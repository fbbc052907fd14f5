// Package rpcadapter exposes the shell's four meta-operations as MCP tools
// over github.com/modelcontextprotocol/go-sdk, translating between the
// SDK's call envelopes and the internal pipeline/dispatch/sandbox
// capabilities. It carries no business logic of its own.
package rpcadapter

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"mcpshell/internal/dispatch"
	"mcpshell/internal/pipeline"
	"mcpshell/internal/sandbox"
)

// toolDescriptionLimit is how long a tool description may run before
// listAllTools truncates it, keeping the catalog skimmable for an agent
// choosing among many workloads.
const toolDescriptionLimit = 200

// Adapter owns the engine and dispatcher the four tools delegate to.
type Adapter struct {
	engine     *pipeline.Engine
	dispatcher *dispatch.Dispatcher
}

// New builds an Adapter.
func New(engine *pipeline.Engine, dispatcher *dispatch.Dispatcher) *Adapter {
	return &Adapter{engine: engine, dispatcher: dispatcher}
}

// Register attaches the four meta-operations to server. Tool names must
// match dispatch.OwnToolNames exactly, since that's the set used for
// workload self-filtering.
func (a *Adapter) Register(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name: "execute_pipeline",
		Description: "Run an ordered pipeline of tool, command, and preview stages, " +
			"streaming each stage's output into the next.",
	}, a.executePipeline)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_all_tools",
		Description: "List every tool exposed by every reachable workload, grouped by server.",
	}, a.listAllTools)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_available_shell_commands",
		Description: "List the fixed set of text-processing commands the sandbox will run.",
	}, a.listAvailableShellCommands)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_tool_details",
		Description: "Describe a single tool's input schema on a named server.",
	}, a.getToolDetails)
}

type executePipelineArgs struct {
	Pipeline []map[string]any `json:"pipeline"`
}

func (a *Adapter) executePipeline(ctx context.Context, req *mcp.CallToolRequest, args executePipelineArgs) (*mcp.CallToolResult, any, error) {
	raw, err := marshalJSON(args.Pipeline)
	if err != nil {
		return errResult(err), nil, nil
	}
	if err := pipeline.Validate(raw); err != nil {
		return errResult(err), nil, nil
	}
	p, err := pipeline.ParsePipeline(raw)
	if err != nil {
		return errResult(err), nil, nil
	}
	out, err := a.engine.Execute(ctx, p)
	if err != nil {
		return errResult(err), nil, nil
	}
	return textResult(out), nil, nil
}

// listAllTools returns a human-readable catalog grouped by workload: one
// paragraph per server naming its tools, each tool's description flattened
// to a single line and truncated to toolDescriptionLimit characters so the
// catalog stays skimmable even with many workloads attached.
func (a *Adapter) listAllTools(ctx context.Context, req *mcp.CallToolRequest, args struct{}) (*mcp.CallToolResult, any, error) {
	workloads, err := a.dispatcher.ListWorkloads(ctx)
	if err != nil {
		return errResult(err), nil, nil
	}
	if len(workloads) == 0 {
		return textResult("No MCP servers found"), nil, nil
	}

	var out strings.Builder
	for _, w := range workloads {
		fmt.Fprintf(&out, "\n**%s**\n", w.Name)
		fmt.Fprintf(&out, "  Status: %s\n", w.Status)

		tools, err := a.dispatcher.ListTools(ctx, w)
		if err != nil {
			fmt.Fprintf(&out, "  Error: %s\n", err.Error())
			continue
		}
		summaries := make([]string, len(tools))
		for i, t := range tools {
			summaries[i] = fmt.Sprintf("%s (%s)", t.Name, summarizeDescription(t.Description))
		}
		fmt.Fprintf(&out, "  Tools: %s\n", strings.Join(summaries, ", "))
	}
	return textResult(out.String()), nil, nil
}

// summarizeDescription flattens embedded newlines to spaces and truncates
// to toolDescriptionLimit characters, appending "..." when truncated.
func summarizeDescription(description string) string {
	replacer := strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")
	flat := replacer.Replace(description)
	if len(flat) <= toolDescriptionLimit {
		return flat
	}
	return flat[:toolDescriptionLimit] + "..."
}

func (a *Adapter) listAvailableShellCommands(ctx context.Context, req *mcp.CallToolRequest, args struct{}) (*mcp.CallToolResult, any, error) {
	raw, err := marshalJSON(sandbox.Allowlist)
	if err != nil {
		return errResult(err), nil, nil
	}
	return textResult(string(raw)), nil, nil
}

type getToolDetailsArgs struct {
	Server string `json:"server"`
	Name   string `json:"name"`
}

func (a *Adapter) getToolDetails(ctx context.Context, req *mcp.CallToolRequest, args getToolDetailsArgs) (*mcp.CallToolResult, any, error) {
	workloads, err := a.dispatcher.ListWorkloads(ctx)
	if err != nil {
		return errResult(err), nil, nil
	}
	for _, w := range workloads {
		if w.Name != args.Server {
			continue
		}
		tools, err := a.dispatcher.ListTools(ctx, w)
		if err != nil {
			return errResult(err), nil, nil
		}
		for _, t := range tools {
			if t.Name != args.Name {
				continue
			}
			raw, err := marshalJSON(t)
			if err != nil {
				return errResult(err), nil, nil
			}
			return textResult(string(raw)), nil, nil
		}
		return errResult(fmt.Errorf("tool %q not found on server %q", args.Name, args.Server)), nil, nil
	}
	return errResult(fmt.Errorf("server %q not found", args.Server)), nil, nil
}
