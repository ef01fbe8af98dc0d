package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/michaelbrown/codetutor/internal/dispatch"
	"github.com/michaelbrown/codetutor/internal/tutor"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve run_code and evaluate_code as MCP tools over stdio",
	RunE:  runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	a, err := newApp(os.Stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	s := newMCPServer(a.executor, a.tutor)
	if err := server.ServeStdio(s); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}

func newMCPServer(runner dispatch.Runner, eval dispatch.Evaluator) *server.MCPServer {
	s := server.NewMCPServer("codetutor", "0.1.0")
	t := &mcpTools{runner: runner, eval: eval}

	s.AddTool(mcp.Tool{
		Name:        "run_code",
		Description: "Run a Python snippet in a fresh namespace and return its printed output.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"code": map[string]any{
					"type":        "string",
					"description": "Python source to execute",
				},
			},
			Required: []string{"code"},
		},
	}, t.handleRunCode)

	s.AddTool(mcp.Tool{
		Name:        "evaluate_code",
		Description: "Run a learner's Python snippet and judge whether it does what the reference snippet does.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"code": map[string]any{
					"type":        "string",
					"description": "Learner's Python source",
				},
				"expected_code": map[string]any{
					"type":        "string",
					"description": "Reference Python source",
				},
			},
			Required: []string{"code", "expected_code"},
		},
	}, t.handleEvaluateCode)

	return s
}

type mcpTools struct {
	runner dispatch.Runner
	eval   dispatch.Evaluator
}

func (t *mcpTools) handleRunCode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]any)
	code, _ := args["code"].(string)
	if code == "" {
		return errResult("error: 'code' is required"), nil
	}

	result := t.runner.Execute(ctx, code)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: result.Output}},
		IsError: !result.Success,
	}, nil
}

func (t *mcpTools) handleEvaluateCode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]any)
	code, _ := args["code"].(string)
	expected, _ := args["expected_code"].(string)
	if code == "" || expected == "" {
		return errResult("error: 'code' and 'expected_code' are required"), nil
	}

	result := t.runner.Execute(ctx, code)
	if !result.Success {
		return errResult(result.Output), nil
	}

	verdict, err := t.eval.Evaluate(ctx, tutor.Submission{
		Reference:  expected,
		Learner:    code,
		LearnerRun: &result,
	})
	if err != nil {
		return errResult(fmt.Sprintf("error: %v", err)), nil
	}

	body, err := json.Marshal(map[string]any{
		"output":     result.Output,
		"evaluation": verdict,
	})
	if err != nil {
		return nil, err
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(body)}},
	}, nil
}

func errResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: text}},
		IsError: true,
	}
}
