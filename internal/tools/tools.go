package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/michaelbrown/codetutor/internal/executor"
)

// Executor is the part of executor.Engine the tools depend on.
type Executor interface {
	Execute(ctx context.Context, code, lang string, opts ...executor.RunOption) executor.Result
	SupportedLanguages() []string
	AnalyzeLineByLine(code, lang string) []string
}

type handlers struct {
	engine Executor
}

// NewServer builds an MCP server exposing code_run, code_analyze and
// list_languages backed by engine.
func NewServer(engine Executor, version string) *server.MCPServer {
	s := server.NewMCPServer("codetutor-code-runner", version)
	h := &handlers{engine: engine}

	langs := strings.Join(engine.SupportedLanguages(), ", ")
	codeSchema := mcp.ToolInputSchema{
		Type: "object",
		Properties: map[string]any{
			"language": map[string]any{
				"type":        "string",
				"description": "Programming language (" + langs + ")",
			},
			"code": map[string]any{
				"type":        "string",
				"description": "Source code",
			},
		},
		Required: []string{"language", "code"},
	}

	s.AddTool(mcp.Tool{
		Name:        "code_run",
		Description: fmt.Sprintf("Execute code with a time and output limit. Supported languages: %s.", langs),
		InputSchema: codeSchema,
	}, h.codeRun)

	s.AddTool(mcp.Tool{
		Name:        "code_analyze",
		Description: "Describe source code line by line, marking blank lines and comments.",
		InputSchema: codeSchema,
	}, h.codeAnalyze)

	s.AddTool(mcp.Tool{
		Name:        "list_languages",
		Description: "List the language identifiers accepted by code_run.",
		InputSchema: mcp.ToolInputSchema{Type: "object", Properties: map[string]any{}},
	}, h.listLanguages)

	return s
}

func codeArgs(request mcp.CallToolRequest) (language, code string, errRes *mcp.CallToolResult) {
	args, _ := request.Params.Arguments.(map[string]any)
	if args == nil {
		return "", "", errResult("error: invalid arguments")
	}

	language, _ = args["language"].(string)
	code, _ = args["code"].(string)
	if language == "" || code == "" {
		return "", "", errResult("error: 'language' and 'code' are required")
	}
	return language, code, nil
}

func (h *handlers) codeRun(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	language, code, errRes := codeArgs(request)
	if errRes != nil {
		return errRes, nil
	}

	res := h.engine.Execute(ctx, code, language)

	var output strings.Builder
	output.WriteString(res.Output)
	if res.Error != "" {
		if output.Len() > 0 {
			output.WriteString("\n")
		}
		output.WriteString("STDERR:\n" + res.Error)
	}
	output.WriteString(fmt.Sprintf("\n(%d ms)", res.ExecutionTimeMs))

	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: output.String()}},
		IsError: !res.Success,
	}, nil
}

func (h *handlers) codeAnalyze(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	language, code, errRes := codeArgs(request)
	if errRes != nil {
		return errRes, nil
	}

	lines := h.engine.AnalyzeLineByLine(code, language)
	return textResult(strings.Join(lines, "\n")), nil
}

func (h *handlers) listLanguages(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(h.engine.SupportedLanguages())
	if err != nil {
		return errResult(fmt.Sprintf("error: %v", err)), nil
	}
	return textResult(string(data)), nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: text}},
	}
}

func errResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: text}},
		IsError: true,
	}
}
