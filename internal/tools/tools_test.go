package tools

import (
	"context"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/michaelbrown/codetutor/internal/executor"
	"github.com/michaelbrown/codetutor/internal/language"
	"github.com/michaelbrown/codetutor/internal/sandbox"
)

// catSandbox prints the source file; source starting with "err" exits 1.
type catSandbox struct{}

func (catSandbox) Exec(_ context.Context, opts sandbox.ExecOpts) (*sandbox.ExecResult, error) {
	src, err := os.ReadFile(opts.Command[len(opts.Command)-1])
	if err != nil {
		return nil, err
	}
	if strings.HasPrefix(string(src), "err") {
		io.WriteString(opts.Stderr, "NameError: name 'err' is not defined")
		return &sandbox.ExecResult{ExitCode: 1}, nil
	}
	io.WriteString(opts.Stdout, string(src))
	return &sandbox.ExecResult{}, nil
}

func testHandlers(t *testing.T) *handlers {
	t.Helper()
	engine := executor.New(language.Default(), catSandbox{}, executor.WithTempDir(t.TempDir()))
	return &handlers{engine: engine}
}

func call(args any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) != 1 {
		t.Fatalf("got %d content items, want 1", len(res.Content))
	}
	tc, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T, want TextContent", res.Content[0])
	}
	return tc.Text
}

func TestCodeRun(t *testing.T) {
	h := testHandlers(t)

	res, err := h.codeRun(context.Background(), call(map[string]any{"language": "python", "code": "hi"}))
	if err != nil {
		t.Fatalf("codeRun: %v", err)
	}
	if res.IsError {
		t.Errorf("unexpected error result: %s", text(t, res))
	}
	if got := text(t, res); !strings.HasPrefix(got, "hi\n(") {
		t.Errorf("text = %q", got)
	}
}

func TestCodeRunFailure(t *testing.T) {
	h := testHandlers(t)

	res, _ := h.codeRun(context.Background(), call(map[string]any{"language": "python", "code": "err"}))
	if !res.IsError {
		t.Error("expected error result")
	}
	if got := text(t, res); !strings.Contains(got, "STDERR:\nNameError") {
		t.Errorf("text = %q", got)
	}
}

func TestCodeRunUnsupported(t *testing.T) {
	h := testHandlers(t)

	res, _ := h.codeRun(context.Background(), call(map[string]any{"language": "cobol", "code": "x"}))
	if !res.IsError || !strings.Contains(text(t, res), "unsupported language: cobol") {
		t.Errorf("result = %+v", res)
	}
}

func TestCodeRunInvalidArgs(t *testing.T) {
	h := testHandlers(t)

	for name, args := range map[string]any{
		"nil":          nil,
		"missing code": map[string]any{"language": "python"},
		"wrong type":   map[string]any{"language": 3, "code": "x"},
	} {
		t.Run(name, func(t *testing.T) {
			res, err := h.codeRun(context.Background(), call(args))
			if err != nil {
				t.Fatalf("codeRun: %v", err)
			}
			if !res.IsError {
				t.Error("expected error result")
			}
		})
	}
}

func TestCodeAnalyze(t *testing.T) {
	h := testHandlers(t)

	res, _ := h.codeAnalyze(context.Background(), call(map[string]any{"language": "go", "code": "// x\n\nfmt.Println()"}))
	want := "Line 1: Comment - // x\nLine 2: Blank line\nLine 3: fmt.Println()"
	if got := text(t, res); got != want {
		t.Errorf("text = %q, want %q", got, want)
	}
}

func TestListLanguages(t *testing.T) {
	h := testHandlers(t)

	res, _ := h.listLanguages(context.Background(), call(nil))
	if got := text(t, res); !strings.HasPrefix(got, `["python","javascript"`) {
		t.Errorf("text = %q", got)
	}
}

func TestNewServer(t *testing.T) {
	engine := executor.New(language.Default(), catSandbox{})
	if s := NewServer(engine, "test"); s == nil {
		t.Fatal("expected server")
	}
}
