package executor

import (
	"fmt"
	"strings"
)

// AnalyzeLineByLine describes each line of code as blank, comment or code.
// It is pure and returns exactly one entry per "\n"-separated line. The
// language does not affect classification.
func AnalyzeLineByLine(code, lang string) []string {
	lines := strings.Split(code, "\n")
	out := make([]string, 0, len(lines))

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			out = append(out, fmt.Sprintf("Line %d: Blank line", i+1))
		case strings.HasPrefix(trimmed, "//"), strings.HasPrefix(trimmed, "#"):
			out = append(out, fmt.Sprintf("Line %d: Comment - %s", i+1, trimmed))
		default:
			out = append(out, fmt.Sprintf("Line %d: %s", i+1, trimmed))
		}
	}
	return out
}

// AnalyzeLineByLine is the method form used by callers holding an Engine.
func (e *Engine) AnalyzeLineByLine(code, lang string) []string {
	return AnalyzeLineByLine(code, lang)
}
