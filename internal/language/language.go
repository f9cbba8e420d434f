package language

import "strings"

// Phase identifies what a Step does within a run.
type Phase string

const (
	PhaseCompile Phase = "compile"
	PhaseRun     Phase = "run"
)

// Step is a single child-process invocation.
type Step struct {
	Phase   Phase
	Command string
	Args    []string
}

// Argv returns the command followed by its arguments.
func (s Step) Argv() []string {
	return append([]string{s.Command}, s.Args...)
}

// Config describes the toolchain for one language.
type Config struct {
	ID        string
	Name      string
	Command   string
	Extension string
	Compiled  bool

	plan func(cfg Config, source, binary string) []Step
}

// Steps returns the ordered child processes needed to run source. binary is
// the output path for compiled languages and is ignored otherwise.
func (c Config) Steps(source, binary string) []Step {
	return c.plan(c, source, binary)
}

// Args returns the arguments of the first step.
func (c Config) Args(source, binary string) []string {
	steps := c.Steps(source, binary)
	if len(steps) == 0 {
		return nil
	}
	return steps[0].Args
}

// CommandLine renders the steps as a single shell-style command line.
func (c Config) CommandLine(source, binary string) string {
	var parts []string
	for _, s := range c.Steps(source, binary) {
		parts = append(parts, strings.Join(s.Argv(), " "))
	}
	return strings.Join(parts, " && ")
}

func interpreted(prefix ...string) func(Config, string, string) []Step {
	return func(cfg Config, source, _ string) []Step {
		args := append(append([]string{}, prefix...), source)
		return []Step{{Phase: PhaseRun, Command: cfg.Command, Args: args}}
	}
}

func compiled(cfg Config, source, binary string) []Step {
	return []Step{
		{Phase: PhaseCompile, Command: cfg.Command, Args: []string{source, "-o", binary}},
		{Phase: PhaseRun, Command: binary},
	}
}

// builtin is the fixed language table. Order is the order reported by
// Registry.Supported.
var builtin = []Config{
	{ID: "python", Name: "Python", Command: "python3", Extension: "py", plan: interpreted()},
	{ID: "javascript", Name: "JavaScript", Command: "node", Extension: "js", plan: interpreted()},
	{ID: "java", Name: "Java", Command: "java", Extension: "java", plan: interpreted()},
	{ID: "cpp", Name: "C++", Command: "g++", Extension: "cpp", Compiled: true, plan: compiled},
	{ID: "c", Name: "C", Command: "gcc", Extension: "c", Compiled: true, plan: compiled},
	{ID: "go", Name: "Go", Command: "go", Extension: "go", plan: interpreted("run")},
	{ID: "rust", Name: "Rust", Command: "rustc", Extension: "rs", Compiled: true, plan: compiled},
	{ID: "php", Name: "PHP", Command: "php", Extension: "php", plan: interpreted()},
	{ID: "ruby", Name: "Ruby", Command: "ruby", Extension: "rb", plan: interpreted()},
}
