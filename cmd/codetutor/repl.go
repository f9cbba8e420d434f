package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/michaelbrown/codetutor/internal/executor"
)

var replLangFlag string

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Interactive multi-line editor with run and analyze commands",
	Long: `Start an interactive editor. Type code line by line, then /run to execute
the buffer or /analyze to describe it. Output is streamed as it is produced.

Examples:
  codetutor repl
  codetutor repl --lang javascript`,
	RunE: runRepl,
}

func init() {
	replCmd.Flags().StringVarP(&replLangFlag, "lang", "l", "python", "Language of the buffer")
	rootCmd.AddCommand(replCmd)
}

// editor is the REPL buffer state.
type editor struct {
	lang  string
	lines []string
}

func (e *editor) code() string {
	return strings.Join(e.lines, "\n")
}

func runRepl(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	cfg, err := a.registry.Resolve(replLangFlag)
	if err != nil {
		return err
	}
	ed := &editor{lang: cfg.ID}

	fmt.Printf("codetutor - interactive editor\n")
	fmt.Printf("Language: %s | Timeout: %s\n", ed.lang, a.engine.Timeout())
	fmt.Printf("Type /help for commands, /quit to exit\n\n")

	historyDir := filepath.Join(os.Getenv("HOME"), ".codetutor")
	os.MkdirAll(historyDir, 0o755)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt(ed),
		HistoryFile:     filepath.Join(historyDir, "repl_history"),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("readline: %w", err)
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				// Ctrl+C clears the buffer; a second one on an empty buffer exits.
				if len(ed.lines) == 0 {
					fmt.Println("Goodbye!")
					return nil
				}
				ed.lines = nil
				fmt.Println("(buffer cleared)")
				continue
			}
			if err == io.EOF {
				fmt.Println("\nGoodbye!")
				return nil
			}
			return err
		}

		if strings.HasPrefix(strings.TrimSpace(line), "/") {
			if quit := handleReplCommand(a, ed, strings.TrimSpace(line)); quit {
				return nil
			}
			rl.SetPrompt(prompt(ed))
			continue
		}

		ed.lines = append(ed.lines, line)
	}
}

func prompt(ed *editor) string {
	return fmt.Sprintf("\033[36m%s>\033[0m ", ed.lang)
}

func handleReplCommand(a *app, ed *editor, input string) (quit bool) {
	fields := strings.Fields(input)
	switch strings.ToLower(fields[0]) {
	case "/quit", "/exit", "/q":
		fmt.Println("Goodbye!")
		return true
	case "/run", "/r":
		if len(ed.lines) == 0 {
			fmt.Println("Buffer is empty.")
			return false
		}
		res := a.engine.Execute(context.Background(), ed.code(), ed.lang,
			executor.WithOutputHandler(func(s executor.Stream, b []byte) {
				if s == executor.Stdout {
					os.Stdout.Write(b)
				}
			}))
		// stdout was streamed already
		if res.Error != "" {
			fmt.Printf("\033[31m%s\033[0m\n", strings.TrimRight(res.Error, "\n"))
		}
		fmt.Printf("\033[90m(%d ms)\033[0m\n\n", res.ExecutionTimeMs)
	case "/analyze", "/a":
		for _, l := range a.engine.AnalyzeLineByLine(ed.code(), ed.lang) {
			fmt.Println(l)
		}
		fmt.Println()
	case "/lang":
		if len(fields) < 2 {
			fmt.Printf("Languages: %s\n\n", strings.Join(a.engine.SupportedLanguages(), ", "))
			return false
		}
		cfg, err := a.registry.Resolve(fields[1])
		if err != nil {
			fmt.Printf("\033[31m%v\033[0m\n\n", err)
			return false
		}
		ed.lang = cfg.ID
	case "/show":
		for i, l := range ed.lines {
			fmt.Printf("\033[90m%3d\033[0m %s\n", i+1, l)
		}
		fmt.Println()
	case "/undo":
		if len(ed.lines) > 0 {
			ed.lines = ed.lines[:len(ed.lines)-1]
		}
	case "/clear":
		ed.lines = nil
		fmt.Println("Buffer cleared.")
	case "/load":
		if len(fields) < 2 {
			fmt.Println("Usage: /load <file>")
			return false
		}
		data, err := os.ReadFile(fields[1])
		if err != nil {
			fmt.Printf("\033[31m%v\033[0m\n\n", err)
			return false
		}
		ed.lines = strings.Split(strings.TrimRight(string(data), "\n"), "\n")
		if cfg, err := a.registry.ByExtension(filepath.Ext(fields[1])); err == nil {
			ed.lang = cfg.ID
		}
		fmt.Printf("Loaded %d lines.\n", len(ed.lines))
	case "/help":
		fmt.Println("Commands:")
		fmt.Println("  /run      - Execute the buffer")
		fmt.Println("  /analyze  - Describe the buffer line by line")
		fmt.Println("  /lang <l> - Switch language (no argument lists them)")
		fmt.Println("  /show     - Print the buffer with line numbers")
		fmt.Println("  /undo     - Drop the last line")
		fmt.Println("  /clear    - Empty the buffer")
		fmt.Println("  /load <f> - Replace the buffer with a file")
		fmt.Println("  /quit     - Exit")
		fmt.Println()
	default:
		fmt.Printf("Unknown command: %s (try /help)\n\n", input)
	}
	return false
}
