package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/michaelbrown/codetutor/internal/executor"
	"github.com/michaelbrown/codetutor/internal/language"
)

var (
	langFlag string
	jsonFlag bool
)

// errRunFailed makes the process exit non-zero after the result was printed.
var errRunFailed = errors.New("execution failed")

var runCmd = &cobra.Command{
	Use:   "run <file>",
	Short: "Execute a source file",
	Long: `Execute a source file with the toolchain for its language.

The language is taken from --lang or inferred from the file extension.
Use "-" to read the code from stdin.

Examples:
  codetutor run hello.py
  codetutor run --lang ruby script.txt
  cat main.c | codetutor run --lang c -
  codetutor run --json fib.go`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Describe a source file line by line",
	Args:  cobra.ExactArgs(1),
	RunE:  runAnalyze,
}

var languagesCmd = &cobra.Command{
	Use:     "languages",
	Aliases: []string{"langs"},
	Short:   "List supported languages",
	RunE:    runLanguages,
}

func init() {
	runCmd.Flags().StringVarP(&langFlag, "lang", "l", "", "Language id (default: inferred from the file extension)")
	runCmd.Flags().BoolVar(&jsonFlag, "json", false, "Print the result as JSON")
	analyzeCmd.Flags().StringVarP(&langFlag, "lang", "l", "", "Language id (default: inferred from the file extension)")

	rootCmd.AddCommand(runCmd, analyzeCmd, languagesCmd)
}

// readSource loads code from path ("-" for stdin) and picks the language.
func readSource(registry *language.Registry, path, lang string) (code, id string, err error) {
	var data []byte
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", "", fmt.Errorf("reading source: %w", err)
	}

	if lang != "" {
		return string(data), lang, nil
	}
	cfg, err := registry.ByExtension(filepath.Ext(path))
	if err != nil {
		return "", "", fmt.Errorf("cannot infer language of %s, use --lang: %w", path, err)
	}
	return string(data), cfg.ID, nil
}

func runRun(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	code, lang, err := readSource(a.registry, args[0], langFlag)
	if err != nil {
		return err
	}

	res := a.engine.Execute(context.Background(), code, lang)
	if err := printResult(cmd.OutOrStdout(), res, jsonFlag); err != nil {
		return err
	}
	if !res.Success {
		return errRunFailed
	}
	return nil
}

func printResult(w io.Writer, res executor.Result, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	fmt.Fprint(w, res.Output)
	if res.Error != "" {
		fmt.Fprintf(w, "\033[31m%s\033[0m\n", res.Error)
	}
	fmt.Fprintf(w, "\033[90m(%d ms)\033[0m\n", res.ExecutionTimeMs)
	return nil
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	code, lang, err := readSource(a.registry, args[0], langFlag)
	if err != nil {
		return err
	}

	for _, line := range a.engine.AnalyzeLineByLine(code, lang) {
		fmt.Fprintln(cmd.OutOrStdout(), line)
	}
	return nil
}

func runLanguages(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%-12s %-12s %-6s %s\n", "ID", "NAME", "EXT", "COMMAND")
	for _, l := range a.registry.List() {
		fmt.Fprintf(w, "%-12s %-12s %-6s %s\n", l.ID, l.Name, "."+l.Extension,
			l.CommandLine("main."+l.Extension, "main"))
	}
	return nil
}
