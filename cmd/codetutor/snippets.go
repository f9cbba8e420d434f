package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/michaelbrown/codetutor/internal/executor"
	"github.com/michaelbrown/codetutor/internal/storage"
)

var (
	languageFilter string
	favoritesOnly  bool
	limitFlag      int
	titleFlag      string
	descFlag       string
	exportFormat   string
	exportOutput   string
	forceFlag      bool
)

var snippetsCmd = &cobra.Command{
	Use:     "snippets",
	Aliases: []string{"snippet", "sn"},
	Short:   "Manage saved code snippets",
}

var snippetsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved snippets",
	RunE:  runSnippetsList,
}

var snippetsShowCmd = &cobra.Command{
	Use:   "show <snippet-id>",
	Short: "Show a snippet and its code",
	Args:  cobra.ExactArgs(1),
	RunE:  runSnippetsShow,
}

var snippetsSaveCmd = &cobra.Command{
	Use:   "save <file>",
	Short: "Save a source file as a snippet",
	Args:  cobra.ExactArgs(1),
	RunE:  runSnippetsSave,
}

var snippetsDeleteCmd = &cobra.Command{
	Use:   "delete <snippet-id>",
	Short: "Delete a snippet",
	Args:  cobra.ExactArgs(1),
	RunE:  runSnippetsDelete,
}

var snippetsFavoriteCmd = &cobra.Command{
	Use:   "favorite <snippet-id>",
	Short: "Toggle the favorite flag of a snippet",
	Args:  cobra.ExactArgs(1),
	RunE:  runSnippetsFavorite,
}

var snippetsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export snippets as markdown, JSON or YAML",
	RunE:  runSnippetsExport,
}

var snippetsImportCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Import snippets from a YAML export",
	Args:  cobra.ExactArgs(1),
	RunE:  runSnippetsImport,
}

var snippetsRunCmd = &cobra.Command{
	Use:   "run <snippet-id>",
	Short: "Execute a saved snippet",
	Args:  cobra.ExactArgs(1),
	RunE:  runSnippetsRun,
}

func init() {
	rootCmd.AddCommand(snippetsCmd)
	snippetsCmd.AddCommand(snippetsListCmd, snippetsShowCmd, snippetsSaveCmd, snippetsDeleteCmd,
		snippetsFavoriteCmd, snippetsExportCmd, snippetsImportCmd, snippetsRunCmd)

	for _, c := range []*cobra.Command{snippetsListCmd, snippetsExportCmd} {
		c.Flags().StringVar(&languageFilter, "language", "", "Filter by language")
		c.Flags().BoolVar(&favoritesOnly, "favorites", false, "Only favorites")
		c.Flags().IntVar(&limitFlag, "limit", 20, "Max snippets")
	}

	snippetsSaveCmd.Flags().StringVar(&titleFlag, "title", "", "Snippet title (default: file name)")
	snippetsSaveCmd.Flags().StringVar(&descFlag, "description", "", "Snippet description")
	snippetsSaveCmd.Flags().StringVarP(&langFlag, "lang", "l", "", "Language id (default: inferred from the file extension)")

	snippetsExportCmd.Flags().StringVar(&exportFormat, "format", "md", "Export format: md, json or yaml")
	snippetsExportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (default: stdout)")

	snippetsDeleteCmd.Flags().BoolVar(&forceFlag, "force", false, "Skip confirmation")
	snippetsRunCmd.Flags().BoolVar(&jsonFlag, "json", false, "Print the result as JSON")
}

// withStore runs fn with an app and an open store.
func withStore(fn func(a *app, store storage.Store) error) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	store, err := a.openStore()
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(a, store)
}

func runSnippetsList(cmd *cobra.Command, args []string) error {
	return withStore(func(_ *app, store storage.Store) error {
		snippets, err := store.ListSnippets(context.Background(), storage.SnippetListOptions{
			Language:      languageFilter,
			FavoritesOnly: favoritesOnly,
			Limit:         limitFlag,
		})
		if err != nil {
			return err
		}

		if len(snippets) == 0 {
			fmt.Println("No snippets found.")
			return nil
		}

		// Header
		fmt.Printf("%-10s %-2s %-12s %-40s %s\n", "ID", "", "LANGUAGE", "TITLE", "UPDATED")
		fmt.Println(strings.Repeat("─", 80))

		for _, s := range snippets {
			title := s.Title
			if len(title) > 38 {
				title = title[:38] + ".."
			}
			if title == "" {
				title = "(untitled)"
			}
			star := ""
			if s.Favorite {
				star = "★"
			}

			fmt.Printf("%-10s %-2s %-12s %-40s %s\n",
				shortID(s.ID), star, s.Language, title, timeAgo(s.UpdatedAt))
		}
		return nil
	})
}

func runSnippetsShow(cmd *cobra.Command, args []string) error {
	return withStore(func(_ *app, store storage.Store) error {
		s, err := store.GetSnippet(context.Background(), args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Snippet:  %s\n", s.ID)
		fmt.Printf("Title:    %s\n", s.Title)
		fmt.Printf("Language: %s\n", s.Language)
		if s.Description != "" {
			fmt.Printf("About:    %s\n", s.Description)
		}
		fmt.Printf("Favorite: %t\n", s.Favorite)
		fmt.Printf("Created:  %s\n", s.CreatedAt.Format(time.RFC3339))
		fmt.Printf("Updated:  %s\n", s.UpdatedAt.Format(time.RFC3339))
		fmt.Println(strings.Repeat("─", 60))
		fmt.Println(strings.TrimRight(s.Code, "\n"))
		return nil
	})
}

func runSnippetsSave(cmd *cobra.Command, args []string) error {
	return withStore(func(a *app, store storage.Store) error {
		code, lang, err := readSource(a.registry, args[0], langFlag)
		if err != nil {
			return err
		}
		cfg, err := a.registry.Resolve(lang)
		if err != nil {
			return err
		}

		title := titleFlag
		if title == "" {
			title = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
		}

		s := &storage.Snippet{
			ID:          uuid.New().String(),
			Title:       title,
			Language:    cfg.ID,
			Code:        code,
			Description: descFlag,
		}
		if err := store.CreateSnippet(context.Background(), s); err != nil {
			return err
		}
		fmt.Printf("Saved snippet %s (%s)\n", shortID(s.ID), s.Language)
		return nil
	})
}

func runSnippetsDelete(cmd *cobra.Command, args []string) error {
	return withStore(func(_ *app, store storage.Store) error {
		ctx := context.Background()
		s, err := store.GetSnippet(ctx, args[0])
		if err != nil {
			return err
		}

		if !forceFlag {
			title := s.Title
			if title == "" {
				title = "(untitled)"
			}
			fmt.Printf("Delete snippet %s - %q? [y/N] ", shortID(s.ID), title)
			var confirm string
			fmt.Scanln(&confirm)
			if strings.ToLower(confirm) != "y" {
				fmt.Println("Cancelled.")
				return nil
			}
		}

		if err := store.DeleteSnippet(ctx, s.ID); err != nil {
			return err
		}
		fmt.Printf("Deleted snippet %s\n", shortID(s.ID))
		return nil
	})
}

func runSnippetsFavorite(cmd *cobra.Command, args []string) error {
	return withStore(func(_ *app, store storage.Store) error {
		s, err := store.ToggleFavorite(context.Background(), args[0])
		if err != nil {
			return err
		}
		if s.Favorite {
			fmt.Printf("★ %s is now a favorite\n", shortID(s.ID))
		} else {
			fmt.Printf("%s is no longer a favorite\n", shortID(s.ID))
		}
		return nil
	})
}

func runSnippetsExport(cmd *cobra.Command, args []string) error {
	return withStore(func(_ *app, store storage.Store) error {
		snippets, err := store.ListSnippets(context.Background(), storage.SnippetListOptions{
			Language:      languageFilter,
			FavoritesOnly: favoritesOnly,
			Limit:         limitFlag,
		})
		if err != nil {
			return err
		}

		var output []byte
		switch exportFormat {
		case "json":
			output, err = storage.ExportJSON(snippets)
		case "yaml", "yml":
			output, err = storage.ExportYAML(snippets)
		case "md", "markdown":
			output = []byte(storage.ExportMarkdown(snippets))
		default:
			return fmt.Errorf("unknown export format: %s", exportFormat)
		}
		if err != nil {
			return err
		}

		if exportOutput != "" {
			return os.WriteFile(exportOutput, output, 0o644)
		}

		os.Stdout.Write(output)
		return nil
	})
}

func runSnippetsImport(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	snippets, err := storage.ImportYAML(data)
	if err != nil {
		return err
	}

	return withStore(func(a *app, store storage.Store) error {
		ctx := context.Background()
		imported := 0
		for _, s := range snippets {
			cfg, err := a.registry.Resolve(s.Language)
			if err != nil {
				fmt.Printf("Skipping %q: %v\n", s.Title, err)
				continue
			}
			s.Language = cfg.ID
			if s.ID == "" {
				s.ID = uuid.New().String()
			}
			if err := store.CreateSnippet(ctx, &s); err != nil {
				fmt.Printf("Skipping %q: %v\n", s.Title, err)
				continue
			}
			imported++
		}
		fmt.Printf("Imported %d of %d snippets\n", imported, len(snippets))
		return nil
	})
}

func runSnippetsRun(cmd *cobra.Command, args []string) error {
	return withStore(func(a *app, store storage.Store) error {
		ctx := context.Background()
		s, err := store.GetSnippet(ctx, args[0])
		if err != nil {
			return err
		}

		var report executor.Report
		res := a.engine.Execute(ctx, s.Code, s.Language,
			executor.WithReport(func(r executor.Report) { report = r }))

		err = store.RecordExecution(ctx, &storage.ExecutionRecord{
			ID:              uuid.New().String(),
			Language:        s.Language,
			SnippetID:       s.ID,
			Success:         res.Success,
			Outcome:         string(report.Outcome),
			ExecutionTimeMs: res.ExecutionTimeMs,
		})
		if err != nil {
			a.logger.Warn().Err(err).Msg("recording execution")
		}

		if err := printResult(cmd.OutOrStdout(), res, jsonFlag); err != nil {
			return err
		}
		if !res.Success {
			return errRunFailed
		}
		return nil
	})
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func timeAgo(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
