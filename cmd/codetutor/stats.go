package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/michaelbrown/codetutor/internal/storage"
)

var historyFlag bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show execution statistics per language",
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().BoolVar(&historyFlag, "history", false, "Also list the most recent executions")
	statsCmd.Flags().IntVar(&limitFlag, "limit", 20, "Max executions to list with --history")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	store, err := a.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	stats, err := store.LanguageStats(ctx)
	if err != nil {
		return err
	}

	if len(stats) == 0 {
		fmt.Println("No executions recorded yet.")
		return nil
	}

	fmt.Printf("%-12s %10s %10s %8s  %s\n", "LANGUAGE", "RUNS", "SUCCESSES", "RATE", "LAST RUN")
	fmt.Println(strings.Repeat("─", 60))
	for _, st := range stats {
		rate := float64(st.Successes) / float64(st.Executions) * 100
		fmt.Printf("%-12s %10d %10d %7.0f%%  %s\n",
			st.Language, st.Executions, st.Successes, rate, timeAgo(st.LastRunAt))
	}

	if !historyFlag {
		return nil
	}

	records, err := store.ListExecutions(ctx, storage.ExecutionListOptions{Limit: limitFlag})
	if err != nil {
		return err
	}

	fmt.Printf("\n%-10s %-12s %-13s %8s  %s\n", "ID", "LANGUAGE", "OUTCOME", "TIME", "WHEN")
	fmt.Println(strings.Repeat("─", 60))
	for _, r := range records {
		fmt.Printf("%-10s %-12s %-13s %6dms  %s\n",
			shortID(r.ID), r.Language, r.Outcome, r.ExecutionTimeMs, timeAgo(r.CreatedAt))
	}
	return nil
}
