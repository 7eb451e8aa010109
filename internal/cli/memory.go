package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/anamnesis/internal/ticket"
	"github.com/ppiankov/anamnesis/internal/worker"
)

// memoryCmd groups knowledge-store operations
var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Inspect and seed the semantic memory",
}

var memoryStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show knowledge store statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := newStore(cfg)
		if err != nil {
			return err
		}

		stats := store.Stats()
		fmt.Printf("Entries:          %d\n", stats.Count)
		fmt.Printf("Verified:         %d\n", stats.VerifiedCount)
		fmt.Printf("Avg reliability:  %.2f\n", stats.AvgReliability)
		return nil
	},
}

var memoryHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the feedback audit trail",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := newStore(cfg)
		if err != nil {
			return err
		}

		entries, err := store.FeedbackHistory()
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No feedback recorded yet.")
			return nil
		}

		for _, e := range entries {
			fmt.Printf("%s  %-10s  ticket %s\n", e.Timestamp, e.Kind, e.CaseNumber)
		}
		return nil
	},
}

var memoryBackfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Seed the memory from historical tickets",
	Long: `Pull recently worked tickets from the ticket system, embed them
concurrently and seed them into the semantic memory. Existing entries are
never overwritten; already-known tickets are skipped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		source, err := newTicketSource(cfg)
		if err != nil {
			return err
		}
		provider, err := newProvider(cfg)
		if err != nil {
			return err
		}
		store, err := newStore(cfg)
		if err != nil {
			return err
		}

		cases, err := source.FetchHistorical(cmd.Context(), "", cfg.Salesforce.HistoricalLimit)
		if err != nil {
			return err
		}
		if len(cases) == 0 {
			fmt.Println("No historical tickets found.")
			return nil
		}

		texts := make([]string, len(cases))
		for i, c := range cases {
			texts[i] = ticket.ComparisonText(c)
		}

		fmt.Fprintf(os.Stderr, "Embedding %d historical tickets with %d workers...\n",
			len(cases), cfg.Concurrency.BackfillWorkers)

		records, errs := worker.Backfill(cmd.Context(), cases, texts, provider, cfg.Concurrency.BackfillWorkers)
		for _, e := range errs {
			fmt.Fprintf(os.Stderr, "warning: %v\n", e)
		}

		added, err := store.UpsertAll(records)
		if err != nil {
			return err
		}

		fmt.Printf("Backfill complete: %d added, %d already known, %d failed.\n",
			added, len(records)-added, len(errs))
		return nil
	},
}

func init() {
	memoryCmd.AddCommand(memoryStatsCmd)
	memoryCmd.AddCommand(memoryHistoryCmd)
	memoryCmd.AddCommand(memoryBackfillCmd)
	rootCmd.AddCommand(memoryCmd)
}
