package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/anamnesis/internal/model"
	"github.com/ppiankov/anamnesis/internal/pipeline"
)

var logsFile string

// investigateCmd runs a full investigation for one ticket
var investigateCmd = &cobra.Command{
	Use:   "investigate <ticket-number>",
	Short: "Investigate a support ticket and propose a root cause",
	Long: `Run a full investigation for one support ticket: fetch the ticket and
its screenshots, consult the semantic memory for similar past cases,
generate a root cause analysis and register the outcome back into memory.

Pass --logs to correlate raw application logs into an enhanced RCA.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		var logText string
		if logsFile != "" {
			data, err := os.ReadFile(logsFile)
			if err != nil {
				return fmt.Errorf("read logs file: %w", err)
			}
			logText = string(data)
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

		orch := pipeline.NewOrchestrator(source, provider, newEngine(cfg), store,
			pipeline.WithStatusFunc(func(msg string) {
				fmt.Fprintf(os.Stderr, "• %s\n", msg)
			}))

		state, err := orch.Run(cmd.Context(), args[0], logText)
		if err != nil {
			return err
		}

		renderInvestigation(state)
		return nil
	},
}

func renderInvestigation(state *model.InvestigationState) {
	rca := state.InitialRCA

	fmt.Println()
	fmt.Println("═══════════════════════════════════════════════════════════")
	fmt.Printf("  Root Cause Analysis: ticket %s\n", state.Case.Number)
	fmt.Println("═══════════════════════════════════════════════════════════")
	fmt.Println()
	fmt.Printf("Impacted Service:  %s\n", rca.ImpactedService)
	fmt.Printf("Probable Cause:    %s\n", rca.ProbableRootCause)
	fmt.Printf("Recommended Steps: %s\n", rca.RecommendedSteps)
	fmt.Printf("Splunk Query:      %s\n", rca.SplunkQuerySuggestion)
	fmt.Printf("Confidence:        %s (%.0f) - %s\n",
		rca.Confidence, rca.ConfidenceScore, rca.ConfidenceReasoning)

	if rca.IsRepeatedIssue {
		fmt.Println()
		fmt.Printf("Repeated issue: matches ticket %s (similarity %.2f)\n",
			rca.SimilarTicketRef, rca.SimilarityScore)
	}
	if rca.VisualEvidenceUsed {
		fmt.Println("Visual evidence from an attached screenshot contributed to this RCA.")
	}

	if enhanced := state.EnhancedRCA; enhanced != nil {
		fmt.Println()
		fmt.Println("───────────────────────────────────────────────────────────")
		fmt.Println("  Log Correlation")
		fmt.Println("───────────────────────────────────────────────────────────")
		fmt.Printf("Enhanced Cause:      %s\n", enhanced.RootCause)
		fmt.Printf("Enhanced Resolution: %s\n", enhanced.Resolution)
		fmt.Printf("Dominant Exception:  %s\n", enhanced.DominantException)
		fmt.Printf("Correlation:         %s\n", enhanced.LogCorrelationSummary)
		fmt.Printf("Confidence:          %.0f (%s)\n",
			enhanced.ConfidenceScore, enhanced.ConfidenceChangeReason)
	}
	fmt.Println()
}

func init() {
	investigateCmd.Flags().StringVar(&logsFile, "logs", "", "path to a raw log file to correlate")
	rootCmd.AddCommand(investigateCmd)
}
