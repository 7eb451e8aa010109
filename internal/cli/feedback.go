package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/anamnesis/internal/memory"
	"github.com/ppiankov/anamnesis/internal/model"
)

var (
	feedbackKind       string
	feedbackRootCause  string
	feedbackResolution string
)

// feedbackCmd records an analyst verdict on a past analysis
var feedbackCmd = &cobra.Command{
	Use:   "feedback <ticket-number>",
	Short: "Record analyst feedback on an AI analysis",
	Long: `Record an analyst's verdict on the AI analysis of a ticket and adjust
how much that memory is trusted.

Verdicts:
  correct    the analysis was right; trust grows slightly
  incorrect  the analysis was wrong; trust drops sharply
  edited     the analyst supplies the real root cause and resolution;
             the record becomes fully trusted and verified

Edited feedback requires --root-cause and --resolution. Every submission
is appended to the immutable feedback audit log.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := newStore(cfg)
		if err != nil {
			return err
		}

		kind := model.FeedbackKind(feedbackKind)
		if !kind.Valid() {
			return fmt.Errorf("invalid feedback type %q (use correct, incorrect or edited)", feedbackKind)
		}

		req := memory.FeedbackRequest{
			CaseNumber: args[0],
			Kind:       kind,
		}

		// Snapshot the current AI output for the audit trail
		for _, rec := range store.All() {
			if rec.CaseNumber == args[0] {
				req.Snapshot = model.AISnapshot{
					RootCause:  rec.AIRootCause,
					Resolution: rec.AIResolution,
				}
				break
			}
		}

		if feedbackRootCause != "" || feedbackResolution != "" {
			req.Correction = &model.AnalystCorrection{
				RootCause:  feedbackRootCause,
				Resolution: feedbackResolution,
			}
		}

		if err := store.SubmitFeedback(req); err != nil {
			return err
		}

		fmt.Printf("Feedback recorded for ticket %s (%s).\n", args[0], kind)
		return nil
	},
}

func init() {
	feedbackCmd.Flags().StringVar(&feedbackKind, "type", "", "feedback type: correct, incorrect or edited")
	feedbackCmd.Flags().StringVar(&feedbackRootCause, "root-cause", "", "analyst-corrected root cause (required for edited)")
	feedbackCmd.Flags().StringVar(&feedbackResolution, "resolution", "", "analyst-corrected resolution (required for edited)")
	_ = feedbackCmd.MarkFlagRequired("type")
	rootCmd.AddCommand(feedbackCmd)
}
