// Package pipeline orchestrates one investigation run as a staged state
// machine: ingest the ticket, extract visual evidence, query the knowledge
// store, generate the RCA, optionally correlate logs, then synthesize the
// final result. Visual-evidence and no-match outcomes degrade gracefully;
// a missing ticket, a failed embedding call or a failed analysis aborts
// the run.
package pipeline

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/ppiankov/anamnesis/internal/llm"
	"github.com/ppiankov/anamnesis/internal/logparse"
	"github.com/ppiankov/anamnesis/internal/memory"
	"github.com/ppiankov/anamnesis/internal/model"
	"github.com/ppiankov/anamnesis/internal/similarity"
	"github.com/ppiankov/anamnesis/internal/ticket"
)

// Stage identifies one step of the investigation state machine
type Stage int

const (
	StageIngest Stage = iota
	StageExtractVisuals
	StageQueryMemory
	StageGenerateRCA
	StageAnalyzeLogs
	StageSynthesize
	StageDone
)

// String returns the stage name used in status updates and errors
func (s Stage) String() string {
	switch s {
	case StageIngest:
		return "ingest"
	case StageExtractVisuals:
		return "extract_visuals"
	case StageQueryMemory:
		return "query_memory"
	case StageGenerateRCA:
		return "generate_rca"
	case StageAnalyzeLogs:
		return "analyze_logs"
	case StageSynthesize:
		return "synthesize"
	case StageDone:
		return "done"
	}
	return "unknown"
}

// next returns the stage that follows s. The log stage is entered only
// when log text was supplied; there is no confidence-based trigger.
func next(s Stage, hasLogs bool) Stage {
	switch s {
	case StageIngest:
		return StageExtractVisuals
	case StageExtractVisuals:
		return StageQueryMemory
	case StageQueryMemory:
		return StageGenerateRCA
	case StageGenerateRCA:
		if hasLogs {
			return StageAnalyzeLogs
		}
		return StageSynthesize
	case StageAnalyzeLogs:
		return StageSynthesize
	case StageSynthesize:
		return StageDone
	}
	return StageDone
}

// Orchestrator wires the collaborators for investigation runs. One
// orchestrator serves many runs; all run state lives in InvestigationState.
type Orchestrator struct {
	source   ticket.Source
	provider llm.Provider
	engine   *similarity.Engine
	store    *memory.Store
	parser   *logparse.Parser

	statusFn func(string)
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithStatusFunc registers a callback receiving each status update as it
// is appended to the run state
func WithStatusFunc(fn func(string)) Option {
	return func(o *Orchestrator) {
		o.statusFn = fn
	}
}

// NewOrchestrator creates an investigation orchestrator
func NewOrchestrator(source ticket.Source, provider llm.Provider, engine *similarity.Engine, store *memory.Store, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		source:   source,
		provider: provider,
		engine:   engine,
		store:    store,
		parser:   logparse.NewParser(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes one investigation. logText is optional; when present the
// run takes the log-correlation route after the initial analysis.
func (o *Orchestrator) Run(ctx context.Context, ticketNumber, logText string) (*model.InvestigationState, error) {
	state := &model.InvestigationState{
		TicketID: ticketNumber,
		LogText:  logText,
	}
	hasLogs := logText != ""

	for stage := StageIngest; stage != StageDone; stage = next(stage, hasLogs) {
		if err := ctx.Err(); err != nil {
			return state, err
		}

		var err error
		switch stage {
		case StageIngest:
			err = o.ingest(ctx, state)
		case StageExtractVisuals:
			o.extractVisuals(ctx, state)
		case StageQueryMemory:
			err = o.queryMemory(ctx, state)
		case StageGenerateRCA:
			err = o.generateRCA(ctx, state)
		case StageAnalyzeLogs:
			err = o.analyzeLogs(ctx, state)
		case StageSynthesize:
			o.synthesize(state)
		}
		if err != nil {
			return state, fmt.Errorf("stage %s: %w", stage, err)
		}
	}

	return state, nil
}

// ingest fetches the ticket. A missing ticket aborts the run.
func (o *Orchestrator) ingest(ctx context.Context, state *model.InvestigationState) error {
	o.status(state, fmt.Sprintf("Fetching ticket %s...", state.TicketID))

	text, c, err := o.source.FetchTicket(ctx, state.TicketID)
	if err != nil {
		if errors.Is(err, ticket.ErrTicketNotFound) {
			o.status(state, fmt.Sprintf("Ticket %s not found.", state.TicketID))
		}
		return err
	}

	state.TicketText = text
	state.Case = c
	o.status(state, fmt.Sprintf("Ticket %s ingested: %s", c.Number, c.Subject))
	return nil
}

// extractVisuals runs vision extraction over the first image attachment.
// Every failure path here is non-fatal.
func (o *Orchestrator) extractVisuals(ctx context.Context, state *model.InvestigationState) {
	atts, err := o.source.FetchAttachments(ctx, state.Case.ID)
	if err != nil || len(atts) == 0 {
		o.status(state, "No screenshots attached.")
		return
	}

	var image *ticket.Attachment
	for i := range atts {
		if atts[i].IsImage() {
			image = &atts[i]
			break
		}
	}
	if image == nil {
		o.status(state, "No screenshots attached.")
		return
	}

	o.status(state, fmt.Sprintf("Analyzing screenshot %s...", image.Name))

	body, err := o.source.FetchAttachmentBody(ctx, *image)
	if err != nil {
		o.status(state, "Screenshot download failed; continuing without visual evidence.")
		return
	}

	vision, err := o.provider.VisionExtract(ctx, base64.StdEncoding.EncodeToString(body), image.ContentType)
	if err != nil || vision == nil {
		o.status(state, "Screenshot analysis failed; continuing without visual evidence.")
		return
	}

	state.Vision = vision
	o.status(state, "Visual evidence extracted from screenshot.")
}

// queryMemory embeds the ticket and looks up the best historical match.
// Visual markers are folded into the comparison text so screenshots
// sharpen the lookup. Finding no match is a normal outcome; a failed
// embedding call aborts the run like any other collaborator failure.
func (o *Orchestrator) queryMemory(ctx context.Context, state *model.InvestigationState) error {
	o.status(state, "Querying semantic memory...")

	comparison := ticket.ComparisonText(state.Case)
	if state.Vision != nil {
		if data, err := json.Marshal(state.Vision); err == nil {
			comparison += "\nVisual Markers: " + string(data)
		}
	}
	state.ComparisonText = comparison

	embedding, err := o.provider.Embed(ctx, comparison)
	if err != nil {
		return err
	}
	state.Embedding = embedding

	match, score := o.engine.BestMatch(embedding, o.store.All())
	if match == nil {
		o.status(state, "No similar historical tickets found.")
		return nil
	}

	rounded := math.Round(score*100) / 100
	state.Similarity = &model.SimilarityContext{
		TicketNumber: match.CaseNumber,
		Score:        rounded,
		Content:      match.Text,
		Record:       match,
	}
	o.status(state, fmt.Sprintf("Found similar ticket %s (similarity %.2f).", match.CaseNumber, rounded))
	return nil
}

// generateRCA runs the initial analysis and self-registers the outcome in
// the knowledge store so the next similar ticket can find this one.
func (o *Orchestrator) generateRCA(ctx context.Context, state *model.InvestigationState) error {
	o.status(state, "Generating root cause analysis...")

	result, err := o.provider.Analyze(ctx, llm.AnalyzeRequest{
		TicketText: state.TicketText,
		Similarity: state.Similarity,
		Vision:     state.Vision,
	})
	if err != nil {
		return err
	}

	state.InitialRCA = result
	state.ConfidenceScore = result.ConfidenceScore

	rec := model.CaseRecord{
		CaseNumber:   state.Case.Number,
		Text:         state.ComparisonText,
		Embedding:    state.Embedding,
		AIRootCause:  result.ProbableRootCause,
		AIResolution: result.RecommendedSteps,
	}
	if err := o.store.Upsert(rec); err != nil {
		o.status(state, fmt.Sprintf("Memory registration failed: %v", err))
	} else {
		o.status(state, "Investigation registered in semantic memory.")
	}

	o.status(state, fmt.Sprintf("Initial RCA ready (confidence %.0f).", result.ConfidenceScore))
	return nil
}

// analyzeLogs parses the supplied logs and re-analyzes with the evidence
func (o *Orchestrator) analyzeLogs(ctx context.Context, state *model.InvestigationState) error {
	o.status(state, "Correlating log evidence...")

	summary := o.parser.Parse(state.LogText)
	state.LogSummary = summary

	result, err := o.provider.Reanalyze(ctx, llm.ReanalyzeRequest{
		TicketText:     state.TicketText,
		Initial:        state.InitialRCA,
		LogSummaryText: o.parser.FormatForAI(summary),
		Similarity:     state.Similarity,
		Vision:         state.Vision,
	})
	if err != nil {
		return err
	}

	state.EnhancedRCA = result
	o.status(state, fmt.Sprintf("Log correlation complete (confidence %.0f).", result.ConfidenceScore))
	return nil
}

// synthesize closes the run with the final confidence
func (o *Orchestrator) synthesize(state *model.InvestigationState) {
	o.status(state, fmt.Sprintf("Investigation complete. Final confidence: %.0f.", state.FinalConfidence()))
}

// status appends a progress update and forwards it to the callback
func (o *Orchestrator) status(state *model.InvestigationState, msg string) {
	state.StatusUpdates = append(state.StatusUpdates, msg)
	if o.statusFn != nil {
		o.statusFn(msg)
	}
}
