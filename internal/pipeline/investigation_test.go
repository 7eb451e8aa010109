package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ppiankov/anamnesis/internal/llm"
	"github.com/ppiankov/anamnesis/internal/memory"
	"github.com/ppiankov/anamnesis/internal/model"
	"github.com/ppiankov/anamnesis/internal/similarity"
	"github.com/ppiankov/anamnesis/internal/ticket"
)

type fakeSource struct {
	ticketText  string
	theCase     model.Case
	ticketErr   error
	attachments []ticket.Attachment
	bodyErr     error
}

func (s *fakeSource) FetchTicket(_ context.Context, caseNumber string) (string, model.Case, error) {
	if s.ticketErr != nil {
		return "", model.Case{}, s.ticketErr
	}
	return s.ticketText, s.theCase, nil
}

func (s *fakeSource) FetchAttachments(_ context.Context, _ string) ([]ticket.Attachment, error) {
	return s.attachments, nil
}

func (s *fakeSource) FetchAttachmentBody(_ context.Context, _ ticket.Attachment) ([]byte, error) {
	if s.bodyErr != nil {
		return nil, s.bodyErr
	}
	return []byte("image-bytes"), nil
}

func (s *fakeSource) FetchHistorical(_ context.Context, _ string, _ int) ([]model.Case, error) {
	return nil, nil
}

type fakeProvider struct {
	embedding  []float64
	embedErr   error
	visionData *model.VisionData

	analyzeCalls   int
	reanalyzeCalls int
	lastAnalyze    llm.AnalyzeRequest
	lastReanalyze  llm.ReanalyzeRequest
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) IsAvailable(_ context.Context) bool { return true }

func (p *fakeProvider) Embed(_ context.Context, _ string) ([]float64, error) {
	if p.embedErr != nil {
		return nil, p.embedErr
	}
	return p.embedding, nil
}

func (p *fakeProvider) Analyze(_ context.Context, req llm.AnalyzeRequest) (*model.RCAResult, error) {
	p.analyzeCalls++
	p.lastAnalyze = req
	return &model.RCAResult{
		ImpactedService:   "AuthService",
		ProbableRootCause: "Expired certificate",
		RecommendedSteps:  "Rotate the certificate",
		Confidence:        "Medium",
		ConfidenceScore:   70,
	}, nil
}

func (p *fakeProvider) Reanalyze(_ context.Context, req llm.ReanalyzeRequest) (*model.EnhancedRCA, error) {
	p.reanalyzeCalls++
	p.lastReanalyze = req
	return &model.EnhancedRCA{
		RootCause:         "Certificate expiry confirmed by TLS handshake errors",
		ConfidenceScore:   85,
		DominantException: "SSLHandshakeException",
	}, nil
}

func (p *fakeProvider) VisionExtract(_ context.Context, _, _ string) (*model.VisionData, error) {
	return p.visionData, nil
}

func newTestStore(t *testing.T) *memory.Store {
	t.Helper()
	dir := t.TempDir()
	store, err := memory.NewStore(model.MemoryConfig{
		StorePath:    filepath.Join(dir, "memory.json"),
		FeedbackPath: filepath.Join(dir, "feedback.jsonl"),
	})
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	return store
}

func newTestOrchestrator(t *testing.T, source ticket.Source, provider llm.Provider) (*Orchestrator, *memory.Store) {
	t.Helper()
	store := newTestStore(t)
	engine := similarity.NewEngine(model.SimilarityConfig{SemanticThreshold: 0.80, LexicalThreshold: 0.65})
	return NewOrchestrator(source, provider, engine, store), store
}

func defaultSource() *fakeSource {
	return &fakeSource{
		ticketText: "Subject: Login broken\nDescription: Users cannot sign in\n",
		theCase: model.Case{
			ID:          "case-id-1",
			Number:      "00001042",
			Subject:     "Login broken",
			Description: "Users cannot sign in",
		},
	}
}

func TestRun_WithoutLogs(t *testing.T) {
	source := defaultSource()
	provider := &fakeProvider{embedding: []float64{1, 0, 0}}
	o, store := newTestOrchestrator(t, source, provider)

	state, err := o.Run(context.Background(), "00001042", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if state.InitialRCA == nil {
		t.Fatal("expected an initial RCA")
	}
	if state.EnhancedRCA != nil {
		t.Error("no logs were supplied, re-analysis must not run")
	}
	if provider.reanalyzeCalls != 0 {
		t.Errorf("expected 0 re-analysis calls, got %d", provider.reanalyzeCalls)
	}
	if state.FinalConfidence() != 70 {
		t.Errorf("final confidence = %v, want 70", state.FinalConfidence())
	}

	// Self-registration: the run itself becomes a memory entry
	records := store.All()
	if len(records) != 1 {
		t.Fatalf("expected 1 registered record, got %d", len(records))
	}
	if records[0].CaseNumber != "00001042" {
		t.Errorf("registered case = %q", records[0].CaseNumber)
	}
	if records[0].AIRootCause != "Expired certificate" {
		t.Errorf("registered root cause = %q", records[0].AIRootCause)
	}
}

func TestRun_WithLogs(t *testing.T) {
	source := defaultSource()
	provider := &fakeProvider{embedding: []float64{1, 0, 0}}
	o, _ := newTestOrchestrator(t, source, provider)

	logText := "2026-02-17 10:00:00 ERROR service=AuthService SSLHandshakeException: cert expired\n"
	state, err := o.Run(context.Background(), "00001042", logText)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if state.EnhancedRCA == nil {
		t.Fatal("expected an enhanced RCA")
	}
	if provider.reanalyzeCalls != 1 {
		t.Errorf("expected 1 re-analysis call, got %d", provider.reanalyzeCalls)
	}
	if state.LogSummary == nil || state.LogSummary.TopException != "SSLHandshakeException" {
		t.Errorf("log summary = %+v", state.LogSummary)
	}
	if !strings.Contains(provider.lastReanalyze.LogSummaryText, "SSLHandshakeException") {
		t.Error("re-analysis should receive the formatted log summary")
	}
	if state.FinalConfidence() != 85 {
		t.Errorf("final confidence = %v, want the enhanced score", state.FinalConfidence())
	}

	found := false
	for _, msg := range state.StatusUpdates {
		if strings.Contains(msg, "Correlating log evidence") {
			found = true
		}
	}
	if !found {
		t.Errorf("status trail missing log correlation update: %v", state.StatusUpdates)
	}
}

func TestRun_TicketNotFoundAborts(t *testing.T) {
	source := defaultSource()
	source.ticketErr = fmt.Errorf("case 00009999: %w", ticket.ErrTicketNotFound)
	provider := &fakeProvider{embedding: []float64{1, 0, 0}}
	o, store := newTestOrchestrator(t, source, provider)

	_, err := o.Run(context.Background(), "00009999", "")
	if !errors.Is(err, ticket.ErrTicketNotFound) {
		t.Fatalf("expected ErrTicketNotFound, got %v", err)
	}
	if provider.analyzeCalls != 0 {
		t.Error("analysis must not run for a missing ticket")
	}
	if len(store.All()) != 0 {
		t.Error("nothing should be registered for a missing ticket")
	}
}

func TestRun_SimilarityMatchFeedsAnalysis(t *testing.T) {
	source := defaultSource()
	provider := &fakeProvider{embedding: []float64{1, 0, 0.01}}
	o, store := newTestOrchestrator(t, source, provider)

	seed := model.CaseRecord{
		CaseNumber:   "00000777",
		Text:         "Login issues with expired certs",
		Embedding:    []float64{1, 0, 0},
		AIRootCause:  "Certificate expired",
		AIResolution: "Rotate certificate",
	}
	if err := store.Upsert(seed); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	state, err := o.Run(context.Background(), "00001042", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if state.Similarity == nil {
		t.Fatal("expected a similarity match")
	}
	if state.Similarity.TicketNumber != "00000777" {
		t.Errorf("matched ticket = %q", state.Similarity.TicketNumber)
	}
	if provider.lastAnalyze.Similarity == nil {
		t.Error("analysis request should carry the similarity context")
	}
	if state.Similarity.Record == nil || state.Similarity.Record.AIRootCause != "Certificate expired" {
		t.Error("similarity context should carry the full matched record")
	}
}

func TestRun_VisionFailureIsNonFatal(t *testing.T) {
	source := defaultSource()
	source.attachments = []ticket.Attachment{
		{ID: "a1", Name: "shot.png", ContentType: "image/png"},
	}
	source.bodyErr = errors.New("download failed")
	provider := &fakeProvider{embedding: []float64{1, 0, 0}}
	o, _ := newTestOrchestrator(t, source, provider)

	state, err := o.Run(context.Background(), "00001042", "")
	if err != nil {
		t.Fatalf("a broken screenshot must not abort the run: %v", err)
	}
	if state.Vision != nil {
		t.Error("vision data should be absent after a download failure")
	}
	if state.InitialRCA == nil {
		t.Error("analysis should still run")
	}
}

func TestRun_VisionMarkersJoinComparisonText(t *testing.T) {
	source := defaultSource()
	source.attachments = []ticket.Attachment{
		{ID: "a1", Name: "shot.png", ContentType: "image/png"},
	}
	provider := &fakeProvider{
		embedding:  []float64{1, 0, 0},
		visionData: &model.VisionData{ErrorCode: "504", ServiceName: "gateway"},
	}
	o, _ := newTestOrchestrator(t, source, provider)

	state, err := o.Run(context.Background(), "00001042", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if state.Vision == nil {
		t.Fatal("expected vision data")
	}
	if !strings.Contains(state.ComparisonText, "Visual Markers:") {
		t.Errorf("comparison text missing visual markers: %q", state.ComparisonText)
	}
	if !strings.Contains(state.ComparisonText, "504") {
		t.Errorf("comparison text missing extracted code: %q", state.ComparisonText)
	}
}

func TestRun_EmbeddingFailureAborts(t *testing.T) {
	source := defaultSource()
	embedErr := errors.New("embedding service down")
	provider := &fakeProvider{embedErr: embedErr}
	o, store := newTestOrchestrator(t, source, provider)

	_, err := o.Run(context.Background(), "00001042", "")
	if err == nil {
		t.Fatal("an embedding failure must abort the run")
	}
	if !errors.Is(err, embedErr) {
		t.Errorf("error should wrap the embedding failure, got %v", err)
	}
	if !strings.Contains(err.Error(), "stage query_memory") {
		t.Errorf("error should name the failing stage, got %v", err)
	}
	if provider.analyzeCalls != 0 {
		t.Error("analysis must not run after a failed embedding")
	}
	if len(store.All()) != 0 {
		t.Error("nothing should be registered after an aborted run")
	}
}

func TestRun_StatusCallback(t *testing.T) {
	source := defaultSource()
	provider := &fakeProvider{embedding: []float64{1, 0, 0}}
	store := newTestStore(t)
	engine := similarity.NewEngine(model.SimilarityConfig{})

	var seen []string
	o := NewOrchestrator(source, provider, engine, store,
		WithStatusFunc(func(msg string) { seen = append(seen, msg) }))

	state, err := o.Run(context.Background(), "00001042", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(seen) != len(state.StatusUpdates) {
		t.Errorf("callback saw %d updates, state holds %d", len(seen), len(state.StatusUpdates))
	}
}

func TestRun_CanceledContext(t *testing.T) {
	source := defaultSource()
	provider := &fakeProvider{embedding: []float64{1, 0, 0}}
	o, _ := newTestOrchestrator(t, source, provider)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := o.Run(ctx, "00001042", ""); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestStageString(t *testing.T) {
	stages := map[Stage]string{
		StageIngest:         "ingest",
		StageExtractVisuals: "extract_visuals",
		StageQueryMemory:    "query_memory",
		StageGenerateRCA:    "generate_rca",
		StageAnalyzeLogs:    "analyze_logs",
		StageSynthesize:     "synthesize",
		StageDone:           "done",
	}
	for stage, want := range stages {
		if stage.String() != want {
			t.Errorf("stage %d = %q, want %q", stage, stage.String(), want)
		}
	}
}

func TestNextSkipsLogsWhenAbsent(t *testing.T) {
	if got := next(StageGenerateRCA, false); got != StageSynthesize {
		t.Errorf("without logs, generate should go to synthesize, got %s", got)
	}
	if got := next(StageGenerateRCA, true); got != StageAnalyzeLogs {
		t.Errorf("with logs, generate should go to analyze_logs, got %s", got)
	}
}
