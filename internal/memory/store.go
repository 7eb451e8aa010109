// Package memory implements the durable, reliability-scored knowledge
// store of past case investigations.
//
// Two documents back the store: a JSON snapshot of all case records,
// rewritten atomically on every mutation, and a strictly append-only
// feedback log (one JSON object per line) forming the audit trail.
package memory

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ppiankov/anamnesis/internal/model"
)

// timeNow is the clock used for feedback timestamps (injectable for tests)
var timeNow = time.Now

// ErrInvalidKind is returned for a feedback kind outside correct/incorrect/edited
var ErrInvalidKind = errors.New("invalid feedback kind")

// ErrCorrectionRequired is returned when edited feedback carries no correction
var ErrCorrectionRequired = errors.New("edited feedback requires an analyst correction")

// Store owns the case records and the feedback audit log. All mutation is
// serialized behind a single lock; concurrent investigation runs share one
// Store instance.
type Store struct {
	mu           sync.Mutex
	storePath    string
	feedbackPath string
	records      []model.CaseRecord
}

// FeedbackRequest is one analyst feedback submission
type FeedbackRequest struct {
	CaseNumber string
	Kind       model.FeedbackKind

	// Snapshot is the AI output at submission time, written to the audit
	// log verbatim
	Snapshot model.AISnapshot

	// Correction is required for edited feedback, optional otherwise
	Correction *model.AnalystCorrection

	// ConfidenceAtTime records the run's confidence when feedback was given
	ConfidenceAtTime *float64

	// Text and Embedding let feedback on an unknown case create a fresh
	// record instead of being dropped
	Text      string
	Embedding []float64
}

// NewStore opens (or creates) the store at the configured paths and runs
// schema migration over whatever it finds.
func NewStore(cfg model.MemoryConfig) (*Store, error) {
	s := &Store{
		storePath:    cfg.StorePath,
		feedbackPath: cfg.FeedbackPath,
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// load reads and migrates the snapshot document. A missing or empty file
// yields an empty store.
func (s *Store) load() error {
	data, err := os.ReadFile(s.storePath)
	if err != nil {
		if os.IsNotExist(err) {
			s.records = nil
			return nil
		}
		return fmt.Errorf("read store: %w", err)
	}
	if len(data) == 0 {
		s.records = nil
		return nil
	}

	var records []model.CaseRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("decode store: %w", err)
	}

	for i := range records {
		records[i] = migrate(records[i])
	}

	s.records = records
	return nil
}

// Reload re-reads the snapshot from disk, syncing with manual file changes
func (s *Store) Reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// All returns copies of every record; callers never hold live references
// into the store.
func (s *Store) All() []model.CaseRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.CaseRecord, len(s.records))
	for i := range s.records {
		out[i] = s.records[i].Clone()
	}
	return out
}

// Stats summarizes the store. An empty store reports zero average
// reliability rather than dividing by zero.
func (s *Store) Stats() model.MemoryStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := model.MemoryStats{Count: len(s.records)}
	if len(s.records) == 0 {
		return stats
	}

	var sum float64
	for i := range s.records {
		if s.records[i].Verified {
			stats.VerifiedCount++
		}
		sum += s.records[i].ReliabilityScore
	}
	stats.AvgReliability = sum / float64(len(s.records))
	return stats
}

// Upsert adds a record keyed by case number. A record that already exists
// is left untouched (first-write-wins); later changes only arrive through
// feedback. Re-upserting is therefore a safe no-op, which is what makes
// self-registration idempotent under cancellation and concurrent runs.
func (s *Store) Upsert(rec model.CaseRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOf(rec.CaseNumber) >= 0 {
		return nil
	}

	s.records = append(s.records, normalizeNew(rec))
	return s.persist()
}

// UpsertAll adds a batch of records, skipping case numbers already present.
// Returns how many records were actually added. One snapshot write covers
// the whole batch.
func (s *Store) UpsertAll(recs []model.CaseRecord) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	added := 0
	for _, rec := range recs {
		if s.indexOf(rec.CaseNumber) >= 0 {
			continue
		}
		s.records = append(s.records, normalizeNew(rec))
		added++
	}

	if added == 0 {
		return 0, nil
	}
	return added, s.persist()
}

// SubmitFeedback appends one immutable record to the audit log and applies
// the feedback state machine to the live record. The audit append happens
// first; a snapshot-persistence failure afterwards is returned but leaves
// the in-memory state updated and usable.
func (s *Store) SubmitFeedback(req FeedbackRequest) error {
	if !req.Kind.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidKind, req.Kind)
	}
	if req.Kind == model.FeedbackEdited && req.Correction == nil {
		return ErrCorrectionRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := timeNow()
	audit := model.FeedbackRecord{
		CaseNumber:       req.CaseNumber,
		Timestamp:        now.Format(time.RFC3339),
		Kind:             req.Kind,
		AIRootCause:      req.Snapshot.RootCause,
		AIResolution:     req.Snapshot.Resolution,
		ConfidenceAtTime: req.ConfidenceAtTime,
	}
	if req.Correction != nil {
		audit.AnalystRootCause = &req.Correction.RootCause
		audit.AnalystResolution = &req.Correction.Resolution
	}
	if err := s.appendFeedback(audit); err != nil {
		return fmt.Errorf("append feedback log: %w", err)
	}

	date := now.Format("2006-01-02")
	if i := s.indexOf(req.CaseNumber); i >= 0 {
		s.applyFeedback(&s.records[i], req, date)
	} else if req.Text != "" && len(req.Embedding) > 0 {
		s.records = append(s.records, newRecordFromFeedback(req, date))
	} else {
		// Feedback on an unknown case with no text/embedding pair still
		// lands in the audit trail; there is nothing to attach it to.
		return nil
	}

	return s.persist()
}

// applyFeedback mutates an existing record according to the feedback kind
func (s *Store) applyFeedback(rec *model.CaseRecord, req FeedbackRequest, date string) {
	rec.FeedbackCount++
	rec.LastFeedbackAt = date

	switch req.Kind {
	case model.FeedbackCorrect:
		rec.Verified = true
		rec.ReliabilityScore = clamp(rec.ReliabilityScore + model.ReliabilityCorrectDelta)
	case model.FeedbackIncorrect:
		rec.Verified = false
		rec.ReliabilityScore = clamp(rec.ReliabilityScore - model.ReliabilityIncorrectDelta)
	case model.FeedbackEdited:
		// Human correction is the gold standard, regardless of prior state
		rec.Verified = true
		rec.ReliabilityScore = model.ReliabilityCeiling
		rc := req.Correction.RootCause
		res := req.Correction.Resolution
		rec.AnalystRootCause = &rc
		rec.AnalystResolution = &res
	}

	// One-time enrichment: backfilled records carry placeholder AI fields
	// until the first feedback brings a real snapshot along
	if rec.AIRootCause == model.PlaceholderText && req.Snapshot.RootCause != "" {
		rec.AIRootCause = req.Snapshot.RootCause
		rec.AIResolution = req.Snapshot.Resolution
	}
}

// newRecordFromFeedback creates a record for feedback on a case the store
// has never seen. Initial reliability depends on the verdict.
func newRecordFromFeedback(req FeedbackRequest, date string) model.CaseRecord {
	rec := model.CaseRecord{
		CaseNumber:       req.CaseNumber,
		Text:             req.Text,
		Embedding:        append([]float64(nil), req.Embedding...),
		AIRootCause:      req.Snapshot.RootCause,
		AIResolution:     req.Snapshot.Resolution,
		Verified:         req.Kind == model.FeedbackCorrect || req.Kind == model.FeedbackEdited,
		FeedbackCount:    1,
		LastFeedbackAt:   date,
	}

	if rec.AIRootCause == "" {
		rec.AIRootCause = model.PlaceholderText
	}
	if rec.AIResolution == "" {
		rec.AIResolution = model.PlaceholderText
	}

	switch req.Kind {
	case model.FeedbackEdited:
		rec.ReliabilityScore = model.ReliabilityCeiling
	case model.FeedbackCorrect:
		rec.ReliabilityScore = 0.75
	case model.FeedbackIncorrect:
		rec.ReliabilityScore = 0.5
	}

	if req.Correction != nil {
		rc := req.Correction.RootCause
		res := req.Correction.Resolution
		rec.AnalystRootCause = &rc
		rec.AnalystResolution = &res
	}

	return rec
}

// indexOf returns the position of a case number, or -1. Caller holds the lock.
func (s *Store) indexOf(caseNumber string) int {
	for i := range s.records {
		if s.records[i].CaseNumber == caseNumber {
			return i
		}
	}
	return -1
}

// persist writes the full snapshot atomically: marshal, write to a
// temporary file in the same directory, then rename over the target. A
// crash mid-write can never leave a half-written store behind. Caller
// holds the lock.
func (s *Store) persist() error {
	data, err := json.MarshalIndent(s.records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode store: %w", err)
	}
	if err := writeAtomic(s.storePath, data); err != nil {
		return fmt.Errorf("write store: %w", err)
	}
	return nil
}

// appendFeedback appends one line to the audit log. The file is only ever
// opened for append; existing entries are never rewritten.
func (s *Store) appendFeedback(rec model.FeedbackRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode feedback: %w", err)
	}

	if dir := filepath.Dir(s.feedbackPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create feedback dir: %w", err)
		}
	}

	f, err := os.OpenFile(s.feedbackPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}

	if _, err := f.Write(append(data, '\n')); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// FeedbackHistory reads the full audit trail back from disk
func (s *Store) FeedbackHistory() ([]model.FeedbackRecord, error) {
	s.mu.Lock()
	path := s.feedbackPath
	s.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read feedback log: %w", err)
	}

	var out []model.FeedbackRecord
	dec := json.NewDecoder(bytes.NewReader(data))
	for dec.More() {
		var rec model.FeedbackRecord
		if err := dec.Decode(&rec); err != nil {
			return nil, fmt.Errorf("decode feedback log: %w", err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// clamp bounds a reliability score to [floor, ceiling]
func clamp(v float64) float64 {
	if v < model.ReliabilityFloor {
		return model.ReliabilityFloor
	}
	if v > model.ReliabilityCeiling {
		return model.ReliabilityCeiling
	}
	return v
}

// writeAtomic writes data to path via a temporary file and rename
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	tmp, err := os.CreateTemp(dir, ".store-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
