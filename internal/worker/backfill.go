package worker

import (
	"context"
	"fmt"

	"github.com/ppiankov/anamnesis/internal/model"
)

// Embedder is the slice of the AI provider backfill needs
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// EmbedJob embeds one historical case so it can be seeded into the
// knowledge store. Seeded records carry placeholder analysis fields until
// an investigation or analyst feedback fills them in.
type EmbedJob struct {
	Case     model.Case
	Text     string
	Embedder Embedder
}

// EmbedResult is the outcome of one embed job
type EmbedResult struct {
	Record model.CaseRecord
	Err    error
}

// GetError returns the job error, if any
func (r *EmbedResult) GetError() error {
	return r.Err
}

// Execute embeds the case text and builds the seed record
func (j *EmbedJob) Execute(ctx context.Context) Result {
	if j.Text == "" {
		return &EmbedResult{Err: fmt.Errorf("case %s: empty comparison text", j.Case.Number)}
	}

	embedding, err := j.Embedder.Embed(ctx, j.Text)
	if err != nil {
		return &EmbedResult{Err: fmt.Errorf("embed case %s: %w", j.Case.Number, err)}
	}

	return &EmbedResult{Record: model.CaseRecord{
		CaseNumber:   j.Case.Number,
		Text:         j.Text,
		Embedding:    embedding,
		AIRootCause:  model.PlaceholderText,
		AIResolution: model.PlaceholderText,
	}}
}

// Backfill embeds the given cases concurrently and returns the seed
// records plus the per-case failures. Failures never abort the batch.
func Backfill(ctx context.Context, cases []model.Case, texts []string, embedder Embedder, workers int) ([]model.CaseRecord, []error) {
	pool := NewPool(workers)
	pool.Start()

	// Submit from a separate goroutine: the queue is bounded, so the
	// drain loop below must run concurrently or a large batch deadlocks
	go func() {
		for i, c := range cases {
			pool.Submit(&EmbedJob{Case: c, Text: texts[i], Embedder: embedder})
		}
	}()

	var records []model.CaseRecord
	var errs []error
	for i := 0; i < len(cases); i++ {
		select {
		case r := <-pool.results:
			er, ok := r.(*EmbedResult)
			if !ok {
				continue
			}
			if er.Err != nil {
				errs = append(errs, er.Err)
				continue
			}
			records = append(records, er.Record)
		case <-ctx.Done():
			pool.Shutdown()
			return records, append(errs, ctx.Err())
		}
	}
	pool.Shutdown()

	return records, errs
}
