package ticket

import (
	"context"

	"github.com/ppiankov/anamnesis/internal/model"
)

// MockSource returns canned cases so a full investigation can run with no
// Salesforce credentials. Any case number resolves; the historical set is
// fixed.
type MockSource struct{}

// NewMockSource creates the offline ticket source
func NewMockSource() *MockSource {
	return &MockSource{}
}

const mockComments = "2026-02-16 10:00: Logs show connection pool exhaustion in the Auth service.\n" +
	"2026-02-16 10:30: Restarted the service but issue persisted."

// FetchTicket returns a canned database-connectivity case
func (m *MockSource) FetchTicket(_ context.Context, caseNumber string) (string, model.Case, error) {
	c := model.Case{
		ID:          "mock_case_id",
		Number:      caseNumber,
		Subject:     "Database Connectivity Issue",
		Description: "Users reporting 504 Gateway Timeout when accessing the payments module.",
	}
	return FullTicketText(c, mockComments), c, nil
}

// FetchAttachments returns one canned screenshot reference
func (m *MockSource) FetchAttachments(_ context.Context, caseID string) ([]Attachment, error) {
	return []Attachment{
		{ID: "mock_attach_id", Name: "error_screenshot.jpg", ContentType: "image/jpeg"},
	}, nil
}

// FetchAttachmentBody returns placeholder image bytes
func (m *MockSource) FetchAttachmentBody(_ context.Context, att Attachment) ([]byte, error) {
	return []byte("mock_image_content"), nil
}

// FetchHistorical returns a fixed set of past cases
func (m *MockSource) FetchHistorical(_ context.Context, excludeNumber string, limit int) ([]model.Case, error) {
	cases := []model.Case{
		{
			ID:          "mock_1",
			Number:      "00001006",
			Subject:     "Payment Gateway Timeout",
			Description: "504 errors in payment service.",
		},
		{
			ID:          "mock_2",
			Number:      "00001007",
			Subject:     "User Login Failure",
			Description: "Cannot login to dashboard.",
		},
	}

	out := make([]model.Case, 0, len(cases))
	for _, c := range cases {
		if c.Number == excludeNumber {
			continue
		}
		out = append(out, c)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}
