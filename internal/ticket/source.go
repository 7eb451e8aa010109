// Package ticket provides access to the support ticket system. The
// pipeline consumes the Source interface; SalesforceSource is the
// production implementation and MockSource serves offline runs.
package ticket

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ppiankov/anamnesis/internal/model"
)

// ErrTicketNotFound is returned when no case matches the requested number.
// It is terminal for an investigation run.
var ErrTicketNotFound = errors.New("ticket not found")

// Attachment references a file attached to a case
type Attachment struct {
	ID          string
	Name        string
	ContentType string
}

// IsImage reports whether the attachment can go to vision extraction
func (a Attachment) IsImage() bool {
	switch strings.ToLower(a.ContentType) {
	case "image/jpeg", "image/jpg", "image/png":
		return true
	}
	return false
}

// Source is the ticket system consumed by the pipeline and by backfill
type Source interface {
	// FetchTicket returns the combined text block (subject, description,
	// comments) and the structured case for a case number. Returns
	// ErrTicketNotFound when the case does not exist.
	FetchTicket(ctx context.Context, caseNumber string) (string, model.Case, error)

	// FetchAttachments lists image attachments on a case; an empty list
	// is a normal outcome
	FetchAttachments(ctx context.Context, caseID string) ([]Attachment, error)

	// FetchAttachmentBody returns the raw bytes of an attachment
	FetchAttachmentBody(ctx context.Context, att Attachment) ([]byte, error)

	// FetchHistorical returns past cases for backfill, excluding the
	// given case number
	FetchHistorical(ctx context.Context, excludeNumber string, limit int) ([]model.Case, error)
}

// ComparisonText concatenates the case fields used for similarity lookup
func ComparisonText(c model.Case) string {
	return strings.TrimSpace(c.Subject + " " + c.Description)
}

// FullTicketText builds the combined text block handed to analysis
func FullTicketText(c model.Case, comments string) string {
	text := fmt.Sprintf("Subject: %s\nDescription: %s\n", c.Subject, c.Description)
	if comments != "" {
		text += "Comments:\n" + comments
	}
	return text
}
