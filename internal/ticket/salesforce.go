package ticket

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/k-capehart/go-salesforce/v3"

	"github.com/ppiankov/anamnesis/internal/model"
	"github.com/ppiankov/anamnesis/internal/worker"
)

// SalesforceSource reads cases, comments and attachments over the
// Salesforce REST API. Token refresh is owned by the underlying client;
// this layer adds rate limiting, one retry on transient failures and the
// not-found mapping.
type SalesforceSource struct {
	sf      *salesforce.Salesforce
	domain  string
	limiter *worker.Limiter
}

// NewSalesforceSource authenticates against Salesforce using the JWT
// bearer flow when a key file is configured, else the client-credentials
// flow.
func NewSalesforceSource(cfg model.SalesforceConfig) (*SalesforceSource, error) {
	creds := salesforce.Creds{
		Domain:      cfg.Domain,
		ConsumerKey: cfg.ConsumerKey,
	}

	if cfg.KeyPath != "" {
		pem, err := os.ReadFile(cfg.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("read salesforce private key: %w", err)
		}
		creds.Username = cfg.Username
		creds.ConsumerRSAPem = string(pem)
	} else {
		creds.ConsumerSecret = cfg.ConsumerSecret
	}

	sf, err := salesforce.Init(creds)
	if err != nil {
		return nil, fmt.Errorf("salesforce authentication failed: %w", err)
	}

	var limiter *worker.Limiter
	if cfg.RateLimit > 0 {
		limiter = worker.NewLimiter(cfg.RateLimit, int(cfg.RateLimit))
	}

	return &SalesforceSource{sf: sf, domain: cfg.Domain, limiter: limiter}, nil
}

type sfCase struct {
	Id          string
	CaseNumber  string
	Subject     string
	Description string
}

type sfComment struct {
	CommentBody string
}

type sfAttachment struct {
	Id          string
	Name        string
	ContentType string
}

// FetchTicket combines the case record and its comments into one text
// block. A case number with no match returns ErrTicketNotFound.
func (s *SalesforceSource) FetchTicket(ctx context.Context, caseNumber string) (string, model.Case, error) {
	soql := fmt.Sprintf(
		"SELECT Id, CaseNumber, Subject, Description FROM Case WHERE CaseNumber = '%s'",
		escapeSOQL(caseNumber))

	var cases []sfCase
	if err := s.query(ctx, soql, &cases); err != nil {
		return "", model.Case{}, fmt.Errorf("fetch case %s: %w", caseNumber, err)
	}
	if len(cases) == 0 {
		return "", model.Case{}, fmt.Errorf("case %s: %w", caseNumber, ErrTicketNotFound)
	}

	c := model.Case{
		ID:          cases[0].Id,
		Number:      cases[0].CaseNumber,
		Subject:     cases[0].Subject,
		Description: cases[0].Description,
	}

	commentSOQL := fmt.Sprintf(
		"SELECT CommentBody FROM CaseComment WHERE ParentId = '%s'", escapeSOQL(c.ID))
	var comments []sfComment
	if err := s.query(ctx, commentSOQL, &comments); err != nil {
		return "", model.Case{}, fmt.Errorf("fetch case comments: %w", err)
	}

	var bodies []string
	for _, cm := range comments {
		if cm.CommentBody != "" {
			bodies = append(bodies, cm.CommentBody)
		}
	}

	return FullTicketText(c, strings.Join(bodies, "\n")), c, nil
}

// FetchAttachments lists image attachments for a case. Failures here are
// swallowed into an empty list so a broken attachment query never sinks
// an investigation.
func (s *SalesforceSource) FetchAttachments(ctx context.Context, caseID string) ([]Attachment, error) {
	soql := fmt.Sprintf(
		"SELECT Id, Name, ContentType FROM Attachment WHERE ParentId = '%s' "+
			"AND (ContentType = 'image/jpeg' OR ContentType = 'image/jpg' OR ContentType = 'image/png') "+
			"LIMIT 1", escapeSOQL(caseID))

	var atts []sfAttachment
	if err := s.query(ctx, soql, &atts); err != nil {
		return nil, nil
	}

	out := make([]Attachment, 0, len(atts))
	for _, a := range atts {
		out = append(out, Attachment{ID: a.Id, Name: a.Name, ContentType: a.ContentType})
	}
	return out, nil
}

// FetchAttachmentBody downloads the raw attachment content
func (s *SalesforceSource) FetchAttachmentBody(ctx context.Context, att Attachment) ([]byte, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}

	resp, err := s.sf.DoRequest("GET", "/sobjects/Attachment/"+att.ID+"/Body", nil)
	if err != nil {
		return nil, fmt.Errorf("fetch attachment %s: %w", att.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("fetch attachment %s: status %d", att.ID, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// FetchHistorical pulls recent worked cases for backfill, newest first,
// skipping cases that never left the New status.
func (s *SalesforceSource) FetchHistorical(ctx context.Context, excludeNumber string, limit int) ([]model.Case, error) {
	where := "Status != 'New'"
	if excludeNumber != "" {
		where = fmt.Sprintf("CaseNumber != '%s' AND %s", escapeSOQL(excludeNumber), where)
	}
	soql := fmt.Sprintf(
		"SELECT Id, CaseNumber, Subject, Description FROM Case WHERE %s "+
			"ORDER BY CreatedDate DESC LIMIT %d", where, limit)

	var cases []sfCase
	if err := s.query(ctx, soql, &cases); err != nil {
		return nil, fmt.Errorf("fetch historical cases: %w", err)
	}

	out := make([]model.Case, 0, len(cases))
	for _, c := range cases {
		out = append(out, model.Case{
			ID:          c.Id,
			Number:      c.CaseNumber,
			Subject:     c.Subject,
			Description: c.Description,
		})
	}
	return out, nil
}

// query runs a SOQL query behind the rate limiter with one retry. The
// retry covers transient transport and session failures; the underlying
// client refreshes credentials on its own.
func (s *SalesforceSource) query(ctx context.Context, soql string, out any) error {
	if err := s.wait(ctx); err != nil {
		return err
	}

	err := s.sf.Query(soql, out)
	if err == nil {
		return nil
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err2 := s.wait(ctx); err2 != nil {
		return err2
	}
	if err2 := s.sf.Query(soql, out); err2 == nil {
		return nil
	}
	return err
}

func (s *SalesforceSource) wait(ctx context.Context) error {
	if s.limiter == nil {
		return nil
	}
	return s.limiter.Wait(ctx, s.domain)
}

// escapeSOQL escapes string literals interpolated into SOQL
func escapeSOQL(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	return strings.ReplaceAll(v, `'`, `\'`)
}
