package logparse

import (
	"strings"
	"testing"
)

func TestParse_StandardErrors(t *testing.T) {
	parser := NewParser()
	logText := "2026-02-17 14:31:02 ERROR service=AuthService env=PROD NullPointerException: User context missing\n" +
		"2026-02-17 14:31:05 ERROR service=AuthService env=PROD NullPointerException: User context missing\n" +
		"2026-02-17 14:32:10 WARN service=AuthService retrying...\n"

	summary := parser.Parse(logText)
	if summary == nil {
		t.Fatal("expected a summary")
	}
	if summary.TopException != "NullPointerException" {
		t.Errorf("expected NullPointerException, got %q", summary.TopException)
	}
	if summary.ExceptionCount != 2 {
		t.Errorf("expected exception count 2, got %d", summary.ExceptionCount)
	}
	if summary.TotalErrorLines != 2 {
		t.Errorf("expected 2 error lines, got %d", summary.TotalErrorLines)
	}
	if !contains(summary.Services, "AuthService") {
		t.Errorf("expected AuthService in %v", summary.Services)
	}
	if !contains(summary.Environments, "PROD") {
		t.Errorf("expected PROD in %v", summary.Environments)
	}
}

func TestParse_TimeWindow(t *testing.T) {
	parser := NewParser()
	logText := "2026-02-17T15:00:00Z FATAL KafkaTimeoutException: Failed to poll topic=orders after 5000ms\n" +
		"2026-02-17T15:01:00Z FATAL KafkaTimeoutException: Failed to poll topic=orders after 5000ms\n"

	summary := parser.Parse(logText)
	if summary == nil {
		t.Fatal("expected a summary")
	}
	if summary.TopException != "KafkaTimeoutException" {
		t.Errorf("expected KafkaTimeoutException, got %q", summary.TopException)
	}
	if want := "2026-02-17T15:00:00Z to 2026-02-17T15:01:00Z"; summary.TimeWindow != want {
		t.Errorf("expected time window %q, got %q", want, summary.TimeWindow)
	}
}

func TestParse_EmptyInput(t *testing.T) {
	parser := NewParser()
	if got := parser.Parse(""); got != nil {
		t.Errorf("expected nil summary for empty input, got %+v", got)
	}
	if got := parser.Parse("   \n  "); got != nil {
		t.Errorf("expected nil summary for blank input, got %+v", got)
	}
}

func TestParse_NoErrors(t *testing.T) {
	parser := NewParser()
	logText := "2026-02-17 14:31:02 INFO service=AuthService started\n" +
		"2026-02-17 14:31:05 INFO healthcheck ok\n"

	summary := parser.Parse(logText)
	if summary == nil {
		t.Fatal("expected a summary")
	}
	if summary.Status != "No clear errors detected" {
		t.Errorf("expected no-errors status, got %q", summary.Status)
	}
	if summary.HasErrors() {
		t.Error("summary without errors must report HasErrors false")
	}
	if summary.LineCount != 3 { // two lines plus the trailing newline split
		t.Errorf("expected line count 3, got %d", summary.LineCount)
	}
}

func TestParse_ErrorWithoutException(t *testing.T) {
	parser := NewParser()
	summary := parser.Parse("2026-02-17 14:31:02 ERROR something went sideways\n")
	if summary == nil {
		t.Fatal("expected a summary")
	}
	if summary.TopException != "Unknown Pattern" {
		t.Errorf("expected Unknown Pattern, got %q", summary.TopException)
	}
	if summary.TotalErrorLines != 1 {
		t.Errorf("expected 1 error line, got %d", summary.TotalErrorLines)
	}
}

func TestParse_DominantPatterns(t *testing.T) {
	parser := NewParser()
	var b strings.Builder
	for i := 0; i < 5; i++ {
		b.WriteString("ERROR TimeoutException: upstream timed out calling payments\n")
	}
	b.WriteString("ERROR IOException: disk full on /var\n")

	summary := parser.Parse(b.String())
	if len(summary.DominantPatterns) == 0 {
		t.Fatal("expected dominant patterns")
	}
	if !strings.Contains(summary.DominantPatterns[0], "TimeoutException") {
		t.Errorf("most frequent pattern should lead, got %q", summary.DominantPatterns[0])
	}
}

func TestFormatForAI(t *testing.T) {
	parser := NewParser()
	summary := parser.Parse(
		"2026-02-17T15:00:00Z FATAL service=PaymentSvc env=STAGING TimeoutException: poll failed\n")

	text := parser.FormatForAI(summary)
	for _, want := range []string{"TimeoutException", "PaymentSvc", "STAGING"} {
		if !strings.Contains(text, want) {
			t.Errorf("formatted summary missing %q:\n%s", want, text)
		}
	}
}

func TestFormatForAI_NoSummary(t *testing.T) {
	parser := NewParser()
	if got := parser.FormatForAI(nil); got != "No structured log insights available." {
		t.Errorf("unexpected formatting for nil summary: %q", got)
	}

	quiet := parser.Parse("INFO all good\n")
	if got := parser.FormatForAI(quiet); got != "No structured log insights available." {
		t.Errorf("unexpected formatting for error-free summary: %q", got)
	}
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
