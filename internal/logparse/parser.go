// Package logparse turns raw log text into a structured summary the
// analysis provider can correlate against a ticket: exception histogram,
// time window, service/environment sets and dominant error patterns.
package logparse

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/ppiankov/anamnesis/internal/model"
)

// Parser extracts error evidence from raw log text
type Parser struct {
	exceptionPattern *regexp.Regexp
	timestampPattern *regexp.Regexp
	servicePattern   *regexp.Regexp
	envPattern       *regexp.Regexp
}

// NewParser compiles the common log patterns
func NewParser() *Parser {
	return &Parser{
		exceptionPattern: regexp.MustCompile(`([a-zA-Z0-9.]+Exception|Error): (.*)`),
		timestampPattern: regexp.MustCompile(`(\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}(?:\.\d+)?(?:Z|[+-]\d{2}:?\d{2})?)`),
		servicePattern:   regexp.MustCompile(`service=["']?([a-zA-Z0-9_-]+)["']?`),
		envPattern:       regexp.MustCompile(`env=["']?([a-zA-Z0-9_-]+)["']?`),
	}
}

// Parse scans raw log text and returns a structured summary. Empty input
// returns nil. Logs without any error evidence return a summary carrying
// only a status and the line count.
func (p *Parser) Parse(logText string) *model.LogSummary {
	if strings.TrimSpace(logText) == "" {
		return nil
	}
	lines := strings.Split(logText, "\n")

	var exceptions []string
	var timestamps []string
	var errorLines []string
	services := map[string]bool{}
	envs := map[string]bool{}

	for _, line := range lines {
		if m := p.timestampPattern.FindStringSubmatch(line); m != nil {
			timestamps = append(timestamps, m[1])
		}

		upper := strings.ToUpper(line)
		if strings.Contains(upper, "ERROR") || strings.Contains(upper, "FATAL") ||
			strings.Contains(upper, "EXCEPTION") {
			errorLines = append(errorLines, line)
			if m := p.exceptionPattern.FindStringSubmatch(line); m != nil {
				exceptions = append(exceptions, m[1])
			}
		}

		if m := p.servicePattern.FindStringSubmatch(line); m != nil {
			services[m[1]] = true
		}
		if m := p.envPattern.FindStringSubmatch(line); m != nil {
			envs[m[1]] = true
		}
	}

	if len(errorLines) == 0 && len(exceptions) == 0 {
		return &model.LogSummary{
			Status:    "No clear errors detected",
			LineCount: len(lines),
		}
	}

	topException, topCount := mostCommon(exceptions)
	if topException == "" {
		topException = "Unknown Pattern"
	}

	// ISO timestamps sort correctly as strings
	timeWindow := "Unknown"
	if len(timestamps) > 0 {
		sort.Strings(timestamps)
		timeWindow = timestamps[0] + " to " + timestamps[len(timestamps)-1]
	}

	return &model.LogSummary{
		TopException:     topException,
		ExceptionCount:   topCount,
		TotalErrorLines:  len(errorLines),
		TimeWindow:       timeWindow,
		Services:         sortedKeys(services),
		Environments:     sortedKeys(envs),
		DominantPatterns: dominantPatterns(errorLines, 3),
		LineCount:        len(lines),
	}
}

// FormatForAI renders the summary as a compact text block for prompt
// injection. Nil or error-free summaries yield an explicit marker.
func (p *Parser) FormatForAI(summary *model.LogSummary) string {
	if !summary.HasErrors() {
		return "No structured log insights available."
	}

	dominant := "N/A"
	if len(summary.DominantPatterns) > 0 {
		dominant = summary.DominantPatterns[0]
	}

	return fmt.Sprintf(
		"Log Analysis Summary:\n"+
			"- Top Exception: %s (Occurrences: %d)\n"+
			"- Total Error Lines Detected: %d\n"+
			"- Time Window: %s\n"+
			"- Services Identified: %s\n"+
			"- Environment(s): %s\n"+
			"- Dominant Pattern: %s",
		summary.TopException, summary.ExceptionCount,
		summary.TotalErrorLines,
		summary.TimeWindow,
		joinOrUnknown(summary.Services),
		joinOrUnknown(summary.Environments),
		dominant,
	)
}

// mostCommon returns the most frequent value and its count, preferring the
// first-seen value on ties
func mostCommon(values []string) (string, int) {
	if len(values) == 0 {
		return "", 0
	}

	counts := map[string]int{}
	var order []string
	for _, v := range values {
		if counts[v] == 0 {
			order = append(order, v)
		}
		counts[v]++
	}

	best, bestCount := "", 0
	for _, v := range order {
		if counts[v] > bestCount {
			best, bestCount = v, counts[v]
		}
	}
	return best, bestCount
}

// dominantPatterns clusters error lines by their first 100 characters and
// returns the top n prefixes by frequency
func dominantPatterns(errorLines []string, n int) []string {
	counts := map[string]int{}
	var order []string
	for _, line := range errorLines {
		prefix := line
		if len(prefix) > 100 {
			prefix = prefix[:100]
		}
		if counts[prefix] == 0 {
			order = append(order, prefix)
		}
		counts[prefix]++
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})

	if len(order) > n {
		order = order[:n]
	}
	return order
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func joinOrUnknown(values []string) string {
	if len(values) == 0 {
		return "Unknown"
	}
	return strings.Join(values, ", ")
}
