// Package quality implements the three-stage verifier C8 runs over every
// conversion capture: a cheap blank-page heuristic, visual scoring via a
// vision model, and PDF content analysis (text density, paywall,
// error-page detection).
package quality

import (
	"context"
	"regexp"
	"strings"

	"bookmarkforge/internal/classify"
	"bookmarkforge/internal/config"
)

// ContentResult is the outcome of analyzePdf.
type ContentResult struct {
	Passed     bool
	PageCount  int
	CharCount  int
	CharsPerKB float64
	Reason     string
}

// BlankPageHeuristic is the pre-visual cheap check: if both the
// screenshot and PDF are implausibly small, it's almost certainly blank
// and there is no point spending a vision-model call on it.
func BlankPageHeuristic(screenshot, pdfBytes []byte) (passed bool, reason string) {
	if len(screenshot) == 0 {
		if len(pdfBytes) >= 5*1024 {
			return true, ""
		}
		return false, "screenshot capture failed and pdf is under 5KB"
	}
	if len(screenshot) < 15*1024 && len(pdfBytes) < 5*1024 {
		return false, "screenshot and pdf both implausibly small"
	}
	return true, ""
}

// Visual runs the vision-model scoring stage. Model unavailability or
// malformed output never blocks the pipeline: it is treated as a
// synthetic pass with score -1, per the propagation policy that verifier
// outages must never stall conversions.
func Visual(ctx context.Context, screenshot []byte) (passed bool, score int, reasoning string) {
	result, err := ScoreScreenshot(ctx, screenshot)
	if err != nil {
		return true, -1, "vision model unavailable, treated as pass"
	}
	if result.Issue == "unknown" {
		return true, -1, "vision model output malformed, treated as pass"
	}
	pass := result.Score >= config.QualityThreshold
	return pass, result.Score, result.Reasoning
}

var whitespaceCollapse = regexp.MustCompile(`\s+`)

// AnalyzePdf implements the content-stage checks in priority order:
// error page, paywall, too-little-text, large-pdf-little-text, and the
// low-density bypass for legitimate image-heavy or short pages.
func AnalyzePdf(pdfBytes []byte) ContentResult {
	pageCount, err := PageCount(pdfBytes)
	if err != nil {
		return ContentResult{Passed: true, Reason: "pdf parser failure, not blocking"}
	}

	rawText, err := ExtractText(pdfBytes)
	if err != nil {
		return ContentResult{Passed: true, PageCount: pageCount, Reason: "pdf parser failure, not blocking"}
	}
	text := whitespaceCollapse.ReplaceAllString(strings.TrimSpace(rawText), " ")
	charCount := len(text)
	pdfSize := len(pdfBytes)
	charsPerKB := float64(charCount) / (float64(pdfSize) / 1024.0)
	var charsPerPage float64
	if pageCount > 0 {
		charsPerPage = float64(charCount) / float64(pageCount)
	}

	if charCount < 2000 && matchesAny(errorPagePatterns, text) {
		return ContentResult{Passed: false, PageCount: pageCount, CharCount: charCount, CharsPerKB: charsPerKB,
			Reason: errorPageReason}
	}

	if matchesAny(paywallPatterns, text) {
		return ContentResult{Passed: false, PageCount: pageCount, CharCount: charCount, CharsPerKB: charsPerKB,
			Reason: paywallReason}
	}

	if charCount < 500 {
		return ContentResult{Passed: false, PageCount: pageCount, CharCount: charCount, CharsPerKB: charsPerKB,
			Reason: "too little text"}
	}

	if pdfSize > 500*1024 && charCount < 1000 {
		return ContentResult{Passed: false, PageCount: pageCount, CharCount: charCount, CharsPerKB: charsPerKB,
			Reason: "large pdf with little extracted text"}
	}

	if pageCount > 1 && charsPerKB < 5 && charCount < 3000 && charsPerPage < 400 {
		return ContentResult{Passed: false, PageCount: pageCount, CharCount: charCount, CharsPerKB: charsPerKB,
			Reason: "low text density across multiple pages"}
	}

	return ContentResult{Passed: true, PageCount: pageCount, CharCount: charCount, CharsPerKB: charsPerKB}
}

const errorPageReason = "error page detected"
const paywallReason = "paywall pattern matched"

// Verify runs the full composition: blank-page heuristic, then visual,
// then content. Returns nil on pass, or a classify.Failure on the first
// stage that fails.
func Verify(ctx context.Context, screenshot, pdfBytes []byte) (qualityScore int, reasoning string, err error) {
	if passed, reason := BlankPageHeuristic(screenshot, pdfBytes); !passed {
		return 0, "", classify.New(classify.BlankPage, reason)
	}

	passed, score, visualReasoning := Visual(ctx, screenshot)
	if !passed {
		return score, visualReasoning, classify.New(visualIssueKind(visualReasoning), visualReasoning)
	}

	content := AnalyzePdf(pdfBytes)
	if !content.Passed {
		return score, visualReasoning, classify.New(contentReasonKind(content.Reason), content.Reason)
	}

	return score, visualReasoning, nil
}

func visualIssueKind(reason string) classify.Kind {
	switch {
	case strings.Contains(reason, "blank"):
		return classify.BlankPage
	case strings.Contains(reason, "paywall"):
		return classify.Paywall
	case strings.Contains(reason, "bot"):
		return classify.BotDetected
	default:
		return classify.QualityFailed
	}
}

func contentReasonKind(reason string) classify.Kind {
	switch reason {
	case errorPageReason:
		return classify.MissingContent
	case paywallReason:
		return classify.Paywall
	default:
		return classify.Truncated
	}
}

