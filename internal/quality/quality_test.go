package quality

import "testing"

func TestBlankPageHeuristicSmallBoth(t *testing.T) {
	passed, reason := BlankPageHeuristic(make([]byte, 1000), make([]byte, 1000))
	if passed {
		t.Error("expected small screenshot and small pdf to fail the blank page heuristic")
	}
	if reason == "" {
		t.Error("expected a reason to be set on failure")
	}
}

func TestBlankPageHeuristicScreenshotFailedButLargePdf(t *testing.T) {
	passed, _ := BlankPageHeuristic(nil, make([]byte, 6*1024))
	if !passed {
		t.Error("expected a missing screenshot with a substantial pdf to pass")
	}
}

func TestBlankPageHeuristicHealthyCapture(t *testing.T) {
	passed, _ := BlankPageHeuristic(make([]byte, 20*1024), make([]byte, 10*1024))
	if !passed {
		t.Error("expected a normal-sized capture to pass the blank page heuristic")
	}
}

func TestParseVisualResponseStrictJSON(t *testing.T) {
	r := parseVisualResponse(`{"score": 80, "issue": null, "reasoning": "looks fine"}`)
	if r.Score != 80 {
		t.Errorf("expected score 80, got %d", r.Score)
	}
}

func TestParseVisualResponseEmbeddedJSON(t *testing.T) {
	r := parseVisualResponse("Here is my analysis: {\"score\": 30, \"issue\": \"paywall\"} Hope that helps!")
	if r.Score != 30 || r.Issue != "paywall" {
		t.Errorf("unexpected parse result: %+v", r)
	}
}

func TestParseVisualResponseFallback(t *testing.T) {
	r := parseVisualResponse("not json at all")
	if r.Score != 0 || r.Issue != "unknown" {
		t.Errorf("expected fallback unknown result, got %+v", r)
	}
}

func TestParseVisualResponseClampsScore(t *testing.T) {
	r := parseVisualResponse(`{"score": 250}`)
	if r.Score != 100 {
		t.Errorf("expected score clamped to 100, got %d", r.Score)
	}
}
