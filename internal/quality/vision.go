package quality

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"bookmarkforge/internal/config"
)

// VisualResult is the parsed response from the vision model.
type VisualResult struct {
	Score     int
	Issue     string // one of blank_page, paywall, bot_detected, login_required, error_page, "", or "unknown" when the model output could not be parsed
	Reasoning string
}

const visualPrompt = `This screenshot shows only the top viewport (~800px) of a captured web ` +
	`page; do not flag it as truncated merely because it is not a full-page capture. Score the ` +
	`page's apparent quality from 0 to 100 based on whether it shows real article content versus ` +
	`a blank page, paywall, bot-detection challenge, login wall, or error page. Respond with a ` +
	`JSON object: {"score": <0-100>, "issue": <one of "blank_page","paywall","bot_detected",` +
	`"login_required","error_page", or null>, "reasoning": "<short reasoning>"}.`

// ScoreScreenshot submits png to the configured vision-LLM endpoint and
// parses its verdict. No SDK in this project's dependency surface
// targets the Ollama-shaped {model, messages:[{role, content, images}]}
// wire format, so a small net/http client talks to it directly — this is
// a deliberate stdlib use, not an oversight (see the grounding ledger).
func ScoreScreenshot(ctx context.Context, png []byte) (VisualResult, error) {
	if len(png) == 0 {
		return VisualResult{}, fmt.Errorf("empty screenshot")
	}

	reqBody := map[string]any{
		"model": config.VisionModelName,
		"messages": []map[string]any{
			{
				"role":    "user",
				"content": visualPrompt,
				"images":  []string{base64.StdEncoding.EncodeToString(png)},
			},
		},
		"stream": false,
	}
	raw, err := json.Marshal(reqBody)
	if err != nil {
		return VisualResult{}, fmt.Errorf("marshal vision request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, config.VisionModelURL, bytes.NewReader(raw))
	if err != nil {
		return VisualResult{}, fmt.Errorf("build vision request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 60 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		return VisualResult{}, fmt.Errorf("vision model unreachable: %w", err)
	}
	defer resp.Body.Close()

	var wire struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return VisualResult{}, fmt.Errorf("decode vision response: %w", err)
	}

	return parseVisualResponse(wire.Message.Content), nil
}

var jsonObjectWithScore = regexp.MustCompile(`\{[^{}]*"score"[^{}]*\}`)

// parseVisualResponse tries strict JSON first, then falls back to
// extracting the first {...} block containing a "score" key, and
// finally to a synthetic {score: 0, issue: "unknown"} result — the model
// output is never trusted to be well-formed JSON.
func parseVisualResponse(content string) VisualResult {
	var strict struct {
		Score     int    `json:"score"`
		Issue     string `json:"issue"`
		Reasoning string `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &strict); err == nil {
		return clampResult(VisualResult{Score: strict.Score, Issue: strict.Issue, Reasoning: strict.Reasoning})
	}

	if block := jsonObjectWithScore.FindString(content); block != "" {
		if err := json.Unmarshal([]byte(block), &strict); err == nil {
			return clampResult(VisualResult{Score: strict.Score, Issue: strict.Issue, Reasoning: strict.Reasoning})
		}
	}

	return VisualResult{Score: 0, Issue: "unknown"}
}

func clampResult(r VisualResult) VisualResult {
	if r.Score < 0 {
		r.Score = 0
	}
	if r.Score > 100 {
		r.Score = 100
	}
	return r
}
