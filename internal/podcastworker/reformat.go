package podcastworker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"bookmarkforge/internal/config"
)

const maxChunkChars = 15000
const reformatSkipThreshold = 500

var paragraphBreak = regexp.MustCompile(`\n\s*\n`)
var sentenceBoundary = regexp.MustCompile(`(?:[.!?])\s+`)

// ChunkTranscript splits text into pieces no longer than maxChunkChars,
// preferring paragraph boundaries and falling back to sentence
// boundaries when a single paragraph exceeds the limit.
func ChunkTranscript(text string) []string {
	paragraphs := paragraphBreak.Split(text, -1)
	var chunks []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
		}
	}

	for _, para := range paragraphs {
		if len(para) > maxChunkChars {
			flush()
			chunks = append(chunks, splitBySentence(para)...)
			continue
		}
		if current.Len()+len(para)+2 > maxChunkChars {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
	}
	flush()
	return chunks
}

func splitBySentence(paragraph string) []string {
	var sentences []string
	last := 0
	for _, loc := range sentenceBoundary.FindAllStringIndex(paragraph, -1) {
		sentences = append(sentences, strings.TrimSpace(paragraph[last:loc[1]]))
		last = loc[1]
	}
	if last < len(paragraph) {
		sentences = append(sentences, paragraph[last:])
	}
	var chunks []string
	var current strings.Builder
	for _, s := range sentences {
		if current.Len()+len(s)+1 > maxChunkChars {
			if current.Len() > 0 {
				chunks = append(chunks, current.String())
				current.Reset()
			}
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(s)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}

// Reformat runs the LLM reformatting stage over the full transcript,
// skipping entirely when the transcript is shorter than
// reformatSkipThreshold, matching the spec's "not worth the LLM round
// trip for a near-empty transcript" rule.
func Reformat(ctx context.Context, transcript, episodeTitle string, brandNames []string) string {
	if len(transcript) < reformatSkipThreshold {
		return transcript
	}

	chunks := ChunkTranscript(transcript)
	var out strings.Builder
	for i, chunk := range chunks {
		reformatted, err := reformatChunk(ctx, chunk, episodeTitle, brandNames)
		if err != nil {
			reformatted = chunk
		}
		if i > 0 {
			out.WriteString("\n\n")
		}
		out.WriteString(reformatted)
	}
	return out.String()
}

const reformatPromptTemplate = `You are reformatting a raw podcast transcript chunk into flowing prose. ` +
	`Combine choppy sentences into paragraphs of 4 to 6 sentences. Remove filler words (um, uh, you ` +
	`know) but keep sponsor reads intact. Use these spelling hints for proper nouns when transcribing ` +
	`sounds-like names: %s. Episode title: %q. Return only the reformatted text, no commentary.

%s`

// reformatChunk sends one chunk to the configured text LLM endpoint.
// Like the vision scorer, this talks to an Ollama-shaped wire format
// with no SDK in the dependency surface, so a bespoke net/http client
// is used deliberately rather than as a stdlib fallback of convenience.
func reformatChunk(ctx context.Context, chunk, episodeTitle string, brandNames []string) (string, error) {
	hints := strings.Join(brandNames, ", ")
	prompt := fmt.Sprintf(reformatPromptTemplate, hints, episodeTitle, chunk)

	reqBody := map[string]any{
		"model": config.TextModelName,
		"messages": []map[string]any{
			{"role": "user", "content": prompt},
		},
		"options": map[string]any{
			"temperature": 0.3,
			"num_predict": 4096,
		},
		"stream": false,
	}
	raw, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal reformat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, config.TextModelURL, bytes.NewReader(raw))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 120 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("text model unreachable: %w", err)
	}
	defer resp.Body.Close()

	var wire struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return "", fmt.Errorf("decode reformat response: %w", err)
	}
	if wire.Message.Content == "" {
		return "", fmt.Errorf("empty reformat response")
	}
	return wire.Message.Content, nil
}
