package podcastworker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"

	"bookmarkforge/internal/config"
)

// asrHTTPClient is a bespoke client for the transcription service:
// http.DefaultClient sets no timeouts at all, and a fixed budget of a
// few minutes is far too short for hour-long episodes, so every timeout
// here is set explicitly rather than relying on http.DefaultClient.
func asrHTTPClient() *http.Client {
	return &http.Client{
		Timeout: config.ASRTimeout,
		Transport: &http.Transport{
			DialContext:           (&net.Dialer{Timeout: 5 * time.Minute}).DialContext,
			ResponseHeaderTimeout: config.ASRTimeout,
		},
	}
}

// DownloadAudio streams the episode's enclosure URL to a local temp
// file, used both as the ASR upload source and later archived verbatim.
func DownloadAudio(ctx context.Context, audioURL, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, audioURL, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("download audio: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("download audio: status %d", resp.StatusCode)
	}

	f, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create temp audio file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		return fmt.Errorf("write audio: %w", err)
	}
	return nil
}

type asrResponse struct {
	Text string `json:"text"`
}

// Transcribe posts the audio file at audioPath to the ASR service and
// returns the raw transcript text. The response is parsed as JSON
// first; if that fails, the whole body is treated as plain text, per
// the spec's lenient-parsing contract.
func Transcribe(ctx context.Context, audioPath string) (string, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return "", fmt.Errorf("open audio file: %w", err)
	}
	defer f.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("audio_file", "audio")
	if err != nil {
		return "", fmt.Errorf("create multipart field: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("buffer audio file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, config.ASREndpointURL+"?output=txt", body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := asrHTTPClient().Do(req)
	if err != nil {
		return "", fmt.Errorf("asr request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read asr response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("asr service returned status %d", resp.StatusCode)
	}

	var parsed asrResponse
	if err := json.Unmarshal(respBody, &parsed); err == nil && parsed.Text != "" {
		return parsed.Text, nil
	}
	return string(respBody), nil
}

var srtTimestampLine = regexp.MustCompile(`\d{2}:\d{2}:\d{2}[,.:]\d{3}\s*-->\s*\d{2}:\d{2}:\d{2}[,.:]\d{3}`)
var srtSequenceLine = regexp.MustCompile(`^\d+$`)
var sentenceEndPunctuation = regexp.MustCompile(`[.!?]`)

// LooksLikeSRT reports whether text contains at least one SRT-style
// timestamp line.
func LooksLikeSRT(text string) bool {
	return srtTimestampLine.MatchString(text)
}

// StripSRT removes sequence numbers and timestamp lines from SRT text
// and rejoins the remaining caption lines into paragraphs, inserting a
// soft break roughly every 5 sentence-ending punctuation marks.
func StripSRT(text string) string {
	lines := strings.Split(text, "\n")
	var kept []string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || srtSequenceLine.MatchString(trimmed) || srtTimestampLine.MatchString(trimmed) {
			continue
		}
		kept = append(kept, trimmed)
	}

	joined := strings.Join(kept, " ")
	return insertSoftBreaks(joined)
}

func insertSoftBreaks(text string) string {
	var b strings.Builder
	count := 0
	for _, r := range text {
		b.WriteRune(r)
		if sentenceEndPunctuation.MatchString(string(r)) {
			count++
			if count >= 5 {
				b.WriteString("\n\n")
				count = 0
			}
		}
	}
	return b.String()
}
