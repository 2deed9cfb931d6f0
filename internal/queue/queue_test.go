package queue

import (
	"encoding/json"
	"testing"
	"time"
)

func TestJobMarshaling(t *testing.T) {
	job := &Job{
		ID:        "test-id-123",
		Queue:     "conversion",
		Payload:   json.RawMessage(`{"url":"https://example.com/a"}`),
		Status:    StatusQueued,
		CreatedAt: time.Now(),
	}

	if job.ID == "" {
		t.Error("job ID should not be empty")
	}
	if job.Queue == "" {
		t.Error("job queue should not be empty")
	}

	data, err := json.Marshal(job)
	if err != nil {
		t.Fatalf("marshal job: %v", err)
	}
	var decoded Job
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal job: %v", err)
	}
	if decoded.ID != job.ID || decoded.Queue != job.Queue || decoded.Status != job.Status {
		t.Errorf("round trip changed job: got %+v, want %+v", decoded, job)
	}
	if string(decoded.Payload) != string(job.Payload) {
		t.Errorf("round trip changed payload: got %s, want %s", decoded.Payload, job.Payload)
	}
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	if opts.Attempts <= 0 {
		t.Error("default attempts should be positive")
	}
	if opts.Backoff <= 0 {
		t.Error("default backoff should be positive")
	}
}

func TestExponentialBackoff(t *testing.T) {
	base := time.Minute
	cases := []struct {
		attempts int
		want     time.Duration
	}{
		{1, time.Minute},
		{2, 2 * time.Minute},
		{3, 4 * time.Minute},
		{4, 8 * time.Minute},
		{5, 16 * time.Minute},
	}
	for _, c := range cases {
		if got := exponentialBackoff(base, c.attempts); got != c.want {
			t.Errorf("exponentialBackoff(%s, %d) = %s, want %s", base, c.attempts, got, c.want)
		}
	}
}
