package convert

import (
	"testing"
	"time"

	"bookmarkforge/internal/events"
)

func TestIsDirectPDFURL(t *testing.T) {
	cases := map[string]bool{
		"https://arxiv.org/pdf/2301.00001":       true,
		"https://example.com/downloads/file.pdf": true,
		"https://example.com/file.PDF":           true,
		"https://example.com/article":            false,
	}
	for url, want := range cases {
		if got := isDirectPDFURL(url); got != want {
			t.Errorf("isDirectPDFURL(%q) = %v, want %v", url, got, want)
		}
	}
}

func TestWorkerFailSuppressesEventBeforeFinalAttempt(t *testing.T) {
	bus := events.NewBus()
	ch, unsubscribe := bus.Subscribe()
	defer unsubscribe()
	w := &Worker{Bus: bus}

	job := Job{ID: "j1", URL: "https://example.com/x"}
	w.fail(job, errTest{}, 1, 3)
	select {
	case <-ch:
		t.Error("expected no failed event to be published before the final attempt")
	case <-time.After(20 * time.Millisecond):
	}

	w.fail(job, errTest{}, 3, 3)
	select {
	case ev := <-ch:
		if ev.Kind != events.ConversionFailed {
			t.Errorf("expected ConversionFailed event, got %s", ev.Kind)
		}
	case <-time.After(20 * time.Millisecond):
		t.Error("expected a failed event to be published on the final attempt")
	}
}

type errTest struct{}

func (errTest) Error() string { return "boom" }
