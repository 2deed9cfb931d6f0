package classify

import "testing"

func TestFormatParseRoundTrip(t *testing.T) {
	f := New(Paywall, "subscribe to continue reading")
	reason := f.Error()

	parsed := Parse(reason)
	if parsed.Kind != Paywall {
		t.Errorf("expected kind paywall, got %s", parsed.Kind)
	}
	if parsed.Message != "subscribe to continue reading" {
		t.Errorf("unexpected message: %q", parsed.Message)
	}
}

func TestParseUnknownPrefix(t *testing.T) {
	parsed := Parse("some raw error with no kind prefix")
	if parsed.Kind != Unknown {
		t.Errorf("expected unknown kind, got %s", parsed.Kind)
	}
}

func TestIsBotDetected(t *testing.T) {
	reason := Format(BotDetected, "net::ERR_BLOCKED")
	if !IsBotDetected(reason) {
		t.Error("expected bot_detected reason to be recognized")
	}
	if IsBotDetected(Format(Timeout, "deadline exceeded")) {
		t.Error("timeout reason should not be classified as bot_detected")
	}
}
