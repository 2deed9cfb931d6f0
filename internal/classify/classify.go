// Package classify implements the closed failure-classification taxonomy
// attached to every terminal job failure. The underlying queue only
// stores a string reason, so every failure is formatted as
// "{kind}: {message}" and this package is the single parse/format
// boundary that keeps the rest of the codebase working with a typed
// Kind instead of string prefixes.
package classify

import "strings"

type Kind string

const (
	Timeout          Kind = "timeout"
	NavigationError  Kind = "navigation_error"
	BotDetected      Kind = "bot_detected"
	BlankPage        Kind = "blank_page"
	Paywall          Kind = "paywall"
	Truncated        Kind = "truncated"
	LowContrast      Kind = "low_contrast"
	MissingContent   Kind = "missing_content"
	QualityFailed    Kind = "quality_failed"
	Unknown          Kind = "unknown"
)

// Failure is the typed counterpart of a "{kind}: {message}" string.
type Failure struct {
	Kind    Kind
	Message string
}

func (f Failure) Error() string {
	return Format(f.Kind, f.Message)
}

// New builds a Failure that formats to the wire prefix convention.
func New(kind Kind, message string) Failure {
	return Failure{Kind: kind, Message: message}
}

// Format renders a typed failure as the "{kind}: {message}" string the
// queue stores as failedReason.
func Format(kind Kind, message string) string {
	return string(kind) + ": " + message
}

// Parse extracts a Kind from a failedReason string. If the string has no
// recognized kind prefix, it returns Unknown with the original string as
// the message — this never fails, matching the teacher's "never block on
// a malformed error" philosophy.
func Parse(reason string) Failure {
	idx := strings.Index(reason, ": ")
	if idx < 0 {
		return Failure{Kind: Unknown, Message: reason}
	}
	kind := Kind(reason[:idx])
	switch kind {
	case Timeout, NavigationError, BotDetected, BlankPage, Paywall, Truncated,
		LowContrast, MissingContent, QualityFailed, Unknown:
		return Failure{Kind: kind, Message: reason[idx+2:]}
	default:
		return Failure{Kind: Unknown, Message: reason}
	}
}

// IsBotDetected is a convenience used by listFailures (spec's
// isBotDetected flag on failure listings).
func IsBotDetected(reason string) bool {
	return Parse(reason).Kind == BotDetected
}
