package quality

import "regexp"

// Pattern tables are treated as a versioned data surface
// rather than inline logic — they will need updates independent of the
// analysis code as publishers change their paywall/error copy.

var errorPagePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)page (can'?t|cannot) be found`),
	regexp.MustCompile(`(?i)404 (error|not found)?`),
	regexp.MustCompile(`(?i)this page (doesn'?t|does not) exist`),
	regexp.MustCompile(`(?i)we couldn'?t find (that|the) page`),
	regexp.MustCompile(`(?i)page not found`),
	regexp.MustCompile(`(?i)oops[!,.]? (something went wrong|page not found)`),
}

var paywallPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)get unlimited access`),
	regexp.MustCompile(`(?i)subscribe to continue reading`),
	regexp.MustCompile(`(?i)\$\d+(\.\d{2})?\s*(?:a|per|your first)\s*month`),
	regexp.MustCompile(`(?i)create a free account to (continue|keep) reading`),
	regexp.MustCompile(`(?i)this (article|content) is for subscribers only`),
	regexp.MustCompile(`(?i)sign up for free to read`),
	// known-publisher-specific strings
	regexp.MustCompile(`(?i)you have reached your limit of free articles`),
	regexp.MustCompile(`(?i)become a (member|subscriber) to keep reading`),
}

func matchesAny(patterns []*regexp.Regexp, text string) bool {
	for _, p := range patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}
