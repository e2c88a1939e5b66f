package iteration

import "regexp"

// rateLimitPatterns matches the phrasing agent CLIs tend to print when their
// upstream provider throttles them. Unlike the teacher's token-bucket
// RateLimiter (an inbound HTTP-request guard), this detects the provider's
// own rate-limit response already printed into captured stdout — there is no
// request to gate, only text to recognize after the fact.
var rateLimitPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)rate.?limit`),
	regexp.MustCompile(`\b429\b`),
	regexp.MustCompile(`(?i)too many requests`),
	regexp.MustCompile(`(?i)quota exceeded`),
	regexp.MustCompile(`(?i)please try again later`),
}

// isRateLimited reports whether captured output carries a rate-limit signal
// from the upstream model provider.
func isRateLimited(output string) bool {
	for _, p := range rateLimitPatterns {
		if p.MatchString(output) {
			return true
		}
	}
	return false
}
