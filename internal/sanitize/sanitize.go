// Package sanitize makes agent-authored text safe to persist and safe to
// re-enter into a later prompt: control characters are stripped, constructs
// that could reassert instructions in a subsequent prompt are neutralized
// (kept, but wrapped so they read as quoted data rather than live text), and
// secret-shaped substrings are redacted.
package sanitize

import (
	"regexp"
	"strings"
)

var (
	githubTokenPattern = regexp.MustCompile(`(gh[ps]_[a-zA-Z0-9]{36}|github_pat_[a-zA-Z0-9]{22}_[a-zA-Z0-9]{59})`)
	apiKeyPattern       = regexp.MustCompile(`(?i)(api[_-]?key|apikey|api[_-]?secret|api[_-]?token)[[:space:]]*[:=][[:space:]]*['"` + "`" + `]?([a-zA-Z0-9_\-]{16,})`)
	bearerTokenPattern  = regexp.MustCompile(`(?i)bearer[[:space:]]+([a-zA-Z0-9_\-\.]+)`)
	privateKeyPattern   = regexp.MustCompile(`(?s)-----BEGIN[[:space:]]+(?:RSA[[:space:]]+)?PRIVATE[[:space:]]+KEY-----.*?-----END[[:space:]]+(?:RSA[[:space:]]+)?PRIVATE[[:space:]]+KEY-----`)
	urlPasswordPattern  = regexp.MustCompile(`(?i)(https?|ftp)://[^:]+:([^@]+)@`)
	jwtPattern          = regexp.MustCompile(`eyJ[a-zA-Z0-9_-]*\.eyJ[a-zA-Z0-9_-]*\.[a-zA-Z0-9_-]*`)
	awsKeyPattern       = regexp.MustCompile(`(?i)(aws[_-]?access[_-]?key[_-]?id|aws[_-]?secret[_-]?access[_-]?key)[[:space:]]*[:=][[:space:]]*['"` + "`" + `]?([a-zA-Z0-9/+=]{16,})`)
	base64InContext     = regexp.MustCompile(`(?i)(auth|token|key|secret|password|credential)[^=:]*[:=]\s*["'` + "`" + `]?([A-Za-z0-9+/]{20,}={0,2})`)

	// controlCharPattern matches non-printable control bytes, excluding the
	// newline and tab that keep multi-line text readable.
	controlCharPattern = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)

	// instructionReassertionPattern catches "ignore previous instructions"-class
	// phrasing: an attempt to make agent-authored text, once re-read from the
	// RAG index into a future prompt, override the instructions around it.
	instructionReassertionPattern = regexp.MustCompile(`(?i)\b(?:ignore|disregard|forget)\s+(?:all\s+|any\s+)?(?:the\s+)?(?:previous|prior|above|preceding)\s+(?:instructions?|prompts?|context|rules?|directives?)\b`)

	// roleReassertionPattern catches attempts to redeclare the system/assistant
	// role or splice in a new system prompt from within quoted text.
	roleReassertionPattern = regexp.MustCompile(`(?i)\b(?:you are now|new system prompt|system prompt:|###\s*system|\[system\])\b`)

	// toolDirectiveFencePattern matches a backtick-fenced block; its contents
	// are checked against toolDirectiveKeywordPattern to decide whether the
	// fence reads as a tool/system directive rather than ordinary quoted code.
	toolDirectiveFencePattern   = regexp.MustCompile("(?s)```[a-zA-Z0-9_-]*\\n.*?```")
	toolDirectiveKeywordPattern = regexp.MustCompile(`(?i)\b(tool_call|tool_use|function_call|mcp_tool|system_prompt|invoke_tool|assistant:|system:)\b`)
)

// Sanitizer removes or neutralizes hostile content from agent-authored text
// before it is embedded into the knowledge index or re-entered into a
// prompt: control characters are stripped, instruction-reassertion patterns
// and tool-directive fences are wrapped in a neutral marker rather than
// deleted, and secret-shaped substrings are redacted.
type Sanitizer struct {
	customPatterns []*regexp.Regexp
}

// New creates a Sanitizer with the built-in pattern set.
func New() *Sanitizer {
	return &Sanitizer{}
}

// AddPattern registers an additional secret pattern to redact.
func (s *Sanitizer) AddPattern(pattern *regexp.Regexp) {
	s.customPatterns = append(s.customPatterns, pattern)
}

// Sanitize makes message safe to persist and safe to later re-enter a
// prompt. Ambiguous content (a phrase that merely resembles an instruction,
// a fenced block that merely resembles a tool directive) is never deleted:
// it is kept, wrapped in a neutral marker so a prompt composer reading it
// back treats it as quoted data, not a live directive.
func (s *Sanitizer) Sanitize(message string) string {
	message = controlCharPattern.ReplaceAllString(message, "")

	message = neutralizeInstructions(message)
	message = neutralizeToolFences(message)

	message = githubTokenPattern.ReplaceAllString(message, "[REDACTED-GITHUB-TOKEN]")
	message = apiKeyPattern.ReplaceAllString(message, "${1}=[REDACTED]")
	message = bearerTokenPattern.ReplaceAllString(message, "Bearer [REDACTED]")
	message = privateKeyPattern.ReplaceAllString(message, "[REDACTED-PRIVATE-KEY]")
	message = urlPasswordPattern.ReplaceAllString(message, "${1}://[REDACTED]@")
	message = jwtPattern.ReplaceAllString(message, "[REDACTED-JWT]")
	message = awsKeyPattern.ReplaceAllString(message, "${1}=[REDACTED]")

	for _, pattern := range s.customPatterns {
		message = pattern.ReplaceAllString(message, "[REDACTED]")
	}

	return base64InContext.ReplaceAllString(message, "${1}=[REDACTED-BASE64]")
}

// neutralizeInstructions wraps phrasing that could reassert instructions in
// a later prompt, quoting it instead of deleting it so the surrounding text
// still reads naturally.
func neutralizeInstructions(message string) string {
	message = instructionReassertionPattern.ReplaceAllStringFunc(message, func(match string) string {
		return "[quoted, not an instruction: " + match + "]"
	})
	return roleReassertionPattern.ReplaceAllStringFunc(message, func(match string) string {
		return "[quoted, not an instruction: " + match + "]"
	})
}

// neutralizeToolFences wraps backtick-fenced blocks whose contents read as a
// tool or system directive, so a future prompt composer sees quoted text
// rather than something resembling a live tool call.
func neutralizeToolFences(message string) string {
	return toolDirectiveFencePattern.ReplaceAllStringFunc(message, func(fence string) string {
		if !toolDirectiveKeywordPattern.MatchString(fence) {
			return fence
		}
		return "[quoted block, not a tool directive]\n" + fence + "\n[end quoted block]"
	})
}

// SanitizeError renders err through Sanitize, returning "" for a nil error.
func (s *Sanitizer) SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return s.Sanitize(err.Error())
}

// ContainsSecret reports whether input matches any known secret pattern
// without modifying it.
func (s *Sanitizer) ContainsSecret(input string) bool {
	for _, p := range []*regexp.Regexp{githubTokenPattern, apiKeyPattern, bearerTokenPattern, privateKeyPattern, urlPasswordPattern, jwtPattern, awsKeyPattern} {
		if p.MatchString(input) {
			return true
		}
	}
	for _, p := range s.customPatterns {
		if p.MatchString(input) {
			return true
		}
	}
	return false
}

// ContainsInjectionAttempt reports whether input contains an
// instruction-reassertion phrase or a tool-directive fence, without
// modifying it.
func (s *Sanitizer) ContainsInjectionAttempt(input string) bool {
	if instructionReassertionPattern.MatchString(input) || roleReassertionPattern.MatchString(input) {
		return true
	}
	for _, fence := range toolDirectiveFencePattern.FindAllString(input, -1) {
		if toolDirectiveKeywordPattern.MatchString(fence) {
			return true
		}
	}
	return false
}

// SanitizePath replaces home-directory and project-path components that
// might leak a local username or absolute layout.
func SanitizePath(path string) string {
	path = regexp.MustCompile(`/home/[^/]+`).ReplaceAllString(path, "[HOME]")
	path = regexp.MustCompile(`/Users/[^/]+`).ReplaceAllString(path, "[HOME]")
	path = strings.Replace(path, "~", "[HOME]", 1)
	path = regexp.MustCompile(`/tmp/ralph-mcp-[^/]+`).ReplaceAllString(path, "/tmp/ralph-mcp-[SESSION]")
	return path
}
