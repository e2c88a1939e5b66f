package audit

import (
	"bufio"
	"regexp"
	"strings"
)

// ExtractionResult is what a completed iteration's captured output yields:
// candidate Signals (errors, decisions) and files the agent appears to have
// touched, plus any security audit Events raised along the way. Nothing in
// here is structured tool-call data — ralph's adapters hand back a PTY byte
// stream, not a JSON event log, so everything is recovered by scanning text.
type ExtractionResult struct {
	Errors       []string
	Decisions    []string
	FilesTouched []string
	AuditEvents  []Event
}

var (
	// errorLinePattern matches common error/failure announcements agents
	// and the tools they shell out to tend to print.
	errorLinePattern = regexp.MustCompile(`(?i)^\s*(error|fatal|panic|traceback|exception)\s*[:\-]\s*(.+)$`)

	// decisionLinePattern matches a line where the agent states a design
	// decision explicitly, a convention most of the adapters we've seen
	// follow when asked to narrate their reasoning.
	decisionLinePattern   = regexp.MustCompile(`(?i)^\s*decision\s*[:\-]\s*(.+)$`)
	decisionPhrasePattern = regexp.MustCompile(`(?i)\b(?:decided to|will instead|going with|opted for)\b\s+(.+)`)

	// fileTouchPattern matches a line announcing a file write/edit/create/
	// delete, e.g. "Wrote internal/foo.go" or "Modified: cmd/bar/main.go".
	fileTouchPattern = regexp.MustCompile(`(?i)^\s*(?:wrote|writing|created|creating|modified|modifying|edited|editing|updated|updating|deleted|deleting|removed)\s*(?:to|file)?\s*:?\s*([\w./\-]+\.\w+)\b`)

	// shellPromptPattern matches a captured shell invocation line, e.g.
	// "$ npm install left-pad".
	shellPromptPattern = regexp.MustCompile(`^\s*[$>]\s+(.+)$`)
)

// Extract scans raw captured agent output line by line and recovers Signals
// and audit Events. It never fails: malformed or unrecognized lines are
// simply skipped.
func Extract(output, agent, taskID string) ExtractionResult {
	var res ExtractionResult

	scanner := bufio.NewScanner(strings.NewReader(output))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()

		if m := errorLinePattern.FindStringSubmatch(line); m != nil {
			res.Errors = append(res.Errors, strings.TrimSpace(m[2]))
			continue
		}

		if m := decisionLinePattern.FindStringSubmatch(line); m != nil {
			res.Decisions = append(res.Decisions, strings.TrimSpace(m[1]))
		} else if decisionPhrasePattern.MatchString(line) {
			res.Decisions = append(res.Decisions, strings.TrimSpace(line))
		}

		if m := fileTouchPattern.FindStringSubmatch(line); m != nil {
			res.FilesTouched = append(res.FilesTouched, m[1])
			if IsSensitivePath(m[1]) {
				res.AuditEvents = append(res.AuditEvents, Event{
					Category: SensitiveFileWrite,
					ToolName: "file",
					Agent:    agent,
					TaskID:   taskID,
					Message:  m[1],
				})
			}
		}

		if m := shellPromptPattern.FindStringSubmatch(line); m != nil {
			cmd := m[1]
			for _, cat := range ClassifyBashCommand(cmd) {
				res.AuditEvents = append(res.AuditEvents, Event{
					Category: cat,
					ToolName: "bash",
					Agent:    agent,
					TaskID:   taskID,
					Message:  cmd,
				})
			}
		}
	}

	return res
}

// ToComments converts an ExtractionResult into Signal-shaped comments ready
// for Store.AddSignal: category "gotcha" for errors, "design-decision" for
// decisions. Callers attach subsystem/task/source-iteration before persisting.
func (r ExtractionResult) ToComments() []SignalDraft {
	var drafts []SignalDraft
	for _, e := range r.Errors {
		drafts = append(drafts, SignalDraft{Category: "gotcha", Body: e})
	}
	for _, d := range r.Decisions {
		drafts = append(drafts, SignalDraft{Category: "design-decision", Body: d})
	}
	return drafts
}

// SignalDraft is a not-yet-persisted Comment body/category pair, the shape
// internal/iteration upserts via Store.AddSignal once subsystem/task/
// source-iteration are known.
type SignalDraft struct {
	Category string
	Body     string
}
