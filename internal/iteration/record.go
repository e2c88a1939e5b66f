package iteration

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/veighnsche/ralph/internal/journal"
)

// Outcome classifies how an iteration's child process ended, per spec.md
// §4.7 step 7.
type Outcome string

const (
	OutcomeSuccess     Outcome = "success"
	OutcomeTimeout     Outcome = "error(timeout)"
	OutcomeCancelled   Outcome = "cancelled"
	OutcomeRateLimited Outcome = "error(rate_limited)"
	OutcomeError       Outcome = "error"
)

// timeoutExitCode is the conventional exit code a well-behaved CLI agent
// uses to report its own internal timeout (matches `timeout(1)`'s code).
const timeoutExitCode = 124

// IterationRecordData is the shape persisted to the Journal as one
// "iteration" record's Data payload.
type IterationRecordData struct {
	TaskID      int     `json:"task_id"`
	SessionID   string  `json:"session_id"`
	Subsystem   string  `json:"subsystem"`
	Recipe      string  `json:"recipe"`
	Outcome     Outcome `json:"outcome"`
	ExitCode    int     `json:"exit_code"`
	PromptHash  string  `json:"prompt_hash"`
	OutputHash  string  `json:"output_hash"`
	Stagnant    bool    `json:"stagnant"`
}

func hashText(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// classifyExit maps a raw child exit code to an Outcome, per spec.md §4.7
// step 7. Rate-limit detection and operator cancellation are applied by the
// caller on top of this.
func classifyExit(exitCode int) Outcome {
	switch exitCode {
	case 0:
		return OutcomeSuccess
	case timeoutExitCode:
		return OutcomeTimeout
	case -1:
		return OutcomeCancelled
	default:
		return OutcomeError
	}
}

// previousIterationRecord returns the most recent "iteration" journal record
// for the given task, or false if none exists yet.
func previousIterationRecord(dir, subsystem string, taskID int) (IterationRecordData, bool) {
	records, err := journal.ReadRecords(dir, subsystem)
	if err != nil {
		return IterationRecordData{}, false
	}
	records = journal.FilterByKind(records, "iteration")

	var latest IterationRecordData
	found := false
	for _, r := range records {
		var data IterationRecordData
		if err := json.Unmarshal(r.Data, &data); err != nil {
			continue
		}
		if data.TaskID != taskID {
			continue
		}
		latest = data
		found = true
	}
	return latest, found
}

// isStagnant reports whether prompt and output are byte-identical to the
// previous iteration's recorded hashes for this task (spec.md §4.7 step 10).
func isStagnant(prev IterationRecordData, havePrev bool, promptHash, outputHash string) bool {
	if !havePrev {
		return false
	}
	return prev.PromptHash == promptHash && prev.OutputHash == outputHash
}
