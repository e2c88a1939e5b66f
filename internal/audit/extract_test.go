package audit

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtract_CapturesErrorLines(t *testing.T) {
	output := "Error: bcrypt truncates at 72 bytes\nsome other text\nFATAL: disk full\n"
	res := Extract(output, "chatcoder", "issue:42")

	require.Len(t, res.Errors, 2)
	require.Equal(t, "bcrypt truncates at 72 bytes", res.Errors[0])
	require.Equal(t, "disk full", res.Errors[1])
}

func TestExtract_CapturesDecisionLines(t *testing.T) {
	output := "Decision: use a mutex instead of a channel\nI decided to cache the result\n"
	res := Extract(output, "chatcoder", "issue:42")

	require.Len(t, res.Decisions, 2)
	require.Equal(t, "use a mutex instead of a channel", res.Decisions[0])
}

func TestExtract_CapturesFileTouches(t *testing.T) {
	output := "Wrote internal/foo.go\nModified: cmd/bar/main.go\nUnrelated line\n"
	res := Extract(output, "chatcoder", "issue:42")

	require.Equal(t, []string{"internal/foo.go", "cmd/bar/main.go"}, res.FilesTouched)
}

func TestExtract_FlagsSensitiveFileTouch(t *testing.T) {
	output := "Wrote .env\n"
	res := Extract(output, "chatcoder", "issue:42")

	require.Len(t, res.AuditEvents, 1)
	require.Equal(t, SensitiveFileWrite, res.AuditEvents[0].Category)
	require.Equal(t, ".env", res.AuditEvents[0].Message)
}

func TestExtract_ClassifiesShellCommands(t *testing.T) {
	output := "$ npm install express\n$ gh pr create\n"
	res := Extract(output, "chatcoder", "issue:42")

	var cats []Category
	for _, e := range res.AuditEvents {
		cats = append(cats, e.Category)
	}
	require.Contains(t, cats, BashCommand)
	require.Contains(t, cats, PackageInstall)

	for _, e := range res.AuditEvents {
		require.NotEqual(t, "gh pr create", e.Message)
	}
}

func TestExtract_IgnoresMalformedInput(t *testing.T) {
	res := Extract("\x00\xff\xfe garbage ][}{", "chatcoder", "issue:42")
	require.Empty(t, res.Errors)
	require.Empty(t, res.Decisions)
	require.Empty(t, res.FilesTouched)
}

func TestToComments_MapsErrorsAndDecisionsToCategories(t *testing.T) {
	res := ExtractionResult{
		Errors:    []string{"boom"},
		Decisions: []string{"went with X"},
	}
	drafts := res.ToComments()

	require.Len(t, drafts, 2)
	require.Equal(t, "gotcha", drafts[0].Category)
	require.Equal(t, "boom", drafts[0].Body)
	require.Equal(t, "design-decision", drafts[1].Category)
	require.Equal(t, "went with X", drafts[1].Body)
}
