package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePhaseModelFlags(t *testing.T) {
	pr, err := parsePhaseModelFlags([]string{"TaskExecution=chatcoder:opus", "OpusReview=reasoningcoder:o-reasoning"})
	require.NoError(t, err)

	assert.Equal(t, "chatcoder", pr.Overrides["TaskExecution"].Adapter)
	assert.Equal(t, "opus", pr.Overrides["TaskExecution"].Model)
	assert.Equal(t, "reasoningcoder", pr.Overrides["OpusReview"].Adapter)
	assert.Equal(t, "o-reasoning", pr.Overrides["OpusReview"].Model)
}

func TestParsePhaseModelFlags_MissingEquals(t *testing.T) {
	_, err := parsePhaseModelFlags([]string{"chatcoder:opus"})
	assert.Error(t, err)
}

func TestParsePhaseModelFlags_EmptySide(t *testing.T) {
	_, err := parsePhaseModelFlags([]string{"TaskExecution="})
	assert.Error(t, err)
}
