package rerr

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var codePattern = regexp.MustCompile(`^\[R-\d{4}\] `)

func TestErrorFormat(t *testing.T) {
	err := New(CodeTaskDependency, "task %d depends on incomplete task %d", 2, 1)
	assert.Regexp(t, codePattern, err.Error())
	assert.Equal(t, "[R-3003] task 2 depends on incomplete task 1", err.Error())
}

func TestIs(t *testing.T) {
	err := New(CodeAcronymTaken, "acronym AUTH already used")
	require.True(t, Is(err, CodeAcronymTaken))
	require.False(t, Is(err, CodeTaskNotFound))
	require.False(t, Is(otherError(), CodeAcronymTaken))
}

func otherError() error {
	return &Error{Code: CodeInternal, Message: "x"}
}

func TestAllCodesMatchPattern(t *testing.T) {
	codes := []Code{
		CodeProjectPath, CodeProjectLocked, CodeProjectInit, CodeProjectMissing,
		CodeDBOpen, CodeDBMigrate, CodeDBRead, CodeDBWrite, CodeDBConstraint,
		CodeTaskValidation, CodeTaskNotFound, CodeTaskStatus, CodeTaskDependency, CodeCommentBody,
		CodeSubsystemValidation, CodeSubsystemNotFound, CodeSubsystemReferenced,
		CodeDisciplineValidation, CodeDisciplineNotFound, CodeAcronymTaken,
		CodeIterationCompose, CodeIterationSpawn, CodeIterationTimeout, CodeIterationConfig,
		CodePTYCreate, CodePTYExists, CodePTYMissing, CodePTYWrite,
		CodeFilesystem, CodeInternal,
	}
	for _, c := range codes {
		err := New(c, "test")
		assert.Regexp(t, codePattern, err.Error())
	}
}
