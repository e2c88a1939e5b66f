// Package rerr defines the project's typed, numbered error codes.
//
// Every fallible operation in the store, composer, and controller returns an
// *Error whose string form matches `^\[R-\d{4}\] `. Code ranges are grouped
// by subsystem so a caller (or the agent, reading a JSON tool-error) can
// react to a class of failure without string-matching the message.
package rerr

import "fmt"

// Code is a stable numeric error code in the [R-XXXX] namespace.
type Code int

const (
	// 1000-1299: project path / lock / init
	CodeProjectPath    Code = 1000
	CodeProjectLocked  Code = 1001
	CodeProjectInit    Code = 1002
	CodeProjectMissing Code = 1003

	// 2000-2299: database open / read / write
	CodeDBOpen       Code = 2000
	CodeDBMigrate    Code = 2001
	CodeDBRead       Code = 2002
	CodeDBWrite      Code = 2003
	CodeDBConstraint Code = 2004

	// 3000-3299: task validation / operations / comments
	CodeTaskValidation Code = 3000
	CodeTaskNotFound   Code = 3001
	CodeTaskStatus     Code = 3002
	CodeTaskDependency Code = 3003
	CodeCommentBody    Code = 3010

	// 4000-4199: subsystem / discipline operations
	CodeSubsystemValidation  Code = 4000
	CodeSubsystemNotFound    Code = 4001
	CodeSubsystemReferenced  Code = 4002
	CodeDisciplineValidation Code = 4010
	CodeDisciplineNotFound   Code = 4011
	CodeAcronymTaken         Code = 4020

	// 5000-5099: iteration controller
	CodeIterationCompose Code = 5000
	CodeIterationSpawn   Code = 5001
	CodeIterationTimeout Code = 5002
	CodeIterationConfig  Code = 5010
	CodeIterationRAG     Code = 5020

	// 7000-7099: terminal / PTY
	CodePTYCreate  Code = 7000
	CodePTYExists  Code = 7001
	CodePTYMissing Code = 7002
	CodePTYWrite   Code = 7003

	// 8000-8199: filesystem / internal
	CodeFilesystem Code = 8000
	CodeInternal   Code = 8001
)

// Error is a numbered, namespaced error.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("[R-%04d] %s", int(e.Code), e.Message)
}

// New builds an *Error with a formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Is reports whether err is an *Error with the given code.
func Is(err error, code Code) bool {
	e, ok := err.(*Error)
	return ok && e.Code == code
}
