package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "project.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedSubsystemAndDiscipline(t *testing.T, s *Store) {
	t.Helper()
	require.NoError(t, s.CreateSubsystem(Subsystem{Name: "auth", DisplayName: "Auth", Acronym: "AUTH"}))
	require.NoError(t, s.CreateDiscipline(Discipline{Name: "backend", DisplayName: "Backend", Acronym: "BACK"}))
}

func TestOpen_CreatesSchema(t *testing.T) {
	s := newTestStore(t)
	subs, err := s.ListSubsystems()
	require.NoError(t, err)
	require.Empty(t, subs)
}

func TestCreateSubsystem_RejectsBadAcronym(t *testing.T) {
	s := newTestStore(t)
	err := s.CreateSubsystem(Subsystem{Name: "auth", DisplayName: "Auth", Acronym: "lowercase"})
	require.Error(t, err)
}

func TestCreateSubsystem_RejectsDuplicateAcronym(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.CreateSubsystem(Subsystem{Name: "auth", DisplayName: "Auth", Acronym: "AUTH"}))
	err := s.CreateSubsystem(Subsystem{Name: "authz", DisplayName: "Authz", Acronym: "AUTH"})
	require.Error(t, err)
	require.True(t, Is(err, CodeAcronymTaken))
}

func TestCreateSubsystem_RejectsEmptyDisplayName(t *testing.T) {
	s := newTestStore(t)
	err := s.CreateSubsystem(Subsystem{Name: "auth", Acronym: "AUTH"})
	require.Error(t, err)
	require.True(t, Is(err, CodeSubsystemValidation))
}

func TestUpdateSubsystem_RejectsEmptyDisplayName(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.CreateSubsystem(Subsystem{Name: "auth", DisplayName: "Auth", Acronym: "AUTH"}))

	err := s.UpdateSubsystem(Subsystem{Name: "auth"})
	require.Error(t, err)
	require.True(t, Is(err, CodeSubsystemValidation))
}

func TestCreateDiscipline_RejectsEmptyDisplayName(t *testing.T) {
	s := newTestStore(t)
	err := s.CreateDiscipline(Discipline{Name: "backend", Acronym: "BACK"})
	require.Error(t, err)
	require.True(t, Is(err, CodeDisciplineValidation))
}

func TestUpdateDiscipline_RejectsEmptyDisplayName(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.CreateDiscipline(Discipline{Name: "backend", DisplayName: "Backend", Acronym: "BACK"}))

	err := s.UpdateDiscipline(Discipline{Name: "backend"})
	require.Error(t, err)
	require.True(t, Is(err, CodeDisciplineValidation))
}

func TestDeleteSubsystem_RefusesWhenReferenced(t *testing.T) {
	s := newTestStore(t)
	seedSubsystemAndDiscipline(t, s)
	_, err := s.CreateTask(Task{Subsystem: "auth", Discipline: "backend", Title: "t1"})
	require.NoError(t, err)

	err = s.DeleteSubsystem("auth")
	require.Error(t, err)
	require.True(t, Is(err, CodeSubsystemReferenced))
}

func TestCreateTask_MonotoneIDs(t *testing.T) {
	s := newTestStore(t)
	seedSubsystemAndDiscipline(t, s)

	t1, err := s.CreateTask(Task{Subsystem: "auth", Discipline: "backend", Title: "first"})
	require.NoError(t, err)
	require.Equal(t, 1, t1.ID)

	t2, err := s.CreateTask(Task{Subsystem: "auth", Discipline: "backend", Title: "second"})
	require.NoError(t, err)
	require.Equal(t, 2, t2.ID)
}

func TestCreateTask_RejectsMissingDependency(t *testing.T) {
	s := newTestStore(t)
	seedSubsystemAndDiscipline(t, s)

	_, err := s.CreateTask(Task{Subsystem: "auth", Discipline: "backend", Title: "t", DependsOn: []int{99}})
	require.Error(t, err)
	require.True(t, Is(err, CodeTaskDependency))
}

func TestSetTaskStatus_DoneRequiresDepsDone(t *testing.T) {
	s := newTestStore(t)
	seedSubsystemAndDiscipline(t, s)

	dep, err := s.CreateTask(Task{Subsystem: "auth", Discipline: "backend", Title: "dep"})
	require.NoError(t, err)
	task, err := s.CreateTask(Task{Subsystem: "auth", Discipline: "backend", Title: "main", DependsOn: []int{dep.ID}})
	require.NoError(t, err)

	err = s.SetTaskStatus(task.ID, TaskInProgress)
	require.NoError(t, err)
	err = s.SetTaskStatus(task.ID, TaskDone)
	require.Error(t, err)
	require.True(t, Is(err, CodeTaskDependency))

	require.NoError(t, s.SetTaskStatus(dep.ID, TaskInProgress))
	require.NoError(t, s.SetTaskStatus(dep.ID, TaskDone))
	require.NoError(t, s.SetTaskStatus(task.ID, TaskDone))
}

func TestSetTaskStatus_RejectsIllegalTransition(t *testing.T) {
	s := newTestStore(t)
	seedSubsystemAndDiscipline(t, s)
	task, err := s.CreateTask(Task{Subsystem: "auth", Discipline: "backend", Title: "t"})
	require.NoError(t, err)

	require.NoError(t, s.SetTaskStatus(task.ID, TaskInProgress))
	require.NoError(t, s.SetTaskStatus(task.ID, TaskDone))

	err = s.SetTaskStatus(task.ID, TaskPending)
	require.Error(t, err)
	require.True(t, Is(err, CodeTaskStatus))
}

func TestSetTaskStatus_InProgressToSkipped(t *testing.T) {
	s := newTestStore(t)
	seedSubsystemAndDiscipline(t, s)
	task, err := s.CreateTask(Task{Subsystem: "auth", Discipline: "backend", Title: "t"})
	require.NoError(t, err)

	require.NoError(t, s.SetTaskStatus(task.ID, TaskInProgress))
	require.NoError(t, s.SetTaskStatus(task.ID, TaskSkipped))
}

func TestNextPendingTask_SkipsTasksWithOpenDeps(t *testing.T) {
	s := newTestStore(t)
	seedSubsystemAndDiscipline(t, s)

	blocked, err := s.CreateTask(Task{Subsystem: "auth", Discipline: "backend", Title: "needs-dep", DependsOn: nil})
	require.NoError(t, err)
	gated, err := s.CreateTask(Task{Subsystem: "auth", Discipline: "backend", Title: "gated", DependsOn: []int{blocked.ID}})
	require.NoError(t, err)

	next, err := s.NextPendingTask("auth")
	require.NoError(t, err)
	require.Equal(t, blocked.ID, next.ID)

	require.NoError(t, s.SetTaskStatus(blocked.ID, TaskInProgress))
	require.NoError(t, s.SetTaskStatus(blocked.ID, TaskDone))

	next, err = s.NextPendingTask("auth")
	require.NoError(t, err)
	require.Equal(t, gated.ID, next.ID)
}

func TestAddSubsystemComment_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	seedSubsystemAndDiscipline(t, s)

	c, err := s.AddSubsystemComment(Comment{Subsystem: "auth", Category: "gotcha", Body: "watch for X"})
	require.NoError(t, err)
	require.Equal(t, 1, c.HitCount)

	comments, err := s.ListSubsystemComments("auth")
	require.NoError(t, err)
	require.Len(t, comments, 1)
	require.Equal(t, "watch for X", comments[0].Body)
}

func TestEmbedding_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	seedSubsystemAndDiscipline(t, s)
	c, err := s.AddSubsystemComment(Comment{Subsystem: "auth", Category: "gotcha", Body: "x"})
	require.NoError(t, err)

	vec := []float32{0.1, -0.2, 0.3}
	require.NoError(t, s.UpsertCommentEmbedding(Embedding{CommentID: c.ID, Model: "test", Dims: 3, ContentHash: "h1", Vector: vec}))

	hash, err := s.GetEmbeddingHash(c.ID)
	require.NoError(t, err)
	require.Equal(t, "h1", hash)

	got, err := s.GetEmbedding(c.ID)
	require.NoError(t, err)
	require.Equal(t, vec, got.Vector)
}

func TestExportPRDYAML_Deterministic(t *testing.T) {
	s := newTestStore(t)
	seedSubsystemAndDiscipline(t, s)
	require.NoError(t, s.SetProjectMetadata(ProjectMetadata{Title: "Demo"}))
	_, err := s.CreateTask(Task{Subsystem: "auth", Discipline: "backend", Title: "t1"})
	require.NoError(t, err)

	first, err := s.ExportPRDYAML()
	require.NoError(t, err)
	second, err := s.ExportPRDYAML()
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Contains(t, string(first), "title: Demo")
}
