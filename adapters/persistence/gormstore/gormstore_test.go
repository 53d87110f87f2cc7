package gormstore

import (
	"context"
	"testing"
	"time"

	"github.com/agentflow-runtime/workflowcore/adapters/persistence"
	"github.com/agentflow-runtime/workflowcore/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&workflowRow{}, &executionRow{}, &nodeExecutionRow{}))
	return New(db)
}

func TestStore_SaveAndGetWorkflow_ReadAfterWrite(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	wf := &domain.Workflow{Name: "approval", Version: "v1", Kind: domain.KindDAG}

	require.NoError(t, s.Save(ctx, wf))

	got, err := s.Get(ctx, "approval", "v1")
	require.NoError(t, err)
	assert.Equal(t, wf.Name, got.Name)
	assert.Equal(t, wf.Kind, got.Kind)
}

func TestStore_GetMissingWorkflow_ReturnsErrNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get(context.Background(), "missing", "v1")
	assert.ErrorIs(t, err, persistence.ErrNotFound)
}

func TestStore_GetLatest_PicksHighestVersionLexically(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, &domain.Workflow{Name: "approval", Version: "v1"}))
	require.NoError(t, s.Save(ctx, &domain.Workflow{Name: "approval", Version: "v2"}))

	latest, err := s.GetLatest(ctx, "approval")
	require.NoError(t, err)
	assert.Equal(t, "v2", latest.Version)
}

func TestStore_Delete_Missing_ReturnsErrNotFound(t *testing.T) {
	s := newTestStore(t)
	err := s.Delete(context.Background(), "missing", "v1")
	assert.ErrorIs(t, err, persistence.ErrNotFound)
}

func TestStore_SaveAndGetExecution_ReadAfterWrite(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	exec := &domain.Execution{ExecutionID: "e1", WorkflowID: "approval", Status: domain.ExecRunning, StartTS: time.Now()}

	require.NoError(t, s.SaveExecution(ctx, exec))

	got, err := s.GetExecution(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, exec.ExecutionID, got.ExecutionID)
	assert.Equal(t, exec.Status, got.Status)
}

func TestStore_ListExecutions_FiltersByWorkflowAndStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveExecution(ctx, &domain.Execution{ExecutionID: "e1", WorkflowID: "a", Status: domain.ExecRunning, StartTS: time.Now()}))
	require.NoError(t, s.SaveExecution(ctx, &domain.Execution{ExecutionID: "e2", WorkflowID: "a", Status: domain.ExecCompleted, StartTS: time.Now()}))
	require.NoError(t, s.SaveExecution(ctx, &domain.Execution{ExecutionID: "e3", WorkflowID: "b", Status: domain.ExecRunning, StartTS: time.Now()}))

	list, err := s.ListExecutions(ctx, persistence.ExecutionFilter{WorkflowID: "a", Status: domain.ExecRunning})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "e1", list[0].ExecutionID)
}

func TestStore_SaveAndGetNodeExecution_ReadAfterWrite(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ne := &domain.NodeExecution{ID: "ne1", ExecutionID: "e1", NodeID: "n1", Status: domain.NodeRunning}

	require.NoError(t, s.SaveNodeExecution(ctx, ne))

	got, err := s.GetNodeExecution(ctx, "e1", "n1")
	require.NoError(t, err)
	assert.Equal(t, ne.NodeID, got.NodeID)
}

func TestStore_ListNodeExecutions_ReturnsAllForExecution(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveNodeExecution(ctx, &domain.NodeExecution{ExecutionID: "e1", NodeID: "n1"}))
	require.NoError(t, s.SaveNodeExecution(ctx, &domain.NodeExecution{ExecutionID: "e1", NodeID: "n2"}))

	list, err := s.ListNodeExecutions(ctx, "e1")
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestMigrateDatabaseURL(t *testing.T) {
	url, err := migrateDatabaseURL("postgres", "host=h")
	require.NoError(t, err)
	assert.Equal(t, "postgres://host=h", url)

	_, err = migrateDatabaseURL("unknown", "x")
	assert.Error(t, err)
}
