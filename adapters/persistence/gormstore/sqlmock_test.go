package gormstore

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/agentflow-runtime/workflowcore/adapters/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// TestStore_GetExecution_NoRows_ReturnsErrNotFound exercises the read path
// against a mocked *sql.DB, mirroring the teacher's sqlmock-backed adapter
// tests without requiring a live postgres instance.
func TestStore_GetExecution_NoRows_ReturnsErrNotFound(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	mock.ExpectQuery(".*").WillReturnRows(sqlmock.NewRows([]string{"execution_id", "workflow_id", "status", "start_ts", "data"}))

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: mockDB}), &gorm.Config{})
	require.NoError(t, err)

	s := New(db)
	_, err = s.GetExecution(context.Background(), "missing")
	assert.ErrorIs(t, err, persistence.ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}
