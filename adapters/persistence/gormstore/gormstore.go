// Package gormstore is the reference SQL-backed WorkflowRepo/ExecutionRepo,
// grounded on the teacher's config.SQLConfig.DSN()-selected driver trio
// (postgres/mysql/sqlite). Workflow and execution records are stored as
// JSON blobs under a small relational key (id/name/version, or
// execution_id/node_id): the domain types are deeply nested with
// interface-valued fields (Node.Config, ContextTree) that do not map
// cleanly onto columns, and a reference adapter's job is to demonstrate
// correct read-after-write/filter semantics against a real SQL engine,
// not to normalize the schema.
package gormstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/agentflow-runtime/workflowcore/adapters/persistence"
	"github.com/agentflow-runtime/workflowcore/config"
	"github.com/agentflow-runtime/workflowcore/domain"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// workflowRow is the gorm model backing WorkflowRepo.
type workflowRow struct {
	Name      string `gorm:"primaryKey;index:idx_wf_name"`
	Version   string `gorm:"primaryKey"`
	Data      []byte
	UpdatedAt time.Time
}

func (workflowRow) TableName() string { return "workflows" }

// executionRow is the gorm model backing ExecutionRepo's Execution half.
type executionRow struct {
	ExecutionID string `gorm:"primaryKey"`
	WorkflowID  string `gorm:"index:idx_exec_workflow"`
	Status      string `gorm:"index:idx_exec_status"`
	StartTS     time.Time
	Data        []byte
}

func (executionRow) TableName() string { return "executions" }

// nodeExecutionRow is the gorm model backing ExecutionRepo's NodeExecution half.
type nodeExecutionRow struct {
	ExecutionID string `gorm:"primaryKey;index:idx_ne_execution"`
	NodeID      string `gorm:"primaryKey"`
	Data        []byte
}

func (nodeExecutionRow) TableName() string { return "node_executions" }

// Store is a gorm-backed WorkflowRepo + ExecutionRepo.
type Store struct {
	db *gorm.DB
}

var (
	_ persistence.WorkflowRepo  = (*Store)(nil)
	_ persistence.ExecutionRepo = (*Store)(nil)
)

// Open connects with the driver named by cfg.Driver and auto-migrates
// the reference schema.
func Open(cfg config.SQLConfig) (*Store, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.DSN())
	case "mysql":
		dialector = mysql.Open(cfg.DSN())
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN())
	default:
		dialector = sqlite.Open(cfg.DSN())
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&workflowRow{}, &executionRow{}, &nodeExecutionRow{}); err != nil {
		return nil, err
	}

	return &Store{db: db}, nil
}

// New wraps an already-opened, already-migrated *gorm.DB (used by tests
// against sqlmock or an in-memory sqlite handle).
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Save(ctx context.Context, wf *domain.Workflow) error {
	data, err := json.Marshal(wf)
	if err != nil {
		return err
	}
	row := workflowRow{Name: wf.Name, Version: wf.Version, Data: data, UpdatedAt: time.Now()}
	return s.db.WithContext(ctx).Save(&row).Error
}

func (s *Store) Get(ctx context.Context, name, version string) (*domain.Workflow, error) {
	var row workflowRow
	err := s.db.WithContext(ctx).Where("name = ? AND version = ?", name, version).First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, persistence.ErrNotFound
		}
		return nil, err
	}
	var wf domain.Workflow
	if err := json.Unmarshal(row.Data, &wf); err != nil {
		return nil, err
	}
	return &wf, nil
}

func (s *Store) GetLatest(ctx context.Context, name string) (*domain.Workflow, error) {
	var row workflowRow
	err := s.db.WithContext(ctx).
		Where("name = ?", name).
		Order("version desc").
		First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, persistence.ErrNotFound
		}
		return nil, err
	}
	var wf domain.Workflow
	if err := json.Unmarshal(row.Data, &wf); err != nil {
		return nil, err
	}
	return &wf, nil
}

func (s *Store) List(ctx context.Context, name string) ([]*domain.Workflow, error) {
	var rows []workflowRow
	if err := s.db.WithContext(ctx).Where("name = ?", name).Order("version asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*domain.Workflow, 0, len(rows))
	for _, row := range rows {
		var wf domain.Workflow
		if err := json.Unmarshal(row.Data, &wf); err != nil {
			return nil, err
		}
		out = append(out, &wf)
	}
	return out, nil
}

func (s *Store) Delete(ctx context.Context, name, version string) error {
	res := s.db.WithContext(ctx).Where("name = ? AND version = ?", name, version).Delete(&workflowRow{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

func (s *Store) SaveExecution(ctx context.Context, e *domain.Execution) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	row := executionRow{ExecutionID: e.ExecutionID, WorkflowID: e.WorkflowID, Status: string(e.Status), StartTS: e.StartTS, Data: data}
	return s.db.WithContext(ctx).Save(&row).Error
}

func (s *Store) GetExecution(ctx context.Context, executionID string) (*domain.Execution, error) {
	var row executionRow
	err := s.db.WithContext(ctx).Where("execution_id = ?", executionID).First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, persistence.ErrNotFound
		}
		return nil, err
	}
	var e domain.Execution
	if err := json.Unmarshal(row.Data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *Store) ListExecutions(ctx context.Context, filter persistence.ExecutionFilter) ([]*domain.Execution, error) {
	q := s.db.WithContext(ctx).Model(&executionRow{})
	if filter.WorkflowID != "" {
		q = q.Where("workflow_id = ?", filter.WorkflowID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", string(filter.Status))
	}
	if !filter.CreatedAfter.IsZero() {
		q = q.Where("start_ts >= ?", filter.CreatedAfter)
	}
	if !filter.CreatedBefore.IsZero() {
		q = q.Where("start_ts <= ?", filter.CreatedBefore)
	}
	q = q.Order("start_ts desc")
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var rows []executionRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*domain.Execution, 0, len(rows))
	for _, row := range rows {
		var e domain.Execution
		if err := json.Unmarshal(row.Data, &e); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, nil
}

func (s *Store) SaveNodeExecution(ctx context.Context, ne *domain.NodeExecution) error {
	data, err := json.Marshal(ne)
	if err != nil {
		return err
	}
	row := nodeExecutionRow{ExecutionID: ne.ExecutionID, NodeID: ne.NodeID, Data: data}
	return s.db.WithContext(ctx).Save(&row).Error
}

func (s *Store) GetNodeExecution(ctx context.Context, executionID, nodeID string) (*domain.NodeExecution, error) {
	var row nodeExecutionRow
	err := s.db.WithContext(ctx).Where("execution_id = ? AND node_id = ?", executionID, nodeID).First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, persistence.ErrNotFound
		}
		return nil, err
	}
	var ne domain.NodeExecution
	if err := json.Unmarshal(row.Data, &ne); err != nil {
		return nil, err
	}
	return &ne, nil
}

func (s *Store) ListNodeExecutions(ctx context.Context, executionID string) ([]*domain.NodeExecution, error) {
	var rows []nodeExecutionRow
	if err := s.db.WithContext(ctx).Where("execution_id = ?", executionID).Order("node_id asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*domain.NodeExecution, 0, len(rows))
	for _, row := range rows {
		var ne domain.NodeExecution
		if err := json.Unmarshal(row.Data, &ne); err != nil {
			return nil, err
		}
		out = append(out, &ne)
	}
	return out, nil
}
