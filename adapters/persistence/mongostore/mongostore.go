// Package mongostore is the reference append-only audit adapter: an
// ExecutionRepo (plus a companion WorkflowRepo) backed by
// go.mongodb.org/mongo-driver/v2, suited to the audit trail's
// write-heavy, append-only shape (spec.md §5) where node-execution and
// execution documents are inserted once per state transition rather
// than mutated in place, grounded on original_source/persistence.py's
// read-after-write consistency expectation.
package mongostore

import (
	"context"

	"github.com/agentflow-runtime/workflowcore/adapters/persistence"
	"github.com/agentflow-runtime/workflowcore/domain"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Store is a mongo-backed WorkflowRepo + ExecutionRepo. Execution and
// node-execution writes are appended to their collections as new
// documents tagged with a monotonic Rev; reads return the
// highest-Rev document for a given key, so history is never
// overwritten.
type Store struct {
	workflows      *mongo.Collection
	executions     *mongo.Collection
	nodeExecutions *mongo.Collection
}

var (
	_ persistence.WorkflowRepo  = (*Store)(nil)
	_ persistence.ExecutionRepo = (*Store)(nil)
)

// New wraps an already-connected database handle.
func New(db *mongo.Database) *Store {
	return &Store{
		workflows:      db.Collection("workflows"),
		executions:     db.Collection("executions"),
		nodeExecutions: db.Collection("node_executions"),
	}
}

// Connect dials uri and returns a Store bound to database.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}
	return New(client.Database(database)), nil
}

type workflowDoc struct {
	Name    string          `bson:"name"`
	Version string          `bson:"version"`
	Rev     int64           `bson:"rev"`
	Data    *domain.Workflow `bson:"data"`
}

func (s *Store) Save(ctx context.Context, wf *domain.Workflow) error {
	rev, err := s.nextRev(ctx, s.workflows, bson.M{"name": wf.Name, "version": wf.Version})
	if err != nil {
		return err
	}
	_, err = s.workflows.InsertOne(ctx, workflowDoc{Name: wf.Name, Version: wf.Version, Rev: rev, Data: wf})
	return err
}

func (s *Store) Get(ctx context.Context, name, version string) (*domain.Workflow, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "rev", Value: -1}})
	var doc workflowDoc
	err := s.workflows.FindOne(ctx, bson.M{"name": name, "version": version}, opts).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, persistence.ErrNotFound
		}
		return nil, err
	}
	return doc.Data, nil
}

func (s *Store) GetLatest(ctx context.Context, name string) (*domain.Workflow, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "rev", Value: -1}})
	var doc workflowDoc
	err := s.workflows.FindOne(ctx, bson.M{"name": name}, opts).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, persistence.ErrNotFound
		}
		return nil, err
	}
	return doc.Data, nil
}

func (s *Store) List(ctx context.Context, name string) ([]*domain.Workflow, error) {
	latestPerVersion := map[string]*domain.Workflow{}
	cur, err := s.workflows.Find(ctx, bson.M{"name": name}, options.Find().SetSort(bson.D{{Key: "rev", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var doc workflowDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		latestPerVersion[doc.Version] = doc.Data // later rev overwrites earlier, cursor is rev-ascending
	}
	out := make([]*domain.Workflow, 0, len(latestPerVersion))
	for _, wf := range latestPerVersion {
		out = append(out, wf)
	}
	return out, cur.Err()
}

func (s *Store) Delete(ctx context.Context, name, version string) error {
	res, err := s.workflows.DeleteMany(ctx, bson.M{"name": name, "version": version})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

type executionDoc struct {
	ExecutionID string            `bson:"execution_id"`
	Rev         int64             `bson:"rev"`
	Data        *domain.Execution `bson:"data"`
}

func (s *Store) SaveExecution(ctx context.Context, e *domain.Execution) error {
	rev, err := s.nextRev(ctx, s.executions, bson.M{"execution_id": e.ExecutionID})
	if err != nil {
		return err
	}
	_, err = s.executions.InsertOne(ctx, executionDoc{ExecutionID: e.ExecutionID, Rev: rev, Data: e})
	return err
}

func (s *Store) GetExecution(ctx context.Context, executionID string) (*domain.Execution, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "rev", Value: -1}})
	var doc executionDoc
	err := s.executions.FindOne(ctx, bson.M{"execution_id": executionID}, opts).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, persistence.ErrNotFound
		}
		return nil, err
	}
	return doc.Data, nil
}

func (s *Store) ListExecutions(ctx context.Context, filter persistence.ExecutionFilter) ([]*domain.Execution, error) {
	// Append-only storage means each execution_id may have many revisions;
	// fold down to the newest revision per id, then apply filter/limit.
	latest := map[string]*domain.Execution{}
	cur, err := s.executions.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "rev", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var doc executionDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		latest[doc.ExecutionID] = doc.Data
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}

	out := make([]*domain.Execution, 0, len(latest))
	for _, e := range latest {
		if filter.Matches(e) {
			out = append(out, e)
		}
	}
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

type nodeExecutionDoc struct {
	ExecutionID string                `bson:"execution_id"`
	NodeID      string                `bson:"node_id"`
	Rev         int64                 `bson:"rev"`
	Data        *domain.NodeExecution `bson:"data"`
}

func (s *Store) SaveNodeExecution(ctx context.Context, ne *domain.NodeExecution) error {
	rev, err := s.nextRev(ctx, s.nodeExecutions, bson.M{"execution_id": ne.ExecutionID, "node_id": ne.NodeID})
	if err != nil {
		return err
	}
	_, err = s.nodeExecutions.InsertOne(ctx, nodeExecutionDoc{ExecutionID: ne.ExecutionID, NodeID: ne.NodeID, Rev: rev, Data: ne})
	return err
}

func (s *Store) GetNodeExecution(ctx context.Context, executionID, nodeID string) (*domain.NodeExecution, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "rev", Value: -1}})
	var doc nodeExecutionDoc
	err := s.nodeExecutions.FindOne(ctx, bson.M{"execution_id": executionID, "node_id": nodeID}, opts).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, persistence.ErrNotFound
		}
		return nil, err
	}
	return doc.Data, nil
}

func (s *Store) ListNodeExecutions(ctx context.Context, executionID string) ([]*domain.NodeExecution, error) {
	latest := map[string]*domain.NodeExecution{}
	cur, err := s.nodeExecutions.Find(ctx, bson.M{"execution_id": executionID}, options.Find().SetSort(bson.D{{Key: "rev", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var doc nodeExecutionDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		latest[doc.NodeID] = doc.Data
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	out := make([]*domain.NodeExecution, 0, len(latest))
	for _, ne := range latest {
		out = append(out, ne)
	}
	return out, nil
}

// nextRev returns one past the highest existing revision matching filter,
// so each append-only insert carries a strictly increasing sequence
// number scoped to its key.
func (s *Store) nextRev(ctx context.Context, coll *mongo.Collection, filter bson.M) (int64, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "rev", Value: -1}}).SetProjection(bson.M{"rev": 1})
	var doc struct {
		Rev int64 `bson:"rev"`
	}
	err := coll.FindOne(ctx, filter, opts).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return 0, nil
		}
		return 0, err
	}
	return doc.Rev + 1, nil
}
