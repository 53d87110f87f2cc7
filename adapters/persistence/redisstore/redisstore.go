// Package redisstore is the reference execution-context cache and
// cross-process circuit-breaker state adapter, backed by
// github.com/redis/go-redis/v9. Unlike memstore/gormstore/mongostore it
// is not a full WorkflowRepo/ExecutionRepo: its job is the two things a
// single process's in-memory state cannot give multiple engine replicas
// — a shared execution snapshot cache, and shared circuit breaker state
// (errorhandler.CircuitBreaker's per-node counters, externalized so every
// replica observing node failures converges on the same open/closed
// decision).
package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/agentflow-runtime/workflowcore/domain"
	"github.com/redis/go-redis/v9"
)

// Cache wraps a redis client scoped under keyPrefix.
type Cache struct {
	client    *redis.Client
	keyPrefix string
}

// New wraps an already-constructed redis client.
func New(client *redis.Client, keyPrefix string) *Cache {
	if keyPrefix == "" {
		keyPrefix = "workflowcore:"
	}
	return &Cache{client: client, keyPrefix: keyPrefix}
}

func execKey(prefix, executionID string) string {
	return prefix + "exec:" + executionID
}

func breakerKey(prefix, nodeID string) string {
	return prefix + "breaker:" + nodeID
}

// PutExecutionSnapshot caches e's current state with ttl, keyed by
// ExecutionID, for fast cross-replica lookup of in-flight executions.
func (c *Cache) PutExecutionSnapshot(ctx context.Context, e *domain.Execution, ttl time.Duration) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, execKey(c.keyPrefix, e.ExecutionID), data, ttl).Err()
}

// GetExecutionSnapshot returns the cached execution snapshot, or
// redis.Nil if none is cached (callers should fall back to the
// authoritative ExecutionRepo on a miss).
func (c *Cache) GetExecutionSnapshot(ctx context.Context, executionID string) (*domain.Execution, error) {
	data, err := c.client.Get(ctx, execKey(c.keyPrefix, executionID)).Bytes()
	if err != nil {
		return nil, err
	}
	var e domain.Execution
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// InvalidateExecutionSnapshot drops the cached snapshot for executionID,
// e.g. once the execution reaches a terminal status.
func (c *Cache) InvalidateExecutionSnapshot(ctx context.Context, executionID string) error {
	return c.client.Del(ctx, execKey(c.keyPrefix, executionID)).Err()
}

// BreakerState is the cross-process-shared view of one node's circuit
// breaker counters.
type BreakerState struct {
	State            string    `json:"state"` // closed | half_open | open
	ConsecutiveFails int       `json:"consecutive_fails"`
	OpenedAt         time.Time `json:"opened_at,omitempty"`
}

// PutBreakerState stores nodeID's current breaker state.
func (c *Cache) PutBreakerState(ctx context.Context, nodeID string, state BreakerState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, breakerKey(c.keyPrefix, nodeID), data, 0).Err()
}

// GetBreakerState retrieves nodeID's shared breaker state. A missing key
// is reported as the zero-value closed state, not an error: an
// unrecognized node is assumed healthy.
func (c *Cache) GetBreakerState(ctx context.Context, nodeID string) (BreakerState, error) {
	data, err := c.client.Get(ctx, breakerKey(c.keyPrefix, nodeID)).Bytes()
	if err == redis.Nil {
		return BreakerState{State: "closed"}, nil
	}
	if err != nil {
		return BreakerState{}, err
	}
	var state BreakerState
	if err := json.Unmarshal(data, &state); err != nil {
		return BreakerState{}, err
	}
	return state, nil
}

// Ping checks connectivity.
func (c *Cache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redisstore: ping: %w", err)
	}
	return nil
}
