// Package database abstracts SurrealDB behind a small interface so the
// repositories stay independent of the storage engine.
//
// Three query shapes cover every repository need:
//   - Query: multiple results (SELECT returning lists)
//   - QueryOne: a single record (SELECT by id)
//   - Execute: mutations with no interesting return value
//
// Transactions are batch-based: BeginTx accumulates statements in memory and
// wraps them in BEGIN TRANSACTION / COMMIT TRANSACTION at commit time. All
// statements succeed or fail together; Rollback merely discards the batch.
// The import handler relies on this to make its delete-then-reinsert of a
// whole event subtree atomic.
package database

import (
	"context"
	"errors"
)

// Standard errors for database operations. Check with errors.Is.
var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrConnection indicates a failure to connect to or communicate with the database.
	ErrConnection = errors.New("database connection error")

	// ErrQuery indicates a query execution failure.
	ErrQuery = errors.New("query error")
)

// Database defines the interface for database operations
type Database interface {
	// Connection management
	Connect(ctx context.Context) error
	Close() error
	Ping(ctx context.Context) error

	// Query executes a query and returns results
	Query(ctx context.Context, query string, vars map[string]interface{}) ([]interface{}, error)

	// QueryOne executes a query and returns a single result
	QueryOne(ctx context.Context, query string, vars map[string]interface{}) (interface{}, error)

	// Execute runs a query without returning results (for mutations)
	Execute(ctx context.Context, query string, vars map[string]interface{}) error

	// BeginTx starts a batch transaction
	BeginTx(ctx context.Context) (Transaction, error)
}

// Transaction represents a batch transaction
type Transaction interface {
	Execute(ctx context.Context, query string, vars map[string]interface{}) error
	Commit() error
	Rollback() error
}

// Config holds database configuration
type Config struct {
	Host      string
	Port      string
	User      string
	Password  string
	Namespace string
	Database  string
}
