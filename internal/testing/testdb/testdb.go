// Package testdb provides isolated SurrealDB environments for integration
// tests. Each TestDB gets a unique namespace so tests never see each
// other's rows.
//
// Integration tests are opt-in: without SPLITPOT_TEST_DB=1 in the
// environment, New skips the calling test.
//
// Usage:
//
//	func TestSomething(t *testing.T) {
//	    tdb := testdb.New(t)
//	    defer tdb.Close()
//
//	    repo := repository.NewEventRepository(tdb.DB)
//	    ...
//	}
package testdb

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/splitpot/api/internal/database"
)

// TestDB provides an isolated database environment for testing.
type TestDB struct {
	DB        database.Database
	Namespace string
	Database  string
	t         *testing.T
}

var (
	counterMu sync.Mutex
	counter   int64
)

// schema declares the four tables with their indexes. Kept in one place so
// integration tests exercise the same constraints the server relies on.
var schema = []string{
	`DEFINE TABLE event SCHEMALESS;
	 DEFINE INDEX event_code ON TABLE event COLUMNS invitation_code UNIQUE;`,
	`DEFINE TABLE participant SCHEMALESS;
	 DEFINE INDEX participant_id ON TABLE participant COLUMNS participant_id UNIQUE;
	 DEFINE INDEX participant_event ON TABLE participant COLUMNS invitation_code;`,
	`DEFINE TABLE expense SCHEMALESS;
	 DEFINE INDEX expense_id ON TABLE expense COLUMNS expense_id UNIQUE;
	 DEFINE INDEX expense_event ON TABLE expense COLUMNS invitation_code;`,
	`DEFINE TABLE involved SCHEMALESS;
	 DEFINE INDEX involved_id ON TABLE involved COLUMNS involved_id UNIQUE;
	 DEFINE INDEX involved_expense ON TABLE involved COLUMNS expense_id;`,
}

func getTestConfig() database.Config {
	host := os.Getenv("TEST_DB_HOST")
	if host == "" {
		host = "localhost"
	}

	port := os.Getenv("TEST_DB_PORT")
	if port == "" {
		port = "8000"
	}

	user := os.Getenv("TEST_DB_USER")
	if user == "" {
		user = "root"
	}

	password := os.Getenv("TEST_DB_PASSWORD")
	if password == "" {
		password = "root"
	}

	return database.Config{
		Host:     host,
		Port:     port,
		User:     user,
		Password: password,
	}
}

// uniqueNamespace generates a unique namespace for test isolation.
func uniqueNamespace() string {
	counterMu.Lock()
	defer counterMu.Unlock()
	counter++
	return fmt.Sprintf("test_%d_%d", time.Now().UnixNano(), counter)
}

// New creates an isolated test database with the schema applied. The test
// is skipped unless SPLITPOT_TEST_DB=1 is set. Call Close when done.
func New(t *testing.T) *TestDB {
	t.Helper()

	if os.Getenv("SPLITPOT_TEST_DB") != "1" {
		t.Skip("set SPLITPOT_TEST_DB=1 to run database integration tests")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg := getTestConfig()
	cfg.Namespace = uniqueNamespace()
	cfg.Database = "test"

	db := database.NewSurrealDB(cfg)
	if err := db.Connect(ctx); err != nil {
		t.Fatalf("testdb: failed to connect: %v", err)
	}

	for i, stmt := range schema {
		if err := db.Execute(ctx, stmt, nil); err != nil {
			_ = db.Close()
			t.Fatalf("testdb: schema statement %d failed: %v", i+1, err)
		}
	}

	return &TestDB{
		DB:        db,
		Namespace: cfg.Namespace,
		Database:  cfg.Database,
		t:         t,
	}
}

// Close cleans up the test database by removing its namespace.
func (tdb *TestDB) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := tdb.DB.Execute(ctx, fmt.Sprintf("REMOVE NAMESPACE `%s`", tdb.Namespace), nil); err != nil {
		tdb.t.Logf("testdb: failed to remove namespace %s: %v", tdb.Namespace, err)
	}
	_ = tdb.DB.Close()
}
