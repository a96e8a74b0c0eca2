// Package testing provides testing utilities and helpers for the stockledger project.
package testing

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/aristath/stockledger/internal/database"
)

// profiles maps schema names to the profile production opens them with
var profiles = map[string]database.DatabaseProfile{
	"ledger":      database.ProfileLedger,
	"client_data": database.ProfileCache,
}

// NewTestDB creates a file-backed SQLite database in a temporary directory
// with the named schema applied. Returns the database instance and a cleanup
// function that closes the connection. The cleanup is idempotent.
//
// Supported schema names:
//   - "ledger" - applies ledger_schema.sql
//   - "client_data" - applies client_data_schema.sql
//   - Unknown names - creates empty database (no schema applied)
func NewTestDB(t *testing.T, name string) (*database.DB, func()) {
	t.Helper()

	// A file rather than :memory: so every pooled connection sees the same database
	tmpPath := filepath.Join(t.TempDir(), fmt.Sprintf("test_%s.db", name))

	profile, ok := profiles[name]
	if !ok {
		profile = database.ProfileStandard
	}

	db, err := database.New(database.Config{
		Path:    tmpPath,
		Profile: profile,
		Name:    name,
	})
	if err != nil {
		t.Fatalf("Failed to create test database %s: %v", name, err)
	}

	if err := db.Migrate(); err != nil {
		_ = db.Close()
		t.Fatalf("Failed to migrate test database %s: %v", name, err)
	}

	closed := false
	return db, func() {
		if closed {
			return
		}
		closed = true
		if err := db.Close(); err != nil {
			t.Logf("Warning: Failed to close test database %s: %v", name, err)
		}
	}
}

// NewTestDBWithSchema creates a test database and executes a custom schema on it
func NewTestDBWithSchema(t *testing.T, name string, schema string) (*database.DB, func()) {
	t.Helper()

	db, cleanup := NewTestDB(t, name)
	if schema != "" {
		if _, err := db.Conn().Exec(schema); err != nil {
			cleanup()
			t.Fatalf("Failed to execute custom schema for test database %s: %v", name, err)
		}
	}
	return db, cleanup
}

// CreateTempDBFile returns a path for a database file that does not exist yet.
// The cleanup function removes the file and its WAL companions.
func CreateTempDBFile(t *testing.T, name string) (string, func()) {
	t.Helper()

	path := filepath.Join(t.TempDir(), fmt.Sprintf("%s.db", name))
	return path, func() {
		for _, p := range []string{path, path + "-wal", path + "-shm"} {
			if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
				t.Logf("Warning: Failed to remove temporary database file %s: %v", p, err)
			}
		}
	}
}
