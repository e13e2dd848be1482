package storage

import (
	"os"
	"testing"
)

// SetupTestDB connects to the integration test database, skipping the
// calling test when no database is reachable.
func SetupTestDB(t *testing.T) (*DB, func()) {
	t.Helper()

	cfg := DefaultConfig()
	if host := os.Getenv("DB_HOST"); host != "" {
		cfg.Host = host
	}
	if port := os.Getenv("DB_PORT"); port != "" {
		cfg.Port = port
	}
	if user := os.Getenv("DB_USER"); user != "" {
		cfg.User = user
	}
	if password := os.Getenv("DB_PASSWORD"); password != "" {
		cfg.Password = password
	}
	if dbname := os.Getenv("DB_NAME"); dbname != "" {
		cfg.DBName = dbname
	}

	db, err := NewDB(cfg)
	if err != nil {
		t.Skipf("Failed to connect to test database: %v. Set DB_HOST, DB_PORT, etc. to run integration tests", err)
	}

	if err := RunMigrations(cfg, "./../../migrations"); err != nil {
		if err := RunMigrations(cfg, "../../../migrations"); err != nil {
			t.Logf("Warning: Failed to run migrations: %v", err)
		}
	}

	cleanup := func() {
		db.Exec("TRUNCATE TABLE routing_decisions CASCADE")
		db.Exec("TRUNCATE TABLE task_state_history CASCADE")
		db.Exec("TRUNCATE TABLE task_runs CASCADE")
		db.Close()
	}

	return db, cleanup
}
