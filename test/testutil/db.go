package testutil

import (
	"database/sql"
	"os"
	"testing"

	"github.com/ClarenceZzz/docpipe/internal/config"
	"github.com/ClarenceZzz/docpipe/internal/store"
)

func OpenTestDB(t *testing.T) (*sql.DB, func()) {
	t.Helper()
	host := os.Getenv("TEST_DB_HOST")
	if host == "" {
		t.Skip("TEST_DB_HOST not set, skipping postgres test")
	}
	conn, err := store.Open(config.DatabaseConfig{
		Host:     host,
		Port:     5432,
		User:     "docpipe",
		Password: "docpipe_pass",
		DBName:   "docpipe_test",
		SSLMode:  "disable",
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := store.ApplyMigrations(conn); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	return conn, func() {
		_ = conn.Close()
	}
}
