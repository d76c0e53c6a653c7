package db_test

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/atinyakov/g3chat/internal/db"
)

func TestInit_ErrorPaths(t *testing.T) {
	cases := []struct {
		name       string
		driver     string
		dsn        string
		wantSubstr string
	}{
		{"unknown driver", "mysql", "x", "unsupported driver"},
		{"invalid postgres DSN", db.DriverPostgres, "some=random", "ping postgres"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := db.Init(tc.driver, tc.dsn)
			if err == nil {
				t.Fatalf("Init(%q, %q) did not return error", tc.driver, tc.dsn)
			}
			if !strings.Contains(err.Error(), tc.wantSubstr) {
				t.Errorf("Init(%q) error = %q; want substring %q", tc.dsn, err.Error(), tc.wantSubstr)
			}
		})
	}
}

func TestInit_SQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "g3chat.db")
	conn, err := db.Init(db.DriverSQLite, path)
	if err != nil {
		t.Fatalf("Init sqlite: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Exec(`INSERT INTO kv (key, value) VALUES ($1, $2)`, "k", "v"); err != nil {
		t.Fatalf("insert: %v", err)
	}
	var v string
	if err := conn.QueryRow(`SELECT value FROM kv WHERE key = $1`, "k").Scan(&v); err != nil {
		t.Fatalf("select: %v", err)
	}
	if v != "v" {
		t.Errorf("value = %q; want %q", v, "v")
	}
}
