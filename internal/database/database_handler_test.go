package database

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/tyB-or/weibu-ipSearch/internal/domain"
)

func TestSetupDBMigratesSettings(t *testing.T) {
	dialector, err := SQLiteDialector("file:database_handler_test?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("SQLiteDialector: %v", err)
	}

	db, err := SetupDB(WithDialector(dialector))
	if err != nil {
		t.Fatalf("SetupDB: %v", err)
	}
	t.Cleanup(func() { _ = Close(db) })

	if !db.Migrator().HasTable(&domain.Setting{}) {
		t.Fatal("settings table was not created")
	}
}

func TestSQLiteDialectorCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "store.db")

	dialector, err := SQLiteDialector(path)
	if err != nil {
		t.Fatalf("SQLiteDialector: %v", err)
	}
	db, err := SetupDB(WithDialector(dialector))
	if err != nil {
		t.Fatalf("SetupDB: %v", err)
	}
	t.Cleanup(func() { _ = Close(db) })

	if CurrentDSN() != path {
		t.Fatalf("CurrentDSN() = %q, want %q", CurrentDSN(), path)
	}
}

func TestBuildPostgresDSNFromEnv(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("DB_NAME", "intel")

	dsn := buildPostgresDSN()
	for _, part := range []string{"host=db.internal", "port=6543", "dbname=intel", "sslmode=disable"} {
		if !strings.Contains(dsn, part) {
			t.Fatalf("dsn %q missing %q", dsn, part)
		}
	}
}
