package migrate_test

import (
	"database/sql"
	"testing"

	"accessreview/internal/db"
	"accessreview/internal/migrate"
)

func openStore(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := db.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestMigrateFreshStore(t *testing.T) {
	conn := openStore(t)
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	v, err := migrate.Version(conn)
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if v < 1 {
		t.Fatalf("schema version = %d after migrate", v)
	}
	for _, table := range []string{"applications", "access_reviews", "service_account_reviews", "events"} {
		var n int
		if err := conn.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	conn := openStore(t)
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("first migrate: %v", err)
	}
	first, err := migrate.Version(conn)
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if _, err := conn.Exec(`INSERT INTO applications(app_name,account_name,source,type,created_at)
		VALUES ('payments','payments-api','gitlab','project','2025-06-01T12:00:00Z')`); err != nil {
		t.Fatalf("seed row: %v", err)
	}

	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	second, err := migrate.Version(conn)
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if first != second {
		t.Fatalf("version moved from %d to %d on re-run", first, second)
	}
	var n int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM applications`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("re-running migrations disturbed data: %d rows", n)
	}
}
