package shared

import (
	"database/sql"
	"slices"
	"testing"
)

func migratedDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	if err := RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	return db
}

func columns(t *testing.T, db *sql.DB, table string) map[string]string {
	t.Helper()
	rows, err := db.Query("SELECT name, type FROM pragma_table_info(?)", table)
	if err != nil {
		t.Fatalf("failed to read columns of %s: %v", table, err)
	}
	defer rows.Close()

	cols := map[string]string{}
	for rows.Next() {
		var name, typ string
		if err := rows.Scan(&name, &typ); err != nil {
			t.Fatalf("failed to scan column: %v", err)
		}
		cols[name] = typ
	}
	return cols
}

func objects(t *testing.T, db *sql.DB, kind string) []string {
	t.Helper()
	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type = ? AND name LIKE '%resolutions%' ORDER BY name", kind)
	if err != nil {
		t.Fatalf("failed to list %s objects: %v", kind, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("failed to scan name: %v", err)
		}
		names = append(names, name)
	}
	return names
}

func TestMigrationRunner(t *testing.T) {
	t.Run("loadMigrations", func(t *testing.T) {
		migrations, err := loadMigrations()
		if err != nil {
			t.Fatalf("failed to load migrations: %v", err)
		}
		if len(migrations) == 0 {
			t.Fatal("expected at least one migration")
		}
		if migrations[0].Version != 1 {
			t.Errorf("expected history schema as version 1, got %d", migrations[0].Version)
		}
		for i := 1; i < len(migrations); i++ {
			if migrations[i].Version <= migrations[i-1].Version {
				t.Errorf("migrations not sorted: version %d comes after %d", migrations[i].Version, migrations[i-1].Version)
			}
		}
	})

	t.Run("Resolutions Schema", func(t *testing.T) {
		db := migratedDB(t)

		want := map[string]string{
			"id":          "TEXT",
			"sequence":    "INTEGER",
			"track_id":    "TEXT",
			"video_id":    "TEXT",
			"title":       "TEXT",
			"artist":      "TEXT",
			"video_title": "TEXT",
			"channel":     "TEXT",
			"query":       "TEXT",
			"stage":       "TEXT",
			"score":       "INTEGER",
			"created_at":  "TIMESTAMP",
			"deleted_at":  "TIMESTAMP",
		}
		got := columns(t, db, "resolutions")
		if len(got) != len(want) {
			t.Errorf("expected %d columns, got %d: %v", len(want), len(got), got)
		}
		for name, typ := range want {
			if got[name] != typ {
				t.Errorf("column %s: expected %s, got %q", name, typ, got[name])
			}
		}

		indexes := objects(t, db, "index")
		for _, idx := range []string{"idx_resolutions_track_id", "idx_resolutions_video_id"} {
			if !slices.Contains(indexes, idx) {
				t.Errorf("expected index %s, got %v", idx, indexes)
			}
		}

		var seq int
		if err := db.QueryRow("SELECT value FROM resolutions_sequence WHERE id = 1").Scan(&seq); err != nil {
			t.Fatalf("expected seeded sequence row: %v", err)
		}
		if seq != 0 {
			t.Errorf("expected sequence to start at 0, got %d", seq)
		}

		t.Run("Sequence Is A Singleton", func(t *testing.T) {
			if _, err := db.Exec("INSERT INTO resolutions_sequence (id, value) VALUES (2, 0)"); err == nil {
				t.Error("expected a second sequence row to be rejected")
			}
		})

		t.Run("Stage Is Required", func(t *testing.T) {
			_, err := db.Exec(`INSERT INTO resolutions (id, sequence, track_id, video_id, created_at)
				VALUES ('r1', 1, 't1', 'v1', CURRENT_TIMESTAMP)`)
			if err == nil {
				t.Error("expected a row without a stage to be rejected")
			}
		})
	})

	t.Run("Rollback Drops History", func(t *testing.T) {
		db := migratedDB(t)

		if _, err := db.Exec(`INSERT INTO resolutions (id, sequence, track_id, video_id, stage, created_at)
			VALUES ('r1', 1, 't1', 'v1', 'direct', CURRENT_TIMESTAMP)`); err != nil {
			t.Fatalf("failed to insert resolution: %v", err)
		}

		if err := RollbackMigration(db); err != nil {
			t.Fatalf("failed to rollback migration: %v", err)
		}
		if tables := objects(t, db, "table"); len(tables) != 0 {
			t.Errorf("expected no history tables after rollback, got %v", tables)
		}
		if indexes := objects(t, db, "index"); len(indexes) != 0 {
			t.Errorf("expected no history indexes after rollback, got %v", indexes)
		}

		var applied int
		if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&applied); err != nil {
			t.Fatalf("failed to query schema_migrations: %v", err)
		}
		if applied != 0 {
			t.Errorf("expected no applied migrations after rollback, got %d", applied)
		}

		t.Run("Reapply Starts Empty", func(t *testing.T) {
			if err := RunMigrations(db); err != nil {
				t.Fatalf("failed to reapply migrations: %v", err)
			}
			var rows int
			if err := db.QueryRow("SELECT COUNT(*) FROM resolutions").Scan(&rows); err != nil {
				t.Fatalf("failed to count resolutions: %v", err)
			}
			if rows != 0 {
				t.Errorf("expected empty history after reapply, got %d rows", rows)
			}
		})
	})

	t.Run("Idempotent Migrations", func(t *testing.T) {
		db := migratedDB(t)
		if err := RunMigrations(db); err != nil {
			t.Fatalf("failed to run migrations second time: %v", err)
		}

		var count int
		if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
			t.Fatalf("failed to query schema_migrations: %v", err)
		}
		migrations, _ := loadMigrations()
		if count != len(migrations) {
			t.Errorf("expected %d migrations to be applied, got %d", len(migrations), count)
		}
	})
}
