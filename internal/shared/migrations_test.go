package shared

import (
	"testing"
)

func TestMigrationRunner(t *testing.T) {
	t.Run("loadMigrations", func(t *testing.T) {
		migrations, err := loadMigrations()
		if err != nil {
			t.Fatalf("failed to load migrations: %v", err)
		}

		if len(migrations) == 0 {
			t.Fatal("expected at least one migration")
		}

		for i := 1; i < len(migrations); i++ {
			if migrations[i].Version <= migrations[i-1].Version {
				t.Errorf("migrations not sorted: version %d comes after %d", migrations[i].Version, migrations[i-1].Version)
			}
		}

		for _, m := range migrations {
			if m.Up == "" {
				t.Errorf("migration version %d missing up SQL", m.Version)
			}
			if m.Down == "" {
				t.Errorf("migration version %d missing down SQL", m.Version)
			}
		}
	})

	t.Run("RunMigrations And Rollback", func(t *testing.T) {
		db, err := NewDatabase(":memory:")
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		defer db.Close()

		if err := RunMigrations(db); err != nil {
			t.Fatalf("failed to run migrations: %v", err)
		}

		var count int
		err = db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count)
		if err != nil {
			t.Fatalf("failed to query schema_migrations: %v", err)
		}
		if count == 0 {
			t.Error("expected at least one migration to be applied")
		}

		for _, table := range []string{"quests", "checkpoints", "music_sessions", "user_stats"} {
			if _, err := db.Exec("SELECT 1 FROM " + table + " LIMIT 1"); err != nil {
				t.Errorf("%s table should exist after migrations: %v", table, err)
			}
		}

		var xp int
		if err := db.QueryRow("SELECT total_xp FROM user_stats WHERE id = 1").Scan(&xp); err != nil {
			t.Fatalf("expected seeded user_stats row: %v", err)
		}
		if xp != 0 {
			t.Errorf("expected seeded total_xp 0, got %d", xp)
		}

		if err := RollbackMigration(db); err != nil {
			t.Fatalf("failed to rollback migration: %v", err)
		}

		var newCount int
		err = db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&newCount)
		if err != nil {
			t.Fatalf("failed to query schema_migrations after rollback: %v", err)
		}
		if newCount >= count {
			t.Errorf("expected migration count to decrease after rollback, got %d (was %d)", newCount, count)
		}

		if _, err := db.Exec("SELECT 1 FROM user_stats LIMIT 1"); err == nil {
			t.Error("user_stats table should be dropped by rollback")
		}
	})

	t.Run("Idempotent Migrations", func(t *testing.T) {
		db, err := NewDatabase(":memory:")
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		defer db.Close()

		if err := RunMigrations(db); err != nil {
			t.Fatalf("failed to run migrations first time: %v", err)
		}

		if err := RunMigrations(db); err != nil {
			t.Fatalf("failed to run migrations second time: %v", err)
		}

		var count int
		err = db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count)
		if err != nil {
			t.Fatalf("failed to query schema_migrations: %v", err)
		}

		migrations, _ := loadMigrations()
		if count != len(migrations) {
			t.Errorf("expected %d migrations to be applied, got %d", len(migrations), count)
		}
	})
}


func TestMigrationHelpers(t *testing.T) {
	t.Run("splitStatements", func(t *testing.T) {
		script := `-- header
CREATE TABLE a (id INTEGER); -- trailing
INSERT INTO a VALUES (1);

-- only a comment;
`
		got := splitStatements(script)
		want := []string{"CREATE TABLE a (id INTEGER)", "INSERT INTO a VALUES (1)"}
		if len(got) != len(want) {
			t.Fatalf("expected %d statements, got %d: %q", len(want), len(got), got)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("statement %d: expected %q, got %q", i, want[i], got[i])
			}
		}
	})

	t.Run("migrationName", func(t *testing.T) {
		tests := []struct {
			file  string
			match bool
		}{
			{"0001_create_music_sessions_up.sql", true},
			{"0002_create_user_stats_down.sql", true},
			{"0003_create_things.sql", false},
			{"README.md", false},
		}
		for _, tt := range tests {
			if got := migrationName.MatchString(tt.file); got != tt.match {
				t.Errorf("%s: expected match=%v", tt.file, tt.match)
			}
		}
	})

	t.Run("records names", func(t *testing.T) {
		db, err := NewDatabase(":memory:")
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		defer db.Close()

		if err := RunMigrations(db); err != nil {
			t.Fatalf("failed to run migrations: %v", err)
		}

		var name string
		if err := db.QueryRow("SELECT name FROM schema_migrations WHERE version = 0").Scan(&name); err != nil {
			t.Fatalf("failed to read migration name: %v", err)
		}
		if name != "create_quests" {
			t.Errorf("expected create_quests, got %q", name)
		}
	})

	t.Run("rollback with nothing applied", func(t *testing.T) {
		db, err := NewDatabase(":memory:")
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		defer db.Close()

		if err := RollbackMigration(db); err == nil {
			t.Error("expected an error when no migrations are applied")
		}
	})
}

func TestDatabase(t *testing.T) {
	t.Run("DSN", func(t *testing.T) {
		if got := DSN(":memory:"); got != ":memory:?"+dsnParams {
			t.Errorf("unexpected dsn %s", got)
		}
		if got := DSN("file:test.db?cache=shared"); got != "file:test.db?cache=shared&"+dsnParams {
			t.Errorf("unexpected dsn %s", got)
		}
	})

	t.Run("foreign keys cascade", func(t *testing.T) {
		db, err := NewDatabase(":memory:")
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		defer db.Close()

		if err := RunMigrations(db); err != nil {
			t.Fatalf("failed to run migrations: %v", err)
		}

		var enabled int
		if err := db.QueryRow("PRAGMA foreign_keys").Scan(&enabled); err != nil {
			t.Fatalf("failed to read pragma: %v", err)
		}
		if enabled != 1 {
			t.Fatalf("expected foreign_keys on, got %d", enabled)
		}

		stmts := []string{
			"INSERT INTO quests (id, sequence, title, created_at) VALUES ('q1', 1, 'quest', CURRENT_TIMESTAMP)",
			"INSERT INTO checkpoints (id, sequence, quest_id, title) VALUES ('c1', 1, 'q1', 'step')",
			"INSERT INTO music_sessions (id, sequence, checkpoint_id, track_name, artist, external_track_ref, played_at) VALUES ('m1', 1, 'c1', 't', 'a', 'spotify:track:1', CURRENT_TIMESTAMP)",
			"DELETE FROM quests WHERE id = 'q1'",
		}
		for _, stmt := range stmts {
			if _, err := db.Exec(stmt); err != nil {
				t.Fatalf("failed to exec %q: %v", stmt, err)
			}
		}

		var sessions int
		if err := db.QueryRow("SELECT COUNT(*) FROM music_sessions").Scan(&sessions); err != nil {
			t.Fatalf("failed to count sessions: %v", err)
		}
		if sessions != 0 {
			t.Errorf("expected cascade to remove sessions, got %d", sessions)
		}
	})

	t.Run("orphan checkpoint rejected", func(t *testing.T) {
		db, err := NewDatabase(":memory:")
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		defer db.Close()

		if err := RunMigrations(db); err != nil {
			t.Fatalf("failed to run migrations: %v", err)
		}

		_, err = db.Exec("INSERT INTO checkpoints (id, sequence, quest_id, title) VALUES ('c1', 1, 'missing', 'step')")
		if err == nil {
			t.Error("expected foreign key violation")
		}
	})
}
