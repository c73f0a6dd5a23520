// Package store schema migrations: versioned, additive ALTER TABLE steps
// applied to existing databases so upgrading the binary never requires a
// manual schema fixup.
package store

import (
	"database/sql"
	"fmt"

	"github.com/GusFromSpace/persistent-recursive-intelligence-v2-sub000/internal/logging"
)

// CurrentSchemaVersion is the latest memories schema version.
const CurrentSchemaVersion = 1

// Migration defines one additive column migration.
type Migration struct {
	Table  string
	Column string
	Def    string
}

// pendingMigrations lists schema migrations applied to existing databases.
// Empty today; new columns land here as the memories schema grows.
var pendingMigrations = []Migration{}

// RunMigrations applies any pending column migrations to db.
func RunMigrations(db *sql.DB) error {
	timer := logging.StartTimer(logging.CategoryStore, "RunMigrations")
	defer timer.Stop()

	applied := 0
	for _, m := range pendingMigrations {
		if !tableExists(db, m.Table) {
			continue
		}
		if columnExists(db, m.Table, m.Column) {
			continue
		}
		query := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", m.Table, m.Column, m.Def)
		if _, err := db.Exec(query); err != nil {
			logging.Get(logging.CategoryStore).Warn("migration failed: %s.%s: %v", m.Table, m.Column, err)
			continue
		}
		logging.Store("migration applied: %s.%s", m.Table, m.Column)
		applied++
	}
	if applied > 0 {
		logging.Store("schema migrations complete: applied=%d", applied)
	}
	return nil
}

func columnExists(db *sql.DB, table, column string) bool {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false
	}
	defer rows.Close()
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt any
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			continue
		}
		if name == column {
			return true
		}
	}
	return false
}

func tableExists(db *sql.DB, table string) bool {
	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
	if err != nil {
		return false
	}
	return count > 0
}
