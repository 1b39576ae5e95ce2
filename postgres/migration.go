package postgres

import (
	"database/sql"

	"github.com/rubenv/sql-migrate"
)

// This file maintains the database migration code.  See
// https://github.com/rubenv/sql-migrate for details of what goes in
// here.  This runs "outside" the normal session lookup flow, either at
// initial startup or from an external tool.

var migrationSource = &migrate.MemoryMigrationSource{
	Migrations: []*migrate.Migration{
		{
			Id: "1_sessions",
			Up: []string{
				`CREATE TABLE omero_session(
					session_id TEXT PRIMARY KEY,
					omero_session_key TEXT NOT NULL,
					expires TIMESTAMP WITH TIME ZONE
				)`,
				`CREATE INDEX omero_session_expires ON omero_session(expires)`,
			},
			Down: []string{
				`DROP TABLE omero_session`,
			},
		},
	},
}

// Upgrade upgrades a database to the latest database schema version.
func Upgrade(db *sql.DB) error {
	_, err := migrate.Exec(db, "postgres", migrationSource, migrate.Up)
	return err
}

// Drop clears a database by running all of the migrations in reverse,
// ultimately resulting in dropping all of the tables.
func Drop(db *sql.DB) error {
	_, err := migrate.Exec(db, "postgres", migrationSource, migrate.Down)
	return err
}
