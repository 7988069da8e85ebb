// Package persist stores the thread/note/summary state in SQLite or PostgreSQL.
package persist

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const schemaTemplate = `
CREATE TABLE IF NOT EXISTS threads (
	seq         %[1]s,
	id          TEXT NOT NULL UNIQUE,
	title       TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	keywords    TEXT NOT NULL DEFAULT '[]',
	color       TEXT NOT NULL DEFAULT '',
	note_count  INTEGER NOT NULL DEFAULT 0,
	created_at  TEXT NOT NULL,
	updated_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS notes (
	seq            %[1]s,
	id             TEXT NOT NULL UNIQUE,
	thread_id      TEXT REFERENCES threads(id),
	source         TEXT NOT NULL,
	email_metadata TEXT,
	content        TEXT NOT NULL DEFAULT '{}',
	classification TEXT,
	created_at     TEXT NOT NULL,
	updated_at     TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_notes_thread ON notes(thread_id);

CREATE TABLE IF NOT EXISTS generated_summaries (
	seq          %[1]s,
	id           TEXT NOT NULL UNIQUE,
	thread_id    TEXT NOT NULL REFERENCES threads(id),
	thread_title TEXT NOT NULL DEFAULT '',
	content      TEXT NOT NULL DEFAULT '',
	generated_at TEXT NOT NULL,
	model_used   TEXT NOT NULL DEFAULT '',
	note_count   INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_summaries_thread ON generated_summaries(thread_id);
`

// DB is a store.Persister backed by database/sql.
type DB struct {
	conn   *sql.DB
	driver string
}

// Open connects to the database and applies the schema.
func Open(driver, dsn string) (*DB, error) {
	var (
		conn *sql.DB
		err  error
		seq  string
	)
	switch driver {
	case DriverSQLite:
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		conn, err = sql.Open("sqlite3", dsn+sep+"_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
		seq = "INTEGER PRIMARY KEY AUTOINCREMENT"
	case DriverPostgres:
		conn, err = sql.Open("postgres", dsn)
		seq = "BIGSERIAL PRIMARY KEY"
	default:
		return nil, fmt.Errorf("persist: unsupported driver %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("persist: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("persist: ping: %w", err)
	}
	if _, err := conn.Exec(fmt.Sprintf(schemaTemplate, seq)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("persist: apply schema: %w", err)
	}
	return &DB{conn: conn, driver: driver}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// rebind rewrites ? placeholders to $n for postgres.
func (db *DB) rebind(query string) string {
	if db.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
