// Package store implements the relational store: schema creation, the
// single per-run transaction, prepared inserts, and the compiled-accessor
// query path evalcond reads through.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/cruxfw/faaf/config"
)

// Store owns the database connection for one run.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the SQLite database file at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, wrapIO("open database", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return wrapIO("close database", err)
	}
	return nil
}

// CreateSchema creates the result table and one table per analyzer. Table
// names are string-interpolated; they must already be validated as safe
// identifiers, which config.Load guarantees for every Analyzer.Name.
func (s *Store) CreateSchema(cfg *config.Config) error {
	const resultDDL = `CREATE TABLE IF NOT EXISTS result (id INTEGER PRIMARY KEY AUTOINCREMENT, path TEXT)`
	if _, err := s.db.Exec(resultDDL); err != nil {
		return wrapIO("create result table", err)
	}

	for _, a := range cfg.Analyzers {
		ddl := fmt.Sprintf(
			`CREATE TABLE IF NOT EXISTS %s (id INTEGER PRIMARY KEY AUTOINCREMENT, result_id INTEGER, value JSON)`,
			a.Name,
		)
		if _, err := s.db.Exec(ddl); err != nil {
			return wrapIO(fmt.Sprintf("create table for analyzer %q", a.Name), err)
		}
	}
	return nil
}

// Begin starts the single transaction a whole firmware-tree run executes
// inside.
func (s *Store) Begin(ctx context.Context) (*Tx, error) {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, wrapIO("begin transaction", err)
	}
	return &Tx{tx: sqlTx}, nil
}

// Tx is the store side of one analysis run: every write and every
// compiled-accessor read happens through it, and it commits or rolls back
// as a single unit.
type Tx struct {
	tx *sql.Tx
}

// Commit commits the transaction, making every write for this run durable.
func (t *Tx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return wrapIO("commit transaction", err)
	}
	return nil
}

// Rollback discards every write made during this run.
func (t *Tx) Rollback() error {
	if err := t.tx.Rollback(); err != nil {
		return wrapIO("rollback transaction", err)
	}
	return nil
}

// InsertPath inserts a new result row and returns its minted id. SQLite's
// own AUTOINCREMENT sequence is the transaction-scoped monotonic counter
// the design calls for; there is no separate counter to keep in sync with
// it.
func (t *Tx) InsertPath(path string) (int64, error) {
	res, err := t.tx.Exec(`INSERT INTO result (path) VALUES (?)`, path)
	if err != nil {
		return 0, wrapIO("insert result row", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, wrapIO("read inserted result id", err)
	}
	return id, nil
}

// InsertAnalyzer inserts one analyzer invocation's output.
func (t *Tx) InsertAnalyzer(name string, resultID int64, value []byte) error {
	stmt := fmt.Sprintf(`INSERT INTO %s (result_id, value) VALUES (?, ?)`, name)
	if _, err := t.tx.Exec(stmt, resultID, string(value)); err != nil {
		return wrapIO(fmt.Sprintf("insert row into analyzer table %q", name), err)
	}
	return nil
}
