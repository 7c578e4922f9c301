package catalog

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteCatalog is the default embedded relational store backing both
// working and master catalogs. Durability is deliberately relaxed
// (synchronous=OFF, journal_mode=MEMORY) because these catalogs are
// rebuildable artifacts, not systems of record.
type SQLiteCatalog struct {
	db   *sql.DB
	kind Kind
}

// OpenSQLiteWorking opens (creating if necessary) a working catalog at
// path, with schema (filepath, signature).
func OpenSQLiteWorking(path string) (*SQLiteCatalog, error) {
	return openSQLite(path, Working)
}

// OpenSQLiteMaster opens (creating if necessary) a master catalog at
// path, with schema (name PRIMARY KEY, signature).
func OpenSQLiteMaster(path string) (*SQLiteCatalog, error) {
	return openSQLite(path, Master)
}

func openSQLite(path string, kind Kind) (*SQLiteCatalog, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite catalog %q: %w", path, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite catalog %q: %w", path, err)
	}

	db.SetMaxOpenConns(1) // sqlite serializes writers anyway

	for _, pragma := range []string{
		"PRAGMA synchronous = OFF",
		"PRAGMA journal_mode = MEMORY",
		"PRAGMA cache_size = 100000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma on %q: %w", path, err)
		}
	}

	c := &SQLiteCatalog{db: db, kind: kind}
	if err := c.CreateTable(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

func (c *SQLiteCatalog) Kind() Kind { return c.kind }

// CreateTable creates the catalog's table if it does not already exist.
func (c *SQLiteCatalog) CreateTable() error {
	var ddl string
	switch c.kind {
	case Working:
		ddl = `CREATE TABLE IF NOT EXISTS signatures (filepath TEXT PRIMARY KEY, signature TEXT)`
	case Master:
		ddl = `CREATE TABLE IF NOT EXISTS master_signatures (name TEXT PRIMARY KEY, signature TEXT)`
	}
	if _, err := c.db.Exec(ddl); err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	return nil
}

func (c *SQLiteCatalog) table() (table, keyCol string) {
	if c.kind == Master {
		return "master_signatures", "name"
	}
	return "signatures", "filepath"
}

func (c *SQLiteCatalog) Insert(key, value string) error {
	table, keyCol := c.table()
	query := fmt.Sprintf("INSERT OR REPLACE INTO %s (%s, signature) VALUES (?, ?)", table, keyCol)
	if _, err := c.db.Exec(query, key, value); err != nil {
		return fmt.Errorf("insert into %s: %w", table, err)
	}
	return nil
}

func (c *SQLiteCatalog) InsertOrReplace(key, value string) error {
	return c.Insert(key, value)
}

func (c *SQLiteCatalog) InsertBatch(entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	table, keyCol := c.table()
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("begin batch insert: %w", err)
	}

	query := fmt.Sprintf("INSERT OR REPLACE INTO %s (%s, signature) VALUES (?, ?)", table, keyCol)
	stmt, err := tx.Prepare(query)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare batch insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.Exec(e.Key, e.Value); err != nil {
			tx.Rollback()
			return fmt.Errorf("batch insert row %q: %w", e.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch insert: %w", err)
	}
	return nil
}

func (c *SQLiteCatalog) Scan() ([]Entry, error) {
	table, keyCol := c.table()
	query := fmt.Sprintf("SELECT %s, signature FROM %s", keyCol, table)
	rows, err := c.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", table, err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Key, &e.Value); err != nil {
			return nil, fmt.Errorf("scan row in %s: %w", table, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (c *SQLiteCatalog) Delete(key string) error {
	table, keyCol := c.table()
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", table, keyCol)
	if _, err := c.db.Exec(query, key); err != nil {
		return fmt.Errorf("delete from %s: %w", table, err)
	}
	return nil
}

func (c *SQLiteCatalog) DeleteMany(keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	table, keyCol := c.table()
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("begin batch delete: %w", err)
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", table, keyCol)
	stmt, err := tx.Prepare(query)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare batch delete: %w", err)
	}
	defer stmt.Close()

	for _, key := range keys {
		if _, err := stmt.Exec(key); err != nil {
			tx.Rollback()
			return fmt.Errorf("batch delete row %q: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch delete: %w", err)
	}
	return nil
}

func (c *SQLiteCatalog) Compact() error {
	if _, err := c.db.Exec("VACUUM"); err != nil {
		return fmt.Errorf("vacuum: %w", err)
	}
	return nil
}

func (c *SQLiteCatalog) Close() error {
	return c.db.Close()
}
