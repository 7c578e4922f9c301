package catalog

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// PostgresCatalog mirrors a master catalog into a shared Postgres
// database, for organizations consolidating signatures gathered by
// several independently-run batch passes against one common master. It
// only ever runs in Master mode: a working catalog is always local and
// short-lived, so there is no distributed-working-catalog variant.
type PostgresCatalog struct {
	db *sql.DB
}

// OpenPostgresMaster connects to connStr (a standard libpq connection
// string / DSN) and ensures the master_signatures table exists.
func OpenPostgresMaster(connStr string) (*PostgresCatalog, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open postgres master catalog: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres master catalog: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	c := &PostgresCatalog{db: db}
	if err := c.CreateTable(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

func (c *PostgresCatalog) Kind() Kind { return Master }

func (c *PostgresCatalog) CreateTable() error {
	const ddl = `CREATE TABLE IF NOT EXISTS master_signatures (name TEXT PRIMARY KEY, signature TEXT)`
	if _, err := c.db.Exec(ddl); err != nil {
		return fmt.Errorf("create master_signatures table: %w", err)
	}
	return nil
}

func (c *PostgresCatalog) Insert(key, value string) error {
	return c.InsertOrReplace(key, value)
}

func (c *PostgresCatalog) InsertOrReplace(key, value string) error {
	const query = `
		INSERT INTO master_signatures (name, signature) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET signature = EXCLUDED.signature
	`
	if _, err := c.db.Exec(query, key, value); err != nil {
		return fmt.Errorf("upsert master_signatures: %w", err)
	}
	return nil
}

func (c *PostgresCatalog) InsertBatch(entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("begin batch upsert: %w", err)
	}

	const query = `
		INSERT INTO master_signatures (name, signature) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET signature = EXCLUDED.signature
	`
	stmt, err := tx.Prepare(query)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare batch upsert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.Exec(e.Key, e.Value); err != nil {
			tx.Rollback()
			return fmt.Errorf("batch upsert row %q: %w", e.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch upsert: %w", err)
	}
	return nil
}

func (c *PostgresCatalog) Scan() ([]Entry, error) {
	rows, err := c.db.Query(`SELECT name, signature FROM master_signatures`)
	if err != nil {
		return nil, fmt.Errorf("scan master_signatures: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Key, &e.Value); err != nil {
			return nil, fmt.Errorf("scan row in master_signatures: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (c *PostgresCatalog) Delete(key string) error {
	if _, err := c.db.Exec(`DELETE FROM master_signatures WHERE name = $1`, key); err != nil {
		return fmt.Errorf("delete from master_signatures: %w", err)
	}
	return nil
}

func (c *PostgresCatalog) DeleteMany(keys []string) error {
	for _, key := range keys {
		if err := c.Delete(key); err != nil {
			return err
		}
	}
	return nil
}

func (c *PostgresCatalog) Compact() error {
	if _, err := c.db.Exec(`VACUUM master_signatures`); err != nil {
		return fmt.Errorf("vacuum master_signatures: %w", err)
	}
	return nil
}

func (c *PostgresCatalog) Close() error {
	return c.db.Close()
}
