// Package db stores countries and their observed tree cover loss in DuckDB.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/marcboeker/go-duckdb"
)

var (
	instance *sql.DB
	once     sync.Once
	initErr  error
)

// Config holds database configuration.
type Config struct {
	DataDir string
	DBName  string
}

// Path returns the database file for cfg.
func (c Config) Path() string {
	return filepath.Join(c.DataDir, "duckdb", c.DBName+".duckdb")
}

// Get returns the singleton DuckDB connection, migrated.
func Get(cfg Config) (*sql.DB, error) {
	once.Do(func() {
		if err := os.MkdirAll(filepath.Dir(cfg.Path()), 0755); err != nil {
			initErr = fmt.Errorf("failed to create duckdb directory: %w", err)
			return
		}
		instance, initErr = Open(cfg.Path())
	})
	return instance, initErr
}

// Open opens and migrates a database at path. An empty path opens an
// in-memory database.
func Open(path string) (*sql.DB, error) {
	conn, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("opening duckdb: %w", err)
	}
	if err := Migrate(conn); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// Close closes the singleton connection.
func Close() error {
	if instance != nil {
		return instance.Close()
	}
	return nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS countries (
		iso            VARCHAR PRIMARY KEY,
		name           VARCHAR NOT NULL,
		area_ha        DOUBLE NOT NULL DEFAULT 0,
		forest_area_ha DOUBLE NOT NULL DEFAULT 0,
		emissions_mg   DOUBLE NOT NULL DEFAULT 0,
		geometry       VARCHAR
	)`,
	`CREATE TABLE IF NOT EXISTS loss_observations (
		iso     VARCHAR NOT NULL,
		year    INTEGER NOT NULL,
		loss_ha DOUBLE NOT NULL,
		PRIMARY KEY (iso, year)
	)`,
}

// Migrate creates the schema if it does not exist.
func Migrate(conn *sql.DB) error {
	for i, stmt := range migrations {
		if _, err := conn.Exec(stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}

// Tables lists the tables in the database.
func Tables(conn *sql.DB) ([]string, error) {
	rows, err := conn.Query("SHOW TABLES")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}
