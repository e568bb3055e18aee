package db

import (
	"database/sql"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/marcboeker/go-duckdb"
	"github.com/rotisserie/eris"
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

// Path is where the database file for cfg lives.
func (cfg Config) Path() string {
	return filepath.Join(cfg.DataDir, "duckdb", cfg.DBName+".duckdb")
}

// Get returns the singleton DuckDB connection.
func Get(cfg Config) (*sql.DB, error) {
	once.Do(func() {
		instance, initErr = Open(cfg)
	})
	return instance, initErr
}

// Open opens a DuckDB file and creates the schema. An empty DataDir opens
// an in-memory database.
func Open(cfg Config) (*sql.DB, error) {
	dsn := ""
	if cfg.DataDir != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path()), 0755); err != nil {
			return nil, eris.Wrap(err, "db: create duckdb directory")
		}
		dsn = cfg.Path()
	}

	conn, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "db: open duckdb")
	}
	if err := Migrate(conn); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// Migrate creates the tables the dashboard uses.
func Migrate(conn *sql.DB) error {
	const schema = `CREATE TABLE IF NOT EXISTS kv (
		key        VARCHAR PRIMARY KEY,
		value      VARCHAR NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`
	if _, err := conn.Exec(schema); err != nil {
		return eris.Wrap(err, "db: migrate")
	}
	return nil
}

// Close closes the singleton connection.
func Close() error {
	if instance != nil {
		return instance.Close()
	}
	return nil
}
