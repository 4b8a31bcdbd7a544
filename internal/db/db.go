package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const (
	dataDir       = ".zerolag"
	defaultDBName = "zerolag.db"
	defaultBolt   = "zerolag.bolt"
)

type Config struct {
	Workspace string
	// File overrides the default database location inside the workspace.
	File string
}

func dbPath(cfg Config) string {
	if cfg.File != "" {
		return cfg.File
	}
	workspace := cfg.Workspace
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, dataDir, defaultDBName)
}

// EnsureWorkspace creates the data directory if missing.
func EnsureWorkspace(workspace string) (string, error) {
	if workspace == "" {
		workspace = "."
	}
	path := filepath.Join(workspace, dataDir)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", err
	}
	return path, nil
}

// Open opens the SQLite database. A single connection serializes writers so
// read-modify-write transactions never interleave.
func Open(cfg Config) (*sql.DB, error) {
	path := dbPath(cfg)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	conn.SetMaxOpenConns(1)
	return conn, nil
}

// Path returns the sqlite path for the config.
func Path(cfg Config) string {
	return dbPath(cfg)
}

// BoltPath returns the bbolt file location for the workspace unless file is set.
func BoltPath(workspace, file string) string {
	if file != "" {
		return file
	}
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, dataDir, defaultBolt)
}
