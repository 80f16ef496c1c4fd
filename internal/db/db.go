// Package db opens the workspace-local sqlite store.
package db

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const (
	storeDir  = ".arv"
	storeFile = "accessreview.db"
)

// EnsureWorkspace creates the hidden store directory under workspace.
func EnsureWorkspace(workspace string) (string, error) {
	if workspace == "" {
		workspace = "."
	}
	dir := filepath.Join(workspace, storeDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create workspace dir: %w", err)
	}
	return dir, nil
}

// Path returns the store file path for the workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, storeDir, storeFile)
}

// Open opens the workspace store. Review generation fans record inserts
// out from concurrent account batches, so the connection enables WAL
// and a busy timeout alongside foreign keys.
func Open(workspace string) (*sql.DB, error) {
	if _, err := EnsureWorkspace(workspace); err != nil {
		return nil, err
	}
	params := url.Values{}
	params.Add("_pragma", "foreign_keys(1)")
	params.Add("_pragma", "busy_timeout(5000)")
	params.Add("_pragma", "journal_mode(WAL)")
	conn, err := sql.Open("sqlite", "file:"+Path(workspace)+"?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return conn, nil
}
