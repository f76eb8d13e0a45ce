package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DumpKind names a directory of JSON dumps under the cache root.
type DumpKind string

const (
	DumpFailedUpdate DumpKind = "failed_updates"
)

// generateFilename creates a timestamped filename with the given suffix.
func generateFilename(name, ext string) string {
	ts := time.Now().Format("2006-01-02T15-04-05.000")
	if name == "" {
		return ts + ext
	}
	return ts + "-" + name + ext
}

// SaveDump writes data as indented JSON to <root>/<kind>/<timestamp>-<name>.json.
// Returns the path to the saved file.
func SaveDump[T any](root string, kind DumpKind, name string, data T) (string, error) {
	dir := filepath.Join(root, string(kind))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create dump dir: %w", err)
	}

	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal dump: %w", err)
	}

	path := filepath.Join(dir, generateFilename(name, ".json"))
	if err := os.WriteFile(path, jsonData, 0644); err != nil {
		return "", fmt.Errorf("failed to write dump: %w", err)
	}

	return path, nil
}

// LoadDump loads JSON data from a specific file path.
func LoadDump[T any](path string) (T, error) {
	var data T

	jsonData, err := os.ReadFile(path)
	if err != nil {
		return data, fmt.Errorf("failed to read dump: %w", err)
	}

	if err := json.Unmarshal(jsonData, &data); err != nil {
		return data, fmt.Errorf("failed to unmarshal dump: %w", err)
	}

	return data, nil
}

// ListDumps returns the dump files of a kind, oldest first.
func ListDumps(root string, kind DumpKind) ([]string, error) {
	dir := filepath.Join(root, string(kind))
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	// os.ReadDir sorts by name, which is chronological for our timestamps
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	return files, nil
}
