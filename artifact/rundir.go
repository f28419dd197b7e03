// Package artifact owns the on-disk layout of a run directory: the enriched
// records file, the index directory, the run manifest and the lock file.
package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/poiesic/advisor/core"
)

const (
	recordsFile  = "records.json"
	manifestFile = "manifest.json"
	indexDir     = "index"
	lockFile     = ".lock"
)

// RunDir is a run directory path.
type RunDir string

// RecordsPath returns the path of the enriched records artifact.
func (d RunDir) RecordsPath() string { return filepath.Join(string(d), recordsFile) }

// IndexPath returns the path of the vector index directory.
func (d RunDir) IndexPath() string { return filepath.Join(string(d), indexDir) }

// ManifestPath returns the path of the run manifest.
func (d RunDir) ManifestPath() string { return filepath.Join(string(d), manifestFile) }

// LockPath returns the path of the advisory lock file.
func (d RunDir) LockPath() string { return filepath.Join(string(d), lockFile) }

// Ensure creates the run directory if it does not exist.
func (d RunDir) Ensure() error {
	return os.MkdirAll(string(d), 0755)
}

// WriteJSON encodes v as indented JSON and replaces path atomically: the
// data goes to a temp file in the same directory which is then renamed over
// the target.
func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// ReadJSON decodes the JSON file at path into v.
// Returns an error wrapping os.ErrNotExist if the file is missing.
func ReadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrMalformedArtifact, path, err)
	}
	return nil
}

// WriteRecords atomically replaces the enriched records artifact.
func (d RunDir) WriteRecords(records []*core.EnrichedRecord) error {
	if records == nil {
		records = []*core.EnrichedRecord{}
	}
	return WriteJSON(d.RecordsPath(), records)
}

// ReadRecords loads the enriched records artifact.
// Returns ErrRecordsMissing if the fetch stage has not produced it yet.
func (d RunDir) ReadRecords() ([]*core.EnrichedRecord, error) {
	var records []*core.EnrichedRecord
	if err := ReadJSON(d.RecordsPath(), &records); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrRecordsMissing, d.RecordsPath())
		}
		return nil, err
	}
	return records, nil
}

// HasIndex reports whether the index directory exists.
func (d RunDir) HasIndex() bool {
	info, err := os.Stat(d.IndexPath())
	return err == nil && info.IsDir()
}
