package artifact

import (
	"errors"
	"os"
	"time"

	"github.com/google/uuid"
)

// Stage names recorded in the manifest.
const (
	StageFetch = "fetch"
	StageEmbed = "embed"
)

// StageRun records the last completed run of one stage.
type StageRun struct {
	RunID      string         `json:"runId" yaml:"run_id"`
	StartedAt  time.Time      `json:"startedAt" yaml:"started_at"`
	FinishedAt time.Time      `json:"finishedAt" yaml:"finished_at"`
	Counts     map[string]int `json:"counts,omitempty" yaml:"counts,omitempty"`
}

// Manifest describes the artifacts in a run directory.
type Manifest struct {
	RunID     string               `json:"runId" yaml:"run_id"`
	CreatedAt time.Time            `json:"createdAt" yaml:"created_at"`
	UpdatedAt time.Time            `json:"updatedAt" yaml:"updated_at"`
	Model     string               `json:"model,omitempty" yaml:"model,omitempty"`
	Stages    map[string]*StageRun `json:"stages" yaml:"stages"`
}

// NewManifest creates a manifest with a fresh run ID.
func NewManifest() *Manifest {
	now := time.Now().UTC()
	return &Manifest{
		RunID:     uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
		Stages:    map[string]*StageRun{},
	}
}

// ReadManifest loads manifest.json, or returns a new manifest if the run
// directory has none yet.
func (d RunDir) ReadManifest() (*Manifest, error) {
	var m Manifest
	if err := ReadJSON(d.ManifestPath(), &m); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewManifest(), nil
		}
		return nil, err
	}
	if m.Stages == nil {
		m.Stages = map[string]*StageRun{}
	}
	return &m, nil
}

// WriteManifest atomically replaces manifest.json.
func (d RunDir) WriteManifest(m *Manifest) error {
	m.UpdatedAt = time.Now().UTC()
	return WriteJSON(d.ManifestPath(), m)
}

// RecordStage stores a completed stage run in the manifest on disk.
func (d RunDir) RecordStage(stage string, startedAt time.Time, counts map[string]int) error {
	m, err := d.ReadManifest()
	if err != nil {
		return err
	}
	m.Stages[stage] = &StageRun{
		RunID:      uuid.NewString(),
		StartedAt:  startedAt.UTC(),
		FinishedAt: time.Now().UTC(),
		Counts:     counts,
	}
	return d.WriteManifest(m)
}

// RecordModel stores the embedding model the index was built with.
func (d RunDir) RecordModel(model string) error {
	m, err := d.ReadManifest()
	if err != nil {
		return err
	}
	m.Model = model
	return d.WriteManifest(m)
}
