package core

import (
	"encoding/binary"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is the storage key for a catalog record and its vector.
// It is derived from the catalog identifier so that re-fetched records
// land on the same key.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// Edition is one published edition of a catalog material.
type Edition struct {
	ID              string `json:"id"`
	PublicationDate string `json:"publicationDate,omitempty"`
}

// Material is a format tab of a catalog record (book, DVD, audiobook, ...).
type Material struct {
	Name       string    `json:"name"`
	Type       string    `json:"type,omitempty"`
	CallNumber string    `json:"callNumber,omitempty"`
	Editions   []Edition `json:"editions,omitempty"`
}

// CatalogRecord is a record as returned by the catalog search, before enrichment.
type CatalogRecord struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Author          string     `json:"author,omitempty"`
	PublicationDate string     `json:"publicationDate,omitempty"`
	ItemType        string     `json:"itemType,omitempty"`
	Available       bool       `json:"available"`
	Description     string     `json:"description,omitempty"`
	Materials       []Material `json:"materials,omitempty"`
}

// Key returns the storage key for the record.
func (r *CatalogRecord) Key() ID {
	return IDFromContent(r.ID)
}

// FirstEditionID returns the first edition of the first material, or "" if
// the record has none.
func (r *CatalogRecord) FirstEditionID() string {
	if len(r.Materials) == 0 || len(r.Materials[0].Editions) == 0 {
		return ""
	}
	return r.Materials[0].Editions[0].ID
}

// EnrichedRecord is a CatalogRecord plus edition metadata and the text used
// for embedding.
type EnrichedRecord struct {
	CatalogRecord
	Subjects     string   `json:"subjects,omitempty"`
	Summary      string   `json:"summary,omitempty"`
	Contributors []string `json:"contributors,omitempty"`
	Text         string   `json:"text"`
	SourceHash   string   `json:"sourceHash"`
}

// EmbeddingVector is the unit-normalized embedding of one EnrichedRecord.
type EmbeddingVector struct {
	RecordID   ID
	CatalogID  string
	SourceHash string // hash of the record the vector was computed from
	Model      string
	Vector     []float32
	EmbeddedAt time.Time
}

// IndexMeta describes the state of a built vector index.
type IndexMeta struct {
	Model     string
	Dimension int
	Count     int
	BuiltAt   time.Time
}

// QueryResult is a single nearest-neighbor hit.
type QueryResult struct {
	RecordID  ID
	CatalogID string
	Score     float32
}

// SearchResult is a QueryResult joined with its record.
type SearchResult struct {
	Record *EnrichedRecord
	Score  float32
}
