package core

import (
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/go-crypt/x/blake2b"
)

// SourceHash returns a stable hash of the catalog fields of a record.
// Enrichment output is not part of the hash, so a record whose catalog entry
// did not change keeps its hash across fetches.
func SourceHash(record *CatalogRecord) string {
	// Struct field order makes the JSON encoding canonical.
	data, err := json.Marshal(record)
	if err != nil {
		return ""
	}
	h, _ := blake2b.New(32, nil)
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// RecordText renders the text that is sent to the embedding model.
func RecordText(record *EnrichedRecord) string {
	material := record.ItemType
	if len(record.Materials) > 0 && record.Materials[0].Name != "" {
		material = record.Materials[0].Name
	}

	description := record.Summary
	if description == "" {
		description = record.Description
	}

	var b strings.Builder
	b.WriteString("Title: " + record.Title + "\n")
	b.WriteString("Author: " + record.Author + "\n")
	b.WriteString("Material: " + material + "\n")
	b.WriteString("Publication Date: " + record.PublicationDate + "\n")
	b.WriteString("Contributors: " + strings.Join(record.Contributors, ", ") + "\n")
	b.WriteString("Subjects: " + record.Subjects + "\n")
	b.WriteString("Description: " + description)
	return b.String()
}

// NewEnrichedRecord wraps a catalog record, computing its source hash and
// embedding text. Edition metadata can be filled in later with ApplyEdition.
func NewEnrichedRecord(record CatalogRecord) *EnrichedRecord {
	enriched := &EnrichedRecord{CatalogRecord: record}
	enriched.SourceHash = SourceHash(&enriched.CatalogRecord)
	enriched.Text = RecordText(enriched)
	return enriched
}

// ApplyEdition merges edition metadata into the record and refreshes its text.
func (r *EnrichedRecord) ApplyEdition(subjects, summary string, contributors []string) {
	r.Subjects = subjects
	r.Summary = summary
	r.Contributors = contributors
	r.Text = RecordText(r)
}

// HasSummary reports whether the record carries a non-blank summary.
func (r *EnrichedRecord) HasSummary() bool {
	return strings.TrimSpace(r.Summary) != ""
}
