package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/advisor/artifact"
	"github.com/poiesic/advisor/core"
)

// Summary reports the outcome of a fetch.
type Summary struct {
	Path          string
	Records       int
	ReportedTotal int
	New           int
	Changed       int
	Unchanged     int
	Removed       int
	Enriched      int
	Dropped       int
}

// Counts returns the summary as manifest counters.
func (s *Summary) Counts() map[string]int {
	return map[string]int{
		"records":        s.Records,
		"reported_total": s.ReportedTotal,
		"new":            s.New,
		"changed":        s.Changed,
		"unchanged":      s.Unchanged,
		"removed":        s.Removed,
		"enriched":       s.Enriched,
		"dropped":        s.Dropped,
	}
}

// Fetcher pulls the full catalog into a run directory.
type Fetcher struct {
	client *Client
	runDir artifact.RunDir
	logger *slog.Logger
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher) error

// WithFetcherLogger sets a custom logger.
func WithFetcherLogger(logger *slog.Logger) FetcherOption {
	return func(f *Fetcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		f.logger = logger.With("component", "fetcher")
		return nil
	}
}

// NewFetcher creates a fetcher writing into runDir.
func NewFetcher(client *Client, runDir artifact.RunDir, opts ...FetcherOption) (*Fetcher, error) {
	if client == nil {
		return nil, ErrClientRequired
	}
	f := &Fetcher{
		client: client,
		runDir: runDir,
		logger: slog.Default().With("component", "fetcher"),
	}
	for _, opt := range opts {
		if err := opt(f); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// Fetch retrieves every partition, enriches new and changed records, and
// atomically replaces records.json. Nothing is written on failure or when
// the catalog is empty.
func (f *Fetcher) Fetch(ctx context.Context) (*Summary, error) {
	startedAt := time.Now()

	records, reported, err := f.fetchAll(ctx)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrEmptyCatalog
	}

	previous := f.loadPrevious()
	diff := diffRecords(previous, records)

	summary := &Summary{
		Path:          f.runDir.RecordsPath(),
		ReportedTotal: reported,
		New:           len(diff.New),
		Changed:       len(diff.Changed),
		Unchanged:     len(diff.Unchanged),
		Removed:       len(diff.Removed),
	}

	out := make([]*core.EnrichedRecord, 0, len(records))
	for i := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec := records[i]
		if err := core.ValidateCatalogRecord(&rec); err != nil {
			f.logger.Warn("dropping invalid record", "id", rec.ID, "err", err)
			summary.Dropped++
			continue
		}

		var enriched *core.EnrichedRecord
		if prev, ok := previous[rec.ID]; ok && prev.SourceHash == core.SourceHash(&rec) {
			enriched = prev
		} else {
			enriched, err = f.enrich(ctx, rec)
			if err != nil {
				return nil, err
			}
			summary.Enriched++
		}

		if err := core.ValidateEnrichedRecord(enriched); err != nil {
			f.logger.Warn("dropping invalid record", "id", rec.ID, "err", err)
			summary.Dropped++
			continue
		}
		out = append(out, enriched)
	}

	if len(out) == 0 {
		return nil, ErrEmptyCatalog
	}
	summary.Records = len(out)

	if err := f.runDir.WriteRecords(out); err != nil {
		return nil, fmt.Errorf("write records: %w", err)
	}
	if err := f.runDir.RecordStage(artifact.StageFetch, startedAt, summary.Counts()); err != nil {
		f.logger.Warn("failed to update manifest", "err", err)
	}

	f.logger.Info("fetch complete",
		"records", summary.Records,
		"new", summary.New,
		"changed", summary.Changed,
		"unchanged", summary.Unchanged,
		"removed", summary.Removed)

	return summary, nil
}

// fetchAll walks every partition and deduplicates by catalog ID; the first
// occurrence wins.
func (f *Fetcher) fetchAll(ctx context.Context) ([]core.CatalogRecord, int, error) {
	cfg := f.client.Config()
	seen := make(map[string]bool)
	var (
		records  []core.CatalogRecord
		reported int
	)

	for _, partition := range cfg.Partitions {
		fetched, total, err := f.fetchPartition(ctx, partition)
		if err != nil {
			return nil, 0, err
		}
		reported += total
		added := 0
		for _, rec := range fetched {
			if rec.ID == "" || seen[rec.ID] {
				continue
			}
			seen[rec.ID] = true
			records = append(records, rec)
			added++
		}
		f.logger.Info("fetched partition", "partition", partition, "records", added, "reported", total)
	}
	return records, reported, nil
}

func (f *Fetcher) fetchPartition(ctx context.Context, partition string) ([]core.CatalogRecord, int, error) {
	first, err := f.client.Search(ctx, SearchRequest{Partition: partition, Page: 0})
	if err != nil {
		return nil, 0, err
	}
	records := first.Records
	if len(first.Records) == 0 {
		return records, first.TotalResults, nil
	}

	pages := f.client.Config().maxPages(first.TotalPages)
	if first.TotalPages > pages {
		f.logger.Warn("partition exceeds result window, truncating",
			"partition", partition, "totalPages", first.TotalPages, "pages", pages)
	}

	for page := 1; page < pages; page++ {
		next, err := f.client.Search(ctx, SearchRequest{Partition: partition, Page: page})
		if err != nil {
			return nil, 0, err
		}
		if len(next.Records) == 0 {
			break
		}
		records = append(records, next.Records...)
	}
	return records, first.TotalResults, nil
}

func (f *Fetcher) enrich(ctx context.Context, rec core.CatalogRecord) (*core.EnrichedRecord, error) {
	enriched := core.NewEnrichedRecord(rec)
	editionID := rec.FirstEditionID()
	if editionID == "" {
		return enriched, nil
	}
	ed, err := f.client.Edition(ctx, editionID)
	if err != nil {
		if errors.Is(err, ErrEditionNotFound) {
			f.logger.Debug("edition not found, leaving record un-enriched", "id", rec.ID, "edition", editionID)
			return enriched, nil
		}
		return nil, err
	}
	enriched.ApplyEdition(ed.Subjects, ed.Summary, ed.Contributors)
	return enriched, nil
}

// loadPrevious reads the last records.json. A missing or unreadable artifact
// means everything is enriched from scratch.
func (f *Fetcher) loadPrevious() map[string]*core.EnrichedRecord {
	records, err := f.runDir.ReadRecords()
	if err != nil {
		if !errors.Is(err, artifact.ErrRecordsMissing) {
			f.logger.Warn("ignoring unreadable previous records", "err", err)
		}
		return map[string]*core.EnrichedRecord{}
	}
	previous := make(map[string]*core.EnrichedRecord, len(records))
	for _, rec := range records {
		if rec != nil && rec.ID != "" {
			previous[rec.ID] = rec
		}
	}
	return previous
}
