package embed

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/poiesic/advisor/ai/mock"
	"github.com/poiesic/advisor/artifact"
	"github.com/poiesic/advisor/core"
	"github.com/poiesic/advisor/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type builderFixture struct {
	runDir   artifact.RunDir
	repos    *badger.Repositories
	embedder *mock.MockEmbedder
	config   *Config
}

func newBuilderFixture(t *testing.T) *builderFixture {
	t.Helper()
	repos, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { repos.Close() })

	embedder := mock.NewMockEmbedder()
	embedder.Dimension = 8

	return &builderFixture{
		runDir:   artifact.RunDir(filepath.Join(t.TempDir(), "run")),
		repos:    repos,
		embedder: embedder,
		config: &Config{
			BatchSize:      2,
			ReportInterval: 1,
			MaxRetries:     2,
			RetryDelay:     time.Millisecond,
		},
	}
}

func (f *builderFixture) writeRecords(t *testing.T, titles ...string) []*core.EnrichedRecord {
	t.Helper()
	records := make([]*core.EnrichedRecord, len(titles))
	for i, title := range titles {
		records[i] = core.NewEnrichedRecord(core.CatalogRecord{
			ID:       "fg-" + strings.ToLower(strings.Fields(title)[0]),
			Title:    title,
			ItemType: "DVD",
		})
	}
	require.NoError(t, f.runDir.WriteRecords(records))
	return records
}

func (f *builderFixture) run(t *testing.T) (*Report, error) {
	t.Helper()
	builder, err := NewBuilder(f.runDir, badgerStores(f.repos), f.embedder, WithConfig(f.config))
	require.NoError(t, err)
	return builder.Run(context.Background())
}

func badgerStores(repos *badger.Repositories) Stores {
	return Stores{Vectors: repos.Vectors, Records: repos.Records, Meta: repos.Meta}
}

func TestNewBuilder_Validation(t *testing.T) {
	f := newBuilderFixture(t)

	_, err := NewBuilder(f.runDir, badgerStores(f.repos), nil)
	assert.ErrorIs(t, err, ErrEmbedderRequired)

	_, err = NewBuilder(f.runDir, Stores{}, f.embedder)
	assert.ErrorIs(t, err, ErrStoresRequired)
}

func TestBuilder_Run_MissingRecords(t *testing.T) {
	f := newBuilderFixture(t)
	_, err := f.run(t)
	assert.ErrorIs(t, err, artifact.ErrRecordsMissing)
}

func TestBuilder_Run_EmbedsEveryRecord(t *testing.T) {
	f := newBuilderFixture(t)
	f.writeRecords(t, "Alpha", "Beta", "Gamma", "Delta", "Epsilon")

	report, err := f.run(t)
	require.NoError(t, err)
	assert.Equal(t, 5, report.Total)
	assert.Equal(t, 5, report.Embedded)
	assert.Equal(t, 8, report.Dimension)
	assert.Empty(t, report.Failures)
	assert.Equal(t, 3, f.embedder.BatchCallCount(), "5 records in batches of 2")

	ctx := context.Background()
	count, err := f.repos.Vectors.CountVectors(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, count, "vector count equals record count")

	meta, err := f.repos.Meta.LoadMeta(ctx)
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, "mock-embedding", meta.Model)
	assert.Equal(t, 8, meta.Dimension)
	assert.Equal(t, 5, meta.Count)

	manifest, err := f.runDir.ReadManifest()
	require.NoError(t, err)
	assert.Equal(t, 5, manifest.Stages[artifact.StageEmbed].Counts["embedded"])
	assert.Equal(t, "mock-embedding", manifest.Model)
}

func TestBuilder_Run_VectorLookupRoundTrip(t *testing.T) {
	f := newBuilderFixture(t)
	f.writeRecords(t, "Alpha", "Beta", "Gamma")

	_, err := f.run(t)
	require.NoError(t, err)

	ctx := context.Background()
	written, err := f.runDir.ReadRecords()
	require.NoError(t, err)
	byID := map[core.ID]*core.EnrichedRecord{}
	for _, rec := range written {
		byID[rec.Key()] = rec
	}

	ids, err := f.repos.Vectors.VectorIDs(ctx)
	require.NoError(t, err)
	require.Len(t, ids, 3)
	for _, id := range ids {
		v, err := f.repos.Vectors.GetVector(ctx, id)
		require.NoError(t, err)
		rec, err := f.repos.Records.GetRecord(ctx, v.RecordID)
		require.NoError(t, err)
		assert.Equal(t, byID[id], rec)
		assert.Equal(t, rec.ID, v.CatalogID)
		assert.Equal(t, rec.SourceHash, v.SourceHash)
	}
}

func TestBuilder_Run_SkipsCurrentVectors(t *testing.T) {
	f := newBuilderFixture(t)
	f.writeRecords(t, "Alpha", "Beta", "Gamma")

	_, err := f.run(t)
	require.NoError(t, err)
	calls := f.embedder.CallCount()

	report, err := f.run(t)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Embedded)
	assert.Equal(t, 3, report.Reused)
	assert.Equal(t, calls, f.embedder.CallCount(), "no embedding calls for unchanged records")
}

func TestBuilder_Run_ReembedsChangedRecords(t *testing.T) {
	f := newBuilderFixture(t)
	f.writeRecords(t, "Alpha", "Beta", "Gamma")

	_, err := f.run(t)
	require.NoError(t, err)

	records, err := f.runDir.ReadRecords()
	require.NoError(t, err)
	changed := core.NewEnrichedRecord(core.CatalogRecord{ID: records[1].ID, Title: "Beta Reloaded", ItemType: "DVD"})
	records[1] = changed
	require.NoError(t, f.runDir.WriteRecords(records))

	report, err := f.run(t)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Embedded)
	assert.Equal(t, 2, report.Reused)

	v, err := f.repos.Vectors.GetVector(context.Background(), changed.Key())
	require.NoError(t, err)
	assert.Equal(t, changed.SourceHash, v.SourceHash)
}

func TestBuilder_Run_ModelChangeAndForce(t *testing.T) {
	f := newBuilderFixture(t)
	f.writeRecords(t, "Alpha", "Beta")

	_, err := f.run(t)
	require.NoError(t, err)

	f.embedder.ModelName = "other-model"
	report, err := f.run(t)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Embedded, "model change re-embeds everything")

	f.config.Force = true
	report, err = f.run(t)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Embedded, "force re-embeds everything")
	assert.Equal(t, 0, report.Reused)
}

func TestBuilder_Run_RemovesOrphans(t *testing.T) {
	f := newBuilderFixture(t)
	f.writeRecords(t, "Alpha", "Beta", "Gamma")

	_, err := f.run(t)
	require.NoError(t, err)

	f.writeRecords(t, "Alpha", "Gamma")
	report, err := f.run(t)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Removed)

	ctx := context.Background()
	count, err := f.repos.Vectors.CountVectors(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	ids, err := f.repos.Records.RecordIDs(ctx)
	require.NoError(t, err)
	assert.Len(t, ids, 2)
}

func TestBuilder_Run_PartialFailure(t *testing.T) {
	f := newBuilderFixture(t)
	f.writeRecords(t, "Alpha", "Broken", "Gamma")

	f.embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		if strings.Contains(text, "Broken") {
			return nil, errors.New("content rejected")
		}
		return mock.DeterministicVector(text, 8), nil
	}

	report, err := f.run(t)
	require.ErrorIs(t, err, ErrPartialEmbed)
	require.NotNil(t, report)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "fg-broken", report.Failures[0].CatalogID)
	assert.Equal(t, 2, report.Embedded, "the batch partner of the bad record still gets embedded")

	ctx := context.Background()
	count, err := f.repos.Vectors.CountVectors(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	f.embedder.EmbedTextFunc = nil
	report, err = f.run(t)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Embedded, "only the failed record is retried")
	assert.Equal(t, 2, report.Reused)
}

func TestBuilder_Run_DimensionChangeRebuilds(t *testing.T) {
	f := newBuilderFixture(t)
	f.writeRecords(t, "Alpha", "Beta", "Gamma")

	_, err := f.run(t)
	require.NoError(t, err)

	f.writeRecords(t, "Alpha", "Beta", "Gamma", "Delta")
	f.embedder.Dimension = 4

	report, err := f.run(t)
	require.NoError(t, err)
	assert.True(t, report.Rebuilt)
	assert.Equal(t, 4, report.Embedded)
	assert.Equal(t, 4, report.Dimension)

	ctx := context.Background()
	ids, err := f.repos.Vectors.VectorIDs(ctx)
	require.NoError(t, err)
	vectors, err := f.repos.Vectors.GetVectors(ctx, ids...)
	require.NoError(t, err)
	require.Len(t, vectors, 4)
	for _, v := range vectors {
		assert.Len(t, v.Vector, 4)
	}
}
