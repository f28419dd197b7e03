package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient_RequiresBaseURL(t *testing.T) {
	_, err := NewClient(Config{})
	assert.ErrorIs(t, err, ErrBaseURLRequired)
}

func TestClient_Search(t *testing.T) {
	fake := newFakeVega()
	fake.partitions["A*"] = []map[string]any{
		formatGroupJSON("fg-1", "Alpha", "DVD", "ed-1"),
		formatGroupJSON("fg-2", "Arrow", "Book", "ed-2"),
	}
	client := newTestClient(t, fake)

	page, err := client.Search(context.Background(), SearchRequest{Partition: "A*", Page: 0})
	require.NoError(t, err)

	assert.Equal(t, 1, page.TotalPages)
	assert.Equal(t, 2, page.TotalResults)
	require.Len(t, page.Records, 2)

	rec := page.Records[0]
	assert.Equal(t, "fg-1", rec.ID)
	assert.Equal(t, "Alpha", rec.Title)
	assert.Equal(t, "Author fg-1", rec.Author)
	assert.Equal(t, "DVD", rec.ItemType)
	assert.True(t, rec.Available)
	assert.Equal(t, "ed-1", rec.FirstEditionID())

	require.Len(t, fake.payloads, 1)
	p := fake.payloads[0]
	assert.Equal(t, "A*", p.SearchText)
	assert.Equal(t, "title", p.Sorting)
	assert.Equal(t, "asc", p.SortOrder)
	assert.Equal(t, "everything", p.SearchType)
	assert.Equal(t, []string{"at_library"}, p.UniversalLimiterIDs)
	assert.Equal(t, "FormatGroup", p.ResourceType)
	assert.Equal(t, 2, p.PageSize)
	assert.Equal(t, 59, p.LocationIDs)

	assert.Equal(t, "2", fake.headers.Get("api-version"))
	assert.Equal(t, DefaultCustomerDomain, fake.headers.Get("iii-customer-domain"))
	assert.Equal(t, DefaultCustomerDomain, fake.headers.Get("iii-host-domain"))
}

func TestBuildSearchPayload_OmitsUnsetFilters(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LocationIDs = 0

	data, err := json.Marshal(buildSearchPayload(cfg, SearchRequest{Partition: "B*", Page: 3}))
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	assert.NotContains(t, m, "locationIds")
	assert.NotContains(t, m, "materialTypeIds")
	assert.EqualValues(t, 3, m["pageNum"])
	assert.EqualValues(t, 1000, m["pageSize"])
}

func TestClient_RetriesTransientStatus(t *testing.T) {
	fake := newFakeVega()
	fake.searchStatuses = []int{http.StatusServiceUnavailable, http.StatusBadGateway}
	client := newTestClient(t, fake)

	_, err := client.Search(context.Background(), SearchRequest{Partition: "A*"})
	require.NoError(t, err)
	assert.Equal(t, 3, fake.searchHits)
}

func TestClient_HonorsRetryAfter(t *testing.T) {
	fake := newFakeVega()
	fake.searchStatuses = []int{http.StatusTooManyRequests}
	fake.retryAfter = "0"
	client := newTestClient(t, fake)

	_, err := client.Search(context.Background(), SearchRequest{Partition: "A*"})
	require.NoError(t, err)
	assert.Equal(t, 2, fake.searchHits)
}

func TestClient_GivesUpAfterMaxAttempts(t *testing.T) {
	fake := newFakeVega()
	fake.searchStatuses = []int{500, 500, 500, 500}
	client := newTestClient(t, fake)

	_, err := client.Search(context.Background(), SearchRequest{Partition: "A*"})
	require.Error(t, err)

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 500, se.StatusCode)
	assert.Equal(t, 3, fake.searchHits)
}

func TestClient_NonRetryableStatus(t *testing.T) {
	fake := newFakeVega()
	fake.searchStatuses = []int{http.StatusBadRequest}
	client := newTestClient(t, fake)

	_, err := client.Search(context.Background(), SearchRequest{Partition: "A*"})
	assert.ErrorIs(t, err, ErrUnexpectedStatus)
	assert.Equal(t, 1, fake.searchHits)
}

func TestClient_MalformedResponses(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: "<html>"},
		{name: "missing data", body: `{"totalPages": 1}`},
		{name: "wrong shape", body: `{"data": {"id": 1}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newStaticServer(t, tt.body)
			client, err := NewClient(Config{BaseURL: server, MaxAttempts: 3})
			require.NoError(t, err)

			_, err = client.Search(context.Background(), SearchRequest{Partition: "A*"})
			assert.ErrorIs(t, err, ErrMalformedResponse)

			_, err = client.Search(context.Background(), SearchRequest{Partition: "A*", Page: 1})
			assert.ErrorIs(t, err, ErrMalformedResponse, "later pages are held to the same shape")
		})
	}
}

func TestClient_Search_EmptyDataIsExhaustion(t *testing.T) {
	server := newStaticServer(t, `{"data": [], "totalPages": 3, "totalResults": 5}`)
	client, err := NewClient(Config{BaseURL: server, MaxAttempts: 1})
	require.NoError(t, err)

	page, err := client.Search(context.Background(), SearchRequest{Partition: "A*", Page: 2})
	require.NoError(t, err)
	assert.Empty(t, page.Records)
}

func TestClient_Edition(t *testing.T) {
	fake := newFakeVega()
	fake.editions["ed-1"] = map[string]any{
		"subjPersonalName": "Achilles",
		"subjTopical":      "Trojan War",
		"noteSummary":      "An epic.",
		"noteGeneral":      "Widescreen.",
		"subjCount":        3,
		"contributors":     []any{"Homer", map[string]any{"label": "Fagles, Robert"}},
	}
	client := newTestClient(t, fake)

	ed, err := client.Edition(context.Background(), "ed-1")
	require.NoError(t, err)
	assert.Equal(t, "Achilles; Trojan War", ed.Subjects)
	assert.Equal(t, "Widescreen. An epic.", ed.Summary)
	assert.Equal(t, []string{"Homer", "Fagles, Robert"}, ed.Contributors)

	_, err = client.Edition(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrEditionNotFound)
}

func TestDefaultPartitions(t *testing.T) {
	p := DefaultPartitions()
	require.Len(t, p, 27)
	assert.Equal(t, "A*", p[0])
	assert.Equal(t, "Z*", p[25])
	assert.Equal(t, "0*", p[26])
}

func TestConfigMaxPages(t *testing.T) {
	cfg := Config{PageSize: 1000, MaxResults: 10_000}
	assert.Equal(t, 3, cfg.maxPages(3))
	assert.Equal(t, 10, cfg.maxPages(40))
	assert.Equal(t, 0, cfg.maxPages(0))
}
