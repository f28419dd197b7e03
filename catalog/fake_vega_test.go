package catalog

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeVega serves format-group searches and edition lookups from memory.
type fakeVega struct {
	mu sync.Mutex

	partitions map[string][]map[string]any
	editions   map[string]map[string]any

	// searchStatuses are returned, in order, before searches succeed.
	searchStatuses []int
	retryAfter     string

	// rawPages replaces the response body of a search page.
	rawPages map[int]string

	searchHits  int
	editionHits map[string]int
	payloads    []searchPayload
	headers     http.Header
}

func newFakeVega() *fakeVega {
	return &fakeVega{
		partitions:  map[string][]map[string]any{},
		editions:    map[string]map[string]any{},
		editionHits: map[string]int{},
		rawPages:    map[int]string{},
	}
}

func formatGroupJSON(id, title, material, editionID string) map[string]any {
	return map[string]any{
		"id":              id,
		"title":           title,
		"publicationDate": "2001",
		"primaryAgent":    map[string]any{"label": "Author " + id},
		"materialTabs": []any{
			map[string]any{
				"name":       material,
				"type":       "PHYSICAL",
				"callNumber": material + " " + title,
				"editions":   []any{map[string]any{"id": editionID, "publicationDate": "2001"}},
			},
		},
	}
}

func (f *fakeVega) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/search-result/search/format-groups":
		f.searchHits++
		f.headers = r.Header.Clone()
		if len(f.searchStatuses) > 0 {
			status := f.searchStatuses[0]
			f.searchStatuses = f.searchStatuses[1:]
			if f.retryAfter != "" {
				w.Header().Set("Retry-After", f.retryAfter)
			}
			w.WriteHeader(status)
			_, _ = w.Write([]byte("try later"))
			return
		}
		var p searchPayload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.payloads = append(f.payloads, p)
		if body, ok := f.rawPages[p.PageNum]; ok {
			_, _ = w.Write([]byte(body))
			return
		}

		all := f.partitions[p.SearchText]
		totalPages := (len(all) + p.PageSize - 1) / p.PageSize
		start := min(p.PageNum*p.PageSize, len(all))
		end := min(start+p.PageSize, len(all))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data":         append([]map[string]any{}, all[start:end]...),
			"totalPages":   totalPages,
			"totalResults": len(all),
		})

	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/search-result/editions/"):
		id := strings.TrimPrefix(r.URL.Path, "/search-result/editions/")
		f.editionHits[id]++
		ed, ok := f.editions[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"edition": ed})

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeVega) totalEditionHits() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, hits := range f.editionHits {
		n += hits
	}
	return n
}

func newTestClient(t *testing.T, fake *fakeVega, partitions ...string) *Client {
	t.Helper()
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	if len(partitions) == 0 {
		partitions = []string{"A*"}
	}
	client, err := NewClient(Config{
		BaseURL:     server.URL,
		Partitions:  partitions,
		PageSize:    2,
		MaxResults:  4,
		LocationIDs: 59,
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
	})
	if err != nil {
		t.Fatal(err)
	}
	return client
}

func newStaticServer(t *testing.T, body string) string {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server.URL
}
