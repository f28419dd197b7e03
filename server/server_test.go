package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/advisor/search"
)

type stubRecommender struct {
	RecommendFunc func(ctx context.Context, query string) (*search.Recommendation, error)
	LastQuery     string
	callCount     int
}

func (s *stubRecommender) Recommend(ctx context.Context, query string) (*search.Recommendation, error) {
	s.callCount++
	s.LastQuery = query
	if s.RecommendFunc != nil {
		return s.RecommendFunc(ctx, query)
	}
	if strings.TrimSpace(query) == "" {
		return nil, search.ErrEmptyQuery
	}
	return &search.Recommendation{Query: query, Text: "- Jurassic Park: dinosaurs."}, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, rec Recommender) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewHandler(rec, WithLogger(quietLogger())).Routes())
	t.Cleanup(srv.Close)
	return srv
}

func postRecommend(t *testing.T, srv *httptest.Server, body string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Post(srv.URL+"/recommend", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func TestRecommend_ReturnsAnswer(t *testing.T) {
	rec := &stubRecommender{}
	srv := newTestServer(t, rec)

	resp, body := postRecommend(t, srv, `{"query": "dinosaurs"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var got RecommendResponse
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "- Jurassic Park: dinosaurs.", got.Answer)
	assert.Equal(t, "dinosaurs", rec.LastQuery)
	assert.Equal(t, 1, rec.callCount)
}

func TestRecommend_BadRequests(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantCalls int
	}{
		{name: "empty query", body: `{"query": ""}`, wantCalls: 1},
		{name: "blank query", body: `{"query": "   "}`, wantCalls: 1},
		{name: "missing query", body: `{}`, wantCalls: 1},
		{name: "invalid json", body: `{"query":`, wantCalls: 0},
		{name: "wrong type", body: `{"query": 42}`, wantCalls: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &stubRecommender{}
			srv := newTestServer(t, rec)

			resp, body := postRecommend(t, srv, tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

			var got ErrorResponse
			require.NoError(t, json.Unmarshal(body, &got))
			assert.NotEmpty(t, got.Detail)
			assert.Equal(t, tt.wantCalls, rec.callCount)
		})
	}
}

func TestRecommend_Failures(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "missing dataset", err: search.ErrIndexNotBuilt},
		{name: "generation failure", err: fmt.Errorf("generate recommendation: %w", errors.New("model offline"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &stubRecommender{
				RecommendFunc: func(context.Context, string) (*search.Recommendation, error) {
					return nil, tt.err
				},
			}
			srv := newTestServer(t, rec)

			resp, body := postRecommend(t, srv, `{"query": "dinosaurs"}`)
			assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

			var got ErrorResponse
			require.NoError(t, json.Unmarshal(body, &got))
			assert.Equal(t, tt.err.Error(), got.Detail)
		})
	}
}

func TestRecommend_PanicIsRecovered(t *testing.T) {
	rec := &stubRecommender{
		RecommendFunc: func(context.Context, string) (*search.Recommendation, error) {
			panic("nil candidate")
		},
	}
	srv := newTestServer(t, rec)

	resp, _ := postRecommend(t, srv, `{"query": "dinosaurs"}`)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	// The server keeps answering after a panic.
	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRecommend_MethodNotAllowed(t *testing.T) {
	rec := &stubRecommender{}
	srv := newTestServer(t, rec)

	resp, err := http.Get(srv.URL + "/recommend")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.Zero(t, rec.callCount)
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, &stubRecommender{})

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var got map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "ok", got["status"])
}

func TestChain_Order(t *testing.T) {
	var order []string
	tag := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		order = append(order, "handler")
	}), tag("outer"), tag("inner"))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, []string{"outer", "inner", "handler"}, order)
}

func TestServe_StopsOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, ln, NewHandler(&stubRecommender{}, WithLogger(quietLogger())).Routes())
	}()

	url := "http://" + ln.Addr().String() + "/health"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(ShutdownTimeout + time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
