package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repolens/internal/analysis"
	"repolens/internal/filegraph"
	"repolens/internal/github"
)

type stubLister struct {
	entries map[string][]filegraph.FileEntry
	err     error
}

func (s *stubLister) ListFiles(_ context.Context, ref github.RepoRef) ([]filegraph.FileEntry, error) {
	if s.err != nil {
		return nil, s.err
	}
	entries, ok := s.entries[ref.String()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", github.ErrNotFound, ref)
	}
	return entries, nil
}

func newGraphMux(lister github.Lister) *http.ServeMux {
	h := NewGraphHandler(lister)
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/graph", h.HandleBuildGraph)
	mux.HandleFunc("GET /api/repos/graph", h.HandleRepoGraph)
	return mux
}

func TestHandleBuildGraph(t *testing.T) {
	mux := newGraphMux(&stubLister{})
	body := `{"entries":[{"path":"src/app.ts","type":"blob"},{"path":"src/index.css","type":"blob"},{"path":"README.md","type":"blob"}]}`
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/graph", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var doc analysis.RepoGraph
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	require.Len(t, doc.Graph.Nodes, 5)
	assert.Equal(t, filegraph.Node{ID: "root", Label: "root", Group: filegraph.GroupRoot}, doc.Graph.Nodes[0])
	assert.Equal(t, filegraph.Node{ID: "node_1", Label: "src", Group: filegraph.GroupFolder}, doc.Graph.Nodes[1])
	assert.Equal(t, filegraph.GroupCode, doc.Graph.Nodes[2].Group)
	assert.Equal(t, filegraph.GroupStyle, doc.Graph.Nodes[3].Group)
	assert.Equal(t, filegraph.GroupOther, doc.Graph.Nodes[4].Group)
	assert.Equal(t, 3, doc.TotalFiles)
	assert.False(t, doc.Truncated)
}

func TestHandleBuildGraphEmptyAndInvalid(t *testing.T) {
	mux := newGraphMux(&stubLister{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/graph", strings.NewReader(`{"entries":[]}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	var doc analysis.RepoGraph
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Len(t, doc.Graph.Nodes, 1)
	assert.Empty(t, doc.Graph.Links)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/graph", strings.NewReader(`{"entries":`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleRepoGraph(t *testing.T) {
	lister := &stubLister{entries: map[string][]filegraph.FileEntry{
		"acme/widget": {{Path: "go.mod", Type: "blob"}, {Path: "cmd/main.go", Type: "blob"}},
	}}
	mux := newGraphMux(lister)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/repos/graph?repo=https://github.com/acme/widget", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var doc analysis.RepoGraph
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "acme/widget", doc.Repo)
	assert.Len(t, doc.Graph.Nodes, 4)
	assert.Equal(t, 2, doc.Stats.Files)
	assert.Equal(t, 1, doc.Stats.Folders)
}

func TestHandleRepoGraphErrors(t *testing.T) {
	cases := []struct {
		name   string
		query  string
		lister *stubLister
		status int
	}{
		{name: "missing repo", query: "", lister: &stubLister{}, status: http.StatusBadRequest},
		{name: "invalid ref", query: "?repo=not-a-repo", lister: &stubLister{}, status: http.StatusBadRequest},
		{name: "not found", query: "?repo=acme/none", lister: &stubLister{}, status: http.StatusNotFound},
		{name: "no files", query: "?repo=acme/empty", lister: &stubLister{err: github.ErrNoFiles}, status: http.StatusNotFound},
		{name: "upstream", query: "?repo=acme/down", lister: &stubLister{err: github.ErrUpstream}, status: http.StatusBadGateway},
		{name: "unknown", query: "?repo=acme/boom", lister: &stubLister{err: fmt.Errorf("boom")}, status: http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			newGraphMux(tc.lister).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/repos/graph"+tc.query, nil))
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
		})
	}
}
