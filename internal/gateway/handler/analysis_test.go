package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repolens/internal/analysis"
	"repolens/internal/filegraph"
	artifactrepo "repolens/internal/gateway/repository/artifact"
	"repolens/internal/llm"
)

type stubModel struct{}

func (stubModel) Name() string { return "stub" }
func (stubModel) Close() error { return nil }
func (stubModel) GenerateText(context.Context, llm.TextRequest) (*llm.TextResult, error) {
	return &llm.TextResult{Text: "# Summary\nok"}, nil
}
func (stubModel) GenerateImage(context.Context, llm.ImageRequest) (*llm.Image, error) {
	return &llm.Image{MIMEType: "image/png", Data: []byte("png")}, nil
}

// urlStore serves every artifact through a fixed download URL.
type urlStore struct {
	artifactrepo.Store
}

func (urlStore) GetURL(_ context.Context, runID, name string) (string, error) {
	return "https://cdn.example.com/" + runID + "/" + name, nil
}

func newAnalysisMux(t *testing.T, store artifactrepo.Store) (*http.ServeMux, *analysis.Service) {
	t.Helper()
	lister := &stubLister{entries: map[string][]filegraph.FileEntry{
		"acme/widget": {{Path: "src/app.ts", Type: "blob"}},
	}}
	svc, err := analysis.NewService(analysis.Deps{Lister: lister, Model: stubModel{}, Store: store}, analysis.Config{})
	require.NoError(t, err)
	t.Cleanup(svc.Close)

	h := NewAnalysisHandler(svc, store)
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/analyses", h.HandleStart)
	mux.HandleFunc("GET /api/analyses/{id}", h.HandleGet)
	mux.HandleFunc("GET /api/analyses/{id}/artifacts/{path...}", h.HandleArtifact)
	return mux, svc
}

func startRun(t *testing.T, mux http.Handler, input string) analysis.Run {
	t.Helper()
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/analyses", strings.NewReader(`{"input":"`+input+`"}`)))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	var run analysis.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	assert.Equal(t, "/api/analyses/"+run.ID, rec.Header().Get("Location"))
	return run
}

func waitDone(t *testing.T, svc *analysis.Service, id string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	ch, err := svc.Subscribe(ctx, id)
	require.NoError(t, err)
	for range ch {
	}
	run, err := svc.Get(id)
	require.NoError(t, err)
	require.True(t, run.Status.Terminal(), "run %s still %s", id, run.Status)
}

func TestAnalysisStartGetAndArtifact(t *testing.T) {
	mux, svc := newAnalysisMux(t, artifactrepo.NewMemoryStore())
	run := startRun(t, mux, "acme/widget")
	assert.Equal(t, analysis.KindRepo, run.Kind)
	waitDone(t, svc, run.ID)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/analyses/"+run.ID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var got analysis.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, analysis.StatusCompleted, got.Status)
	assert.Contains(t, got.Artifacts, "summary.md")

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/analyses/"+run.ID+"/artifacts/summary.md", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/markdown"))
	assert.Equal(t, "# Summary\nok\n", rec.Body.String())

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/analyses/"+run.ID+"/artifacts/infographic.png", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
}

func TestAnalysisArtifactRedirect(t *testing.T) {
	store := urlStore{Store: artifactrepo.NewMemoryStore()}
	mux, svc := newAnalysisMux(t, store)
	run := startRun(t, mux, "acme/widget")
	waitDone(t, svc, run.ID)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/analyses/"+run.ID+"/artifacts/graph.json", nil))
	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	assert.Equal(t, "https://cdn.example.com/"+run.ID+"/graph.json", rec.Header().Get("Location"))

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/analyses/"+run.ID+"/artifacts/missing.txt", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, rec.Header().Get("Location"))
}

func TestAnalysisErrors(t *testing.T) {
	mux, svc := newAnalysisMux(t, artifactrepo.NewMemoryStore())

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/analyses", strings.NewReader(`{"input":"just words"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/analyses", strings.NewReader(`{"input":"  "}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/analyses/unknown", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/analyses/unknown/artifacts/graph.json", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	run := startRun(t, mux, "acme/widget")
	waitDone(t, svc, run.ID)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/analyses/"+run.ID+"/artifacts/missing.txt", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
