package handler

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"repolens/internal/analysis"
	artifactrepo "repolens/internal/gateway/repository/artifact"
)

// AnalysisService is the part of analysis.Service the HTTP layer uses.
type AnalysisService interface {
	Start(ctx context.Context, input string) (*analysis.Run, error)
	Get(id string) (*analysis.Run, error)
}

type AnalysisHandler struct {
	svc   AnalysisService
	store artifactrepo.Store
}

func NewAnalysisHandler(svc AnalysisService, store artifactrepo.Store) *AnalysisHandler {
	return &AnalysisHandler{svc: svc, store: store}
}

type startAnalysisRequest struct {
	Input string `json:"input"`
}

func (h *AnalysisHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	var in startAnalysisRequest
	if !decodeJSON(w, r, &in) {
		return
	}
	if strings.TrimSpace(in.Input) == "" {
		http.Error(w, "input is required", http.StatusBadRequest)
		return
	}
	run, err := h.svc.Start(r.Context(), in.Input)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Location", "/api/analyses/"+run.ID)
	writeJSON(w, http.StatusAccepted, run)
}

func (h *AnalysisHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	run, err := h.svc.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// HandleArtifact serves one stored payload of a run, redirecting to a
// presigned URL when the store offers one.
func (h *AnalysisHandler) HandleArtifact(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	name := strings.TrimSpace(r.PathValue("path"))
	run, err := h.svc.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}
	if !slices.Contains(run.Artifacts, name) {
		writeError(w, fmt.Errorf("%w: %s/%s", artifactrepo.ErrNotFound, id, name))
		return
	}

	url, err := h.store.GetURL(r.Context(), id, name)
	if err != nil {
		writeError(w, err)
		return
	}
	if url != "" {
		http.Redirect(w, r, url, http.StatusTemporaryRedirect)
		return
	}

	blob, err := h.store.Get(r.Context(), id, name)
	if err != nil {
		writeError(w, err)
		return
	}
	ct := blob.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(blob.Data)
}
