package handler

import (
	"net/http"
	"strings"

	"repolens/internal/analysis"
	"repolens/internal/filegraph"
	"repolens/internal/github"
)

type GraphHandler struct {
	lister github.Lister
}

func NewGraphHandler(lister github.Lister) *GraphHandler {
	return &GraphHandler{lister: lister}
}

type buildGraphRequest struct {
	Entries []filegraph.FileEntry `json:"entries"`
}

// HandleBuildGraph turns a client-supplied listing into a graph.
func (h *GraphHandler) HandleBuildGraph(w http.ResponseWriter, r *http.Request) {
	var in buildGraphRequest
	if !decodeJSON(w, r, &in) {
		return
	}
	doc := analysis.GraphFromEntries("listing", in.Entries)
	writeJSON(w, http.StatusOK, doc)
}

// HandleRepoGraph lists a GitHub repository and returns its graph.
func (h *GraphHandler) HandleRepoGraph(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.URL.Query().Get("repo"))
	if raw == "" {
		http.Error(w, "repo is required", http.StatusBadRequest)
		return
	}
	ref, err := github.ParseRepoRef(raw)
	if err != nil {
		writeError(w, err)
		return
	}
	doc, _, err := analysis.BuildRepoGraph(r.Context(), h.lister, ref)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}
