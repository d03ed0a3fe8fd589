package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"repolens/internal/analysis"
	"repolens/internal/article"
	artifactrepo "repolens/internal/gateway/repository/artifact"
	"repolens/internal/github"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 8 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("handler: encode response failed: %v", err)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return false
	}
	return true
}

// StatusFor maps domain errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, github.ErrInvalidRepoRef),
		errors.Is(err, analysis.ErrUnsupportedInput),
		errors.Is(err, article.ErrInvalidURL),
		errors.Is(err, article.ErrBlockedAddress),
		errors.Is(err, artifactrepo.ErrInvalidKey):
		return http.StatusBadRequest
	case errors.Is(err, github.ErrNotFound),
		errors.Is(err, github.ErrNoFiles),
		errors.Is(err, analysis.ErrRunNotFound),
		errors.Is(err, artifactrepo.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, github.ErrUpstream),
		errors.Is(err, article.ErrFetch),
		errors.Is(err, article.ErrEmptyArticle):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		log.Printf("handler: request failed: %v", err)
	}
	http.Error(w, err.Error(), status)
}
