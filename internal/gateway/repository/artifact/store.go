package artifact

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Store persists the payloads produced by an analysis run (graph JSON,
// generated text, the infographic image) so clients can download them.
type Store interface {
	Put(ctx context.Context, runID, name string, blob Blob) error
	Get(ctx context.Context, runID, name string) (Blob, error)
	// GetURL returns a direct download URL, or "" when the backend serves
	// content only through Get.
	GetURL(ctx context.Context, runID, name string) (string, error)
	List(ctx context.Context, runID string) ([]string, error)
}

type Blob struct {
	Data        []byte
	ContentType string
}

var (
	ErrNotFound   = errors.New("artifact not found")
	ErrInvalidKey = errors.New("invalid artifact key")
)

const defaultContentType = "application/octet-stream"

func (b Blob) clone() Blob {
	return Blob{Data: append([]byte(nil), b.Data...), ContentType: b.ContentType}
}

func (b Blob) contentType() string {
	if ct := strings.TrimSpace(b.ContentType); ct != "" {
		return ct
	}
	return defaultContentType
}

// normalizeKey trims both parts and rejects empty or escaping names.
func normalizeKey(runID, name string) (string, string, error) {
	runID = strings.TrimSpace(runID)
	name = strings.TrimLeft(strings.TrimSpace(name), "/")
	if runID == "" {
		return "", "", fmt.Errorf("%w: run_id is required", ErrInvalidKey)
	}
	if strings.Contains(runID, "/") {
		return "", "", fmt.Errorf("%w: run_id must not contain '/'", ErrInvalidKey)
	}
	if name == "" {
		return "", "", fmt.Errorf("%w: name is required", ErrInvalidKey)
	}
	for _, seg := range strings.Split(name, "/") {
		if seg == ".." || seg == "." || seg == "" {
			return "", "", fmt.Errorf("%w: name %q", ErrInvalidKey, name)
		}
	}
	return runID, name, nil
}

func normalizeRunID(runID string) (string, error) {
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return "", fmt.Errorf("%w: run_id is required", ErrInvalidKey)
	}
	return runID, nil
}

func objectKey(runID, name string) string {
	return runID + "/" + name
}
