package llm

import (
	"context"
	"errors"
)

// ErrNoPayload is returned when the model answers without usable content.
var ErrNoPayload = errors.New("llm: model returned no payload")

// Client is the generative model surface the gateway depends on.
type Client interface {
	Name() string
	GenerateText(ctx context.Context, req TextRequest) (*TextResult, error)
	GenerateImage(ctx context.Context, req ImageRequest) (*Image, error)
	Close() error
}

type TextRequest struct {
	System string
	Prompt string
	// Grounded enables web search grounding; sources come back as citations.
	Grounded bool
}

type Citation struct {
	Title string `json:"title"`
	URI   string `json:"uri"`
}

type TextResult struct {
	Text      string     `json:"text"`
	Citations []Citation `json:"citations,omitempty"`
}

type ImageRequest struct {
	Prompt string
}

type Image struct {
	MIMEType string
	Data     []byte
}
