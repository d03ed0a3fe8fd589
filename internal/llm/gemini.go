package llm

import (
	"context"
	"fmt"
	"strings"

	genai "google.golang.org/genai"
)

const (
	DefaultTextModel  = "gemini-2.5-flash"
	DefaultImageModel = "gemini-2.5-flash-image"
)

// GeminiClient is a thin wrapper around the official genai client.
// Cross-cutting concerns (rate limiting, retries, logging) are applied via
// Middleware.
type GeminiClient struct {
	cli        *genai.Client
	textModel  string
	imageModel string
}

func NewGeminiClient(ctx context.Context, apiKey, textModel, imageModel string) (*GeminiClient, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  strings.TrimSpace(apiKey),
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("init genai client: %w", err)
	}
	if strings.TrimSpace(textModel) == "" {
		textModel = DefaultTextModel
	}
	if strings.TrimSpace(imageModel) == "" {
		imageModel = DefaultImageModel
	}
	return &GeminiClient{cli: cli, textModel: textModel, imageModel: imageModel}, nil
}

func (g *GeminiClient) Name() string { return "Gemini:" + g.textModel + "+" + g.imageModel }
func (g *GeminiClient) Close() error { return nil }

func (g *GeminiClient) GenerateText(ctx context.Context, req TextRequest) (*TextResult, error) {
	cfg := &genai.GenerateContentConfig{}
	if s := strings.TrimSpace(req.System); s != "" {
		cfg.SystemInstruction = genai.NewContentFromText(s, genai.RoleUser)
	}
	if req.Grounded {
		cfg.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}

	resp, err := g.cli.Models.GenerateContent(ctx, g.textModel,
		[]*genai.Content{genai.NewContentFromText(req.Prompt, genai.RoleUser)},
		cfg,
	)
	if err != nil {
		return nil, err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, ErrNoPayload
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return nil, ErrNoPayload
	}
	return &TextResult{Text: text, Citations: citationsOf(resp.Candidates[0])}, nil
}

func (g *GeminiClient) GenerateImage(ctx context.Context, req ImageRequest) (*Image, error) {
	resp, err := g.cli.Models.GenerateContent(ctx, g.imageModel,
		[]*genai.Content{genai.NewContentFromText(req.Prompt, genai.RoleUser)},
		&genai.GenerateContentConfig{ResponseModalities: []string{"IMAGE", "TEXT"}},
	)
	if err != nil {
		return nil, err
	}
	if len(resp.Candidates) == 0 {
		return nil, ErrNoPayload
	}
	return imageOf(resp.Candidates[0])
}

// imageOf returns the first inline blob of c.
func imageOf(c *genai.Candidate) (*Image, error) {
	if c == nil || c.Content == nil {
		return nil, ErrNoPayload
	}
	for _, part := range c.Content.Parts {
		if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
			continue
		}
		mime := part.InlineData.MIMEType
		if mime == "" {
			mime = "image/png"
		}
		return &Image{MIMEType: mime, Data: part.InlineData.Data}, nil
	}
	return nil, ErrNoPayload
}

func citationsOf(c *genai.Candidate) []Citation {
	if c == nil || c.GroundingMetadata == nil {
		return nil
	}
	seen := make(map[string]bool)
	var out []Citation
	for _, chunk := range c.GroundingMetadata.GroundingChunks {
		if chunk == nil || chunk.Web == nil {
			continue
		}
		uri := strings.TrimSpace(chunk.Web.URI)
		if uri == "" || seen[uri] {
			continue
		}
		seen[uri] = true
		out = append(out, Citation{Title: strings.TrimSpace(chunk.Web.Title), URI: uri})
	}
	return out
}
