package app

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"repolens/internal/analysis"
	"repolens/internal/article"
	"repolens/internal/gateway/config"
	"repolens/internal/gateway/handler"
	"repolens/internal/gateway/handler/rpc"
	"repolens/internal/gateway/server"
	"repolens/internal/github"
	"repolens/internal/llm"
)

type App struct {
	server   *server.Server
	analysis *analysis.Service
	model    llm.Client
	stores   *gatewayStores
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return NewWithConfig(context.Background(), cfg)
}

func NewWithConfig(ctx context.Context, cfg *config.Config) (*App, error) {
	// Dependencies
	stores, err := initStores(ctx, cfg)
	if err != nil {
		return nil, err
	}
	lister, err := NewLister(cfg)
	if err != nil {
		_ = stores.Close()
		return nil, err
	}
	model, err := newModel(ctx, cfg)
	if err != nil {
		_ = stores.Close()
		return nil, err
	}
	fetcher := article.NewFetcher(article.FetcherConfig{MaxBytes: cfg.Article.MaxBytes})

	analysisSvc, err := analysis.NewService(analysis.Deps{
		Lister:   lister,
		Articles: fetcher,
		Model:    model,
		Store:    stores.artifact,
	}, analysis.Config{
		MaxRuns:    cfg.Analysis.MaxRuns,
		RunTimeout: cfg.Analysis.RunTimeout,
	})
	if err != nil {
		_ = stores.Close()
		return nil, err
	}

	graphHandler := handler.NewGraphHandler(lister)
	analysisHandler := handler.NewAnalysisHandler(analysisSvc, stores.artifact)
	graphRPC := rpc.NewGraphHandler(lister)
	eventsHandler := rpc.NewAnalysisEventsHandler(analysisSvc)

	// Routing & Server
	mux := server.NewMux(graphHandler, analysisHandler, graphRPC, eventsHandler)
	srv := server.New(cfg.Port, mux)

	return &App{
		server:   srv,
		analysis: analysisSvc,
		model:    model,
		stores:   stores,
	}, nil
}

// NewLister builds the cached GitHub lister from cfg.
func NewLister(cfg *config.Config) (github.Lister, error) {
	client, err := github.NewClient(github.ClientConfig{
		BaseURL: cfg.GitHub.APIBase,
		Token:   cfg.GitHub.Token,
		Exclude: cfg.GitHub.Exclude,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize github client: %w", err)
	}
	return github.NewCachedLister(client, github.CacheConfig{
		MaxEntries: cfg.GitHub.CacheSize,
		TTL:        cfg.GitHub.CacheTTL,
	}), nil
}

// newModel returns nil when no API key is configured; analyses then still
// produce the graph and record the generative sections as failed.
func newModel(ctx context.Context, cfg *config.Config) (llm.Client, error) {
	if strings.TrimSpace(cfg.LLM.APIKey) == "" {
		log.Printf("llm: GEMINI_API_KEY not set, generative sections disabled")
		return nil, nil
	}
	gem, err := llm.NewGeminiClient(ctx, cfg.LLM.APIKey, cfg.LLM.TextModel, cfg.LLM.ImageModel)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize gemini client: %w", err)
	}
	log.Printf("llm: %s rps=%.2f burst=%d retries=%d", gem.Name(), cfg.LLM.RPS, cfg.LLM.Burst, cfg.LLM.Retries)
	return llm.Wrap(gem,
		llm.Instrument(),
		llm.Retry(cfg.LLM.Retries, 500*time.Millisecond),
		llm.RateLimit(cfg.LLM.RPS, cfg.LLM.Burst),
	), nil
}

func (a *App) Start() error {
	return a.server.Start()
}

func (a *App) Shutdown(ctx context.Context) error {
	err := a.server.Shutdown(ctx)
	a.analysis.Close()
	if a.model != nil {
		_ = a.model.Close()
	}
	if cerr := a.stores.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
