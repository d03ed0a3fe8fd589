package rpc

import (
	"context"
	"errors"
	"net/http"

	"connectrpc.com/connect"

	"repolens/internal/analysis"
	"repolens/internal/filegraph"
	"repolens/internal/github"
)

const (
	GraphServiceName           = "repolens.v1.GraphService"
	GraphServiceBuildGraphPath = "/" + GraphServiceName + "/BuildGraph"
	GraphServiceRepoGraphPath  = "/" + GraphServiceName + "/RepoGraph"
)

type BuildGraphRequest struct {
	Entries []filegraph.FileEntry `json:"entries"`
}

type RepoGraphRequest struct {
	Repo string `json:"repo"`
}

// GraphResponse mirrors the HTTP graph document.
type GraphResponse = analysis.RepoGraph

// GraphHandler serves the graph RPCs.
type GraphHandler struct {
	lister github.Lister
}

func NewGraphHandler(lister github.Lister) *GraphHandler {
	return &GraphHandler{lister: lister}
}

func (h *GraphHandler) BuildGraph(_ context.Context, req *connect.Request[BuildGraphRequest]) (*connect.Response[GraphResponse], error) {
	doc := analysis.GraphFromEntries("rpc", req.Msg.Entries)
	return connect.NewResponse(doc), nil
}

func (h *GraphHandler) RepoGraph(ctx context.Context, req *connect.Request[RepoGraphRequest]) (*connect.Response[GraphResponse], error) {
	ref, err := github.ParseRepoRef(req.Msg.Repo)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	doc, _, err := analysis.BuildRepoGraph(ctx, h.lister, ref)
	if err != nil {
		return nil, connect.NewError(codeFor(err), err)
	}
	return connect.NewResponse(doc), nil
}

func codeFor(err error) connect.Code {
	switch {
	case errors.Is(err, github.ErrInvalidRepoRef):
		return connect.CodeInvalidArgument
	case errors.Is(err, github.ErrNotFound), errors.Is(err, github.ErrNoFiles):
		return connect.CodeNotFound
	case errors.Is(err, github.ErrUpstream):
		return connect.CodeUnavailable
	case errors.Is(err, context.Canceled):
		return connect.CodeCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return connect.CodeDeadlineExceeded
	default:
		return connect.CodeInternal
	}
}

// NewGraphServiceHandler returns the mount prefix and handler for the
// graph service, in the shape of generated connect constructors.
func NewGraphServiceHandler(h *GraphHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{CodecOption()}, opts...)
	build := connect.NewUnaryHandler(GraphServiceBuildGraphPath, h.BuildGraph, opts...)
	repo := connect.NewUnaryHandler(GraphServiceRepoGraphPath, h.RepoGraph, opts...)
	return "/" + GraphServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case GraphServiceBuildGraphPath:
			build.ServeHTTP(w, r)
		case GraphServiceRepoGraphPath:
			repo.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// GraphServiceClient calls the graph service.
type GraphServiceClient struct {
	build *connect.Client[BuildGraphRequest, GraphResponse]
	repo  *connect.Client[RepoGraphRequest, GraphResponse]
}

func NewGraphServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *GraphServiceClient {
	opts = append([]connect.ClientOption{CodecOption()}, opts...)
	return &GraphServiceClient{
		build: connect.NewClient[BuildGraphRequest, GraphResponse](httpClient, baseURL+GraphServiceBuildGraphPath, opts...),
		repo:  connect.NewClient[RepoGraphRequest, GraphResponse](httpClient, baseURL+GraphServiceRepoGraphPath, opts...),
	}
}

func (c *GraphServiceClient) BuildGraph(ctx context.Context, req *connect.Request[BuildGraphRequest]) (*connect.Response[GraphResponse], error) {
	return c.build.CallUnary(ctx, req)
}

func (c *GraphServiceClient) RepoGraph(ctx context.Context, req *connect.Request[RepoGraphRequest]) (*connect.Response[GraphResponse], error) {
	return c.repo.CallUnary(ctx, req)
}
