package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"repolens/internal/gateway/handler"
	"repolens/internal/gateway/handler/rpc"
	"repolens/internal/gateway/middleware"
)

func NewMux(
	graphHandler *handler.GraphHandler,
	analysisHandler *handler.AnalysisHandler,
	graphRPC *rpc.GraphHandler,
	eventsHandler *rpc.AnalysisEventsHandler,
) http.Handler {
	mux := http.NewServeMux()

	// RPC Handlers
	mux.Handle(rpc.NewGraphServiceHandler(graphRPC))

	// HTTP API
	mux.HandleFunc("POST /api/graph", graphHandler.HandleBuildGraph)
	mux.HandleFunc("GET /api/repos/graph", graphHandler.HandleRepoGraph)
	mux.HandleFunc("POST /api/analyses", analysisHandler.HandleStart)
	mux.HandleFunc("GET /api/analyses/{id}", analysisHandler.HandleGet)
	mux.HandleFunc("GET /api/analyses/{id}/artifacts/{path...}", analysisHandler.HandleArtifact)
	mux.HandleFunc("GET /ws/analyses", eventsHandler.HandleEventsWS)

	// Ops
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})

	// Middleware
	return middleware.CORS(mux)
}
