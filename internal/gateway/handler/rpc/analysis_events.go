package rpc

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"repolens/internal/analysis"
)

// EventSource is the subscription side of analysis.Service.
type EventSource interface {
	Subscribe(ctx context.Context, id string) (<-chan analysis.Event, error)
}

// AnalysisEventsHandler streams run progress over a websocket.
type AnalysisEventsHandler struct {
	svc EventSource
}

func NewAnalysisEventsHandler(svc EventSource) *AnalysisEventsHandler {
	return &AnalysisEventsHandler{svc: svc}
}

const (
	eventsWSWriteWait = 10 * time.Second
	eventsWSPongWait  = 60 * time.Second
	eventsWSPingEvery = (eventsWSPongWait * 9) / 10
)

var eventsWSUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

type eventsWSInbound struct {
	Type string `json:"type"`
}

type eventsWSOutbound struct {
	Type    string          `json:"type"`
	RunID   string          `json:"runId,omitempty"`
	Event   *analysis.Event `json:"event,omitempty"`
	Code    string          `json:"code,omitempty"`
	Message string          `json:"message,omitempty"`
}

func (h *AnalysisEventsHandler) HandleEventsWS(w http.ResponseWriter, r *http.Request) {
	runID := strings.TrimSpace(r.URL.Query().Get("id"))
	if runID == "" {
		http.Error(w, "id is required", http.StatusBadRequest)
		return
	}

	conn, err := eventsWSUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if err := conn.SetReadDeadline(time.Now().Add(eventsWSPongWait)); err != nil {
		log.Printf("analysis ws set read deadline failed: %v", err)
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(eventsWSPongWait))
	})

	writeCh := make(chan eventsWSOutbound, 32)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		ticker := time.NewTicker(eventsWSPingEvery)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case out := <-writeCh:
				if err := conn.SetWriteDeadline(time.Now().Add(eventsWSWriteWait)); err != nil {
					return
				}
				if err := conn.WriteJSON(out); err != nil {
					return
				}
				if out.Type == "done" {
					_ = conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, "run finished"),
						time.Now().Add(eventsWSWriteWait))
					return
				}
			case <-ticker.C:
				if err := conn.SetWriteDeadline(time.Now().Add(eventsWSWriteWait)); err != nil {
					return
				}
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	subCh, subErr := h.svc.Subscribe(ctx, runID)
	if subErr != nil {
		sendEventsWS(ctx, writeCh, eventsWSOutbound{
			Type:    "error",
			Code:    "not_found",
			Message: subErr.Error(),
		})
		sendEventsWS(ctx, writeCh, eventsWSOutbound{Type: "done", RunID: runID})
		<-writerDone
		return
	}

	sendEventsWS(ctx, writeCh, eventsWSOutbound{
		Type:  "subscribed",
		RunID: runID,
	})

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-subCh:
				if !ok {
					sendEventsWS(ctx, writeCh, eventsWSOutbound{Type: "done", RunID: runID})
					return
				}
				sendEventsWS(ctx, writeCh, eventsWSOutbound{
					Type:  "event",
					RunID: runID,
					Event: &evt,
				})
			}
		}
	}()

	go func() {
		for {
			var in eventsWSInbound
			if err := conn.ReadJSON(&in); err != nil {
				cancel()
				return
			}
			switch strings.ToLower(strings.TrimSpace(in.Type)) {
			case "ping":
				sendEventsWS(ctx, writeCh, eventsWSOutbound{Type: "pong"})
			default:
				sendEventsWS(ctx, writeCh, eventsWSOutbound{
					Type:    "error",
					Code:    "invalid_argument",
					Message: "unsupported type: " + in.Type,
				})
			}
		}
	}()

	<-writerDone
}

// sendEventsWS blocks until the writer takes out or the socket closes.
func sendEventsWS(ctx context.Context, writeCh chan<- eventsWSOutbound, out eventsWSOutbound) {
	select {
	case writeCh <- out:
	case <-ctx.Done():
	}
}
