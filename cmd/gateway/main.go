// Command gateway serves the repolens HTTP, Connect and websocket API.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"repolens/internal/gateway/app"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New()
	if err != nil {
		log.Fatalf("gateway: init: %v", err)
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- a.Start() }()

	select {
	case err := <-serveErr:
		// The listener never came up or died; release stores before exiting.
		shutdown(a)
		if err != nil {
			log.Fatalf("gateway: serve: %v", err)
		}
		return
	case <-ctx.Done():
	}
	stop()
	shutdown(a)
	log.Printf("gateway: stopped")
}

func shutdown(a *app.App) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.Shutdown(ctx); err != nil {
		log.Printf("gateway: shutdown: %v", err)
	}
}
