// Command indexingd runs the indexing service: hybrid search and the
// agentic memory base's read endpoints.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashvinar/memory-layer/internal/config"
	"github.com/ashvinar/memory-layer/internal/embedding"
	"github.com/ashvinar/memory-layer/internal/httpx"
	"github.com/ashvinar/memory-layer/internal/indexapi"
	"github.com/ashvinar/memory-layer/internal/netutil"
	"github.com/ashvinar/memory-layer/internal/obslog"
	"github.com/ashvinar/memory-layer/internal/store"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "indexingd: config:", err)
		return 2
	}

	log := obslog.New("indexingd", cfg.LogDir, cfg.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg.DBPath, log)
	if err != nil {
		log.WithError(err).Error("failed to open store")
		return 2
	}
	defer st.Close()

	emb := embedding.NewRemoteEmbedder(cfg)

	if err := netutil.Preflight(ctx, cfg.IndexingPort, log); err != nil {
		log.WithError(err).Error("port preflight failed")
		return 1
	}

	e := httpx.NewEcho(log)
	indexapi.RegisterRoutes(e, &indexapi.Service{Store: st, Embedder: emb, Log: log})

	errCh := make(chan error, 1)
	go func() {
		errCh <- e.Start(fmt.Sprintf(":%d", cfg.IndexingPort))
	}()

	select {
	case err := <-errCh:
		log.WithError(err).Error("server exited")
		return 1
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("graceful shutdown timed out")
		}
		return 0
	}
}
