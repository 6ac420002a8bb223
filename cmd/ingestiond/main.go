// Command ingestiond runs the ingestion service: turn acceptance and the
// asynchronous extraction pipeline that turns turns into memories.
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
	"github.com/ashvinar/memory-layer/internal/extraction"
	"github.com/ashvinar/memory-layer/internal/httpx"
	"github.com/ashvinar/memory-layer/internal/ingestapi"
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
		fmt.Fprintln(os.Stderr, "ingestiond: config:", err)
		return 2
	}

	log := obslog.New("ingestiond", cfg.LogDir, cfg.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg.DBPath, log)
	if err != nil {
		log.WithError(err).Error("failed to open store")
		return 2
	}
	defer st.Close()

	emb := embedding.NewRemoteEmbedder(cfg)
	extractionSvc := extraction.NewService(cfg, st, emb, log)
	defer extractionSvc.Close()

	if n, err := extractionSvc.RecoverStale(ctx); err != nil {
		log.WithError(err).Warn("startup recovery sweep failed")
	} else if n > 0 {
		log.WithField("count", n).Info("recovery sweep re-enqueued stale turns")
	}

	if err := netutil.Preflight(ctx, cfg.IngestionPort, log); err != nil {
		log.WithError(err).Error("port preflight failed")
		return 1
	}

	e := httpx.NewEcho(log)
	ingestapi.RegisterRoutes(e, &ingestapi.Service{Store: st, Extraction: extractionSvc, Log: log})

	errCh := make(chan error, 1)
	go func() {
		errCh <- e.Start(fmt.Sprintf(":%d", cfg.IngestionPort))
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
