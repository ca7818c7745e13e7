package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sybotstackdev/fyaar-be-sub000/internal/ai"
	"github.com/sybotstackdev/fyaar-be-sub000/internal/config"
	"github.com/sybotstackdev/fyaar-be-sub000/internal/pipeline"
	"github.com/sybotstackdev/fyaar-be-sub000/internal/queue"
	"github.com/sybotstackdev/fyaar-be-sub000/internal/storage"
	"github.com/sybotstackdev/fyaar-be-sub000/internal/store"
	"github.com/sybotstackdev/fyaar-be-sub000/internal/telemetry"
	"github.com/sybotstackdev/fyaar-be-sub000/internal/worker"
)

func main() {
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		<-ch
		cancel()
	}()

	st, err := store.New(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer st.Close()

	if err := st.RunMigrations(ctx); err != nil {
		log.Fatalf("migrations: %v", err)
	}

	q := queue.NewRedisQueue(cfg)

	text := ai.NewTextClient(ai.TextConfig{
		APIKey:  cfg.OpenAIAPIKey,
		Model:   cfg.TextModel,
		Timeout: cfg.RequestTimeout,
		BaseURL: cfg.OpenAIBaseURL,
	})

	var image pipeline.ImageGenerator
	var covers pipeline.ObjectStorage
	if cfg.CoverS3Bucket != "" {
		image = ai.NewImageClient(ai.ImageConfig{
			APIKey:  cfg.OpenAIAPIKey,
			Model:   cfg.ImageModel,
			Timeout: cfg.RequestTimeout,
			BaseURL: cfg.OpenAIBaseURL,
		})
		s3store, err := storage.NewS3Storage(ctx, cfg)
		if err != nil {
			log.Fatalf("init cover storage: %v", err)
		}
		covers = s3store
	} else {
		log.Printf("cover storage not configured, cover stage will fail cleanly")
	}

	pipe := pipeline.New(cfg, st, st, text, image, covers, q)
	processor := worker.NewProcessor(cfg, q, pipe)

	go func() {
		if err := http.ListenAndServe(cfg.MetricsAddr, telemetry.Handler()); err != nil {
			log.Printf("metrics server stopped: %v", err)
		}
	}()

	log.Printf("worker started concurrency=%d visibility=%s", cfg.WorkerConcurrency, cfg.VisibilityTimeout)
	if err := processor.Run(ctx); err != nil && err != context.Canceled {
		log.Printf("worker stopped: %v", err)
	}
}
