// Command aiye serves the question-answering API over the persisted index.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/aiyelab/aiye/internal/cache"
	"github.com/aiyelab/aiye/internal/config"
	"github.com/aiyelab/aiye/internal/embedder"
	"github.com/aiyelab/aiye/internal/expander"
	"github.com/aiyelab/aiye/internal/feedback"
	"github.com/aiyelab/aiye/internal/generator"
	"github.com/aiyelab/aiye/internal/httpapi"
	"github.com/aiyelab/aiye/internal/rag"
)

var version = "dev"

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	fs := pflag.NewFlagSet("aiye", pflag.ExitOnError)
	config.RegisterFlags(fs)
	showVersion := fs.Bool("version", false, "print version and exit")
	if err := fs.Parse(os.Args[1:]); err != nil {
		log.Fatal().Err(err).Msg("parse flags")
	}
	if *showVersion {
		fmt.Printf("aiye %s\n", version)
		return
	}

	cfg, err := config.Load(fs)
	if err != nil {
		log.Fatal().Err(err).Msg("load configuration")
	}

	emb, err := embedder.New(embedder.Config{
		Provider:  cfg.EmbedProvider,
		APIKey:    cfg.APIKey,
		Model:     cfg.EmbedModel,
		Dimension: cfg.EmbedDim,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("create embedder")
	}
	defer emb.Close()

	groq := generator.NewGroqClient(generator.Config{
		APIKey:  cfg.GroqAPIKey,
		BaseURL: cfg.GroqBaseURL,
		Model:   cfg.GroqModel,
	})

	engine := rag.New(rag.Config{
		IndexDir: cfg.IndexDir,
		TopK:     cfg.TopK,
		MinSim:   cfg.MinSim,
		Alpha:    cfg.Alpha,
	}, rag.Deps{
		Embedder:  emb,
		Generator: groq,
		Expander:  expander.New(groq, cfg.GroqAPIKey != ""),
		Cache:     cache.New(cfg.CacheSize),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := feedback.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("connect feedback store")
	}
	defer store.Close()

	api := httpapi.New(engine, store, cfg.TopK, cfg.MinSim)
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: api.Router(),
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		log.Info().Str("version", version).Int("port", cfg.Port).Int("chunks", engine.ChunkCount()).Msg("aiye serving")
		errChan <- srv.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("shutting down gracefully")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown")
		}
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}

	log.Info().Msg("server stopped")
}
