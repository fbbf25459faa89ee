// Command ingest indexes a directory of page-text files into the vector
// index the server queries. Each .txt file is one document; pages are
// separated by form feeds.
package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/aiyelab/aiye/internal/config"
	"github.com/aiyelab/aiye/internal/embedder"
	"github.com/aiyelab/aiye/internal/rag"
)

// pageSep separates pages inside a document file, the form feed PDF text
// extractors emit.
const pageSep = "\f"

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	flags := pflag.NewFlagSet("ingest", pflag.ExitOnError)
	config.RegisterFlags(flags)
	if err := flags.Parse(os.Args[1:]); err != nil {
		log.Fatal().Err(err).Msg("parse flags")
	}

	cfg, err := config.Load(flags)
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

	engine := rag.New(rag.Config{
		IndexDir: cfg.IndexDir,
		TopK:     cfg.TopK,
		MinSim:   cfg.MinSim,
		Alpha:    cfg.Alpha,
	}, rag.Deps{Embedder: emb})

	ctx := context.Background()
	total := 0
	err = filepath.WalkDir(cfg.DataDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".txt") {
			return nil
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		pages := strings.Split(string(raw), pageSep)

		doc, chunks, err := engine.AddDocument(ctx, title, path, pages)
		if err != nil {
			return fmt.Errorf("index %s: %w", path, err)
		}
		if doc == nil {
			log.Warn().Str("file", path).Msg("no indexable content, skipped")
			return nil
		}

		log.Info().Str("title", title).Int("pages", len(pages)).Int("chunks", chunks).Msg("document indexed")
		total++
		return nil
	})
	if err != nil {
		log.Fatal().Err(err).Msg("ingestion failed")
	}

	log.Info().Int("documents", total).Int("chunks", engine.ChunkCount()).Str("index", cfg.IndexDir).Msg("ingestion complete")
}
