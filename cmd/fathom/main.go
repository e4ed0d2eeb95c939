// Command fathom is a CLI for the cross-modal retrieval engine:
// ingest documents (CSV, Markdown, PDF, HTML, plain text, transcripts,
// images) into a local store, then ask questions over everything at once.
//
// Usage:
//
//	fathom ingest <file> [-id document-id]
//	fathom query "<question>"
//	fathom delete <document-id>
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	fathom "github.com/fathomlabs/fathom"
	"github.com/fathomlabs/fathom/internal/config"
	"github.com/fathomlabs/fathom/observer"
	"github.com/fathomlabs/fathom/provider/resolve"
	"github.com/fathomlabs/fathom/store/memory"
	"github.com/fathomlabs/fathom/store/postgres"
	"github.com/fathomlabs/fathom/store/sqlite"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load(os.Getenv("FATHOM_CONFIG"))
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if err := run(ctx, cfg, logger, os.Args[1], os.Args[2:]); err != nil {
		logger.Error("fathom failed", "error", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage:
  fathom ingest <file> [-id document-id]
  fathom query "<question>"
  fathom delete <document-id>`)
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger, cmd string, args []string) error {
	var shutdown func(context.Context) error
	var inst *observer.Instruments

	if cfg.Observer.Enabled {
		pricing := make(map[string]observer.ModelPricing, len(cfg.Observer.Pricing))
		for model, p := range cfg.Observer.Pricing {
			pricing[model] = observer.ModelPricing{InputPerMillion: p.Input, OutputPerMillion: p.Output}
		}
		var err error
		inst, shutdown, err = observer.Init(ctx, pricing)
		if err != nil {
			return fmt.Errorf("observer init: %w", err)
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(sctx)
		}()
	}

	deps, cleanup, err := buildDeps(ctx, cfg, logger, inst)
	if err != nil {
		return err
	}
	defer cleanup()

	switch cmd {
	case "ingest":
		return runIngest(ctx, deps, args)
	case "query":
		return runQuery(ctx, deps, args)
	case "delete":
		return runDelete(ctx, deps, args)
	default:
		usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// deps holds the wired engine and its collaborators for command handlers.
type deps struct {
	engine *fathom.Engine
	chat   fathom.Provider
	enrich fathom.Provider
	cfg    config.Config
	logger *slog.Logger
}

func buildDeps(ctx context.Context, cfg config.Config, logger *slog.Logger, inst *observer.Instruments) (*deps, func(), error) {
	cleanup := func() {}

	chat, err := resolve.Provider(resolve.Config{
		Provider: cfg.LLM.Provider,
		APIKey:   cfg.LLM.APIKey,
		Model:    cfg.LLM.Model,
		BaseURL:  cfg.LLM.BaseURL,
	})
	if err != nil {
		return nil, cleanup, err
	}
	embedding, err := resolve.EmbeddingProvider(resolve.EmbeddingConfig{
		Provider:   cfg.Embedding.Provider,
		APIKey:     cfg.Embedding.APIKey,
		Model:      cfg.Embedding.Model,
		BaseURL:    cfg.Embedding.BaseURL,
		Dimensions: cfg.Embedding.Dimensions,
	})
	if err != nil {
		return nil, cleanup, err
	}

	if inst != nil {
		chat = observer.WrapProvider(chat, cfg.LLM.Model, inst)
		embedding = observer.WrapEmbedding(embedding, cfg.Embedding.Model, inst)
	}

	chat = fathom.WithChatRetry(chat, fathom.RetryLogger(logger))
	embedding = fathom.WithEmbedRetry(embedding, fathom.RetryLogger(logger))

	// Captioning and transcript enrichment run on the [enrich] provider,
	// which config.Load falls back to [llm] when unset.
	enrich := chat
	if cfg.Enrich.Provider != "" {
		p, err := resolve.Provider(resolve.Config{
			Provider: cfg.Enrich.Provider,
			APIKey:   cfg.Enrich.APIKey,
			Model:    cfg.Enrich.Model,
			BaseURL:  cfg.Enrich.BaseURL,
		})
		if err != nil {
			return nil, cleanup, fmt.Errorf("enrich provider: %w", err)
		}
		if inst != nil {
			p = observer.WrapProvider(p, cfg.Enrich.Model, inst)
		}
		enrich = fathom.WithChatRetry(p, fathom.RetryLogger(logger))
	}

	if cfg.Embedding.RPM > 0 {
		embedding = fathom.WithEmbedRateLimit(embedding, fathom.RPM(cfg.Embedding.RPM))
	}

	var store fathom.VectorStore
	switch cfg.Database.Driver {
	case "", "sqlite":
		store = sqlite.New(cfg.Database.Path, sqlite.WithLogger(logger))
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.Database.PostgresURL)
		if err != nil {
			return nil, cleanup, fmt.Errorf("connect postgres: %w", err)
		}
		cleanup = pool.Close
		store = postgres.New(pool, postgres.WithEmbeddingDimension(cfg.Embedding.Dimensions))
	case "memory":
		store = memory.New(memory.WithLogger(logger))
	default:
		return nil, cleanup, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
	if inst != nil {
		store = observer.WrapStore(store, inst)
	}

	engine, err := fathom.NewEngine(
		fathom.WithStore(store),
		fathom.WithEmbedding(embedding),
		fathom.WithGenerator(fathom.NewLLMGenerator(chat)),
		fathom.WithLogger(logger),
		fathom.WithEmbedConcurrency(cfg.Ingest.EmbedConcurrency),
		fathom.WithRetrieverOptions(
			fathom.WithKPerModality(cfg.Retrieval.KPerModality),
			fathom.WithTotalLimit(cfg.Retrieval.TotalLimit),
		),
	)
	if err != nil {
		return nil, cleanup, err
	}
	if err := engine.Init(ctx); err != nil {
		return nil, cleanup, fmt.Errorf("store init: %w", err)
	}

	return &deps{engine: engine, chat: chat, enrich: enrich, cfg: cfg, logger: logger}, cleanup, nil
}

func runQuery(ctx context.Context, d *deps, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("query requires a question")
	}
	question := args[0]

	answer, evidence, err := d.engine.Answer(ctx, question)
	if err != nil {
		return err
	}

	fmt.Println(answer.Text)
	if len(answer.Citations) > 0 {
		fmt.Println("\nSources:")
		for _, c := range answer.Citations {
			if c.Modality == fathom.ModalityAudio {
				fmt.Printf("  [%s] %s (%s - %s)\n", c.Modality, c.ChunkID,
					fathom.FormatTimestamp(c.StartS), fathom.FormatTimestamp(c.EndS))
				continue
			}
			fmt.Printf("  [%s] %s\n", c.Modality, c.ChunkID)
		}
	}
	d.logger.Debug("query answered", "evidence", len(evidence))
	return nil
}

func runDelete(ctx context.Context, d *deps, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("delete requires a document id")
	}
	if err := d.engine.DeleteDocument(ctx, args[0]); err != nil {
		return err
	}
	fmt.Printf("deleted %s\n", args[0])
	return nil
}

// parseIngestFlags handles the trailing flags of the ingest command.
func parseIngestFlags(args []string) (path, id string, err error) {
	if len(args) < 1 {
		return "", "", fmt.Errorf("ingest requires a file path")
	}
	path = args[0]

	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	fs.StringVar(&id, "id", "", "document id (defaults to a new UUID)")
	if err := fs.Parse(args[1:]); err != nil {
		return "", "", err
	}
	if id == "" {
		id = fathom.NewID()
	}
	return path, id, nil
}
