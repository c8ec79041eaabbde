package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lectern/lectern"
	"github.com/lectern/lectern/ingest"
	"github.com/lectern/lectern/internal/config"
	"github.com/lectern/lectern/observer"
	"github.com/lectern/lectern/provider/openaicompat"
	"github.com/lectern/lectern/store/postgres"
	"github.com/lectern/lectern/store/sqlite"
	"github.com/lectern/lectern/tools/coursesearch"
)

func main() {
	ctx := context.Background()

	// 1. Load config
	cfg := config.Load(os.Getenv("LECTERN_CONFIG"))
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	// 2. Observability (optional)
	var inst *observer.Instruments
	if cfg.Observer.Enabled {
		pricing := make(map[string]observer.ModelPricing, len(cfg.Observer.Pricing))
		for model, p := range cfg.Observer.Pricing {
			pricing[model] = observer.ModelPricing{InputPerMillion: p.Input, OutputPerMillion: p.Output}
		}
		var shutdown func(context.Context) error
		var err error
		inst, shutdown, err = observer.Init(ctx, pricing)
		if err != nil {
			log.Fatalf("observer init: %v", err)
		}
		defer shutdown(ctx)
	}

	// 3. Open the index
	index, err := openIndex(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("open index: %v", err)
	}
	defer index.Close()
	if err := index.Init(ctx); err != nil {
		log.Fatalf("init index: %v", err)
	}

	// 4. Create providers
	var provider lectern.Provider = openaicompat.NewProvider(cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.BaseURL)
	var embedding lectern.EmbeddingProvider = openaicompat.NewEmbedding(
		cfg.Embedding.APIKey, cfg.Embedding.Model, cfg.Embedding.BaseURL, cfg.Embedding.Dimensions)
	if inst != nil {
		provider = observer.WrapProvider(provider, cfg.LLM.Model, inst)
		embedding = observer.WrapEmbedding(embedding, cfg.Embedding.Model, inst)
	}

	// 5. Ingest course documents
	chunker, err := ingest.NewSentenceChunker(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)
	if err != nil {
		log.Fatalf("chunker: %v", err)
	}
	ingestor := ingest.NewIngestor(index, embedding,
		ingest.WithChunker(chunker),
		ingest.WithLogger(logger),
	)
	report, err := ingestor.IngestDirectory(ctx, cfg.Ingest.DocsDir)
	if err != nil {
		log.Fatalf("ingest %s: %v", cfg.Ingest.DocsDir, err)
	}
	logger.Info("ingest complete",
		"courses", report.Courses(),
		"chunks", report.Chunks(),
		"failed", len(report.Failed()))

	// 6. Wire retrieval and the search tool
	searcher := lectern.NewCourseSearcher(index, embedding,
		lectern.WithResolveThreshold(float32(cfg.Search.ResolveThreshold)),
		lectern.WithMaxResults(cfg.Search.MaxResults),
	)
	var searchTool lectern.Tool = coursesearch.New(searcher, coursesearch.WithTopK(cfg.Search.MaxResults))
	if inst != nil {
		searchTool = observer.WrapTool(searchTool, inst)
	}

	// 7. Create the app
	app, err := lectern.NewApp(provider,
		lectern.WithTools(searchTool),
		lectern.WithIndex(index),
		lectern.WithMaxHistory(cfg.Session.MaxHistory),
		lectern.WithLogger(logger),
	)
	if err != nil {
		log.Fatalf("app: %v", err)
	}

	// 8. Query loop
	runREPL(ctx, app)
}

func openIndex(ctx context.Context, cfg config.Config, logger *slog.Logger) (lectern.Index, error) {
	switch cfg.Database.Driver {
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		return postgres.New(pool, postgres.WithEmbeddingDimension(cfg.Embedding.Dimensions)), nil
	default:
		return sqlite.New(cfg.Database.Path, sqlite.WithLogger(logger)), nil
	}
}

func runREPL(ctx context.Context, app *lectern.App) {
	fmt.Println("lectern ready. Ask about your course materials (:courses lists them, ctrl-d quits).")

	var sessionID string
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if question == ":courses" {
			printCourses(ctx, app)
			continue
		}

		answer, err := app.Query(ctx, sessionID, question)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		sessionID = answer.SessionID

		fmt.Println(answer.Content)
		if len(answer.Sources) > 0 {
			fmt.Println("\nSources:")
			for _, s := range answer.Sources {
				fmt.Printf("  %s\n", s)
			}
		}
		fmt.Println()
	}
}

func printCourses(ctx context.Context, app *lectern.App) {
	stats, err := app.ListCourses(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return
	}
	for _, s := range stats {
		fmt.Printf("%s (%d lessons)\n", s.Title, s.LessonCount)
	}
}
