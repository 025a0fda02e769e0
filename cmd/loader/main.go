// Sparky data loader.
//
// Ingests the product catalog, compatibility rules, sales history and
// golden packages into the graph. Files load in dependency order:
// products first, then everything that references them.
//
//	loader -products products.json -compatibility rules.json \
//	       -sales sales.json -golden golden.json
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/beedev/sparky/internal/config"
	"github.com/beedev/sparky/internal/embeddings"
	"github.com/beedev/sparky/internal/graph"
	"github.com/beedev/sparky/internal/loader"
	"github.com/beedev/sparky/internal/vocabulary"
	"github.com/beedev/sparky/pkg/models"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	var (
		productsPath = flag.String("products", "", "products JSON file")
		rulesPath    = flag.String("compatibility", "", "compatibility rules JSON file")
		salesPath    = flag.String("sales", "", "sales history JSON file")
		goldenPath   = flag.String("golden", "", "golden packages JSON file")
		withEmbed    = flag.Bool("embed", false, "generate embeddings for products missing vectors")
		timeout      = flag.Duration("timeout", 30*time.Minute, "overall run timeout")
	)
	flag.Parse()

	if *productsPath == "" && *rulesPath == "" && *salesPath == "" && *goldenPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.Load()
	if cfg.Graph.URI == "" || cfg.Graph.Password == "" {
		log.Fatal().Msg("NEO4J_URI and NEO4J_PASSWORD are required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	store, err := graph.New(ctx, cfg.Graph)
	if err != nil {
		log.Fatal().Err(err).Msg("connect graph")
	}
	defer store.Close(context.Background())

	var embedService *embeddings.Service
	if *withEmbed {
		vocab, err := vocabulary.Load(cfg.WeldingProcessesPath)
		if err != nil {
			log.Fatal().Err(err).Msg("load welding vocabulary")
		}
		driver, err := embeddings.NewDriver(cfg.Embeddings.Kind, cfg.Embeddings.Endpoint,
			cfg.Embeddings.APIKey, cfg.Embeddings.Model, cfg.Embeddings.Dimensions)
		if err != nil {
			log.Fatal().Err(err).Msg("embedding driver")
		}
		embedService = embeddings.NewService(driver, vocab)
	}

	l := loader.New(store, embedService, log.Logger)

	type pass struct {
		name string
		path string
		run  func(context.Context, string) (*models.LoadReport, error)
	}
	passes := []pass{
		{"products", *productsPath, l.LoadProducts},
		{"compatibility", *rulesPath, l.LoadCompatibility},
		{"sales", *salesPath, l.LoadSales},
		{"golden", *goldenPath, l.LoadGoldenPackages},
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	failed := false
	for _, p := range passes {
		if p.path == "" {
			continue
		}
		report, err := p.run(ctx, p.path)
		if err != nil {
			log.Error().Err(err).Str("pass", p.name).Msg("load failed")
			failed = true
			continue
		}
		enc.Encode(map[string]any{"pass": p.name, "report": report})
	}
	if failed {
		os.Exit(1)
	}
}
