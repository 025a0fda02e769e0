// Package loader ingests the product catalog, compatibility rules, sales
// history and golden packages into the graph. Validation is collecting:
// bad records are reported and skipped, a run never aborts half-way
// because of one malformed row.
package loader

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/beedev/sparky/internal/embeddings"
	"github.com/beedev/sparky/internal/graph"
	"github.com/beedev/sparky/pkg/models"
)

// GraphWriter is the slice of the graph store the loader writes through.
type GraphWriter interface {
	ExecuteQuery(ctx context.Context, stmt string, params map[string]any) ([]map[string]any, error)
	ExecuteWrite(ctx context.Context, stmt string, params map[string]any) error
	ExecuteBatchWrite(ctx context.Context, batch []graph.BatchStatement) error
}

// Loader runs the ingestion passes. embed may be nil; products then load
// without vectors and the backfill pass is skipped.
type Loader struct {
	graph GraphWriter
	embed *embeddings.Service
	log   zerolog.Logger
}

// New creates a loader.
func New(g GraphWriter, embed *embeddings.Service, log zerolog.Logger) *Loader {
	return &Loader{graph: g, embed: embed, log: log.With().Str("component", "loader").Logger()}
}

// batchSize bounds statements per write transaction.
const batchSize = 200

func newReport(source string) *models.LoadReport {
	return &models.LoadReport{Source: source, StartedAt: time.Now().UTC()}
}

func finish(report *models.LoadReport) *models.LoadReport {
	report.FinishedAt = time.Now().UTC()
	return report
}

// readJSONFile decodes a JSON file holding either a bare array of records
// or an object wrapping the array under one of the given keys. Export
// tooling produces both shapes.
func readJSONFile[T any](path string, envelopeKeys ...string) ([]T, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var records []T
	if err := json.Unmarshal(raw, &records); err == nil {
		return records, nil
	}
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for _, key := range envelopeKeys {
		inner, ok := envelope[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(inner, &records); err != nil {
			return nil, fmt.Errorf("parse %s key %q: %w", path, key, err)
		}
		return records, nil
	}
	return nil, fmt.Errorf("parse %s: no record array found (keys tried: %s)", path, strings.Join(envelopeKeys, ", "))
}

// existingGINs returns which of the given GINs exist in the graph.
func (l *Loader) existingGINs(ctx context.Context, gins []string) (map[string]bool, error) {
	out := make(map[string]bool, len(gins))
	if len(gins) == 0 {
		return out, nil
	}
	rows, err := l.graph.ExecuteQuery(ctx,
		`MATCH (p:Product) WHERE p.gin IN $gins RETURN p.gin AS gin`,
		map[string]any{"gins": gins})
	if err != nil {
		return nil, fmt.Errorf("check gins: %w", err)
	}
	for _, row := range rows {
		if gin, ok := row["gin"].(string); ok {
			out[gin] = true
		}
	}
	return out, nil
}

// idHash derives a stable short identifier from its parts.
func idHash(parts ...string) string {
	sum := sha1.Sum([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:8])
}

func (l *Loader) flush(ctx context.Context, batch []graph.BatchStatement, report *models.LoadReport) []graph.BatchStatement {
	if len(batch) == 0 {
		return batch
	}
	if err := l.graph.ExecuteBatchWrite(ctx, batch); err != nil {
		report.Errors = append(report.Errors, err.Error())
	}
	return batch[:0]
}
