package loader

import (
	"context"
	"fmt"
	"strings"

	"github.com/beedev/sparky/internal/graph"
	"github.com/beedev/sparky/pkg/models"
)

// LoadProducts ingests the product catalog. Products MERGE by gin, so
// re-runs update rather than duplicate; a gin repeated within the same
// file is rejected after its first occurrence. Embeddings are generated
// lazily afterwards for products still missing a vector.
func (l *Loader) LoadProducts(ctx context.Context, path string) (*models.LoadReport, error) {
	report := newReport(path)

	records, err := readJSONFile[models.ProductRecord](path, "products")
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(records))
	var batch []graph.BatchStatement

	for i, rec := range records {
		product, err := validateProduct(rec)
		if err != nil {
			report.Skipped++
			report.Errors = append(report.Errors, fmt.Sprintf("record %d: %v", i, err))
			continue
		}
		if seen[product.GIN] {
			report.Skipped++
			report.Errors = append(report.Errors, fmt.Sprintf("record %d: duplicate gin %s", i, product.GIN))
			continue
		}
		seen[product.GIN] = true

		batch = append(batch, graph.BatchStatement{
			Stmt: `
				MERGE (p:Product {gin: $gin})
				ON CREATE SET p += $props, p.sales_frequency = 0, p.created_at = datetime()
				ON MATCH SET p += $props, p.updated_at = datetime()`,
			Params: map[string]any{"gin": product.GIN, "props": graph.ProductProps(&product)},
		})
		report.Created++

		if len(batch) >= batchSize {
			batch = l.flush(ctx, batch, report)
		}
	}
	l.flush(ctx, batch, report)

	if l.embed != nil {
		l.backfillEmbeddings(ctx, report)
	}

	l.log.Info().
		Int("created", report.Created).
		Int("skipped", report.Skipped).
		Int("errors", len(report.Errors)).
		Str("path", path).
		Msg("products loaded")
	return finish(report), nil
}

// validateProduct maps a raw record onto the Product shape.
func validateProduct(rec models.ProductRecord) (models.Product, error) {
	gin := strings.TrimSpace(rec.GINNumber)
	if gin == "" {
		return models.Product{}, fmt.Errorf("missing gin_number")
	}
	name := strings.TrimSpace(rec.ProductName)
	if name == "" {
		return models.Product{}, fmt.Errorf("gin %s: missing product_name", gin)
	}
	category := models.ParseCategory(rec.ComponentCategory)
	if category == models.CategoryUnknown {
		return models.Product{}, fmt.Errorf("gin %s: unknown category %q", gin, rec.ComponentCategory)
	}

	p := models.Product{
		GIN:                gin,
		Name:               name,
		Category:           category,
		Subcategory:        rec.Subcategory,
		Description:        rec.Description,
		Price:              rec.Price,
		ImageURL:           rec.ImageURL,
		DatasheetURL:       rec.DatasheetURL,
		CountriesAvailable: rec.Countries,
		IsAvailable:        rec.IsAvailable == nil || *rec.IsAvailable,
	}
	if len(rec.Specifications) > 0 {
		p.Specifications = make(map[string]string, len(rec.Specifications))
		for k, v := range rec.Specifications {
			p.Specifications[k] = fmt.Sprintf("%v", v)
		}
	}
	return p, nil
}

// backfillEmbeddings generates vectors for products that have none. Each
// product embeds individually so one provider failure skips one product,
// not the run.
func (l *Loader) backfillEmbeddings(ctx context.Context, report *models.LoadReport) {
	rows, err := l.graph.ExecuteQuery(ctx,
		`MATCH (p:Product) WHERE p.embedding IS NULL RETURN p ORDER BY p.gin`,
		nil)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("embedding backfill query: %v", err))
		return
	}

	embedded := 0
	for _, row := range rows {
		product, ok := graph.ProductFromRow(row, "p")
		if !ok {
			continue
		}
		vector, text, err := l.embed.EmbedProduct(ctx, &product)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("embed %s: %v", product.GIN, err))
			continue
		}
		err = l.graph.ExecuteWrite(ctx,
			`MATCH (p:Product {gin: $gin}) SET p.embedding = $vector, p.embedding_text = $text`,
			map[string]any{"gin": product.GIN, "vector": vector, "text": text})
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("store embedding %s: %v", product.GIN, err))
			continue
		}
		embedded++
	}
	report.Updated += embedded
	l.log.Info().Int("embedded", embedded).Msg("embedding backfill complete")
}
