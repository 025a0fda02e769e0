package loader

import (
	"context"
	"fmt"
	"strings"

	"github.com/beedev/sparky/internal/graph"
	"github.com/beedev/sparky/pkg/models"
)

// goldenRecord is one entry of golden_packages.json.
type goldenRecord struct {
	Name           string   `json:"name"`
	PowerSourceGIN string   `json:"power_source_gin"`
	ProductGINs    []string `json:"product_gins"`
}

// LoadGoldenPackages ingests the curated fallback packages. Packages are
// replaced whole per power source on re-run; products the catalog does not
// know go to MissingRefs and are left out of the package.
func (l *Loader) LoadGoldenPackages(ctx context.Context, path string) (*models.LoadReport, error) {
	report := newReport(path)

	records, err := readJSONFile[goldenRecord](path, "golden_packages")
	if err != nil {
		return nil, err
	}

	var gins []string
	ginSet := map[string]bool{}
	for _, rec := range records {
		for _, g := range append([]string{rec.PowerSourceGIN}, rec.ProductGINs...) {
			if g != "" && !ginSet[g] {
				ginSet[g] = true
				gins = append(gins, g)
			}
		}
	}
	existing, err := l.existingGINs(ctx, gins)
	if err != nil {
		return nil, err
	}

	var batch []graph.BatchStatement
	for i, rec := range records {
		if strings.TrimSpace(rec.PowerSourceGIN) == "" {
			report.Skipped++
			report.Errors = append(report.Errors, fmt.Sprintf("package %d: missing power_source_gin", i))
			continue
		}
		if !existing[rec.PowerSourceGIN] {
			report.Skipped++
			report.MissingRefs = append(report.MissingRefs, rec.PowerSourceGIN)
			continue
		}

		var members []string
		for _, g := range rec.ProductGINs {
			if !existing[g] {
				report.MissingRefs = append(report.MissingRefs, g)
				continue
			}
			members = append(members, g)
		}
		if len(members) == 0 {
			report.Skipped++
			report.Errors = append(report.Errors, fmt.Sprintf("package %d (%s): no resolvable products", i, rec.Name))
			continue
		}

		batch = append(batch,
			graph.BatchStatement{
				Stmt: `
					MERGE (g:GoldenPackage {power_source_gin: $ps})
					SET g.name = $name
					WITH g
					MATCH (g)-[r:CONTAINS]->()
					DELETE r`,
				Params: map[string]any{"ps": rec.PowerSourceGIN, "name": rec.Name},
			},
			graph.BatchStatement{
				Stmt: `
					MATCH (g:GoldenPackage {power_source_gin: $ps})
					MATCH (p:Product) WHERE p.gin IN $members
					MERGE (g)-[:CONTAINS]->(p)`,
				Params: map[string]any{"ps": rec.PowerSourceGIN, "members": members},
			})
		report.Created++

		if len(batch) >= batchSize {
			batch = l.flush(ctx, batch, report)
		}
	}
	l.flush(ctx, batch, report)

	l.log.Info().
		Int("created", report.Created).
		Int("skipped", report.Skipped).
		Int("missing_refs", len(report.MissingRefs)).
		Str("path", path).
		Msg("golden packages loaded")
	return finish(report), nil
}
