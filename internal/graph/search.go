package graph

import (
	"context"
	"fmt"

	"github.com/beedev/sparky/pkg/models"
)

// VectorSearch queries the product_embeddings index and returns products
// with cosine scores, optionally post-filtered by category and minimum
// score. The index is overfetched when a filter applies so the caller still
// receives up to k results.
func (s *Store) VectorSearch(ctx context.Context, k int, vector []float32, category models.Category, minScore float64) ([]models.ScoredProduct, error) {
	fetch := k
	if category != "" {
		fetch = k * 4
	}

	rows, err := s.ExecuteQuery(ctx, `
		CALL db.index.vector.queryNodes($index, $fetch, $vector)
		YIELD node, score
		WHERE ($category = '' OR node.category = $category)
		  AND score >= $minScore
		RETURN node, score
		ORDER BY score DESC
		LIMIT $k`,
		map[string]any{
			"index":    VectorIndexName,
			"fetch":    fetch,
			"vector":   vector,
			"category": string(category),
			"minScore": minScore,
			"k":        k,
		})
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	return scoredProducts(rows), nil
}

// minHybridSimilarity drops vector hits that are barely related to the
// query; without the floor a nonsense query still returns the nearest
// products.
const minHybridSimilarity = 0.5

// HybridSearch composes vector similarity with a normalized sales-frequency
// count. Sales are capped at 100 orders before normalizing into [0,1];
// hits below the similarity floor are discarded.
func (s *Store) HybridSearch(ctx context.Context, vector []float32, k int, category models.Category, vectorWeight, salesWeight float64) ([]models.ScoredProduct, error) {
	fetch := k * 4

	rows, err := s.ExecuteQuery(ctx, `
		CALL db.index.vector.queryNodes($index, $fetch, $vector)
		YIELD node, score AS vectorScore
		WHERE ($category = '' OR node.category = $category)
		  AND vectorScore >= $minSimilarity
		OPTIONAL MATCH (node)<-[:CONTAINS]-(t:Transaction)
		WITH node, vectorScore, count(t) AS sales
		WITH node, sales,
		     vectorScore * $vectorWeight +
		     (CASE WHEN sales > 100 THEN 1.0 ELSE toFloat(sales) / 100.0 END) * $salesWeight AS score
		RETURN node, score, sales
		ORDER BY score DESC, sales DESC, node.gin
		LIMIT $k`,
		map[string]any{
			"index":         VectorIndexName,
			"fetch":         fetch,
			"vector":        vector,
			"category":      string(category),
			"vectorWeight":  vectorWeight,
			"salesWeight":   salesWeight,
			"minSimilarity": minHybridSimilarity,
			"k":             k,
		})
	if err != nil {
		return nil, fmt.Errorf("hybrid search: %w", err)
	}
	return scoredProducts(rows), nil
}

// ShortestPath finds products of the target category reachable from the
// start product over CO_OCCURS edges within maxHops. Score is 1/hops so
// direct co-purchases outrank second-degree neighbours.
//
// The hop bound is inlined: Cypher does not allow a parameter in a
// variable-length pattern. It is an internal integer, never user input.
func (s *Store) ShortestPath(ctx context.Context, startGIN string, category models.Category, maxHops int) ([]models.ScoredProduct, error) {
	if maxHops < 1 {
		maxHops = 1
	}
	if maxHops > 4 {
		maxHops = 4
	}

	stmt := fmt.Sprintf(`
		MATCH (start:Product {gin: $gin})
		MATCH path = (start)-[:CO_OCCURS*1..%d]-(target:Product)
		WHERE target.category = $category AND target.gin <> $gin
		WITH target, min(length(path)) AS hops
		OPTIONAL MATCH (target)<-[:CONTAINS]-(t:Transaction)
		WITH target AS node, hops, count(t) AS sales
		RETURN node, 1.0 / toFloat(hops) AS score, sales
		ORDER BY score DESC, sales DESC, node.gin
		LIMIT $limit`, maxHops)

	rows, err := s.ExecuteQuery(ctx, stmt, map[string]any{
		"gin":      startGIN,
		"category": string(category),
		"limit":    20,
	})
	if err != nil {
		return nil, fmt.Errorf("shortest path from %s: %w", startGIN, err)
	}
	return scoredProducts(rows), nil
}

// PagerankPopular approximates popularity by combining direct sale count
// with the number of distinct co-purchased products in the same category.
func (s *Store) PagerankPopular(ctx context.Context, category models.Category, minSales, limit int) ([]models.ScoredProduct, error) {
	rows, err := s.ExecuteQuery(ctx, `
		MATCH (p:Product {category: $category})
		OPTIONAL MATCH (p)<-[:CONTAINS]-(t:Transaction)
		WITH p, count(t) AS sales
		WHERE sales >= $minSales
		OPTIONAL MATCH (p)-[:CO_OCCURS]-(other:Product {category: $category})
		WITH p AS node, sales, count(DISTINCT other) AS coProducts
		RETURN node, toFloat(sales) + 0.5 * toFloat(coProducts) AS score, sales
		ORDER BY score DESC, node.gin
		LIMIT $limit`,
		map[string]any{
			"category": string(category),
			"minSales": minSales,
			"limit":    limit,
		})
	if err != nil {
		return nil, fmt.Errorf("pagerank popular %s: %w", category, err)
	}
	return scoredProducts(rows), nil
}

// Centrality ranks products by COMPATIBLE_WITH degree weighted by the
// category diversity of their neighbours.
func (s *Store) Centrality(ctx context.Context, category models.Category, minConnections, limit int) ([]models.ScoredProduct, error) {
	rows, err := s.ExecuteQuery(ctx, `
		MATCH (p:Product {category: $category})-[:COMPATIBLE_WITH]-(n:Product)
		WITH p, count(DISTINCT n) AS conns, count(DISTINCT n.category) AS diversity
		WHERE conns >= $minConnections
		OPTIONAL MATCH (p)<-[:CONTAINS]-(t:Transaction)
		WITH p AS node, conns, diversity, count(t) AS sales
		RETURN node, toFloat(conns) * (1.0 + 0.1 * toFloat(diversity)) AS score, sales
		ORDER BY score DESC, node.gin
		LIMIT $limit`,
		map[string]any{
			"category":       string(category),
			"minConnections": minConnections,
			"limit":          limit,
		})
	if err != nil {
		return nil, fmt.Errorf("centrality %s: %w", category, err)
	}
	return scoredProducts(rows), nil
}

// CompatibleByCategory returns COMPATIBLE_WITH neighbours of a product in
// the given category, most-sold first. DETERMINES edges, when present for
// the category, act as a hard filter on the result set.
func (s *Store) CompatibleByCategory(ctx context.Context, gin string, category models.Category, limit int) ([]models.ScoredProduct, error) {
	rows, err := s.ExecuteQuery(ctx, `
		MATCH (p:Product {gin: $gin})
		OPTIONAL MATCH (p)-[:DETERMINES]->(d:Product {category: $category})
		WITH p, collect(d.gin) AS determined
		MATCH (p)-[r:COMPATIBLE_WITH]-(c:Product {category: $category})
		WHERE size(determined) = 0 OR c.gin IN determined
		OPTIONAL MATCH (c)<-[:CONTAINS]-(t:Transaction)
		WITH c AS node, r.confidence AS score, count(t) AS sales
		RETURN node, score, sales
		ORDER BY sales DESC, score DESC, node.gin
		LIMIT $limit`,
		map[string]any{
			"gin":      gin,
			"category": string(category),
			"limit":    limit,
		})
	if err != nil {
		return nil, fmt.Errorf("compatible %s/%s: %w", gin, category, err)
	}
	return scoredProducts(rows), nil
}

// TopByCategory returns the most-sold products of a category. This is the
// last-resort candidate source when vector and property search both fail.
func (s *Store) TopByCategory(ctx context.Context, category models.Category, limit int) ([]models.ScoredProduct, error) {
	rows, err := s.ExecuteQuery(ctx, `
		MATCH (p:Product {category: $category})
		OPTIONAL MATCH (p)<-[:CONTAINS]-(t:Transaction)
		WITH p AS node, count(t) AS sales
		RETURN node, toFloat(sales) AS score, sales
		ORDER BY sales DESC, node.gin
		LIMIT $limit`,
		map[string]any{"category": string(category), "limit": limit})
	if err != nil {
		return nil, fmt.Errorf("top by category %s: %w", category, err)
	}
	return scoredProducts(rows), nil
}

// PropertySearch finds products of a category whose description or name
// contains any of the given lowercased terms.
func (s *Store) PropertySearch(ctx context.Context, category models.Category, terms []string, limit int) ([]models.ScoredProduct, error) {
	if len(terms) == 0 {
		return nil, nil
	}
	rows, err := s.ExecuteQuery(ctx, `
		MATCH (p:Product {category: $category})
		WHERE any(term IN $terms WHERE toLower(p.description) CONTAINS term OR toLower(p.name) CONTAINS term)
		OPTIONAL MATCH (p)<-[:CONTAINS]-(t:Transaction)
		WITH p AS node, count(t) AS sales
		RETURN node, toFloat(sales) AS score, sales
		ORDER BY sales DESC, node.gin
		LIMIT $limit`,
		map[string]any{
			"category": string(category),
			"terms":    terms,
			"limit":    limit,
		})
	if err != nil {
		return nil, fmt.Errorf("property search %s: %w", category, err)
	}
	return scoredProducts(rows), nil
}

// ShortlistByName returns products of a category whose lowercased name
// contains the token, ordered by sales frequency then name. This is the
// first stage of the fuzzy product search.
func (s *Store) ShortlistByName(ctx context.Context, category models.Category, token string, limit int) ([]models.Product, error) {
	rows, err := s.ExecuteQuery(ctx, `
		MATCH (p:Product {category: $category})
		WHERE toLower(p.name) CONTAINS $token
		OPTIONAL MATCH (p)<-[:CONTAINS]-(t:Transaction)
		WITH p AS node, count(t) AS sales
		RETURN node, toFloat(sales) AS score, sales
		ORDER BY sales DESC, node.name
		LIMIT $limit`,
		map[string]any{
			"category": string(category),
			"token":    token,
			"limit":    limit,
		})
	if err != nil {
		return nil, fmt.Errorf("shortlist by name %q: %w", token, err)
	}
	var out []models.Product
	for _, sp := range scoredProducts(rows) {
		out = append(out, sp.Product)
	}
	return out, nil
}

func scoredProducts(rows []map[string]any) []models.ScoredProduct {
	var out []models.ScoredProduct
	for _, row := range rows {
		p, score, _, ok := nodeFromRow(row)
		if !ok {
			continue
		}
		out = append(out, models.ScoredProduct{Product: p, Score: score})
	}
	return out
}
