package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/beedev/sparky/pkg/models"
)

// ScoredTrinity is a trinity with its materialized members and a relevance
// score.
type ScoredTrinity struct {
	Trinity     models.Trinity
	PowerSource models.Product
	Feeder      models.Product
	Cooler      models.Product
	Score       float64
}

// TrinityVectorSearch scores stored Trinities by the vector similarity of
// their PowerSource and returns the top k with all three members
// materialized.
func (s *Store) TrinityVectorSearch(ctx context.Context, vector []float32, k int) ([]ScoredTrinity, error) {
	rows, err := s.ExecuteQuery(ctx, `
		CALL db.index.vector.queryNodes($index, $fetch, $vector)
		YIELD node AS ps, score
		WHERE ps.category = 'PowerSource'
		MATCH (tr:Trinity)-[:COMPRISES]->(ps)
		MATCH (tr)-[:COMPRISES]->(f:Product {category: 'Feeder'})
		MATCH (tr)-[:COMPRISES]->(c:Product {category: 'Cooler'})
		RETURN tr, ps, f, c, score
		ORDER BY score DESC, tr.order_count DESC, tr.trinity_id
		LIMIT $k`,
		map[string]any{
			"index":  VectorIndexName,
			"fetch":  k * 6,
			"vector": vector,
			"k":      k,
		})
	if err != nil {
		return nil, fmt.Errorf("trinity vector search: %w", err)
	}
	return scoredTrinities(rows), nil
}

// TrinitiesByPowerSourceName finds trinities whose PowerSource name contains
// the given lowercased token, most-ordered first.
func (s *Store) TrinitiesByPowerSourceName(ctx context.Context, nameToken string, limit int) ([]ScoredTrinity, error) {
	rows, err := s.ExecuteQuery(ctx, `
		MATCH (tr:Trinity)-[:COMPRISES]->(ps:Product {category: 'PowerSource'})
		WHERE toLower(ps.name) CONTAINS $token
		MATCH (tr)-[:COMPRISES]->(f:Product {category: 'Feeder'})
		MATCH (tr)-[:COMPRISES]->(c:Product {category: 'Cooler'})
		RETURN tr, ps, f, c, toFloat(coalesce(tr.order_count, 0)) AS score
		ORDER BY score DESC, tr.trinity_id
		LIMIT $limit`,
		map[string]any{"token": nameToken, "limit": limit})
	if err != nil {
		return nil, fmt.Errorf("trinities by power source %q: %w", nameToken, err)
	}
	return scoredTrinities(rows), nil
}

// TrinityAccessories returns up to limit products co-occurring with the
// trinity members, excluding the members themselves.
func (s *Store) TrinityAccessories(ctx context.Context, t models.Trinity, limit int) ([]models.Product, error) {
	rows, err := s.ExecuteQuery(ctx, `
		MATCH (m:Product)-[r:CO_OCCURS]-(acc:Product)
		WHERE m.gin IN $members
		  AND NOT acc.gin IN $members
		  AND NOT acc.category IN ['PowerSource', 'Feeder', 'Cooler']
		WITH acc AS node, sum(coalesce(r.frequency, 1)) AS freq
		RETURN node, toFloat(freq) AS score, freq AS sales
		ORDER BY freq DESC, node.gin
		LIMIT $limit`,
		map[string]any{
			"members": []string{t.PowerSourceGIN, t.FeederGIN, t.CoolerGIN},
			"limit":   limit,
		})
	if err != nil {
		return nil, fmt.Errorf("trinity accessories %s: %w", t.TrinityID, err)
	}
	var out []models.Product
	for _, sp := range scoredProducts(rows) {
		out = append(out, sp.Product)
	}
	return out, nil
}

// CoOrderedWithTrinity finds the products most frequently appearing in
// orders that contain all three trinity members, excluding the members.
// Used by expert package formation.
func (s *Store) CoOrderedWithTrinity(ctx context.Context, t models.Trinity, limit int) ([]models.Product, error) {
	rows, err := s.ExecuteQuery(ctx, `
		MATCH (t1:Transaction)-[:CONTAINS]->(:Product {gin: $ps})
		MATCH (t2:Transaction {order_id: t1.order_id})-[:CONTAINS]->(:Product {gin: $feeder})
		MATCH (t3:Transaction {order_id: t1.order_id})-[:CONTAINS]->(:Product {gin: $cooler})
		MATCH (tx:Transaction {order_id: t1.order_id})-[:CONTAINS]->(p:Product)
		WHERE NOT p.gin IN [$ps, $feeder, $cooler]
		WITH p AS node, count(DISTINCT tx.order_id) AS freq
		RETURN node, toFloat(freq) AS score, freq AS sales
		ORDER BY freq DESC, node.gin
		LIMIT $limit`,
		map[string]any{
			"ps":     t.PowerSourceGIN,
			"feeder": t.FeederGIN,
			"cooler": t.CoolerGIN,
			"limit":  limit,
		})
	if err != nil {
		return nil, fmt.Errorf("co-ordered with trinity %s: %w", t.TrinityID, err)
	}
	var out []models.Product
	for _, sp := range scoredProducts(rows) {
		out = append(out, sp.Product)
	}
	return out, nil
}

// GoldenPackageFor returns the curated package keyed by a PowerSource, or
// nil when none exists.
func (s *Store) GoldenPackageFor(ctx context.Context, powerSourceGIN string) (*models.GoldenPackage, error) {
	rows, err := s.ExecuteQuery(ctx, `
		MATCH (g:GoldenPackage {power_source_gin: $gin})-[:CONTAINS]->(p:Product)
		RETURN g.name AS name, collect(p) AS products`,
		map[string]any{"gin": powerSourceGIN})
	if err != nil {
		return nil, fmt.Errorf("golden package %s: %w", powerSourceGIN, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	gp := &models.GoldenPackage{
		PowerSourceGIN: powerSourceGIN,
		Name:           str(rows[0]["name"]),
	}
	if nodes, ok := rows[0]["products"].([]any); ok {
		for _, n := range nodes {
			if node, ok := n.(dbtype.Node); ok {
				gp.Products = append(gp.Products, ProductFromNode(node))
			}
		}
	}
	return gp, nil
}

func scoredTrinities(rows []map[string]any) []ScoredTrinity {
	var out []ScoredTrinity
	for _, row := range rows {
		tr, ok := row["tr"].(dbtype.Node)
		if !ok {
			continue
		}
		ps, okPS := row["ps"].(dbtype.Node)
		f, okF := row["f"].(dbtype.Node)
		c, okC := row["c"].(dbtype.Node)
		if !okPS || !okF || !okC {
			continue
		}

		st := ScoredTrinity{
			Trinity: models.Trinity{
				TrinityID:      str(tr.Props["trinity_id"]),
				PowerSourceGIN: str(tr.Props["power_source_gin"]),
				FeederGIN:      str(tr.Props["feeder_gin"]),
				CoolerGIN:      str(tr.Props["cooler_gin"]),
			},
			PowerSource: ProductFromNode(ps),
			Feeder:      ProductFromNode(f),
			Cooler:      ProductFromNode(c),
		}
		if v, ok := tr.Props["order_count"].(int64); ok {
			st.Trinity.OrderCount = v
		}
		if v, ok := row["score"].(float64); ok {
			st.Score = v
		}
		out = append(out, st)
	}
	return out
}
