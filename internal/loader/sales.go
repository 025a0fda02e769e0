package loader

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/beedev/sparky/internal/graph"
	"github.com/beedev/sparky/pkg/models"
)

// productMeta is what trinity detection needs to know per product.
type productMeta struct {
	Category    models.Category
	Subcategory string
	Name        string
}

// LoadSales ingests the order history: Customer and Transaction nodes (one
// Transaction per order line, keyed by order_id + line_no), per-product
// sales counters, CO_OCCURS edges for every product pair bought together,
// and Trinity nodes for orders containing a complete power source +
// feeder + cooler set. Orders with an all-in-one power source get
// placeholder feeder/cooler nodes so they still form a trinity.
func (l *Loader) LoadSales(ctx context.Context, path string) (*models.LoadReport, error) {
	report := newReport(path)

	records, err := readJSONFile[models.SalesRecord](path, "sales_records")
	if err != nil {
		return nil, err
	}

	orders := groupByOrder(records)
	orderIDs := make([]string, 0, len(orders))
	var gins []string
	ginSet := map[string]bool{}
	for id, lines := range orders {
		orderIDs = append(orderIDs, id)
		for _, rec := range lines {
			if rec.GIN != "" && !ginSet[rec.GIN] {
				ginSet[rec.GIN] = true
				gins = append(gins, rec.GIN)
			}
		}
	}
	sort.Strings(orderIDs)
	sort.Strings(gins)

	meta, err := l.productMeta(ctx, gins)
	if err != nil {
		return nil, err
	}

	loadDate := time.Now().UTC().Format(time.DateOnly)

	var batch []graph.BatchStatement
	for _, orderID := range orderIDs {
		lines := orders[orderID]

		var valid []models.SalesRecord
		for _, rec := range lines {
			if rec.GIN == "" {
				report.Skipped++
				report.Errors = append(report.Errors, fmt.Sprintf("order %s line %d: missing gin", orderID, rec.LineNo))
				continue
			}
			if _, ok := meta[rec.GIN]; !ok {
				report.Skipped++
				report.MissingRefs = append(report.MissingRefs, rec.GIN)
				continue
			}
			valid = append(valid, rec)
			batch = append(batch, transactionStatements(rec)...)
		}
		if len(valid) == 0 {
			continue
		}
		report.Created++

		batch = append(batch, coOccurrenceStatements(orderID, orderProductGINs(valid), loadDate)...)

		trinityBatch, synthesized := l.trinityStatements(orderID, valid, meta)
		batch = append(batch, trinityBatch...)
		report.Updated += synthesized

		if len(batch) >= batchSize {
			batch = l.flush(ctx, batch, report)
		}
	}
	l.flush(ctx, batch, report)

	l.log.Info().
		Int("orders", report.Created).
		Int("skipped_lines", report.Skipped).
		Int("missing_refs", len(report.MissingRefs)).
		Str("path", path).
		Msg("sales history loaded")
	return finish(report), nil
}

func groupByOrder(records []models.SalesRecord) map[string][]models.SalesRecord {
	orders := make(map[string][]models.SalesRecord)
	for _, rec := range records {
		if rec.OrderID == "" {
			continue
		}
		orders[rec.OrderID] = append(orders[rec.OrderID], rec)
	}
	return orders
}

// orderProductGINs returns the distinct GINs of an order, sorted.
func orderProductGINs(lines []models.SalesRecord) []string {
	seen := map[string]bool{}
	var gins []string
	for _, rec := range lines {
		if !seen[rec.GIN] {
			seen[rec.GIN] = true
			gins = append(gins, rec.GIN)
		}
	}
	sort.Strings(gins)
	return gins
}

func (l *Loader) productMeta(ctx context.Context, gins []string) (map[string]productMeta, error) {
	out := make(map[string]productMeta, len(gins))
	if len(gins) == 0 {
		return out, nil
	}
	rows, err := l.graph.ExecuteQuery(ctx,
		`MATCH (p:Product) WHERE p.gin IN $gins
		 RETURN p.gin AS gin, p.category AS category, p.subcategory AS subcategory, p.name AS name`,
		map[string]any{"gins": gins})
	if err != nil {
		return nil, fmt.Errorf("product meta: %w", err)
	}
	for _, row := range rows {
		gin, _ := row["gin"].(string)
		category, _ := row["category"].(string)
		subcategory, _ := row["subcategory"].(string)
		name, _ := row["name"].(string)
		out[gin] = productMeta{Category: models.ParseCategory(category), Subcategory: subcategory, Name: name}
	}
	return out, nil
}

// transactionStatements writes the customer, per-line transaction and
// purchase counter for one order line.
func transactionStatements(rec models.SalesRecord) []graph.BatchStatement {
	stmts := []graph.BatchStatement{{
		Stmt: `
			MERGE (t:Transaction {order_id: $order, line_no: $line})
			SET t.facility = $facility, t.warehouse = $warehouse,
			    t.category = $category, t.description = $description
			WITH t
			MATCH (p:Product {gin: $gin})
			MERGE (t)-[:CONTAINS]->(p)
			SET p.sales_frequency = coalesce(p.sales_frequency, 0) + 1`,
		Params: map[string]any{
			"order": rec.OrderID, "line": rec.LineNo, "gin": rec.GIN,
			"facility": rec.Facility, "warehouse": rec.Warehouse,
			"category": rec.Category, "description": rec.Description,
		},
	}}
	if rec.Customer != "" {
		stmts = append(stmts, graph.BatchStatement{
			Stmt: `
				MERGE (c:Customer {name: $customer})
				WITH c
				MATCH (t:Transaction {order_id: $order, line_no: $line})
				MERGE (c)-[:MADE]->(t)`,
			Params: map[string]any{"customer": rec.Customer, "order": rec.OrderID, "line": rec.LineNo},
		})
	}
	return stmts
}

// coOccurrenceStatements merges one CO_OCCURS edge per unordered product
// pair in the order. GINs arrive sorted, so the edge direction is stable
// across runs. The edge carries frequency, orders_count, a confidence
// score saturating at ten co-purchases, the last occurrence date and up
// to five sample order ids.
func coOccurrenceStatements(orderID string, orderGINs []string, date string) []graph.BatchStatement {
	var stmts []graph.BatchStatement
	for i := 0; i < len(orderGINs); i++ {
		for j := i + 1; j < len(orderGINs); j++ {
			stmts = append(stmts, graph.BatchStatement{
				Stmt: `
					MATCH (a:Product {gin: $a})
					MATCH (b:Product {gin: $b})
					MERGE (a)-[r:CO_OCCURS]->(b)
					ON CREATE SET r.frequency = 1, r.orders_count = 1,
					              r.sample_orders = [$order]
					ON MATCH SET r.frequency = r.frequency + 1,
					             r.orders_count = r.orders_count + 1,
					             r.sample_orders = CASE WHEN size(r.sample_orders) < 5
					                               THEN r.sample_orders + $order
					                               ELSE r.sample_orders END
					SET r.last_occurrence_date = $date,
					    r.confidence_score = CASE WHEN r.frequency >= 10 THEN 1.0
					                         ELSE toFloat(r.frequency) / 10.0 END`,
				Params: map[string]any{"a": orderGINs[i], "b": orderGINs[j], "order": orderID, "date": date},
			})
		}
	}
	return stmts
}

// trinityStatements detects a complete trinity in the order and merges the
// Trinity node with its COMPRISES edges, plus one FORMS_TRINITY edge from
// each member's transaction line to the member product, tagged with the
// trinity id and component type. An all-in-one power source synthesizes
// placeholder feeder/cooler products (second return counts them); orders
// without a detectable trinity produce nothing.
func (l *Loader) trinityStatements(orderID string, lines []models.SalesRecord, meta map[string]productMeta) ([]graph.BatchStatement, int) {
	lineByGIN := map[string]int{}
	for _, rec := range lines {
		if _, ok := lineByGIN[rec.GIN]; !ok {
			lineByGIN[rec.GIN] = rec.LineNo
		}
	}

	var ps, feeder, cooler string
	for _, gin := range orderProductGINs(lines) {
		switch meta[gin].Category {
		case models.CategoryPowerSource:
			if ps == "" {
				ps = gin
			}
		case models.CategoryFeeder:
			if feeder == "" {
				feeder = gin
			}
		case models.CategoryCooler:
			if cooler == "" {
				cooler = gin
			}
		}
	}
	if ps == "" {
		return nil, 0
	}

	var stmts []graph.BatchStatement
	synthesized := 0
	if (feeder == "" || cooler == "") && isAllInOne(meta[ps]) {
		if feeder == "" {
			feeder = ps + "-INT-F"
			stmts = append(stmts, placeholderStatement(feeder, ps, models.CategoryFeeder, meta[ps].Name+" integrated feeder"))
			synthesized++
		}
		if cooler == "" {
			cooler = ps + "-INT-C"
			stmts = append(stmts, placeholderStatement(cooler, ps, models.CategoryCooler, meta[ps].Name+" integrated cooler"))
			synthesized++
		}
	}
	if feeder == "" || cooler == "" {
		return nil, 0
	}

	trinityID := idHash(ps, feeder, cooler)
	stmts = append(stmts, graph.BatchStatement{
		Stmt: `
			MERGE (tr:Trinity {trinity_id: $id})
			ON CREATE SET tr.power_source_gin = $ps, tr.feeder_gin = $feeder,
			              tr.cooler_gin = $cooler, tr.order_count = 1
			ON MATCH SET tr.order_count = tr.order_count + 1
			WITH tr
			MATCH (p:Product) WHERE p.gin IN [$ps, $feeder, $cooler]
			MERGE (tr)-[:COMPRISES]->(p)`,
		Params: map[string]any{"id": trinityID, "ps": ps, "feeder": feeder, "cooler": cooler},
	})

	members := []struct {
		gin           string
		componentType string
	}{
		{ps, "power_source"},
		{feeder, "feeder"},
		{cooler, "cooler"},
	}
	for _, m := range members {
		// Placeholder members have no order line of their own; their
		// edge hangs off the power source's line.
		line, ok := lineByGIN[m.gin]
		if !ok {
			line = lineByGIN[ps]
		}
		stmts = append(stmts, graph.BatchStatement{
			Stmt: `
				MATCH (t:Transaction {order_id: $order, line_no: $line})
				MATCH (p:Product {gin: $gin})
				MERGE (t)-[:FORMS_TRINITY {trinity_id: $id, component_type: $type}]->(p)`,
			Params: map[string]any{"order": orderID, "line": line, "gin": m.gin, "id": trinityID, "type": m.componentType},
		})
	}
	return stmts, synthesized
}

// isAllInOne recognizes power sources with integrated feeding/cooling.
func isAllInOne(m productMeta) bool {
	s := strings.ToLower(m.Subcategory + " " + m.Name)
	return strings.Contains(s, "all-in-one") ||
		strings.Contains(s, "all in one") ||
		strings.Contains(s, "integrated") ||
		strings.Contains(s, "compact")
}

func placeholderStatement(gin, psGIN string, category models.Category, name string) graph.BatchStatement {
	return graph.BatchStatement{
		Stmt: `
			MERGE (p:Product {gin: $gin})
			ON CREATE SET p.name = $name, p.category = $category,
			              p.is_available = false, p.sales_frequency = 0,
			              p.description = 'Integrated component of ' + $ps`,
		Params: map[string]any{"gin": gin, "name": name, "category": string(category), "ps": psGIN},
	}
}
