package graph

import (
	"encoding/json"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/beedev/sparky/pkg/models"
)

// ProductFromNode hydrates a Product from a Neo4j node's property map.
// Specifications are stored as a JSON string for graph-store compatibility
// and decoded here; malformed blobs leave the map nil rather than failing
// the read.
func ProductFromNode(node dbtype.Node) models.Product {
	return ProductFromProps(node.Props)
}

// ProductFromProps hydrates a Product from a raw property map.
func ProductFromProps(props map[string]any) models.Product {
	p := models.Product{
		GIN:          str(props["gin"]),
		Name:         str(props["name"]),
		Category:     models.ParseCategory(str(props["category"])),
		Subcategory:  str(props["subcategory"]),
		Manufacturer: str(props["manufacturer"]),
		Description:  str(props["description"]),
		ImageURL:     str(props["image_url"]),
		DatasheetURL: str(props["datasheet_url"]),
		IsAvailable:  boolean(props["is_available"]),
	}

	if raw := str(props["specifications"]); raw != "" {
		var specs map[string]string
		if err := json.Unmarshal([]byte(raw), &specs); err == nil {
			p.Specifications = specs
		}
	}
	if v, ok := props["price"].(float64); ok {
		p.Price = &v
	}
	if v, ok := props["sales_frequency"].(int64); ok {
		p.SalesFrequency = v
	}
	if countries, ok := props["countries_available"].([]any); ok {
		for _, c := range countries {
			p.CountriesAvailable = append(p.CountriesAvailable, str(c))
		}
	}
	if v, ok := props["created_at"].(time.Time); ok {
		p.CreatedAt = v
	}
	if v, ok := props["updated_at"].(time.Time); ok {
		p.UpdatedAt = v
	}
	return p
}

// ProductProps flattens a Product into the property map written to the
// graph. The embedding is set separately so re-runs keep existing vectors.
func ProductProps(p *models.Product) map[string]any {
	specs := "{}"
	if len(p.Specifications) > 0 {
		if raw, err := json.Marshal(p.Specifications); err == nil {
			specs = string(raw)
		}
	}
	return map[string]any{
		"gin":                 p.GIN,
		"name":                p.Name,
		"category":            string(p.Category),
		"subcategory":         p.Subcategory,
		"manufacturer":        p.Manufacturer,
		"description":         p.Description,
		"specifications":      specs,
		"price":               priceOrNil(p.Price),
		"image_url":           p.ImageURL,
		"datasheet_url":       p.DatasheetURL,
		"countries_available": p.CountriesAvailable,
		"is_available":        p.IsAvailable,
	}
}

func priceOrNil(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func boolean(v any) bool {
	b, _ := v.(bool)
	return b
}

// ProductFromRow extracts the product node stored under the given column.
func ProductFromRow(row map[string]any, key string) (models.Product, bool) {
	node, ok := row[key].(dbtype.Node)
	if !ok {
		return models.Product{}, false
	}
	return ProductFromNode(node), true
}

// nodeFromRow extracts the product node and optional score/sales columns
// from a query row.
func nodeFromRow(row map[string]any) (models.Product, float64, int64, bool) {
	node, ok := row["node"].(dbtype.Node)
	if !ok {
		return models.Product{}, 0, 0, false
	}
	p := ProductFromNode(node)

	var score float64
	if v, ok := row["score"].(float64); ok {
		score = v
	}
	var sales int64
	if v, ok := row["sales"].(int64); ok {
		sales = v
		p.SalesFrequency = v
	}
	return p, score, sales, true
}
