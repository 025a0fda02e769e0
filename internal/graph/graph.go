// Package graph is the Neo4j adapter for the product graph. All statements
// are parameterized; user input never reaches a query via concatenation.
// The serving core only reads; writes belong to the loader.
package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/rs/zerolog/log"

	"github.com/beedev/sparky/internal/config"
)

// VectorIndexName is the 384-dim cosine index over Product.embedding.
const VectorIndexName = "product_embeddings"

// Store wraps the Neo4j driver with the operations the recommender needs.
// The driver owns a bounded connection pool and is a process-wide singleton.
type Store struct {
	driver   neo4j.DriverWithContext
	database string
	timeout  time.Duration
}

// New connects to Neo4j and verifies connectivity.
func New(ctx context.Context, cfg config.GraphConfig) (*Store, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI,
		neo4j.BasicAuth(cfg.User, cfg.Password, ""),
		func(c *neo4j.Config) {
			c.MaxConnectionPoolSize = cfg.MaxConnections
		})
	if err != nil {
		return nil, fmt.Errorf("neo4j driver: %w", err)
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("neo4j connect: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	log.Info().Str("uri", cfg.URI).Str("database", cfg.Database).Msg("Graph store connected")
	return &Store{driver: driver, database: cfg.Database, timeout: timeout}, nil
}

// Close releases the driver's connection pool.
func (s *Store) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

// ExecuteQuery runs a parameterized read statement and returns the rows as
// maps. The driver's managed transaction retries transient errors.
func (s *Store) ExecuteQuery(ctx context.Context, stmt string, params map[string]any) ([]map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: s.database,
		AccessMode:   neo4j.AccessModeRead,
	})
	defer session.Close(ctx)

	rows, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, stmt, params)
		if err != nil {
			return nil, err
		}
		var out []map[string]any
		for result.Next(ctx) {
			out = append(out, result.Record().AsMap())
		}
		return out, result.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("graph query: %w", err)
	}
	return rows.([]map[string]any), nil
}

// ExecuteWrite runs a parameterized write statement in a managed transaction.
func (s *Store) ExecuteWrite(ctx context.Context, stmt string, params map[string]any) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: s.database,
		AccessMode:   neo4j.AccessModeWrite,
	})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, stmt, params)
		if err != nil {
			return nil, err
		}
		_, err = result.Consume(ctx)
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("graph write: %w", err)
	}
	return nil
}

// BatchStatement is one statement of a transactional batch write.
type BatchStatement struct {
	Stmt   string
	Params map[string]any
}

// ExecuteBatchWrite runs all statements in a single transaction, retrying
// the whole batch with exponential backoff on transient failures.
func (s *Store) ExecuteBatchWrite(ctx context.Context, batch []BatchStatement) error {
	if len(batch) == 0 {
		return nil
	}

	op := func() error {
		session := s.driver.NewSession(ctx, neo4j.SessionConfig{
			DatabaseName: s.database,
			AccessMode:   neo4j.AccessModeWrite,
		})
		defer session.Close(ctx)

		_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			for _, b := range batch {
				result, err := tx.Run(ctx, b.Stmt, b.Params)
				if err != nil {
					return nil, err
				}
				if _, err := result.Consume(ctx); err != nil {
					return nil, err
				}
			}
			return nil, nil
		})
		if err != nil && !neo4j.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return fmt.Errorf("graph batch write (%d statements): %w", len(batch), err)
	}
	return nil
}

// HealthCheck verifies connectivity and the presence of the vector index.
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.driver.VerifyConnectivity(ctx); err != nil {
		return fmt.Errorf("graph unreachable: %w", err)
	}

	rows, err := s.ExecuteQuery(ctx,
		`SHOW INDEXES YIELD name WHERE name = $name RETURN name`,
		map[string]any{"name": VectorIndexName})
	if err != nil {
		return fmt.Errorf("graph index check: %w", err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("vector index %s not found", VectorIndexName)
	}
	return nil
}
