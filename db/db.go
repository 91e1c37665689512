// db/db.go
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/dev-mohitbeniwal/scorecache/config"
	cache_errors "github.com/dev-mohitbeniwal/scorecache/errors"
	logger "github.com/dev-mohitbeniwal/scorecache/logging"
)

// Neo4jClient runs Cypher in managed transactions against one database.
type Neo4jClient struct {
	driver   neo4j.DriverWithContext
	database string
}

// NewNeo4j connects to the durable tier. Unlike Redis, the tier of record
// must be reachable at startup.
func NewNeo4j(ctx context.Context, cfg config.Neo4jConfiguration) (*Neo4jClient, error) {
	if cfg.URI == "" {
		return nil, &cache_errors.ConfigurationError{Field: "neo4j.uri", Reason: "required"}
	}
	logger.Info("Connecting to Neo4j at URI", zap.String("uri", cfg.URI))

	driver, err := neo4j.NewDriverWithContext(
		cfg.URI,
		neo4j.BasicAuth(cfg.Username, cfg.Password, ""),
		func(c *neo4j.Config) {
			c.MaxConnectionLifetime = 30 * time.Minute
			c.MaxConnectionPoolSize = cfg.MaxPoolSize
			c.ConnectionAcquisitionTimeout = cfg.WriteTimeout
		},
	)
	if err != nil {
		return nil, &cache_errors.ConfigurationError{Field: "neo4j.uri", Reason: "creating driver", Err: err}
	}

	verifyCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := driver.VerifyConnectivity(verifyCtx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("failed to connect to Neo4j: %w", err)
	}

	logger.Info("Successfully connected to Neo4j")
	return &Neo4jClient{driver: driver, database: cfg.Database}, nil
}

func (c *Neo4jClient) Close(ctx context.Context) error {
	if c == nil || c.driver == nil {
		return nil
	}
	closeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := c.driver.Close(closeCtx); err != nil {
		logger.Error("Error closing Neo4j connection", zap.Error(err))
		return err
	}
	logger.Info("Neo4j connection closed successfully")
	return nil
}

// ExecuteRead executes a read transaction and collects every record.
func (c *Neo4jClient) ExecuteRead(ctx context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error) {
	session := c.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead, DatabaseName: c.database})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, collect(ctx, cypher, params), txTimeout(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to execute read transaction: %w", err)
	}
	records, _ := result.([]*neo4j.Record)
	return records, nil
}

// ExecuteWrite executes a write transaction and collects every record.
func (c *Neo4jClient) ExecuteWrite(ctx context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error) {
	session := c.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite, DatabaseName: c.database})
	defer session.Close(ctx)

	result, err := session.ExecuteWrite(ctx, collect(ctx, cypher, params), txTimeout(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to execute write transaction: %w", err)
	}
	records, _ := result.([]*neo4j.Record)
	return records, nil
}

func collect(ctx context.Context, cypher string, params map[string]any) neo4j.ManagedTransactionWork {
	return func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	}
}

// txTimeout mirrors the caller's deadline on the server side so a slow query
// is also aborted by Neo4j, not only abandoned by the client.
func txTimeout(ctx context.Context) func(*neo4j.TransactionConfig) {
	return func(cfg *neo4j.TransactionConfig) {
		if deadline, ok := ctx.Deadline(); ok {
			if remaining := time.Until(deadline); remaining > 0 {
				cfg.Timeout = remaining
			}
		}
	}
}
