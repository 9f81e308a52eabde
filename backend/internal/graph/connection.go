package graph

import (
	"context"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"lokalhub/backend/pkg/apperr"
	"lokalhub/backend/pkg/config"
	"lokalhub/backend/pkg/logger"
)

// connectRetryBase is the unit of the linearly increasing backoff between
// startup connection attempts (attempt 1 waits 1x, attempt 2 waits 2x, ...).
const connectRetryBase = 2 * time.Second

// Connect creates the process-wide Neo4j driver and smoke-tests it.
// It retries up to cfg.ConnectMaxAttempts times with linearly increasing
// backoff, then fails with a ConnectionUnavailable error. The returned
// driver is the caller's to close on shutdown.
func Connect(ctx context.Context, cfg *config.Config) (neo4j.DriverWithContext, error) {
	log := logger.Named("graph")

	driver, err := neo4j.NewDriverWithContext(
		cfg.Neo4jURI,
		neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPassword, ""),
	)
	if err != nil {
		return nil, apperr.ConnectionUnavailable(cfg.Neo4jURI, err)
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.ConnectMaxAttempts; attempt++ {
		lastErr = smokeTest(ctx, driver, cfg.Neo4jDatabase)
		if lastErr == nil {
			log.Info("Connected to Neo4j",
				zap.String("uri", cfg.Neo4jURI),
				zap.String("database", cfg.Neo4jDatabase),
				zap.Int("attempt", attempt),
			)
			return driver, nil
		}

		log.Warn("Neo4j connection attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", cfg.ConnectMaxAttempts),
			zap.Error(lastErr),
		)

		if attempt == cfg.ConnectMaxAttempts {
			break
		}
		select {
		case <-time.After(time.Duration(attempt) * connectRetryBase):
		case <-ctx.Done():
			_ = driver.Close(context.Background())
			return nil, apperr.ConnectionUnavailable(cfg.Neo4jURI, ctx.Err())
		}
	}

	_ = driver.Close(context.Background())
	return nil, apperr.ConnectionUnavailable(cfg.Neo4jURI, lastErr)
}

// smokeTest verifies connectivity and runs a trivial query against the
// target database so a wrong database name fails at startup, not mid-request.
func smokeTest(ctx context.Context, driver neo4j.DriverWithContext, database string) error {
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return err
	}

	session := driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeRead,
		DatabaseName: database,
	})
	defer session.Close(ctx)

	result, err := session.Run(ctx, "RETURN 1 AS ok", nil)
	if err != nil {
		return err
	}
	_, err = result.Consume(ctx)
	return err
}

// schemaStatements establishes the uniqueness constraints and secondary
// indexes the repository relies on. All statements are idempotent.
var schemaStatements = []string{
	`CREATE CONSTRAINT user_id_unique IF NOT EXISTS FOR (u:User) REQUIRE u.id IS UNIQUE`,
	`CREATE CONSTRAINT user_email_unique IF NOT EXISTS FOR (u:User) REQUIRE u.email IS UNIQUE`,
	`CREATE CONSTRAINT business_id_unique IF NOT EXISTS FOR (b:Business) REQUIRE b.id IS UNIQUE`,
	`CREATE CONSTRAINT job_id_unique IF NOT EXISTS FOR (j:Job) REQUIRE j.id IS UNIQUE`,
	`CREATE CONSTRAINT application_id_unique IF NOT EXISTS FOR (a:Application) REQUIRE a.id IS UNIQUE`,
	`CREATE CONSTRAINT service_id_unique IF NOT EXISTS FOR (s:Service) REQUIRE s.id IS UNIQUE`,
	`CREATE CONSTRAINT review_id_unique IF NOT EXISTS FOR (r:Review) REQUIRE r.id IS UNIQUE`,
	`CREATE CONSTRAINT notification_id_unique IF NOT EXISTS FOR (n:Notification) REQUIRE n.id IS UNIQUE`,
	`CREATE CONSTRAINT activity_id_unique IF NOT EXISTS FOR (a:Activity) REQUIRE a.id IS UNIQUE`,
	`CREATE INDEX user_role_idx IF NOT EXISTS FOR (u:User) ON (u.role)`,
	`CREATE INDEX business_category_idx IF NOT EXISTS FOR (b:Business) ON (b.category)`,
	`CREATE INDEX job_type_idx IF NOT EXISTS FOR (j:Job) ON (j.job_type)`,
	`CREATE INDEX service_category_idx IF NOT EXISTS FOR (s:Service) ON (s.category)`,
	`CREATE INDEX notification_status_idx IF NOT EXISTS FOR (n:Notification) ON (n.status)`,
}

// EnsureSchema (re-)establishes constraints and indexes at startup
func EnsureSchema(ctx context.Context, driver neo4j.DriverWithContext, database string) error {
	session := driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: database,
	})
	defer session.Close(ctx)

	for _, stmt := range schemaStatements {
		result, err := session.Run(ctx, stmt, nil)
		if err != nil {
			return apperr.QueryFailed("ensure schema", err)
		}
		if _, err := result.Consume(ctx); err != nil {
			return apperr.QueryFailed("ensure schema", err)
		}
	}

	logger.Named("graph").Info("Schema constraints and indexes ensured",
		zap.Int("statements", len(schemaStatements)),
	)
	return nil
}
