package graph

import (
	"context"
	"errors"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"lokalhub/backend/pkg/apperr"
	"lokalhub/backend/pkg/logger"
)

// Repository handles all Neo4j database operations for the marketplace.
// It is stateless between calls; all entity state lives in the graph.
type Repository struct {
	driver   neo4j.DriverWithContext
	database string
	timeout  time.Duration
	logger   *zap.Logger
}

// New creates a new graph repository. The timeout bounds every operation's
// round-trips to the graph engine.
func New(driver neo4j.DriverWithContext, database string, timeout time.Duration) *Repository {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Repository{
		driver:   driver,
		database: database,
		timeout:  timeout,
		logger:   logger.Named("repository"),
	}
}

// Close closes the Neo4j driver connection
func (r *Repository) Close() error {
	return r.driver.Close(context.Background())
}

func (r *Repository) readSession(ctx context.Context) neo4j.SessionWithContext {
	return r.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeRead,
		DatabaseName: r.database,
	})
}

func (r *Repository) writeSession(ctx context.Context) neo4j.SessionWithContext {
	return r.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: r.database,
	})
}

// opCtx applies the repository's bounded timeout to a single operation
func (r *Repository) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}

// operr translates a driver or context failure into a typed error.
// Deadline expiry becomes Timeout; the caller owns any retry decision.
func operr(operation string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperr.Timeout(operation, err)
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	return apperr.QueryFailed(operation, err)
}

// recordStream is the part of neo4j.ResultWithContext that singleOr reads
type recordStream interface {
	Next(ctx context.Context) bool
	Record() *neo4j.Record
	Err() error
}

// singleOr consumes the sole record of a result. An empty result set yields
// emptyErr; a stream failure (dropped connection, cancelled query) passes
// through unchanged so it is not misreported as a domain condition.
func singleOr(ctx context.Context, result recordStream, emptyErr error) (*neo4j.Record, error) {
	if result.Next(ctx) {
		return result.Record(), nil
	}
	if err := result.Err(); err != nil {
		return nil, err
	}
	return nil, emptyErr
}
