package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jogardn/safety-storefront/internal/config"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// NewConnection opens the pool and waits for the database to accept
// connections.
func NewConnection(ctx context.Context, cfg *config.DatabaseConfig, logger *logrus.Logger) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	var pingErr error
	for i := 0; i < 30; i++ {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		pingErr = db.PingContext(pingCtx)
		cancel()
		if pingErr == nil {
			logger.Info("Database connection established")
			return db, nil
		}

		logger.WithError(pingErr).Info("Waiting for database...")
		select {
		case <-ctx.Done():
			db.Close()
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}

	db.Close()
	return nil, fmt.Errorf("ping database: %w", pingErr)
}
