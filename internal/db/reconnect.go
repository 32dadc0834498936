package db

import (
	"context"
	"log"
	"time"

	"github.com/unklstewy/aprs-notify/pkg/config"
)

// OpenWithRetry opens the history database, retrying with exponential
// backoff. A postgres server on another host may still be starting when a
// cron job fires.
//
// Parameters:
//   - cfg: History configuration
//   - maxRetries: Maximum number of attempts (0 = keep trying until ctx is done)
//   - initialDelay: Initial wait time between attempts
func OpenWithRetry(ctx context.Context, cfg config.HistoryConfig, maxRetries int, initialDelay time.Duration) (*DB, error) {
	delay := initialDelay
	attempt := 0

	for {
		attempt++

		db, err := Open(ctx, cfg)
		if err == nil {
			if attempt > 1 {
				log.Printf("History database connected after %d attempts", attempt)
			}
			return db, nil
		}

		if maxRetries > 0 && attempt >= maxRetries {
			return nil, err
		}

		log.Printf("History database connection failed: %v (retry in %v)", err, delay)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}

		// Exponential backoff with cap at 60 seconds
		delay *= 2
		if delay > 60*time.Second {
			delay = 60 * time.Second
		}
	}
}

// HealthCheck reports whether the database answers a trivial query.
func HealthCheck(ctx context.Context, db *DB) bool {
	if db == nil {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		log.Printf("History health check failed: %v", err)
		return false
	}

	return result == 1
}
