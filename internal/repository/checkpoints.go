package repository

import (
	"context"
	"fmt"

	"fgcrank/ingestion/internal/metrics"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

// CheckpointRepository stores and retrieves progress timestamps from the
// last_updated table
type CheckpointRepository struct {
	db *Database
}

// Get retrieves the stored timestamp for a checkpoint key. The second return
// value is false when no checkpoint exists for the key.
func (r *CheckpointRepository) Get(ctx context.Context, key string) (int64, bool, error) {
	query := `SELECT timestamp FROM last_updated WHERE last_updated = $1`

	var ts int64
	err := r.db.Pool.QueryRow(ctx, query, key).Scan(&ts)
	if err == pgx.ErrNoRows {
		metrics.RecordDBQuery("select", "last_updated", "success")
		return 0, false, nil
	}
	if err != nil {
		metrics.RecordDBQuery("select", "last_updated", "error")
		return 0, false, fmt.Errorf("failed to get checkpoint %q: %w", key, err)
	}

	metrics.RecordDBQuery("select", "last_updated", "success")
	return ts, true, nil
}

// Set writes the timestamp for a checkpoint key, overwriting any prior value
func (r *CheckpointRepository) Set(ctx context.Context, key string, timestamp int64) error {
	query := `
		INSERT INTO last_updated (last_updated, timestamp)
		VALUES ($1, $2)
		ON CONFLICT (last_updated) DO UPDATE SET
			timestamp = EXCLUDED.timestamp
	`

	if _, err := r.db.Pool.Exec(ctx, query, key, timestamp); err != nil {
		metrics.RecordDBQuery("upsert", "last_updated", "error")
		return fmt.Errorf("failed to set checkpoint %q: %w", key, err)
	}

	metrics.RecordDBQuery("upsert", "last_updated", "success")
	metrics.SetCheckpoint(key, timestamp)
	log.Info().Str("key", key).Int64("timestamp", timestamp).Msg("Checkpoint updated")
	return nil
}
