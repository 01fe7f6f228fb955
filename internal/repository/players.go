package repository

import (
	"context"
	"fmt"

	"fgcrank/ingestion/internal/metrics"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

// PlayerRepository handles the global player_table rows
type PlayerRepository struct {
	db *Database
}

// LoadNames retrieves the full player ID to gamer tag mapping
func (r *PlayerRepository) LoadNames(ctx context.Context) (map[int64]string, error) {
	query := `SELECT player_id, name FROM player_table`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		metrics.RecordDBQuery("select", "player_table", "error")
		return nil, fmt.Errorf("failed to load player names: %w", err)
	}
	defer rows.Close()

	names := make(map[int64]string)
	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("failed to scan player name: %w", err)
		}
		names[id] = name
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating player names: %w", err)
	}

	metrics.RecordDBQuery("select", "player_table", "success")
	return names, nil
}

// UpsertNames inserts or updates player names in bulk
func (r *PlayerRepository) UpsertNames(ctx context.Context, names map[int64]string) error {
	query := `
		INSERT INTO player_table (player_id, name)
		VALUES ($1, $2)
		ON CONFLICT (player_id) DO UPDATE SET
			name = EXCLUDED.name
	`

	batch := &pgx.Batch{}
	for id, name := range names {
		batch.Queue(query, id, name)
	}

	results := r.db.Pool.SendBatch(ctx, batch)
	defer results.Close()

	for range names {
		if _, err := results.Exec(); err != nil {
			metrics.RecordDBQuery("upsert", "player_table", "error")
			return fmt.Errorf("failed to upsert player names: %w", err)
		}
	}

	metrics.RecordDBQuery("upsert", "player_table", "success")
	log.Debug().Int("count", len(names)).Msg("Player names upserted")
	return nil
}

// ListMissingDiscriminators returns IDs of players without a stored
// discriminator, for the enrichment pass
func (r *PlayerRepository) ListMissingDiscriminators(ctx context.Context) ([]int64, error) {
	query := `
		SELECT player_id FROM player_table
		WHERE discriminator IS NULL OR discriminator = ''
		ORDER BY player_id
	`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		metrics.RecordDBQuery("select", "player_table", "error")
		return nil, fmt.Errorf("failed to list players missing discriminators: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan player id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating player ids: %w", err)
	}

	metrics.RecordDBQuery("select", "player_table", "success")
	return ids, nil
}

// SetDiscriminators stores resolved discriminators for existing players
func (r *PlayerRepository) SetDiscriminators(ctx context.Context, discriminators map[int64]string) error {
	query := `
		UPDATE player_table SET discriminator = $2
		WHERE player_id = $1
	`

	batch := &pgx.Batch{}
	for id, disc := range discriminators {
		batch.Queue(query, id, disc)
	}

	results := r.db.Pool.SendBatch(ctx, batch)
	defer results.Close()

	for range discriminators {
		if _, err := results.Exec(); err != nil {
			metrics.RecordDBQuery("update", "player_table", "error")
			return fmt.Errorf("failed to set discriminators: %w", err)
		}
	}

	metrics.RecordDBQuery("update", "player_table", "success")
	return nil
}
