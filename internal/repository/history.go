package repository

import (
	"context"
	"fmt"

	"fgcrank/ingestion/internal/metrics"
	"fgcrank/ingestion/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

// HistoryRepository persists raw match outcomes into the history table
type HistoryRepository struct {
	db *Database
}

// RecordMany inserts a batch of match records and returns the number written
func (r *HistoryRepository) RecordMany(ctx context.Context, records []models.MatchRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO history (event_slug, winner_id, loser_id, played_at)
		VALUES ($1, $2, $3, $4)
	`

	batch := &pgx.Batch{}
	for _, rec := range records {
		batch.Queue(query, rec.EventSlug, rec.WinnerID, rec.LoserID, rec.PlayedAt)
	}

	results := r.db.Pool.SendBatch(ctx, batch)
	defer results.Close()

	for range records {
		if _, err := results.Exec(); err != nil {
			metrics.RecordDBQuery("insert", "history", "error")
			return 0, fmt.Errorf("failed to record match history: %w", err)
		}
	}

	metrics.RecordDBQuery("insert", "history", "success")
	metrics.SetsRecorded.Add(float64(len(records)))
	log.Debug().Int("count", len(records)).Msg("Match history recorded")
	return len(records), nil
}

// CountByEvent returns how many outcomes are stored for an event slug
func (r *HistoryRepository) CountByEvent(ctx context.Context, eventSlug string) (int, error) {
	query := `SELECT COUNT(*) FROM history WHERE event_slug = $1`

	var count int
	if err := r.db.Pool.QueryRow(ctx, query, eventSlug).Scan(&count); err != nil {
		metrics.RecordDBQuery("select", "history", "error")
		return 0, fmt.Errorf("failed to count history for %q: %w", eventSlug, err)
	}

	metrics.RecordDBQuery("select", "history", "success")
	return count, nil
}
