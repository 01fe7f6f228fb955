package repository

import (
	"context"
	"fmt"

	"fgcrank/ingestion/internal/metrics"
	"fgcrank/ingestion/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

// RankingRepository handles per-game Glicko-2 state in the ranking table
type RankingRepository struct {
	db *Database
}

// LoadByGame retrieves all rated players for a game, keyed by player ID
func (r *RankingRepository) LoadByGame(ctx context.Context, gameID int64) (map[int64]*models.PlayerRating, error) {
	query := `
		SELECT player_id, game_id, name, rating, rd, vol, ranking, appearances
		FROM ranking
		WHERE game_id = $1
	`

	rows, err := r.db.Pool.Query(ctx, query, gameID)
	if err != nil {
		metrics.RecordDBQuery("select", "ranking", "error")
		return nil, fmt.Errorf("failed to load rankings for game %d: %w", gameID, err)
	}
	defer rows.Close()

	players := make(map[int64]*models.PlayerRating)
	for rows.Next() {
		var p models.PlayerRating
		err := rows.Scan(
			&p.PlayerID, &p.GameID, &p.Name,
			&p.Rating, &p.RD, &p.Volatility,
			&p.Rank, &p.Appearances,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ranking row: %w", err)
		}
		players[p.PlayerID] = &p
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ranking rows: %w", err)
	}

	metrics.RecordDBQuery("select", "ranking", "success")
	return players, nil
}

// SaveAll upserts a game's full ranking. Callers pass rows already ordered
// and ranked; rank assignment happens in the processor so it stays testable.
func (r *RankingRepository) SaveAll(ctx context.Context, ratings []*models.PlayerRating) error {
	query := `
		INSERT INTO ranking (player_id, game_id, name, rating, rd, vol, ranking, appearances)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (player_id, game_id) DO UPDATE SET
			name = EXCLUDED.name,
			rating = EXCLUDED.rating,
			rd = EXCLUDED.rd,
			vol = EXCLUDED.vol,
			ranking = EXCLUDED.ranking,
			appearances = EXCLUDED.appearances
	`

	batch := &pgx.Batch{}
	for _, p := range ratings {
		batch.Queue(query,
			p.PlayerID, p.GameID, p.Name,
			p.Rating, p.RD, p.Volatility,
			p.Rank, p.Appearances,
		)
	}

	results := r.db.Pool.SendBatch(ctx, batch)
	defer results.Close()

	for range ratings {
		if _, err := results.Exec(); err != nil {
			metrics.RecordDBQuery("upsert", "ranking", "error")
			return fmt.Errorf("failed to save rankings: %w", err)
		}
	}

	metrics.RecordDBQuery("upsert", "ranking", "success")
	metrics.PlayersRated.Set(float64(len(ratings)))
	log.Debug().Int("count", len(ratings)).Msg("Rankings saved")
	return nil
}

// TopByGame retrieves the best-ranked players for a game, for reporting
func (r *RankingRepository) TopByGame(ctx context.Context, gameID int64, limit int) ([]*models.PlayerRating, error) {
	query := `
		SELECT player_id, game_id, name, rating, rd, vol, ranking, appearances
		FROM ranking
		WHERE game_id = $1
		ORDER BY ranking
		LIMIT $2
	`

	rows, err := r.db.Pool.Query(ctx, query, gameID, limit)
	if err != nil {
		metrics.RecordDBQuery("select", "ranking", "error")
		return nil, fmt.Errorf("failed to list top rankings: %w", err)
	}
	defer rows.Close()

	var ratings []*models.PlayerRating
	for rows.Next() {
		var p models.PlayerRating
		err := rows.Scan(
			&p.PlayerID, &p.GameID, &p.Name,
			&p.Rating, &p.RD, &p.Volatility,
			&p.Rank, &p.Appearances,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ranking row: %w", err)
		}
		ratings = append(ratings, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ranking rows: %w", err)
	}

	metrics.RecordDBQuery("select", "ranking", "success")
	return ratings, nil
}
