package repository

import (
	"context"
	"fmt"
	"sort"

	"fgcrank/ingestion/internal/metrics"

	"github.com/rs/zerolog/log"
)

// VideogameRepository handles the videogame_mapping allow-list
type VideogameRepository struct {
	db *Database
}

// LoadMapping retrieves the full game ID to name mapping
func (r *VideogameRepository) LoadMapping(ctx context.Context) (map[int64]string, error) {
	query := `SELECT id, name FROM videogame_mapping`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		metrics.RecordDBQuery("select", "videogame_mapping", "error")
		return nil, fmt.Errorf("failed to load videogame mapping: %w", err)
	}
	defer rows.Close()

	mapping := make(map[int64]string)
	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("failed to scan videogame mapping: %w", err)
		}
		mapping[id] = name
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating videogame mapping: %w", err)
	}

	metrics.RecordDBQuery("select", "videogame_mapping", "success")
	return mapping, nil
}

// LoadIDs returns all mapped game IDs, sorted ascending. start.gg's GraphQL
// ID scalar takes these as strings; callers convert at the query boundary.
func (r *VideogameRepository) LoadIDs(ctx context.Context) ([]int64, error) {
	mapping, err := r.LoadMapping(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(mapping))
	for id := range mapping {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// UpsertMapping inserts or updates mapping rows (for runs that learn new
// games when the saved-games filter is off)
func (r *VideogameRepository) UpsertMapping(ctx context.Context, mapping map[int64]string) error {
	query := `
		INSERT INTO videogame_mapping (id, name)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name
	`

	for id, name := range mapping {
		if _, err := r.db.Pool.Exec(ctx, query, id, name); err != nil {
			metrics.RecordDBQuery("upsert", "videogame_mapping", "error")
			return fmt.Errorf("failed to upsert videogame %d: %w", id, err)
		}
	}

	metrics.RecordDBQuery("upsert", "videogame_mapping", "success")
	log.Debug().Int("count", len(mapping)).Msg("Videogame mapping upserted")
	return nil
}
