// Package enrich backfills player profile details that tournament results
// don't carry, currently the start.gg user discriminator.
package enrich

import (
	"context"
	"fmt"
	"time"

	"fgcrank/ingestion/internal/client"
	"fgcrank/ingestion/internal/metrics"

	"github.com/rs/zerolog/log"
)

// AccountFetcher is the player-account slice of the API client
type AccountFetcher interface {
	PlayerAccounts(ctx context.Context, playerIDs []int64) (map[int64]client.PlayerAccount, error)
}

// PlayerStore is the slice of the player repository enrichment needs
type PlayerStore interface {
	ListMissingDiscriminators(ctx context.Context) ([]int64, error)
	SetDiscriminators(ctx context.Context, discriminators map[int64]string) error
}

// Cache marks players already checked so repeat runs skip them. Optional.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// Enricher resolves missing discriminators in batches
type Enricher struct {
	fetcher   AccountFetcher
	players   PlayerStore
	cache     Cache
	cacheTTL  time.Duration
	batchSize int
}

// New creates an enricher. cache may be nil to disable the checked-recently
// skip.
func New(fetcher AccountFetcher, players PlayerStore, cache Cache, cacheTTL time.Duration) *Enricher {
	return &Enricher{
		fetcher:   fetcher,
		players:   players,
		cache:     cache,
		cacheTTL:  cacheTTL,
		batchSize: 100,
	}
}

// EnrichMissing finds players without a discriminator and resolves them via
// batched player lookups. Players whose account has no user (or whose lookup
// came back empty) are cached so the next run doesn't re-query them.
func (e *Enricher) EnrichMissing(ctx context.Context) error {
	ids, err := e.players.ListMissingDiscriminators(ctx)
	if err != nil {
		return fmt.Errorf("failed to list players for enrichment: %w", err)
	}
	if len(ids) == 0 {
		log.Debug().Msg("No players missing discriminators")
		return nil
	}

	ids = e.filterCached(ctx, ids)
	if len(ids) == 0 {
		log.Debug().Msg("All candidates checked recently, skipping enrichment")
		return nil
	}

	log.Info().Int("players", len(ids)).Msg("Enriching player discriminators")

	resolved := 0
	for i := 0; i < len(ids); i += e.batchSize {
		end := i + e.batchSize
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[i:end]

		accounts, err := e.fetcher.PlayerAccounts(ctx, batch)
		if err != nil {
			return fmt.Errorf("failed to fetch player accounts: %w", err)
		}

		discriminators := make(map[int64]string)
		for _, id := range batch {
			account, ok := accounts[id]
			if ok && account.HasUser && account.Discriminator != "" {
				discriminators[id] = account.Discriminator
				continue
			}
			e.markChecked(ctx, id)
		}

		if len(discriminators) > 0 {
			if err := e.players.SetDiscriminators(ctx, discriminators); err != nil {
				return fmt.Errorf("failed to store discriminators: %w", err)
			}
			resolved += len(discriminators)
		}
	}

	log.Info().Int("resolved", resolved).Int("candidates", len(ids)).Msg("Discriminator enrichment complete")
	metrics.PlayersEnriched.Add(float64(resolved))
	return nil
}

func cacheKey(id int64) string {
	return fmt.Sprintf("enrich:checked:%d", id)
}

// filterCached drops IDs already marked as checked. Cache failures degrade
// to querying the full set, so ids must stay intact while filtering.
func (e *Enricher) filterCached(ctx context.Context, ids []int64) []int64 {
	if e.cache == nil {
		return ids
	}

	kept := make([]int64, 0, len(ids))
	for _, id := range ids {
		_, found, err := e.cache.Get(ctx, cacheKey(id))
		if err != nil {
			log.Warn().Err(err).Msg("Cache lookup failed, enriching without cache")
			return ids
		}
		if !found {
			kept = append(kept, id)
		}
	}
	return kept
}

func (e *Enricher) markChecked(ctx context.Context, id int64) {
	if e.cache == nil {
		return
	}
	if err := e.cache.Set(ctx, cacheKey(id), "1", e.cacheTTL); err != nil {
		log.Warn().Err(err).Int64("player_id", id).Msg("Failed to cache enrichment result")
	}
}
