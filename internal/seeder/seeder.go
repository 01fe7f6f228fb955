// Package seeder drives tournament discovery: it pages through the start.gg
// tournament search for a location window, hands each tournament to the
// processor, and advances a resumable checkpoint.
package seeder

import (
	"context"
	"fmt"
	"sort"
	"time"

	"fgcrank/ingestion/internal/client"
	"fgcrank/ingestion/internal/metrics"
	"fgcrank/ingestion/internal/models"

	"github.com/rs/zerolog/log"
)

// TournamentSearcher is the search slice of the API client
type TournamentSearcher interface {
	SearchTournaments(ctx context.Context, filter client.TournamentFilter, sort string, page, perPage int) (*client.TournamentPage, error)
}

// TournamentProcessor handles one discovered tournament
type TournamentProcessor interface {
	ProcessTournament(ctx context.Context, slug string, savedGames bool) error
}

// VideogameSource supplies the game allow-list for server-side filtering
type VideogameSource interface {
	LoadIDs(ctx context.Context) ([]int64, error)
}

// CheckpointStore reads and advances the resume timestamp
type CheckpointStore interface {
	Get(ctx context.Context, key string) (int64, bool, error)
	Set(ctx context.Context, key string, timestamp int64) error
}

// Enricher runs a post-seed enrichment pass. Optional; nil disables it.
type Enricher interface {
	EnrichMissing(ctx context.Context) error
}

// Options controls one seeding run
type Options struct {
	Country       string
	State         string
	PerPage       int
	BeforeDate    *int64
	AfterDate     *int64
	Key           string
	SavedGames    bool
	DryRun        bool
	Sort          string
	SortAscending bool
}

// Result summarizes a seeding run
type Result struct {
	Fetched           int
	Processed         int
	Skipped           int
	Failed            int
	MaxEndAt          int64
	CheckpointWritten bool
}

// Seeder pages through tournament search results and processes each hit
type Seeder struct {
	searcher    TournamentSearcher
	processor   TournamentProcessor
	videogames  VideogameSource
	checkpoints CheckpointStore
	enricher    Enricher
}

// New creates a seeder. enricher may be nil to skip post-seed enrichment.
func New(searcher TournamentSearcher, processor TournamentProcessor, videogames VideogameSource, checkpoints CheckpointStore, enricher Enricher) *Seeder {
	return &Seeder{
		searcher:    searcher,
		processor:   processor,
		videogames:  videogames,
		checkpoints: checkpoints,
		enricher:    enricher,
	}
}

// Run executes one seeding pass over the configured location and date window.
// The lower bound of the window is the stored checkpoint unless opts.AfterDate
// overrides it. The checkpoint only advances after at least one tournament
// processed successfully, and never on a dry run.
func (s *Seeder) Run(ctx context.Context, opts Options) (*Result, error) {
	start := time.Now()

	if opts.PerPage <= 0 {
		return nil, fmt.Errorf("per-page must be positive, got %d", opts.PerPage)
	}
	if opts.Sort == "" {
		opts.Sort = string(client.SortEndAt)
	}
	if !client.ValidSort(opts.Sort) {
		return nil, fmt.Errorf("invalid sort field %q", opts.Sort)
	}
	if opts.Key == "" {
		opts.Key = "tournaments_endAt"
	}

	gameIDs, err := s.videogames.LoadIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load videogame ids: %w", err)
	}

	afterDate, err := s.resolveAfterDate(ctx, opts)
	if err != nil {
		return nil, err
	}

	filter := client.TournamentFilter{
		Country:    opts.Country,
		State:      opts.State,
		BeforeDate: opts.BeforeDate,
	}
	if afterDate != nil {
		filter.AfterDate = afterDate
	}
	if opts.SavedGames {
		filter.VideogameIDs = make([]string, len(gameIDs))
		for i, id := range gameIDs {
			filter.VideogameIDs[i] = fmt.Sprintf("%d", id)
		}
	}

	mapped := make(map[int64]struct{}, len(gameIDs))
	for _, id := range gameIDs {
		mapped[id] = struct{}{}
	}

	log.Info().
		Str("country", opts.Country).
		Str("state", opts.State).
		Int("per_page", opts.PerPage).
		Bool("saved_games", opts.SavedGames).
		Bool("dry_run", opts.DryRun).
		Msg("Starting tournament seeding")

	res := &Result{}
	// The checkpoint is the max endAt seen; start from the window's lower
	// bound so an empty run can never move it backwards.
	if afterDate != nil {
		res.MaxEndAt = *afterDate
	}

	tournaments, err := s.collect(ctx, opts, filter, res)
	if err != nil {
		metrics.RecordSync("seed", "error", time.Since(start).Seconds())
		return res, err
	}

	if opts.SortAscending {
		sortByField(tournaments, opts.Sort)
	}

	for _, t := range tournaments {
		if t.Slug == "" {
			res.Skipped++
			metrics.TournamentsSkipped.WithLabelValues("no_slug").Inc()
			continue
		}
		// The dry-run maximum covers every fetched tournament, filtered or
		// not; the real run's only covers what actually processed.
		if opts.DryRun && t.EndAt != nil && *t.EndAt > res.MaxEndAt {
			res.MaxEndAt = *t.EndAt
		}
		if opts.SavedGames && !t.HasMappedGame(mapped) {
			res.Skipped++
			metrics.TournamentsSkipped.WithLabelValues("unmapped_game").Inc()
			log.Debug().Str("slug", t.Slug).Msg("Skipping tournament with no mapped games")
			continue
		}

		if opts.DryRun {
			log.Info().Str("slug", t.Slug).Str("name", t.Name).Msg("Dry run: would process tournament")
			res.Processed++
			continue
		}

		if err := s.processor.ProcessTournament(ctx, t.Slug, opts.SavedGames); err != nil {
			res.Failed++
			metrics.RecordError("processor", "tournament_failed")
			log.Error().Err(err).Str("slug", t.Slug).Msg("Failed to process tournament, continuing")
			continue
		}
		res.Processed++
		if t.EndAt != nil && *t.EndAt > res.MaxEndAt {
			res.MaxEndAt = *t.EndAt
		}
	}

	if res.Processed > 0 && !opts.DryRun {
		if s.enricher != nil {
			if err := s.enricher.EnrichMissing(ctx); err != nil {
				log.Warn().Err(err).Msg("Player enrichment failed, checkpoint still advances")
			}
		}
		if err := s.checkpoints.Set(ctx, opts.Key, res.MaxEndAt); err != nil {
			metrics.RecordSync("seed", "error", time.Since(start).Seconds())
			return res, fmt.Errorf("failed to write checkpoint: %w", err)
		}
		res.CheckpointWritten = true
	}

	log.Info().
		Int("fetched", res.Fetched).
		Int("processed", res.Processed).
		Int("skipped", res.Skipped).
		Int("failed", res.Failed).
		Int64("max_end_at", res.MaxEndAt).
		Bool("checkpoint_written", res.CheckpointWritten).
		Dur("duration", time.Since(start)).
		Msg("Seeding run complete")

	metrics.RecordSync("seed", "success", time.Since(start).Seconds())
	return res, nil
}

// resolveAfterDate picks the window lower bound: an explicit --after-date
// wins, otherwise the stored checkpoint, otherwise open-ended
func (s *Seeder) resolveAfterDate(ctx context.Context, opts Options) (*int64, error) {
	if opts.AfterDate != nil {
		return opts.AfterDate, nil
	}

	ts, found, err := s.checkpoints.Get(ctx, opts.Key)
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint %q: %w", opts.Key, err)
	}
	if !found {
		log.Info().Str("key", opts.Key).Msg("No checkpoint found, seeding from the beginning")
		return nil, nil
	}

	log.Info().Str("key", opts.Key).Int64("timestamp", ts).Msg("Resuming from checkpoint")
	return &ts, nil
}

// collect pages through search results until a page comes back empty or
// short, or the reported page count is exhausted
func (s *Seeder) collect(ctx context.Context, opts Options, filter client.TournamentFilter, res *Result) ([]models.Tournament, error) {
	var tournaments []models.Tournament

	for page := 1; ; page++ {
		result, err := s.searcher.SearchTournaments(ctx, filter, opts.Sort, page, opts.PerPage)
		if err != nil {
			return tournaments, fmt.Errorf("failed to search tournaments on page %d: %w", page, err)
		}

		res.Fetched += len(result.Nodes)
		metrics.TournamentsFetched.Add(float64(len(result.Nodes)))
		tournaments = append(tournaments, result.Nodes...)

		log.Debug().
			Int("page", page).
			Int("count", len(result.Nodes)).
			Int("total_pages", result.PageInfo.TotalPages).
			Msg("Fetched tournament page")

		if len(result.Nodes) == 0 || len(result.Nodes) < opts.PerPage {
			break
		}
		if result.PageInfo.TotalPages > 0 && page >= result.PageInfo.TotalPages {
			break
		}
	}

	return tournaments, nil
}

// sortByField orders tournaments ascending by the requested sort field,
// nulls last. Only startAt and endAt are carried on search nodes; other sort
// fields keep the server order.
func sortByField(tournaments []models.Tournament, field string) {
	key := func(t models.Tournament) *int64 {
		switch client.TournamentSort(field) {
		case client.SortStartAt:
			return t.StartAt
		case client.SortEndAt:
			return t.EndAt
		default:
			return nil
		}
	}

	sort.SliceStable(tournaments, func(i, j int) bool {
		a, b := key(tournaments[i]), key(tournaments[j])
		if a == nil {
			return false
		}
		if b == nil {
			return true
		}
		return *a < *b
	})
}
