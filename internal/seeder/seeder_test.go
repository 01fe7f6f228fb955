package seeder

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"fgcrank/ingestion/internal/client"
	"fgcrank/ingestion/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSearcher struct {
	tournaments []models.Tournament
	perPageSeen int
	calls       int
	lastFilter  client.TournamentFilter
}

func (f *fakeSearcher) SearchTournaments(_ context.Context, filter client.TournamentFilter, _ string, page, perPage int) (*client.TournamentPage, error) {
	f.calls++
	f.perPageSeen = perPage
	f.lastFilter = filter

	start := (page - 1) * perPage
	end := start + perPage
	if start > len(f.tournaments) {
		start = len(f.tournaments)
	}
	if end > len(f.tournaments) {
		end = len(f.tournaments)
	}

	totalPages := (len(f.tournaments) + perPage - 1) / perPage
	return &client.TournamentPage{
		PageInfo: client.PageInfo{
			Total:      len(f.tournaments),
			TotalPages: totalPages,
			Page:       page,
			PerPage:    perPage,
		},
		Nodes: f.tournaments[start:end],
	}, nil
}

type fakeProcessor struct {
	processed []string
	failSlugs map[string]bool
}

func (f *fakeProcessor) ProcessTournament(_ context.Context, slug string, _ bool) error {
	if f.failSlugs[slug] {
		return errors.New("boom")
	}
	f.processed = append(f.processed, slug)
	return nil
}

type fakeVideogames struct {
	ids []int64
}

func (f *fakeVideogames) LoadIDs(context.Context) ([]int64, error) {
	return f.ids, nil
}

type fakeCheckpoints struct {
	stored map[string]int64
	sets   int
	setErr error
}

func (f *fakeCheckpoints) Get(_ context.Context, key string) (int64, bool, error) {
	ts, ok := f.stored[key]
	return ts, ok, nil
}

func (f *fakeCheckpoints) Set(_ context.Context, key string, ts int64) error {
	if f.setErr != nil {
		return f.setErr
	}
	if f.stored == nil {
		f.stored = map[string]int64{}
	}
	f.stored[key] = ts
	f.sets++
	return nil
}

func ptr(v int64) *int64 { return &v }

func tournamentWithGame(slug string, endAt *int64, gameID int64) models.Tournament {
	return models.Tournament{
		Name:   slug,
		Slug:   slug,
		EndAt:  endAt,
		Events: []models.EventSummary{{ID: 1, Videogame: models.Videogame{ID: gameID}}},
	}
}

func newTestSeeder(searcher *fakeSearcher, proc *fakeProcessor, games *fakeVideogames, cps *fakeCheckpoints) *Seeder {
	return New(searcher, proc, games, cps, nil)
}

// 125 tournaments at 50 per page must take exactly three search requests: two
// full pages and one short page that stops pagination.
func TestRunPaginatesUntilShortPage(t *testing.T) {
	var all []models.Tournament
	for i := 0; i < 125; i++ {
		all = append(all, tournamentWithGame(fmt.Sprintf("t%d", i), ptr(int64(1000+i)), 1))
	}
	searcher := &fakeSearcher{tournaments: all}
	proc := &fakeProcessor{}
	cps := &fakeCheckpoints{}

	s := newTestSeeder(searcher, proc, &fakeVideogames{ids: []int64{1}}, cps)
	res, err := s.Run(context.Background(), Options{PerPage: 50, SavedGames: true})

	require.NoError(t, err)
	assert.Equal(t, 3, searcher.calls)
	assert.Equal(t, 125, res.Fetched)
	assert.Equal(t, 125, res.Processed)
}

func TestRunDryRunWritesNoCheckpoint(t *testing.T) {
	searcher := &fakeSearcher{tournaments: []models.Tournament{
		tournamentWithGame("evo", ptr(1700000000), 1),
	}}
	proc := &fakeProcessor{}
	cps := &fakeCheckpoints{}

	s := newTestSeeder(searcher, proc, &fakeVideogames{ids: []int64{1}}, cps)
	res, err := s.Run(context.Background(), Options{PerPage: 50, SavedGames: true, DryRun: true})

	require.NoError(t, err)
	assert.Equal(t, 1, res.Processed)
	assert.Empty(t, proc.processed, "dry run must not process tournaments")
	assert.Zero(t, cps.sets, "dry run must not write a checkpoint")
	assert.False(t, res.CheckpointWritten)
	assert.Equal(t, int64(1700000000), res.MaxEndAt)
}

// The dry-run report covers the whole fetched window: a tournament the
// saved-games filter would skip still counts toward the reported maximum.
func TestRunDryRunMaxCoversFilteredTournaments(t *testing.T) {
	searcher := &fakeSearcher{tournaments: []models.Tournament{
		tournamentWithGame("mapped", ptr(1700000000), 1),
		tournamentWithGame("unmapped-but-newer", ptr(1700000500), 99),
	}}
	cps := &fakeCheckpoints{}

	s := newTestSeeder(searcher, &fakeProcessor{}, &fakeVideogames{ids: []int64{1}}, cps)
	res, err := s.Run(context.Background(), Options{PerPage: 50, SavedGames: true, DryRun: true})

	require.NoError(t, err)
	assert.Equal(t, 1, res.Processed)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, int64(1700000500), res.MaxEndAt)
	assert.Zero(t, cps.sets)
}

func TestRunAdvancesCheckpointToMaxEndAt(t *testing.T) {
	searcher := &fakeSearcher{tournaments: []models.Tournament{
		tournamentWithGame("second", ptr(1700000500), 1),
		tournamentWithGame("first", ptr(1700000000), 1),
		tournamentWithGame("unscheduled", nil, 1),
	}}
	proc := &fakeProcessor{}
	cps := &fakeCheckpoints{}

	s := newTestSeeder(searcher, proc, &fakeVideogames{ids: []int64{1}}, cps)
	res, err := s.Run(context.Background(), Options{
		Country: "CA", State: "BC", PerPage: 50, SavedGames: true,
	})

	require.NoError(t, err)
	assert.Equal(t, 3, res.Processed)
	assert.True(t, res.CheckpointWritten)
	assert.Equal(t, int64(1700000500), cps.stored["tournaments_endAt"])
}

func TestRunCheckpointNeverRegresses(t *testing.T) {
	searcher := &fakeSearcher{tournaments: []models.Tournament{
		tournamentWithGame("old", ptr(1600000000), 1),
	}}
	proc := &fakeProcessor{}
	cps := &fakeCheckpoints{stored: map[string]int64{"tournaments_endAt": 1700000000}}

	s := newTestSeeder(searcher, proc, &fakeVideogames{ids: []int64{1}}, cps)
	res, err := s.Run(context.Background(), Options{PerPage: 50, SavedGames: true})

	require.NoError(t, err)
	assert.Equal(t, int64(1700000000), res.MaxEndAt)
	assert.Equal(t, int64(1700000000), cps.stored["tournaments_endAt"])
}

func TestRunResumesFromCheckpoint(t *testing.T) {
	searcher := &fakeSearcher{tournaments: []models.Tournament{
		tournamentWithGame("t", ptr(1700000100), 1),
	}}
	cps := &fakeCheckpoints{stored: map[string]int64{"tournaments_endAt": 1700000000}}

	s := newTestSeeder(searcher, &fakeProcessor{}, &fakeVideogames{ids: []int64{1}}, cps)
	_, err := s.Run(context.Background(), Options{PerPage: 50, SavedGames: true})

	require.NoError(t, err)
	require.NotNil(t, searcher.lastFilter.AfterDate)
	assert.Equal(t, int64(1700000000), *searcher.lastFilter.AfterDate)
}

func TestRunAfterDateOverridesCheckpoint(t *testing.T) {
	searcher := &fakeSearcher{tournaments: []models.Tournament{
		tournamentWithGame("t", ptr(1700000100), 1),
	}}
	cps := &fakeCheckpoints{stored: map[string]int64{"tournaments_endAt": 1700000000}}

	s := newTestSeeder(searcher, &fakeProcessor{}, &fakeVideogames{ids: []int64{1}}, cps)
	_, err := s.Run(context.Background(), Options{
		PerPage: 50, SavedGames: true, AfterDate: ptr(1500000000),
	})

	require.NoError(t, err)
	require.NotNil(t, searcher.lastFilter.AfterDate)
	assert.Equal(t, int64(1500000000), *searcher.lastFilter.AfterDate)
}

func TestRunSavedGamesFiltersUnmappedTournaments(t *testing.T) {
	searcher := &fakeSearcher{tournaments: []models.Tournament{
		tournamentWithGame("mapped", ptr(1000), 1),
		tournamentWithGame("unmapped", ptr(2000), 99),
	}}
	proc := &fakeProcessor{}
	cps := &fakeCheckpoints{}

	s := newTestSeeder(searcher, proc, &fakeVideogames{ids: []int64{1}}, cps)
	res, err := s.Run(context.Background(), Options{PerPage: 50, SavedGames: true})

	require.NoError(t, err)
	assert.Equal(t, []string{"mapped"}, proc.processed)
	assert.Equal(t, 1, res.Skipped)
	// The skipped tournament's endAt must not leak into the checkpoint
	assert.Equal(t, int64(1000), cps.stored["tournaments_endAt"])
}

func TestRunSavedGamesDisabledProcessesEverything(t *testing.T) {
	searcher := &fakeSearcher{tournaments: []models.Tournament{
		tournamentWithGame("mapped", ptr(1000), 1),
		tournamentWithGame("unmapped", ptr(2000), 99),
	}}
	proc := &fakeProcessor{}
	cps := &fakeCheckpoints{}

	s := newTestSeeder(searcher, proc, &fakeVideogames{ids: []int64{1}}, cps)
	res, err := s.Run(context.Background(), Options{PerPage: 50, SavedGames: false})

	require.NoError(t, err)
	assert.Len(t, proc.processed, 2)
	assert.Zero(t, res.Skipped)
	assert.Nil(t, searcher.lastFilter.VideogameIDs, "no server-side game filter without saved-games")
}

func TestRunSkipsTournamentsWithoutSlug(t *testing.T) {
	searcher := &fakeSearcher{tournaments: []models.Tournament{
		{Name: "broken", EndAt: ptr(int64(1000)), Events: []models.EventSummary{{Videogame: models.Videogame{ID: 1}}}},
		tournamentWithGame("ok", ptr(2000), 1),
	}}
	proc := &fakeProcessor{}

	s := newTestSeeder(searcher, proc, &fakeVideogames{ids: []int64{1}}, &fakeCheckpoints{})
	res, err := s.Run(context.Background(), Options{PerPage: 50, SavedGames: true})

	require.NoError(t, err)
	assert.Equal(t, []string{"ok"}, proc.processed)
	assert.Equal(t, 1, res.Skipped)
}

// A tournament that fails to process is logged and skipped; the run continues
// and the checkpoint only reflects successful tournaments.
func TestRunContinuesPastFailures(t *testing.T) {
	searcher := &fakeSearcher{tournaments: []models.Tournament{
		tournamentWithGame("good", ptr(1000), 1),
		tournamentWithGame("bad", ptr(5000), 1),
		tournamentWithGame("also-good", ptr(2000), 1),
	}}
	proc := &fakeProcessor{failSlugs: map[string]bool{"bad": true}}
	cps := &fakeCheckpoints{}

	s := newTestSeeder(searcher, proc, &fakeVideogames{ids: []int64{1}}, cps)
	res, err := s.Run(context.Background(), Options{PerPage: 50, SavedGames: true})

	require.NoError(t, err)
	assert.Equal(t, 2, res.Processed)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, int64(2000), cps.stored["tournaments_endAt"], "failed tournament must not advance the checkpoint")
}

// A run whose tournaments all processed but whose checkpoint write failed
// must surface the error rather than report success.
func TestRunCheckpointWriteFailureReturnsError(t *testing.T) {
	searcher := &fakeSearcher{tournaments: []models.Tournament{
		tournamentWithGame("t", ptr(1700000000), 1),
	}}
	proc := &fakeProcessor{}
	cps := &fakeCheckpoints{setErr: errors.New("connection reset")}

	s := newTestSeeder(searcher, proc, &fakeVideogames{ids: []int64{1}}, cps)
	res, err := s.Run(context.Background(), Options{PerPage: 50, SavedGames: true})

	require.Error(t, err)
	assert.ErrorContains(t, err, "failed to write checkpoint")
	require.NotNil(t, res)
	assert.Equal(t, 1, res.Processed, "processing happened before the write failed")
	assert.False(t, res.CheckpointWritten)
}

func TestRunNothingProcessedWritesNoCheckpoint(t *testing.T) {
	searcher := &fakeSearcher{}
	cps := &fakeCheckpoints{}

	s := newTestSeeder(searcher, &fakeProcessor{}, &fakeVideogames{ids: []int64{1}}, cps)
	res, err := s.Run(context.Background(), Options{PerPage: 50, SavedGames: true})

	require.NoError(t, err)
	assert.Zero(t, res.Processed)
	assert.Zero(t, cps.sets)
}

func TestRunRejectsInvalidSort(t *testing.T) {
	s := newTestSeeder(&fakeSearcher{}, &fakeProcessor{}, &fakeVideogames{}, &fakeCheckpoints{})

	_, err := s.Run(context.Background(), Options{PerPage: 50, Sort: "wins"})

	assert.Error(t, err)
}

func TestRunRejectsNonPositivePerPage(t *testing.T) {
	s := newTestSeeder(&fakeSearcher{}, &fakeProcessor{}, &fakeVideogames{}, &fakeCheckpoints{})

	_, err := s.Run(context.Background(), Options{PerPage: 0})

	assert.Error(t, err)
}

func TestRunSortAscendingProcessesOldestFirst(t *testing.T) {
	searcher := &fakeSearcher{tournaments: []models.Tournament{
		tournamentWithGame("newest", ptr(3000), 1),
		tournamentWithGame("oldest", ptr(1000), 1),
		tournamentWithGame("middle", ptr(2000), 1),
		tournamentWithGame("unscheduled", nil, 1),
	}}
	proc := &fakeProcessor{}

	s := newTestSeeder(searcher, proc, &fakeVideogames{ids: []int64{1}}, &fakeCheckpoints{})
	_, err := s.Run(context.Background(), Options{
		PerPage: 50, SavedGames: true, Sort: "endAt", SortAscending: true,
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"oldest", "middle", "newest", "unscheduled"}, proc.processed)
}

type fakeEnricher struct {
	calls int
	err   error
}

func (f *fakeEnricher) EnrichMissing(context.Context) error {
	f.calls++
	return f.err
}

func TestRunEnrichesAfterProcessing(t *testing.T) {
	searcher := &fakeSearcher{tournaments: []models.Tournament{
		tournamentWithGame("t", ptr(1000), 1),
	}}
	enricher := &fakeEnricher{}
	cps := &fakeCheckpoints{}

	s := New(searcher, &fakeProcessor{}, &fakeVideogames{ids: []int64{1}}, cps, enricher)
	_, err := s.Run(context.Background(), Options{PerPage: 50, SavedGames: true})

	require.NoError(t, err)
	assert.Equal(t, 1, enricher.calls)
}

func TestRunEnrichmentFailureStillAdvancesCheckpoint(t *testing.T) {
	searcher := &fakeSearcher{tournaments: []models.Tournament{
		tournamentWithGame("t", ptr(1000), 1),
	}}
	enricher := &fakeEnricher{err: errors.New("api down")}
	cps := &fakeCheckpoints{}

	s := New(searcher, &fakeProcessor{}, &fakeVideogames{ids: []int64{1}}, cps, enricher)
	res, err := s.Run(context.Background(), Options{PerPage: 50, SavedGames: true})

	require.NoError(t, err)
	assert.True(t, res.CheckpointWritten)
	assert.Equal(t, int64(1000), cps.stored["tournaments_endAt"])
}

func TestRunSkipsEnrichmentOnDryRun(t *testing.T) {
	searcher := &fakeSearcher{tournaments: []models.Tournament{
		tournamentWithGame("t", ptr(1000), 1),
	}}
	enricher := &fakeEnricher{}

	s := New(searcher, &fakeProcessor{}, &fakeVideogames{ids: []int64{1}}, &fakeCheckpoints{}, enricher)
	_, err := s.Run(context.Background(), Options{PerPage: 50, SavedGames: true, DryRun: true})

	require.NoError(t, err)
	assert.Zero(t, enricher.calls)
}
