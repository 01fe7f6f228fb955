// Package processor turns a tournament slug into rating updates: it walks
// the tournament's events, collects entrants and their sets, records raw
// outcomes, and applies one Glicko-2 rating period per set batch.
package processor

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"fgcrank/ingestion/internal/metrics"
	"fgcrank/ingestion/internal/models"
	"fgcrank/ingestion/internal/rating"

	"github.com/rs/zerolog/log"
)

// StartggClient is the slice of the API client the processor needs
type StartggClient interface {
	TournamentEvents(ctx context.Context, slug string) ([]models.EventSummary, error)
	EventEntrants(ctx context.Context, eventIDs []int64, perPage int) ([]models.Event, error)
	EntrantSets(ctx context.Context, entrantIDs []int64, perPage int) (map[int64][]models.Set, error)
}

// VideogameStore reads and grows the game allow-list
type VideogameStore interface {
	LoadMapping(ctx context.Context) (map[int64]string, error)
	UpsertMapping(ctx context.Context, mapping map[int64]string) error
}

// PlayerStore persists global player names
type PlayerStore interface {
	LoadNames(ctx context.Context) (map[int64]string, error)
	UpsertNames(ctx context.Context, names map[int64]string) error
}

// RankingStore persists per-game Glicko-2 state
type RankingStore interface {
	LoadByGame(ctx context.Context, gameID int64) (map[int64]*models.PlayerRating, error)
	SaveAll(ctx context.Context, ratings []*models.PlayerRating) error
}

// HistoryStore persists raw match outcomes
type HistoryStore interface {
	RecordMany(ctx context.Context, records []models.MatchRecord) (int, error)
}

// Processor processes tournaments into rating updates
type Processor struct {
	client     StartggClient
	videogames VideogameStore
	players    PlayerStore
	rankings   RankingStore
	history    HistoryStore
	ratings    *rating.Service

	// Batch sizes for the aliased start.gg queries
	maxSetBatch     int
	entrantsPerPage int
	setsPerPage     int
}

// New creates a processor wired to the given stores
func New(client StartggClient, videogames VideogameStore, players PlayerStore, rankings RankingStore, history HistoryStore, ratings *rating.Service) *Processor {
	return &Processor{
		client:          client,
		videogames:      videogames,
		players:         players,
		rankings:        rankings,
		history:         history,
		ratings:         ratings,
		maxSetBatch:     25,
		entrantsPerPage: 512,
		setsPerPage:     20,
	}
}

// ProcessTournament fetches a tournament's events by slug and processes each
// one. When savedGames is true, only events whose game ID is in the mapping
// are processed; otherwise every event is processed and newly seen games are
// learned into the mapping.
func (p *Processor) ProcessTournament(ctx context.Context, slug string, savedGames bool) error {
	log.Info().Str("slug", slug).Msg("Processing tournament")

	events, err := p.client.TournamentEvents(ctx, slug)
	if err != nil {
		return fmt.Errorf("failed to fetch events for %q: %w", slug, err)
	}

	mapping, err := p.videogames.LoadMapping(ctx)
	if err != nil {
		return fmt.Errorf("failed to load videogame mapping: %w", err)
	}

	if savedGames {
		kept := events[:0]
		for _, ev := range events {
			if _, ok := mapping[ev.Videogame.ID]; ok {
				kept = append(kept, ev)
			}
		}
		events = kept
	}

	if len(events) == 0 {
		log.Info().Str("slug", slug).Msg("No processable events in tournament")
		return nil
	}

	eventIDs := make([]int64, len(events))
	for i, ev := range events {
		eventIDs[i] = ev.ID
	}

	fullEvents, err := p.client.EventEntrants(ctx, eventIDs, p.entrantsPerPage)
	if err != nil {
		return fmt.Errorf("failed to fetch entrants for %q: %w", slug, err)
	}

	for _, ev := range fullEvents {
		gameID := ev.Videogame.ID
		if _, mapped := mapping[gameID]; !mapped {
			if savedGames {
				continue
			}
			mapping[gameID] = ev.Videogame.Name
		}

		var eventTime sql.NullTime
		if ev.StartAt != nil {
			eventTime = sql.NullTime{Time: time.Unix(*ev.StartAt, 0).UTC(), Valid: true}
		}

		if err := p.processEvent(ctx, ev, eventTime); err != nil {
			return fmt.Errorf("failed to process event %q: %w", ev.Slug, err)
		}
	}

	if err := p.videogames.UpsertMapping(ctx, mapping); err != nil {
		return err
	}

	metrics.TournamentsProcessed.Inc()
	return nil
}

// processEvent runs one event's entrants through set collection, history
// recording, and rating updates
func (p *Processor) processEvent(ctx context.Context, ev models.Event, eventTime sql.NullTime) error {
	gameID := ev.Videogame.ID

	names, err := p.players.LoadNames(ctx)
	if err != nil {
		return err
	}
	rated, err := p.rankings.LoadByGame(ctx, gameID)
	if err != nil {
		return err
	}

	players := make(map[int64]*rating.Player, len(rated))
	appearances := make(map[int64]int, len(rated))
	for pid, row := range rated {
		players[pid] = &rating.Player{Rating: row.Rating, RD: row.RD, Volatility: row.Volatility}
		appearances[pid] = row.Appearances
	}

	entrantToPlayer := make(map[int64]int64, len(ev.Entrants.Nodes))
	var entrantIDs []int64
	for _, entrant := range ev.Entrants.Nodes {
		if len(entrant.Participants) == 0 {
			continue
		}
		player := entrant.Participants[0].Player
		if _, known := players[player.ID]; !known {
			fresh := rating.NewPlayer()
			players[player.ID] = &fresh
			appearances[player.ID] = 1
			names[player.ID] = player.GamerTag
		} else {
			appearances[player.ID]++
		}
		entrantToPlayer[entrant.ID] = player.ID
		entrantIDs = append(entrantIDs, entrant.ID)
	}

	log.Info().
		Str("event", ev.Slug).
		Str("game", ev.Videogame.Name).
		Int("entrants", len(entrantIDs)).
		Msg("Processing event")

	seenSets := make(map[models.SetID]struct{})
	for i := 0; i < len(entrantIDs); i += p.maxSetBatch {
		end := i + p.maxSetBatch
		if end > len(entrantIDs) {
			end = len(entrantIDs)
		}
		batch := entrantIDs[i:end]

		sets, err := p.client.EntrantSets(ctx, batch, p.setsPerPage)
		if err != nil {
			return err
		}

		matches := extractMatches(batch, sets, entrantToPlayer, seenSets)
		if len(matches) == 0 {
			continue
		}

		records := make([]models.MatchRecord, len(matches))
		for j, m := range matches {
			records[j] = models.MatchRecord{
				EventSlug: ev.Slug,
				WinnerID:  m.WinnerID,
				LoserID:   m.LoserID,
				PlayedAt:  eventTime,
			}
		}
		if _, err := p.history.RecordMany(ctx, records); err != nil {
			return err
		}

		p.ratings.ApplyMatches(players, matches)
	}

	rows := buildRankingRows(gameID, players, appearances, names)
	if err := p.rankings.SaveAll(ctx, rows); err != nil {
		return err
	}
	return p.players.UpsertNames(ctx, names)
}

// extractMatches turns batched set responses into oriented (winner, loser)
// player pairs. Sets are de-duplicated by set ID (both entrants of a set are
// usually in the batch), walked oldest first, and dropped when unreported or
// when either slot's entrant is outside the event.
func extractMatches(batch []int64, sets map[int64][]models.Set, entrantToPlayer map[int64]int64, seen map[models.SetID]struct{}) []rating.Match {
	var matches []rating.Match
	for _, entrantID := range batch {
		entrantSets := sets[entrantID]
		// paginatedSets returns newest first; replay in played order
		for i := len(entrantSets) - 1; i >= 0; i-- {
			set := entrantSets[i]
			if _, dup := seen[set.ID]; dup {
				continue
			}
			seen[set.ID] = struct{}{}

			if set.WinnerID == 0 || len(set.Slots) < 2 {
				continue
			}
			if set.Slots[0].Entrant == nil || set.Slots[1].Entrant == nil {
				continue
			}
			e1 := set.Slots[0].Entrant.ID
			e2 := set.Slots[1].Entrant.ID
			p1, ok1 := entrantToPlayer[e1]
			p2, ok2 := entrantToPlayer[e2]
			if !ok1 || !ok2 {
				continue
			}

			switch set.WinnerID {
			case e1:
				matches = append(matches, rating.Match{WinnerID: p1, LoserID: p2})
			case e2:
				matches = append(matches, rating.Match{WinnerID: p2, LoserID: p1})
			}
		}
	}
	return matches
}

// buildRankingRows orders players by rating and assigns dense ranks 1..N
func buildRankingRows(gameID int64, players map[int64]*rating.Player, appearances map[int64]int, names map[int64]string) []*models.PlayerRating {
	rows := make([]*models.PlayerRating, 0, len(players))
	for pid, p := range players {
		name, ok := names[pid]
		if !ok {
			name = "Unknown"
		}
		rows = append(rows, &models.PlayerRating{
			PlayerID:    pid,
			GameID:      gameID,
			Name:        name,
			Rating:      p.Rating,
			RD:          p.RD,
			Volatility:  p.Volatility,
			Appearances: appearances[pid],
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Rating != rows[j].Rating {
			return rows[i].Rating > rows[j].Rating
		}
		return rows[i].PlayerID < rows[j].PlayerID
	})
	for i, row := range rows {
		row.Rank = i + 1
	}
	return rows
}
