package models

import "database/sql"

// MatchRecord represents a row in history: one raw set outcome, recorded
// before rating updates so periods can be replayed.
type MatchRecord struct {
	ID        int64        `db:"id"`
	EventSlug string       `db:"event_slug"`
	WinnerID  int64        `db:"winner_id"`
	LoserID   int64        `db:"loser_id"`
	PlayedAt  sql.NullTime `db:"played_at"`
}
