package models

import "database/sql"

// Player represents a row in player_table: the global identity of a start.gg
// player independent of game.
type Player struct {
	PlayerID      int64          `db:"player_id"`
	Name          string         `db:"name"`
	Discriminator sql.NullString `db:"discriminator"`
}

// PlayerRating represents a row in ranking: one player's Glicko-2 state and
// dense rank for a single game.
type PlayerRating struct {
	PlayerID    int64   `db:"player_id"`
	GameID      int64   `db:"game_id"`
	Name        string  `db:"name"`
	Rating      float64 `db:"rating"`
	RD          float64 `db:"rd"`
	Volatility  float64 `db:"vol"`
	Rank        int     `db:"ranking"`
	Appearances int     `db:"appearances"`
}
