package models

// VideogameMapping represents a row in videogame_mapping: a game ID the
// ranking pipeline is allowed to process. Maintained by an administrator, and
// grown automatically when a run is told to process unmapped games.
type VideogameMapping struct {
	ID   int64  `db:"id"`
	Name string `db:"name"`
}
