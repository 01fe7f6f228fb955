package models

// Tournament is a tournament node returned by the start.gg search query.
// EndAt and StartAt are unix timestamps and may be null for unscheduled
// tournaments.
type Tournament struct {
	Name    string         `json:"name"`
	Slug    string         `json:"slug"`
	StartAt *int64         `json:"startAt"`
	EndAt   *int64         `json:"endAt"`
	Events  []EventSummary `json:"events"`
}

// EventSummary is the shallow event shape embedded in tournament search
// results, enough to run the saved-games filter without a second query.
type EventSummary struct {
	ID        int64     `json:"id"`
	Videogame Videogame `json:"videogame"`
}

// Videogame identifies a game on start.gg
type Videogame struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"displayName,omitempty"`
}

// HasMappedGame reports whether at least one of the tournament's events
// references a game ID present in the mapping. Tournaments with no events
// never match.
func (t *Tournament) HasMappedGame(mapped map[int64]struct{}) bool {
	for _, ev := range t.Events {
		if _, ok := mapped[ev.Videogame.ID]; ok {
			return true
		}
	}
	return false
}
