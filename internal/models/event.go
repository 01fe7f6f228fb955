package models

import (
	"encoding/json"
	"fmt"
)

// Event is a bracket within a tournament, with its entrants attached.
// Fetched through the batched EventEntrants query.
type Event struct {
	ID          int64     `json:"id"`
	Slug        string    `json:"slug"`
	NumEntrants int       `json:"numEntrants"`
	StartAt     *int64    `json:"startAt"`
	Videogame   Videogame `json:"videogame"`
	Entrants    Entrants  `json:"entrants"`
}

// Entrants wraps the entrant connection's nodes
type Entrants struct {
	Nodes []Entrant `json:"nodes"`
}

// Entrant is a registration in an event. Singles entrants carry exactly one
// participant; teams carry several (only the first is ranked here, matching
// the singles-only scope of the ranking tables).
type Entrant struct {
	ID           int64         `json:"id"`
	Participants []Participant `json:"participants"`
}

// Participant links an entrant to a start.gg player account
type Participant struct {
	Player PlayerRef `json:"player"`
}

// PlayerRef is the player identity embedded in entrant participants
type PlayerRef struct {
	ID       int64  `json:"id"`
	GamerTag string `json:"gamerTag"`
}

// Set is a completed match between two entrants
type Set struct {
	ID       SetID     `json:"id"`
	WinnerID int64     `json:"winnerId"`
	Slots    []SetSlot `json:"slots"`
}

// SetSlot holds one side of a set
type SetSlot struct {
	Entrant *EntrantRef `json:"entrant"`
}

// EntrantRef is an entrant id reference inside a set slot
type EntrantRef struct {
	ID int64 `json:"id"`
}

// SetID is the start.gg set identifier. The API returns numeric ids for
// reported sets and strings like "preview_..." for unreported ones, so it is
// kept opaque.
type SetID string

// UnmarshalJSON accepts either a JSON number or string
func (s *SetID) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = SetID(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("set id is neither string nor number: %w", err)
	}
	*s = SetID(num.String())
	return nil
}
