package rating

// Match is one decided set between two players
type Match struct {
	WinnerID int64
	LoserID  int64
}

// Service applies batches of match outcomes as a single rating period
type Service struct{}

// NewService creates a rating service
func NewService() *Service {
	return &Service{}
}

// ApplyMatches updates players in place from a batch of matches. All results
// in the batch are evaluated against opponents' pre-period ratings, then each
// player who played is updated once. Matches referencing unknown players are
// ignored. Players without any games in the batch are left untouched.
func (s *Service) ApplyMatches(players map[int64]*Player, matches []Match) {
	results := make(map[int64][]Result, len(players))
	for _, m := range matches {
		winner, ok := players[m.WinnerID]
		if !ok {
			continue
		}
		loser, ok := players[m.LoserID]
		if !ok {
			continue
		}
		results[m.WinnerID] = append(results[m.WinnerID], Result{
			OpponentRating: loser.Rating,
			OpponentRD:     loser.RD,
			Score:          1,
		})
		results[m.LoserID] = append(results[m.LoserID], Result{
			OpponentRating: winner.Rating,
			OpponentRD:     winner.RD,
			Score:          0,
		})
	}

	for playerID, games := range results {
		if len(games) == 0 {
			continue
		}
		updated := Update(*players[playerID], games)
		*players[playerID] = updated
	}
}
