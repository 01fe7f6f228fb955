// Package rating implements the Glicko-2 rating system described in Mark
// Glickman's paper: http://www.glicko.net/glicko/glicko2.pdf
package rating

import "math"

const (
	// DefaultRating is the starting rating for an unrated player
	DefaultRating = 1500.0
	// DefaultRD is the starting rating deviation for an unrated player
	DefaultRD = 350.0
	// DefaultVolatility is the starting volatility for an unrated player
	DefaultVolatility = 0.06

	tau          = 0.5      // System constant (volatility change constraint)
	epsilon      = 0.000001 // Convergence tolerance
	glicko2Scale = 173.7178 // Conversion factor between scales
)

// Player holds one player's Glicko-2 state on the standard (1500-centered)
// scale
type Player struct {
	Rating     float64
	RD         float64
	Volatility float64
}

// NewPlayer returns an unrated player at the Glicko-2 defaults
func NewPlayer() Player {
	return Player{Rating: DefaultRating, RD: DefaultRD, Volatility: DefaultVolatility}
}

// Result is one game outcome from the rated player's perspective. Opponent
// values are the opponent's pre-period rating and deviation; Score is 1 for
// a win, 0 for a loss, 0.5 for a draw.
type Result struct {
	OpponentRating float64
	OpponentRD     float64
	Score          float64
}

func toGlicko2Scale(rating, rd float64) (float64, float64) {
	return (rating - DefaultRating) / glicko2Scale, rd / glicko2Scale
}

func fromGlicko2Scale(mu, phi float64) (float64, float64) {
	return mu*glicko2Scale + DefaultRating, phi * glicko2Scale
}

func g(phi float64) float64 {
	return 1.0 / math.Sqrt(1.0+3.0*phi*phi/(math.Pi*math.Pi))
}

func expectedScore(mu, muJ, phiJ float64) float64 {
	return 1.0 / (1.0 + math.Exp(-g(phiJ)*(mu-muJ)))
}

// Update applies one rating period of results to a player and returns the
// new state. A player with no results has their RD inflated for inactivity
// and keeps their rating and volatility.
func Update(player Player, results []Result) Player {
	// Step 2: convert to the Glicko-2 scale
	mu, phi := toGlicko2Scale(player.Rating, player.RD)
	sigma := player.Volatility

	if len(results) == 0 {
		phiStar := math.Sqrt(phi*phi + sigma*sigma)
		r, rd := fromGlicko2Scale(mu, phiStar)
		return Player{Rating: r, RD: rd, Volatility: sigma}
	}

	// Step 3: estimated variance of the rating from game outcomes
	var vInv float64
	for _, res := range results {
		muJ, phiJ := toGlicko2Scale(res.OpponentRating, res.OpponentRD)
		gPhiJ := g(phiJ)
		e := expectedScore(mu, muJ, phiJ)
		vInv += gPhiJ * gPhiJ * e * (1.0 - e)
	}
	v := 1.0 / vInv

	// Step 4: estimated improvement delta
	var delta float64
	for _, res := range results {
		muJ, phiJ := toGlicko2Scale(res.OpponentRating, res.OpponentRD)
		delta += g(phiJ) * (res.Score - expectedScore(mu, muJ, phiJ))
	}
	delta *= v

	// Step 5: new volatility via the Illinois algorithm
	a := math.Log(sigma * sigma)
	deltaSq := delta * delta
	phiSq := phi * phi

	f := func(x float64) float64 {
		ex := math.Exp(x)
		num := ex * (deltaSq - phiSq - v - ex)
		denom := 2.0 * (phiSq + v + ex) * (phiSq + v + ex)
		return num/denom - (x-a)/(tau*tau)
	}

	A := a
	var B float64
	if deltaSq > phiSq+v {
		B = math.Log(deltaSq - phiSq - v)
	} else {
		k := 1.0
		for f(a-k*tau) < 0 {
			k++
		}
		B = a - k*tau
	}

	fA := f(A)
	fB := f(B)
	for math.Abs(B-A) > epsilon {
		C := A + (A-B)*fA/(fB-fA)
		fC := f(C)
		if fC*fB < 0 {
			A = B
			fA = fB
		} else {
			fA = fA / 2.0
		}
		B = C
		fB = fC
	}
	sigmaNew := math.Exp(A / 2.0)

	// Step 6: pre-period deviation
	phiStar := math.Sqrt(phiSq + sigmaNew*sigmaNew)

	// Step 7: new deviation and rating
	phiNew := 1.0 / math.Sqrt(1.0/(phiStar*phiStar)+1.0/v)

	var muNew float64
	for _, res := range results {
		muJ, phiJ := toGlicko2Scale(res.OpponentRating, res.OpponentRD)
		muNew += g(phiJ) * (res.Score - expectedScore(mu, muJ, phiJ))
	}
	muNew = mu + phiNew*phiNew*muNew

	// Step 8: convert back to the standard scale
	r, rd := fromGlicko2Scale(muNew, phiNew)
	return Player{Rating: r, RD: rd, Volatility: sigmaNew}
}
