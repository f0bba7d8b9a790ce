package ranking

import "math"

// Rank represents a player's rank by cumulative score
type Rank struct {
	Color     string `json:"color"`
	MinPoints int    `json:"min_points"`
	MaxPoints int    `json:"max_points"`
}

// Available ranks in ascending order
var Ranks = []Rank{
	{Color: "Gray", MinPoints: 0, MaxPoints: 99},
	{Color: "Violet", MinPoints: 100, MaxPoints: 249},
	{Color: "Indigo", MinPoints: 250, MaxPoints: 449},
	{Color: "Blue", MinPoints: 450, MaxPoints: 699},
	{Color: "Green", MinPoints: 700, MaxPoints: 999},
	{Color: "Yellow", MinPoints: 1000, MaxPoints: 1399},
	{Color: "Orange", MinPoints: 1400, MaxPoints: 1899},
	{Color: "Red", MinPoints: 1900, MaxPoints: math.MaxInt},
}

// Points awarded for finding the word
const (
	BasePoints    = 100
	MinWinPoints  = 10
	GuessPenalty  = 2
	MaxMultiplier = 2.0
)

// PointsForWin calculates the points earned by the winner of a session.
// guesses counts every stored guess of the session, the winning one
// included; players counts the distinct players who guessed.
func PointsForWin(guesses, players int) int {
	if guesses < 1 {
		guesses = 1
	}

	// Fewer guesses = more points
	basePoints := BasePoints - GuessPenalty*(guesses-1)
	if basePoints < MinWinPoints {
		basePoints = MinWinPoints
	}

	// Player count multiplier (more players = more points)
	playerMultiplier := 1.0
	if players > 1 {
		playerMultiplier = 1.0 + (float64(players-1) * 0.1) // 10% bonus per additional player
	}
	if playerMultiplier > MaxMultiplier {
		playerMultiplier = MaxMultiplier
	}

	return int(math.Round(float64(basePoints) * playerMultiplier))
}

// GetRankByPoints returns the rank for a given point total
func GetRankByPoints(points int) Rank {
	for _, rank := range Ranks {
		if points >= rank.MinPoints && points <= rank.MaxPoints {
			return rank
		}
	}
	return Ranks[0] // Default to Gray for negative totals
}
