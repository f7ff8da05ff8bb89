package score

import "math"

// Breakdown is the terminal scoring summary for a completed run.
// Computed once when the last defender falls, immutable afterwards.
type Breakdown struct {
	TotalRounds          int     `json:"total_rounds"`
	PointsPlaced         int     `json:"points_placed"`
	InitialDefenderCount int     `json:"initial_defender_count"`
	PointEfficiency      float64 `json:"point_efficiency"`
	SpeedRating          float64 `json:"speed_rating"`
	ClickEfficiency      float64 `json:"click_efficiency"`
	WeightedScore        int     `json:"weighted_score"`
	Title                string  `json:"title"`
	Description          string  `json:"description"`
}

type tier struct {
	minScore    int
	title       string
	description string
}

// Evaluated top-down; inclusive lower bounds.
var tiers = []tier{
	{900, "Master Tactician", "Perfect execution! Your strategy was flawless."},
	{750, "Excellent Strategist", "Outstanding performance! Your approach was highly effective."},
	{600, "Skilled Commander", "Well played! You showed good strategic thinking."},
	{450, "Capable Leader", "Good job! Keep practicing to improve your efficiency."},
	{0, "Aspiring Strategist", "You achieved victory! Focus on efficiency to improve your rank."},
}

// ComputeRank rates a finished run on a 0-1000 scale.
//
// Point efficiency is perfect while placements stay at or below the
// initial defender count and decays exponentially past it. Speed is
// rated against the theoretical minimum of ceil(defenders/2) rounds.
// Click efficiency peaks at 2.5 placements per round.
// initialDefenders must be positive; runs are rejected at construction
// when a pattern decodes to zero defenders.
func ComputeRank(initialDefenders, pointsPlaced, roundCount int) Breakdown {
	pointsRatio := float64(pointsPlaced) / float64(initialDefenders)
	pointEfficiency := 1.0
	if pointsRatio > 1 {
		pointEfficiency = math.Exp(-(pointsRatio - 1) * 2)
	}

	theoreticalMinRounds := (initialDefenders + 1) / 2
	speedRating := math.Exp(-float64(roundCount-theoreticalMinRounds) / 15)

	denom := roundCount
	if denom < 1 {
		denom = 1
	}
	clicksPerRound := float64(pointsPlaced) / float64(denom)
	clickEfficiency := math.Exp(-math.Abs(clicksPerRound-2.5) / 2)

	weighted := 1000 * (0.5*pointEfficiency + 0.3*speedRating + 0.2*clickEfficiency)
	if weighted < 0 {
		weighted = 0
	}
	if weighted > 1000 {
		weighted = 1000
	}
	score := int(math.Round(weighted))

	b := Breakdown{
		TotalRounds:          roundCount,
		PointsPlaced:         pointsPlaced,
		InitialDefenderCount: initialDefenders,
		PointEfficiency:      pointEfficiency,
		SpeedRating:          speedRating,
		ClickEfficiency:      clickEfficiency,
		WeightedScore:        score,
	}
	for _, t := range tiers {
		if score >= t.minScore {
			b.Title = t.title
			b.Description = t.description
			break
		}
	}
	return b
}
