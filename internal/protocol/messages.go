package protocol

// ADD_POINT (client -> server): place an attacker cell.
type AddPointMsg struct {
	Type string `json:"type"`
	X    int    `json:"x"`
	Y    int    `json:"y"`
}

// RESET_GAME (client -> server): request a fresh run.
// Honored only once the current run is over.
type ResetGameMsg struct {
	Type string `json:"type"`
}

// GRID_UPDATE (server -> client): full authoritative state.
type GridUpdateMsg struct {
	Type       string      `json:"type"`
	Grid       [][]uint8   `json:"grid"`
	Scores     Scores      `json:"scores"`
	Stats      Stats       `json:"stats"`
	Timer      int         `json:"timer"`
	GameOver   bool        `json:"game_over"`
	FinalStats *FinalStats `json:"final_stats,omitempty"`
}

type Scores struct {
	Defenders int `json:"defenders"`
	Attackers int `json:"attackers"`
}

type Stats struct {
	TerritoryControl float64 `json:"territory_control"`
	DefenderClusters int     `json:"defender_clusters"`
	AttackerClusters int     `json:"attacker_clusters"`
	Activity         int     `json:"activity"`
	CurrentRound     int     `json:"current_round"`
	PointsPlaced     int     `json:"points_placed"`
	LastUpdate       string  `json:"last_update,omitempty"`
}

type FinalStats struct {
	TotalRounds          int      `json:"total_rounds"`
	PointsPlaced         int      `json:"points_placed"`
	InitialDefenderCount int      `json:"initial_defender_count"`
	RankInfo             RankInfo `json:"rank_info"`
}

type RankInfo struct {
	Score       int    `json:"score"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// TIMER_UPDATE (server -> client): lightweight countdown tick.
type TimerUpdateMsg struct {
	Type  string `json:"type"`
	Timer int    `json:"timer"`
}

// GAME_RESET (server -> client): a new run has started.
type GameResetMsg struct {
	Type        string      `json:"type"`
	PatternInfo PatternInfo `json:"pattern_info"`
}

type PatternInfo struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Difficulty  int    `json:"difficulty"`
}
