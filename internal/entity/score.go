package entity

import "time"

// ScoreEntry is one scoreboard row. Stored as JSON per player.
type ScoreEntry struct {
	Name           string `json:"name"`
	Wins           int    `json:"wins"`
	Losses         int    `json:"losses"`
	Draws          int    `json:"draws"`
	Elo            int    `json:"elo"`
	TournamentWins int    `json:"tournament_wins"`
}

// HistoryRecord is one completed match in the history log.
type HistoryRecord struct {
	Timestamp time.Time `json:"timestamp"`
	PlayerX   string    `json:"player_x"`
	PlayerO   string    `json:"player_o"`
	Winner    string    `json:"winner"`
	Moves     string    `json:"moves,omitempty"`
}
