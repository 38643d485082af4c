package rest

import (
	"encoding/json"
	"net/http"
)

// scoreboardHandler serves the current standings as JSON, Elo descending.
func scoreboardHandler(scores Scores) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := scores.Scoreboard(r.Context())
		if err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err = json.NewEncoder(w).Encode(entries); err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
	}
}
