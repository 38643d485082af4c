package rest

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/atutic/TicTacToe/internal/entity"
)

// Scores is the read side of the rating service exposed over HTTP.
type Scores interface {
	Scoreboard(ctx context.Context) ([]entity.ScoreEntry, error)
}

func Start(port string, scores Scores) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ping", pingHandler)
	mux.HandleFunc("/scoreboard", scoreboardHandler(scores))

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	if err := srv.ListenAndServe(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}
