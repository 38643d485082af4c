package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/atutic/TicTacToe/internal/entity"
)

const (
	eloInitial = 1000
	eloKFactor = 32
)

type ScoreRepository interface {
	RecordResult(ctx context.Context, winner, loser string) error
	RecordDraw(ctx context.Context, a, b string) error
	RecordTournamentWin(ctx context.Context, name string) error
	Scoreboard(ctx context.Context) ([]entity.ScoreEntry, error)
}

type dbScore struct {
	client *redis.Client
}

func NewScoreRepository(client *redis.Client) ScoreRepository {
	return &dbScore{
		client: client,
	}
}

// RecordResult books a decisive game: win/loss tallies plus an Elo exchange
// between the two ratings.
func (that *dbScore) RecordResult(ctx context.Context, winner, loser string) error {
	winnerEntry, err := that.load(ctx, winner)
	if err != nil {
		return err
	}
	loserEntry, err := that.load(ctx, loser)
	if err != nil {
		return err
	}

	winnerEntry.Wins++
	loserEntry.Losses++
	winnerEntry.Elo, loserEntry.Elo = applyElo(winnerEntry.Elo, loserEntry.Elo, 1)

	if err = that.save(ctx, winnerEntry); err != nil {
		return err
	}

	return that.save(ctx, loserEntry)
}

func (that *dbScore) RecordDraw(ctx context.Context, a, b string) error {
	entryA, err := that.load(ctx, a)
	if err != nil {
		return err
	}
	entryB, err := that.load(ctx, b)
	if err != nil {
		return err
	}

	entryA.Draws++
	entryB.Draws++
	entryA.Elo, entryB.Elo = applyElo(entryA.Elo, entryB.Elo, 0.5)

	if err = that.save(ctx, entryA); err != nil {
		return err
	}

	return that.save(ctx, entryB)
}

// RecordTournamentWin books a championship. Tournament bracket games are
// already rated individually, so only the counter moves here.
func (that *dbScore) RecordTournamentWin(ctx context.Context, name string) error {
	entry, err := that.load(ctx, name)
	if err != nil {
		return err
	}

	entry.TournamentWins++

	return that.save(ctx, entry)
}

// Scoreboard returns every known player, Elo descending, name as tiebreaker.
func (that *dbScore) Scoreboard(ctx context.Context) ([]entity.ScoreEntry, error) {
	keys, err := that.client.Keys(ctx, "score:*").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list score keys: %w", err)
	}

	entries := make([]entity.ScoreEntry, 0, len(keys))
	for _, key := range keys {
		response, err := that.client.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get score %s: %w", key, err)
		}

		var entry entity.ScoreEntry
		if err = json.Unmarshal([]byte(response), &entry); err != nil {
			return nil, fmt.Errorf("failed to unmarshal score %s: %w", key, err)
		}
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Elo != entries[j].Elo {
			return entries[i].Elo > entries[j].Elo
		}
		return entries[i].Name < entries[j].Name
	})

	return entries, nil
}

func (that *dbScore) load(ctx context.Context, name string) (*entity.ScoreEntry, error) {
	response, err := that.client.Get(ctx, scoreKey(name)).Result()

	if errors.Is(err, redis.Nil) {
		return &entity.ScoreEntry{Name: name, Elo: eloInitial}, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get score for %s: %w", name, err)
	}

	var entry entity.ScoreEntry
	if err = json.Unmarshal([]byte(response), &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal score for %s: %w", name, err)
	}

	return &entry, nil
}

func (that *dbScore) save(ctx context.Context, entry *entity.ScoreEntry) error {
	entryJSON, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("could not marshal score: %w", err)
	}

	err = that.client.Set(ctx, scoreKey(entry.Name), entryJSON, 0).Err()
	if err != nil {
		return fmt.Errorf("failed to set score: %w", err)
	}

	return nil
}

func scoreKey(name string) string {
	return "score:" + name
}

// applyElo exchanges rating points between two sides. scoreA is A's actual
// outcome: 1 for a win, 0.5 for a draw.
func applyElo(ratingA, ratingB int, scoreA float64) (int, int) {
	expectedA := 1.0 / (1.0 + math.Pow(10, float64(ratingB-ratingA)/400.0))

	deltaA := int(math.Round(eloKFactor * (scoreA - expectedA)))

	return ratingA + deltaA, ratingB - deltaA
}
