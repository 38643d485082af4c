package repository

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/atutic/TicTacToe/internal/entity"
)

type MoveLogRepository interface {
	Load(ctx context.Context, a, b string) ([]entity.Move, error)
	Append(ctx context.Context, a, b string, move entity.Move) error
	Delete(ctx context.Context, a, b string) error
}

type dbMoveLog struct {
	client *redis.Client
}

func NewMoveLogRepository(client *redis.Client) MoveLogRepository {
	return &dbMoveLog{
		client: client,
	}
}

// Load returns the persisted partial game between a pair, oldest move first.
func (that *dbMoveLog) Load(ctx context.Context, a, b string) ([]entity.Move, error) {
	entries, err := that.client.LRange(ctx, moveLogKey(a, b), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load move log: %w", err)
	}

	moves := make([]entity.Move, 0, len(entries))
	for _, entry := range entries {
		move, err := parseMove(entry)
		if err != nil {
			return nil, fmt.Errorf("failed to parse move log entry %q: %w", entry, err)
		}
		moves = append(moves, move)
	}

	return moves, nil
}

func (that *dbMoveLog) Append(ctx context.Context, a, b string, move entity.Move) error {
	entry := fmt.Sprintf("%d;%d;%s", move.Row, move.Col, move.Symbol)

	err := that.client.RPush(ctx, moveLogKey(a, b), entry).Err()
	if err != nil {
		return fmt.Errorf("failed to append move: %w", err)
	}

	return nil
}

func (that *dbMoveLog) Delete(ctx context.Context, a, b string) error {
	err := that.client.Del(ctx, moveLogKey(a, b)).Err()
	if err != nil {
		return fmt.Errorf("failed to delete move log: %w", err)
	}

	return nil
}

// moveLogKey is pair-keyed and order-insensitive: the same two names find
// their unfinished game no matter who hosts the next time.
func moveLogKey(a, b string) string {
	first, second := strings.ToLower(a), strings.ToLower(b)
	if first > second {
		first, second = second, first
	}

	return "movelog:" + first + "__" + second
}

func parseMove(entry string) (entity.Move, error) {
	parts := strings.Split(entry, ";")
	if len(parts) != 3 {
		return entity.Move{}, fmt.Errorf("expected 3 fields, got %d", len(parts))
	}

	row, err := strconv.Atoi(parts[0])
	if err != nil {
		return entity.Move{}, fmt.Errorf("bad row: %w", err)
	}
	col, err := strconv.Atoi(parts[1])
	if err != nil {
		return entity.Move{}, fmt.Errorf("bad col: %w", err)
	}

	return entity.Move{Row: row, Col: col, Symbol: parts[2]}, nil
}
