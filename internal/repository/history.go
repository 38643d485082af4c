package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/atutic/TicTacToe/internal/entity"
)

const (
	historyListKey = "history"
	historyDateFmt = "2006-01-02"
)

type HistoryRepository interface {
	Append(ctx context.Context, record entity.HistoryRecord) error
	Query(ctx context.Context, playerFilter, fromDate, toDate string) ([]entity.HistoryRecord, error)
}

type dbHistory struct {
	client *redis.Client
}

func NewHistoryRepository(client *redis.Client) HistoryRepository {
	return &dbHistory{
		client: client,
	}
}

func (that *dbHistory) Append(ctx context.Context, record entity.HistoryRecord) error {
	recordJSON, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("could not marshal history record: %w", err)
	}

	err = that.client.RPush(ctx, historyListKey, recordJSON).Err()
	if err != nil {
		return fmt.Errorf("failed to append history record: %w", err)
	}

	return nil
}

// Query returns finished games, oldest first, narrowed by an optional player
// name substring and an optional inclusive date range (YYYY-MM-DD).
func (that *dbHistory) Query(ctx context.Context, playerFilter, fromDate, toDate string) ([]entity.HistoryRecord, error) {
	from, to, err := parseDateRange(fromDate, toDate)
	if err != nil {
		return nil, err
	}

	entries, err := that.client.LRange(ctx, historyListKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	filter := strings.ToLower(strings.TrimSpace(playerFilter))

	records := make([]entity.HistoryRecord, 0, len(entries))
	for _, entry := range entries {
		var record entity.HistoryRecord
		if err = json.Unmarshal([]byte(entry), &record); err != nil {
			return nil, fmt.Errorf("failed to unmarshal history record: %w", err)
		}

		if filter != "" &&
			!strings.Contains(strings.ToLower(record.PlayerX), filter) &&
			!strings.Contains(strings.ToLower(record.PlayerO), filter) {
			continue
		}
		if !from.IsZero() && record.Timestamp.Before(from) {
			continue
		}
		if !to.IsZero() && !record.Timestamp.Before(to) {
			continue
		}

		records = append(records, record)
	}

	return records, nil
}

// parseDateRange turns the inclusive YYYY-MM-DD bounds into a half-open
// [from, to+1d) timestamp window. Blank bounds stay open.
func parseDateRange(fromDate, toDate string) (time.Time, time.Time, error) {
	var from, to time.Time

	if strings.TrimSpace(fromDate) != "" {
		parsed, err := time.Parse(historyDateFmt, strings.TrimSpace(fromDate))
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("bad from date %q: %w", fromDate, err)
		}
		from = parsed
	}

	if strings.TrimSpace(toDate) != "" {
		parsed, err := time.Parse(historyDateFmt, strings.TrimSpace(toDate))
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("bad to date %q: %w", toDate, err)
		}
		to = parsed.AddDate(0, 0, 1)
	}

	return from, to, nil
}
