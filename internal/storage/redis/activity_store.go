package redis

import (
	"context"
	"strconv"

	"github.com/discord-voice-time/internal/storage"
	"github.com/redis/go-redis/v9"
)

// totalsKey is the hash holding all accumulated totals, field = user ID,
// value = total seconds. HINCRBY gives us the atomic upsert-and-add the
// tracker relies on when two flushes for the same user race.
const totalsKey = "voicetime:totals"

// IncrementTotal atomically adds delta seconds to the user's total,
// creating the field if absent, and returns the new total.
func (s *Store) IncrementTotal(ctx context.Context, userID string, delta int64) (int64, error) {
	return s.client.HIncrBy(ctx, totalsKey, userID, delta).Result()
}

// ListTotals returns all accumulated-activity rows.
func (s *Store) ListTotals(ctx context.Context) ([]storage.UserTotal, error) {
	data, err := s.client.HGetAll(ctx, totalsKey).Result()
	if err != nil {
		return nil, err
	}

	totals := make([]storage.UserTotal, 0, len(data))
	for userID, raw := range data {
		seconds, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			// Skip malformed fields rather than failing the whole read.
			continue
		}
		totals = append(totals, storage.UserTotal{UserID: userID, TotalSeconds: seconds})
	}
	return totals, nil
}

// GetTotal returns one user's total, or storage.ErrNotFound.
func (s *Store) GetTotal(ctx context.Context, userID string) (int64, error) {
	raw, err := s.client.HGet(ctx, totalsKey, userID).Result()
	if err == redis.Nil {
		return 0, storage.ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(raw, 10, 64)
}

// DeleteTotals removes the given users' rows.
func (s *Store) DeleteTotals(ctx context.Context, userIDs ...string) error {
	if len(userIDs) == 0 {
		return nil
	}
	return s.client.HDel(ctx, totalsKey, userIDs...).Err()
}
