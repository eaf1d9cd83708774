package queue

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// StartDLQJanitor launches a goroutine that periodically drops DLQ entries
// older than maxAge from every named queue's dead-letter set. Entries are
// scored by arrival time, so an age cutoff is a score-range removal. It
// stops when ctx is cancelled.
func StartDLQJanitor(ctx context.Context, rdb *redis.Client, names []string, maxAge, interval time.Duration) {
	if maxAge <= 0 || interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cutoff := float64(time.Now().Add(-maxAge).Unix())
				for _, name := range names {
					removed, err := rdb.ZRemRangeByScore(ctx, dlqKey(name), "-inf", formatScore(cutoff)).Result()
					if err != nil {
						slog.Default().Warn("dlq cleanup failed", slog.String("queue", name), slog.Any("error", err))
						continue
					}
					if removed > 0 {
						slog.Default().Info("dlq entries expired", slog.String("queue", name), slog.Int64("removed", removed))
					}
				}
			}
		}
	}()
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
