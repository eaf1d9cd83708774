package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/kreeda/resumatch/internal/domain"
)

// ProgressPusher publishes ProgressRecords onto the queue substrate's
// per-job progress channel, the same Redis connection the
// dispatcher/consumer use for job data. External observers SUBSCRIBE to
// progressChannel(jobID) to follow one job's progress/completion/failure
// events live.
type ProgressPusher struct {
	rdb *redis.Client
}

// NewProgressPusher builds a ProgressPusher over rdb.
func NewProgressPusher(rdb *redis.Client) *ProgressPusher {
	return &ProgressPusher{rdb: rdb}
}

func progressChannel(jobID string) string { return "progress:" + jobID }

// PushProgress implements domain.ProgressPusher by PUBLISHing the record as
// JSON on the job's progress channel. A publish with no subscribers is not
// an error — progress is best-effort observability, not a durable log.
func (p *ProgressPusher) PushProgress(ctx context.Context, jobID string, record domain.ProgressRecord) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("op=queue.ProgressPusher.PushProgress: encode record: %w", err)
	}
	if err := p.rdb.Publish(ctx, progressChannel(jobID), raw).Err(); err != nil {
		return fmt.Errorf("op=queue.ProgressPusher.PushProgress: publish: %w", err)
	}
	return nil
}

var _ domain.ProgressPusher = (*ProgressPusher)(nil)
