package queue

import (
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/kreeda/resumatch/internal/domain"
)

// Dispatcher implements domain.Queue over a shared Redis client: each
// Enqueue* call LPUSHes a new envelope onto its named list, so the
// corresponding Consumer picks it up oldest-first via BRPOPLPUSH from the
// tail.
type Dispatcher struct {
	rdb *redis.Client
}

// NewDispatcher builds a Dispatcher over rdb.
func NewDispatcher(rdb *redis.Client) *Dispatcher {
	return &Dispatcher{rdb: rdb}
}

func (d *Dispatcher) enqueue(ctx domain.Context, queueName string, payload any) (string, error) {
	env, err := newEnvelope(queueName, payload)
	if err != nil {
		return "", err
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("op=queue.Dispatcher.enqueue: encode envelope: %w", err)
	}
	if err := d.rdb.LPush(ctx, listKey(queueName), raw).Err(); err != nil {
		return "", fmt.Errorf("op=queue.Dispatcher.enqueue: LPUSH %s: %w", queueName, err)
	}
	return env.ID, nil
}

// EnqueueJD pushes a job-description parse task onto the jd queue
// (concurrency 1, strictly serial).
func (d *Dispatcher) EnqueueJD(ctx domain.Context, payload domain.JDTaskPayload) (string, error) {
	return d.enqueue(ctx, NameJD, payload)
}

// EnqueueResume pushes a per-resume or resume-group task onto the resume
// queue (concurrency 16).
func (d *Dispatcher) EnqueueResume(ctx domain.Context, payload domain.ResumeTaskPayload) (string, error) {
	return d.enqueue(ctx, NameResume, payload)
}

// EnqueueRanking pushes a re-ranking batch task onto the ranking queue
// (concurrency 2).
func (d *Dispatcher) EnqueueRanking(ctx domain.Context, payload domain.RankingTaskPayload) (string, error) {
	return d.enqueue(ctx, NameRanking, payload)
}

var _ domain.Queue = (*Dispatcher)(nil)
