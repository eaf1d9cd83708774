// Package queue implements the three named Redis-list-backed queues
// (jd/resume/ranking): reliable BRPOPLPUSH-based pop into a per-queue
// processing list, retry with exponential backoff, a dead-letter sorted
// set on retry exhaustion, and a fixed-size worker pool per queue.
package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/kreeda/resumatch/internal/domain"
)

// Names of the three queues, used both as Redis key suffixes and as the
// canonical DLQJob.Queue value.
const (
	NameJD      = "jd"
	NameResume  = "resume"
	NameRanking = "ranking"
)

// envelope is the JSON wire format pushed onto a queue list: one opaque
// payload plus its retry bookkeeping, so a consumer can requeue or DLQ a
// job without losing its attempt history.
type envelope struct {
	ID      string          `json:"id"`
	Queue   string          `json:"queue"`
	Payload json.RawMessage `json:"payload"`
	Retry   domain.RetryInfo `json:"retry"`
}

func newEnvelope(queueName string, payload any) (envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return envelope{}, fmt.Errorf("op=queue.newEnvelope: encode payload: %w", err)
	}
	now := time.Now()
	return envelope{
		ID:      ulid.Make().String(),
		Queue:   queueName,
		Payload: raw,
		Retry: domain.RetryInfo{
			RetryStatus: domain.RetryStatusNone,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
	}, nil
}

// listKey is the main work queue's Redis key.
func listKey(name string) string { return "queue:" + name }

// processingKey is the reliable-pop staging list a worker moves an item
// into atomically via BRPOPLPUSH before processing it.
func processingKey(name string) string { return "queue:" + name + ":processing" }

// dlqKey is the dead-letter sorted set, scored by arrival time so the
// oldest entries drain first.
func dlqKey(name string) string { return "queue:" + name + ":dlq" }
