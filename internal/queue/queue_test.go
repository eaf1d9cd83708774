package queue

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kreeda/resumatch/internal/domain"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestDispatcher_EnqueueResume_PushesOntoResumeList(t *testing.T) {
	rdb := newTestRedis(t)
	d := NewDispatcher(rdb)

	id, err := d.EnqueueResume(context.Background(), domain.ResumeTaskPayload{JobName: "process-resume", ResumeID: "res-1", JobID: "job-1"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	n, err := rdb.LLen(context.Background(), listKey(NameResume)).Result()
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestDispatcher_EnqueueJD_And_Ranking(t *testing.T) {
	rdb := newTestRedis(t)
	d := NewDispatcher(rdb)

	_, err := d.EnqueueJD(context.Background(), domain.JDTaskPayload{JobID: "job-1"})
	require.NoError(t, err)
	_, err = d.EnqueueRanking(context.Background(), domain.RankingTaskPayload{JobID: "job-1"})
	require.NoError(t, err)

	njd, _ := rdb.LLen(context.Background(), listKey(NameJD)).Result()
	nranking, _ := rdb.LLen(context.Background(), listKey(NameRanking)).Result()
	assert.EqualValues(t, 1, njd)
	assert.EqualValues(t, 1, nranking)
}

func pushRawToProcessing(t *testing.T, rdb *redis.Client, name string, env envelope) string {
	t.Helper()
	raw, err := json.Marshal(env)
	require.NoError(t, err)
	require.NoError(t, rdb.LPush(context.Background(), processingKey(name), raw).Err())
	return string(raw)
}

func TestConsumer_Process_SuccessAcksEntry(t *testing.T) {
	rdb := newTestRedis(t)
	env, err := newEnvelope(NameResume, domain.ResumeTaskPayload{ResumeID: "res-1"})
	require.NoError(t, err)
	raw := pushRawToProcessing(t, rdb, NameResume, env)

	called := false
	c := NewConsumer(NameResume, rdb, 1, time.Second, domain.DefaultRetryConfig(), func(ctx context.Context, payload json.RawMessage) error {
		called = true
		return nil
	})

	c.process(context.Background(), slog.Default(), raw)
	assert.True(t, called)

	n, _ := rdb.LLen(context.Background(), processingKey(NameResume)).Result()
	assert.EqualValues(t, 0, n)
}

func TestConsumer_Process_RetryableFailureRequeues(t *testing.T) {
	rdb := newTestRedis(t)
	env, err := newEnvelope(NameResume, domain.ResumeTaskPayload{ResumeID: "res-1"})
	require.NoError(t, err)
	raw := pushRawToProcessing(t, rdb, NameResume, env)

	retryConfig := domain.DefaultRetryConfig()
	retryConfig.InitialDelay = 0
	c := NewConsumer(NameResume, rdb, 1, time.Second, retryConfig, func(ctx context.Context, payload json.RawMessage) error {
		return errors.New("connection refused")
	})

	c.process(context.Background(), slog.Default(), raw)

	// requeue happens inline (no goroutine) when delay resolves to <= 0.
	n, _ := rdb.LLen(context.Background(), listKey(NameResume)).Result()
	assert.EqualValues(t, 1, n)
}

func TestConsumer_Process_FatalErrorGoesToDLQ(t *testing.T) {
	rdb := newTestRedis(t)
	env, err := newEnvelope(NameResume, domain.ResumeTaskPayload{ResumeID: "res-1"})
	require.NoError(t, err)
	raw := pushRawToProcessing(t, rdb, NameResume, env)

	c := NewConsumer(NameResume, rdb, 1, time.Second, domain.DefaultRetryConfig(), func(ctx context.Context, payload json.RawMessage) error {
		return domain.NewFatalJobError("fetch_resume", errors.New("not found"))
	})

	c.process(context.Background(), slog.Default(), raw)

	n, _ := rdb.ZCard(context.Background(), dlqKey(NameResume)).Result()
	assert.EqualValues(t, 1, n)
}

func TestConsumer_Process_ExhaustedRetriesGoesToDLQ(t *testing.T) {
	rdb := newTestRedis(t)
	env, err := newEnvelope(NameResume, domain.ResumeTaskPayload{ResumeID: "res-1"})
	require.NoError(t, err)
	env.Retry.AttemptCount = 10 // already past any MaxRetries
	raw := pushRawToProcessing(t, rdb, NameResume, env)

	c := NewConsumer(NameResume, rdb, 1, time.Second, domain.DefaultRetryConfig(), func(ctx context.Context, payload json.RawMessage) error {
		return errors.New("connection refused")
	})

	c.process(context.Background(), slog.Default(), raw)

	n, _ := rdb.ZCard(context.Background(), dlqKey(NameResume)).Result()
	assert.EqualValues(t, 1, n)
}

func TestQueueDepths_ReportsAllThreeCounts(t *testing.T) {
	rdb := newTestRedis(t)
	d := NewDispatcher(rdb)
	_, err := d.EnqueueResume(context.Background(), domain.ResumeTaskPayload{ResumeID: "res-1"})
	require.NoError(t, err)

	queued, processing, dlq, err := QueueDepths(context.Background(), rdb, NameResume)
	require.NoError(t, err)
	assert.EqualValues(t, 1, queued)
	assert.EqualValues(t, 0, processing)
	assert.EqualValues(t, 0, dlq)
}
