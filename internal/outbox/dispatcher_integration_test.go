//go:build integration

package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/CSPCLAB/study-bot/internal/domain"
	persistence "github.com/CSPCLAB/study-bot/internal/persistence/postgres"
)

func setupPostgres(t *testing.T, ctx context.Context) (*pgxpool.Pool, string) {
	t.Helper()

	pg, err := postgrescontainer.RunContainer(ctx,
		postgrescontainer.WithDatabase("studybot"),
		postgrescontainer.WithUsername("studybot"),
		postgrescontainer.WithPassword("studybot"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, waitForDatabase(ctx, connStr))

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	require.NoError(t, persistence.EnsureSchema(ctx, pool))
	return pool, connStr
}

func waitForDatabase(ctx context.Context, connStr string) error {
	deadline := time.Now().Add(30 * time.Second)
	for {
		pool, err := pgxpool.New(ctx, connStr)
		if err == nil {
			err = pool.Ping(ctx)
			pool.Close()
			if err == nil {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return err
		}
		time.Sleep(time.Second)
	}
}

func unpublishedCount(t *testing.T, ctx context.Context, pool *pgxpool.Pool) int {
	t.Helper()
	var count int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM notification_outbox WHERE published_at IS NULL`).Scan(&count))
	return count
}

func TestDispatcherPublishesEnqueuedNotifications(t *testing.T) {
	ctx := context.Background()
	pool, _ := setupPostgres(t, ctx)

	notifier := NewNotifier(pool)
	require.NoError(t, notifier.NotifyMember(ctx, "alice", "where are you?"))
	require.NoError(t, notifier.AnnounceAttendance(ctx, domain.Announcement{
		Channel:     "attendance-check",
		StudyName:   "algo",
		MemberID:    "alice",
		Status:      domain.StatusPresent,
		Date:        "2025-06-02",
		CheckinTime: "06:30",
		Text:        "checked in",
	}))
	require.Equal(t, 2, unpublishedCount(t, ctx, pool))

	producer := &stubProducer{}
	registry := &stubRegistry{id: 42}
	dispatcher := NewDispatcher(pool, producer, registry, 10*time.Millisecond, 5)

	beforeDelivered := testutil.ToFloat64(deliveredCounter)
	beforeHistogram := histogramSampleCount(t)

	require.NoError(t, dispatcher.processBatch(ctx))

	require.Len(t, producer.written["notification_events"], 1)
	require.Len(t, producer.written["attendance_events"], 1)

	require.InDelta(t, beforeDelivered+2, testutil.ToFloat64(deliveredCounter), 0.0001)
	require.Greater(t, histogramSampleCount(t), beforeHistogram)

	require.Equal(t, 0, unpublishedCount(t, ctx, pool))
}

func TestDispatcherRetriesFailedDeliveries(t *testing.T) {
	ctx := context.Background()
	pool, _ := setupPostgres(t, ctx)

	notifier := NewNotifier(pool)
	require.NoError(t, notifier.NotifyMember(ctx, "alice", "where are you?"))

	producer := &stubProducer{err: errors.New("kafka write failed")}
	registry := &stubRegistry{id: 7}
	dispatcher := NewDispatcher(pool, producer, registry, 10*time.Millisecond, 5)

	beforeFailed := testutil.ToFloat64(failedCounter)

	require.NoError(t, dispatcher.processBatch(ctx))

	require.InDelta(t, beforeFailed+1, testutil.ToFloat64(failedCounter), 0.0001)
	// The row stays unpublished for the next poll to claim again.
	require.Equal(t, 1, unpublishedCount(t, ctx, pool))

	producer.err = nil
	require.NoError(t, dispatcher.processBatch(ctx))
	require.Equal(t, 0, unpublishedCount(t, ctx, pool))
}

func TestDispatcherHonorsBatchSize(t *testing.T) {
	ctx := context.Background()
	pool, _ := setupPostgres(t, ctx)

	notifier := NewNotifier(pool)
	for i := 0; i < 3; i++ {
		require.NoError(t, notifier.NotifyMember(ctx, "alice", "ping"))
	}

	producer := &stubProducer{}
	registry := &stubRegistry{id: 5}
	dispatcher := NewDispatcher(pool, producer, registry, 10*time.Millisecond, 2)

	require.NoError(t, dispatcher.processBatch(ctx))
	require.Equal(t, 1, unpublishedCount(t, ctx, pool))

	require.NoError(t, dispatcher.processBatch(ctx))
	require.Equal(t, 0, unpublishedCount(t, ctx, pool))

	// Two delivered batches but only one registry round trip thanks to the cache.
	require.Equal(t, 1, registry.calls)
}

func TestDispatcherReleasesConnectionOnEveryPollOutcome(t *testing.T) {
	ctx := context.Background()
	pool, connStr := setupPostgres(t, ctx)

	// A single-connection pool turns any leaked claim transaction into a hang
	// on the next poll.
	poolCfg, err := pgxpool.ParseConfig(connStr)
	require.NoError(t, err)
	poolCfg.MaxConns = 1
	smallPool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	require.NoError(t, err)
	t.Cleanup(func() { smallPool.Close() })

	producer := &stubProducer{err: errors.New("kafka write failed")}
	registry := &stubRegistry{id: 3}
	dispatcher := NewDispatcher(smallPool, producer, registry, 10*time.Millisecond, 5)

	// Empty outbox.
	require.NoError(t, dispatcher.processBatch(ctx))

	notifier := NewNotifier(pool)
	require.NoError(t, notifier.NotifyMember(ctx, "alice", "ping"))

	// Failed delivery, then a successful retry; each poll must begin and
	// release its own claim transaction.
	require.NoError(t, dispatcher.processBatch(ctx))
	producer.err = nil
	require.NoError(t, dispatcher.processBatch(ctx))
	require.NoError(t, dispatcher.processBatch(ctx))

	require.Equal(t, 0, unpublishedCount(t, ctx, pool))
}

func histogramSampleCount(t *testing.T) uint64 {
	t.Helper()

	metric := &dto.Metric{}
	require.NoError(t, batchDuration.Write(metric))
	hist := metric.GetHistogram()
	require.NotNil(t, hist)
	return hist.GetSampleCount()
}
