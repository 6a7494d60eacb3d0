//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/CSPCLAB/study-bot/internal/domain"
)

func startPostgres(t *testing.T, ctx context.Context) *pgxpool.Pool {
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

	require.NoError(t, EnsureSchema(ctx, pool))
	return pool
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

func TestRepositoryStudyLifecycle(t *testing.T) {
	ctx := context.Background()
	pool := startPostgres(t, ctx)
	repo := NewRepository(pool)

	study := domain.Study{Name: "algo", Weekdays: []int{0, 2, 4}, StartTime: "08:00", RoomID: "room-R"}
	require.NoError(t, repo.CreateStudy(ctx, study))

	err := repo.CreateStudy(ctx, study)
	require.ErrorIs(t, err, domain.ErrNameConflict)

	stored, err := repo.GetStudy(ctx, "algo")
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.Equal(t, []int{0, 2, 4}, stored.Weekdays)
	require.Equal(t, "08:00", stored.StartTime)
	require.False(t, stored.CreatedAt.IsZero())

	missing, err := repo.GetStudy(ctx, "ghost")
	require.NoError(t, err)
	require.Nil(t, missing)

	names, err := repo.FindStudyNamesByRoom(ctx, "room-R")
	require.NoError(t, err)
	require.Equal(t, []string{"algo"}, names)
}

func TestRepositoryAddMembersSkipsDuplicates(t *testing.T) {
	ctx := context.Background()
	pool := startPostgres(t, ctx)
	repo := NewRepository(pool)

	require.NoError(t, repo.CreateStudy(ctx, domain.Study{Name: "algo", Weekdays: []int{0}, StartTime: "08:00", RoomID: "room-R"}))

	added, err := repo.AddMembers(ctx, "algo", []string{"alice", "bob"})
	require.NoError(t, err)
	require.Equal(t, []string{"alice", "bob"}, added)

	added, err = repo.AddMembers(ctx, "algo", []string{"bob", "carol"})
	require.NoError(t, err)
	require.Equal(t, []string{"carol"}, added)

	members, err := repo.ListMembers(ctx, "algo")
	require.NoError(t, err)
	require.Equal(t, []string{"alice", "bob", "carol"}, members)
}

func TestRepositoryRecordAttendanceIsIdempotent(t *testing.T) {
	ctx := context.Background()
	pool := startPostgres(t, ctx)
	repo := NewRepository(pool)

	require.NoError(t, repo.CreateStudy(ctx, domain.Study{Name: "algo", Weekdays: []int{0}, StartTime: "08:00", RoomID: "room-R"}))

	record := domain.AttendanceRecord{
		StudyName: "algo", MemberID: "alice", Date: "2025-06-02", CheckinTime: "06:30", Status: domain.StatusPresent,
	}

	inserted, err := repo.RecordAttendance(ctx, record)
	require.NoError(t, err)
	require.True(t, inserted)

	// Replay with a different time must not overwrite the first row.
	record.CheckinTime = "09:00"
	record.Status = domain.StatusLate
	inserted, err = repo.RecordAttendance(ctx, record)
	require.NoError(t, err)
	require.False(t, inserted)

	checked, err := repo.HasCheckedIn(ctx, "algo", "alice", "2025-06-02")
	require.NoError(t, err)
	require.True(t, checked)

	records, err := repo.History(ctx, "algo")
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "06:30", records[0].CheckinTime)
	require.Equal(t, domain.StatusPresent, records[0].Status)
}

func TestRepositoryHistoryOrdersByDateDescending(t *testing.T) {
	ctx := context.Background()
	pool := startPostgres(t, ctx)
	repo := NewRepository(pool)

	require.NoError(t, repo.CreateStudy(ctx, domain.Study{Name: "algo", Weekdays: []int{0}, StartTime: "08:00", RoomID: "room-R"}))

	for _, date := range []string{"2025-06-02", "2025-06-09", "2025-06-04"} {
		_, err := repo.RecordAttendance(ctx, domain.AttendanceRecord{
			StudyName: "algo", MemberID: "alice", Date: date, CheckinTime: "06:30", Status: domain.StatusPresent,
		})
		require.NoError(t, err)
	}

	records, err := repo.History(ctx, "algo")
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.Equal(t, "2025-06-09", records[0].Date)
	require.Equal(t, "2025-06-04", records[1].Date)
	require.Equal(t, "2025-06-02", records[2].Date)

	grouped, err := repo.ByDateGrouped(ctx, "algo")
	require.NoError(t, err)
	require.Len(t, grouped, 3)
	require.Equal(t, domain.StatusPresent, grouped["2025-06-04"]["alice"].Status)
}

func TestRepositoryDeleteStudyCascades(t *testing.T) {
	ctx := context.Background()
	pool := startPostgres(t, ctx)
	repo := NewRepository(pool)

	require.NoError(t, repo.CreateStudy(ctx, domain.Study{Name: "algo", Weekdays: []int{0}, StartTime: "08:00", RoomID: "room-R"}))
	_, err := repo.AddMembers(ctx, "algo", []string{"alice"})
	require.NoError(t, err)
	_, err = repo.RecordAttendance(ctx, domain.AttendanceRecord{
		StudyName: "algo", MemberID: "alice", Date: "2025-06-02", CheckinTime: "06:30", Status: domain.StatusPresent,
	})
	require.NoError(t, err)

	deleted, err := repo.DeleteStudy(ctx, "algo")
	require.NoError(t, err)
	require.True(t, deleted)

	deleted, err = repo.DeleteStudy(ctx, "algo")
	require.NoError(t, err)
	require.False(t, deleted)

	members, err := repo.ListMembers(ctx, "algo")
	require.NoError(t, err)
	require.Empty(t, members)

	records, err := repo.History(ctx, "algo")
	require.NoError(t, err)
	require.Empty(t, records)
}
