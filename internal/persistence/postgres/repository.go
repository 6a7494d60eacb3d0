// Package postgres provides pgx-backed persistence for studies, membership,
// and the attendance ledger.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/CSPCLAB/study-bot/internal/domain"
	"github.com/CSPCLAB/study-bot/internal/observability"
)

// uniqueViolation is the Postgres SQLSTATE for unique constraint failures.
const uniqueViolation = "23505"

// Repository implements the domain store interfaces on a pgx pool.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateStudy inserts a study, failing with ErrNameConflict on duplicate names.
func (r *Repository) CreateStudy(ctx context.Context, study domain.Study) error {
	const stmt = `INSERT INTO studies (name, weekdays, start_time, voice_room_id) VALUES ($1,$2,$3,$4)`

	_, err := r.pool.Exec(ctx, stmt, study.Name, toInt16s(study.Weekdays), study.StartTime, study.RoomID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrNameConflict
		}
		return err
	}
	return nil
}

// DeleteStudy removes the study and cascades to membership and ledger rows in
// a single transaction, so no orphaned rows can survive.
func (r *Repository) DeleteStudy(ctx context.Context, name string) (bool, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM attendance WHERE study_name = $1`, name); err != nil {
		return false, err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM study_members WHERE study_name = $1`, name); err != nil {
		return false, err
	}
	tag, err := tx.Exec(ctx, `DELETE FROM studies WHERE name = $1`, name)
	if err != nil {
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// FindStudyNamesByRoom returns the names of studies designated to a room.
func (r *Repository) FindStudyNamesByRoom(ctx context.Context, roomID string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT name FROM studies WHERE voice_room_id = $1 ORDER BY study_id`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// GetStudy returns the study by name, or nil when it does not exist.
func (r *Repository) GetStudy(ctx context.Context, name string) (*domain.Study, error) {
	const query = `SELECT name, weekdays, start_time, voice_room_id, created_at FROM studies WHERE name = $1`

	var study domain.Study
	var weekdays []int16
	err := r.pool.QueryRow(ctx, query, name).Scan(&study.Name, &weekdays, &study.StartTime, &study.RoomID, &study.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	study.Weekdays = toInts(weekdays)
	return &study, nil
}

// ListStudies returns every study together with its roster.
func (r *Repository) ListStudies(ctx context.Context) ([]domain.StudyWithMembers, error) {
	rows, err := r.pool.Query(ctx, `SELECT name, weekdays, start_time, voice_room_id, created_at FROM studies ORDER BY study_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	studies := make([]domain.StudyWithMembers, 0)
	for rows.Next() {
		var entry domain.StudyWithMembers
		var weekdays []int16
		if err := rows.Scan(&entry.Name, &weekdays, &entry.StartTime, &entry.RoomID, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.Weekdays = toInts(weekdays)
		studies = append(studies, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range studies {
		members, err := r.ListMembers(ctx, studies[i].Name)
		if err != nil {
			return nil, err
		}
		studies[i].Members = members
	}
	return studies, nil
}

// AddMembers inserts members if absent and returns those actually inserted.
func (r *Repository) AddMembers(ctx context.Context, studyName string, memberIDs []string) ([]string, error) {
	const stmt = `INSERT INTO study_members (study_name, member_id) VALUES ($1,$2)
        ON CONFLICT (study_name, member_id) DO NOTHING`

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	added := make([]string, 0, len(memberIDs))
	for _, member := range memberIDs {
		tag, err := tx.Exec(ctx, stmt, studyName, member)
		if err != nil {
			return nil, err
		}
		if tag.RowsAffected() > 0 {
			added = append(added, member)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return added, nil
}

// ListMembers returns members in insertion order.
func (r *Repository) ListMembers(ctx context.Context, studyName string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT member_id FROM study_members WHERE study_name = $1 ORDER BY member_row_id`, studyName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := make([]string, 0)
	for rows.Next() {
		var member string
		if err := rows.Scan(&member); err != nil {
			return nil, err
		}
		members = append(members, member)
	}
	return members, rows.Err()
}

// HasCheckedIn reports whether a ledger row exists for the member on the date.
func (r *Repository) HasCheckedIn(ctx context.Context, studyName, memberID, date string) (bool, error) {
	const query = `SELECT 1 FROM attendance WHERE study_name = $1 AND member_id = $2 AND date = $3`

	var one int
	err := r.pool.QueryRow(ctx, query, studyName, memberID, date).Scan(&one)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// RecordAttendance is an atomic insert-if-absent on the (study, member, date)
// key. It reports whether the insert landed, so callers announce only new
// check-ins even under concurrent duplicate joins.
func (r *Repository) RecordAttendance(ctx context.Context, record domain.AttendanceRecord) (bool, error) {
	const stmt = `INSERT INTO attendance (study_name, member_id, date, checkin_time, status) VALUES ($1,$2,$3,$4,$5)
        ON CONFLICT (study_name, member_id, date) DO NOTHING`

	tag, err := r.pool.Exec(ctx, stmt, record.StudyName, record.MemberID, record.Date, record.CheckinTime, string(record.Status))
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}
	observability.RecordAttendancePersisted(string(record.Status), time.Now().UTC())
	return true, nil
}

// History returns all records for a study ordered by date descending.
func (r *Repository) History(ctx context.Context, studyName string) ([]domain.AttendanceRecord, error) {
	const query = `SELECT study_name, member_id, date, checkin_time, status
        FROM attendance WHERE study_name = $1 ORDER BY date DESC, record_id`

	rows, err := r.pool.Query(ctx, query, studyName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]domain.AttendanceRecord, 0)
	for rows.Next() {
		var record domain.AttendanceRecord
		var status string
		if err := rows.Scan(&record.StudyName, &record.MemberID, &record.Date, &record.CheckinTime, &status); err != nil {
			return nil, err
		}
		record.Status = domain.Status(status)
		records = append(records, record)
	}
	return records, rows.Err()
}

// ByDateGrouped maps date -> member -> check-in for a study.
func (r *Repository) ByDateGrouped(ctx context.Context, studyName string) (map[string]map[string]domain.CheckIn, error) {
	records, err := r.History(ctx, studyName)
	if err != nil {
		return nil, err
	}

	grouped := make(map[string]map[string]domain.CheckIn)
	for _, record := range records {
		if _, ok := grouped[record.Date]; !ok {
			grouped[record.Date] = make(map[string]domain.CheckIn)
		}
		grouped[record.Date][record.MemberID] = domain.CheckIn{CheckinTime: record.CheckinTime, Status: record.Status}
	}
	return grouped, nil
}

func toInt16s(days []int) []int16 {
	out := make([]int16, len(days))
	for i, day := range days {
		out[i] = int16(day)
	}
	return out
}

func toInts(days []int16) []int {
	out := make([]int, len(days))
	for i, day := range days {
		out[i] = int(day)
	}
	return out
}
