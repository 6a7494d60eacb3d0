package domain

import "context"

// Status is the recorded outcome of a check-in. Absence is never stored; it is
// synthesized at report time for members with no record on a date.
type Status string

const (
	StatusPresent Status = "present"
	StatusLate    Status = "late"
	// StatusAbsent only appears in report views.
	StatusAbsent Status = "absent"
)

// AttendanceRecord is one immutable ledger row: a member checked in to a study
// on a date at a wall-clock time with a classified status.
type AttendanceRecord struct {
	StudyName   string
	MemberID    string
	Date        string // "YYYY-MM-DD" in the reference timezone
	CheckinTime string // "HH:MM"
	Status      Status
}

// CheckIn is the per-member cell of a grouped attendance view.
type CheckIn struct {
	CheckinTime string
	Status      Status
}

// AttendanceRepository captures the append-only ledger operations.
type AttendanceRepository interface {
	HasCheckedIn(ctx context.Context, studyName, memberID, date string) (bool, error)
	// RecordAttendance inserts the record unless one already exists for the
	// (study, member, date) key, and reports whether the insert landed.
	RecordAttendance(ctx context.Context, record AttendanceRecord) (bool, error)
	// History returns all records for a study ordered by date descending.
	History(ctx context.Context, studyName string) ([]AttendanceRecord, error)
	// ByDateGrouped maps date -> member -> check-in for a study.
	ByDateGrouped(ctx context.Context, studyName string) (map[string]map[string]CheckIn, error)
}

// Announcement describes a landed check-in to broadcast on a text channel.
type Announcement struct {
	Channel     string
	StudyName   string
	MemberID    string
	MemberName  string
	Status      Status
	Date        string
	CheckinTime string
	Text        string
}

// Notifier delivers messages through the chat platform. Implementations are
// expected to be durable-but-asynchronous; callers do not await delivery.
type Notifier interface {
	NotifyMember(ctx context.Context, memberID, text string) error
	AnnounceAttendance(ctx context.Context, announcement Announcement) error
}

// DateReport is the roster view for a single date: every study member appears,
// with absence synthesized for members lacking a ledger row.
type DateReport struct {
	Date    string
	Entries []MemberStatus
}

// MemberStatus is one member's row in a DateReport.
type MemberStatus struct {
	MemberID    string
	CheckinTime string // empty for synthesized absences
	Status      Status
}

// Report aggregates a study's ledger into per-date roster views, most recent
// date first.
type Report struct {
	StudyName string
	Members   []string
	Dates     []DateReport
}
