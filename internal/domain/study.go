// Package domain defines the business logic for study attendance tracking.
package domain

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"
)

var (
	// ErrNameConflict indicates a study with the same name already exists.
	ErrNameConflict = errors.New("study name already exists")
	// ErrStudyNotFound is returned when a study cannot be located by name.
	ErrStudyNotFound = errors.New("study not found")
)

// Study is the canonical schedule record: a named recurring session with a
// weekday set, a start time of day, and a designated voice room.
type Study struct {
	Name      string
	Weekdays  []int  // 0=Monday .. 6=Sunday
	StartTime string // "HH:MM" in the reference timezone
	RoomID    string
	CreatedAt time.Time
}

// StudyWithMembers pairs a study with its member roster for listings.
type StudyWithMembers struct {
	Study
	Members []string
}

// Validate checks the schedule invariants before the study is written.
func (s Study) Validate() error {
	if s.Name == "" {
		return errors.New("study name is required")
	}
	if s.RoomID == "" {
		return errors.New("voice room id is required")
	}
	if len(s.Weekdays) == 0 {
		return errors.New("at least one weekday is required")
	}
	for _, day := range s.Weekdays {
		if day < 0 || day > 6 {
			return fmt.Errorf("weekday out of range: %d", day)
		}
	}
	if _, _, err := ParseStartTime(s.StartTime); err != nil {
		return fmt.Errorf("invalid start time %q: %w", s.StartTime, err)
	}
	return nil
}

// NormalizeWeekdays returns the weekday set sorted with duplicates removed.
func NormalizeWeekdays(days []int) []int {
	seen := make(map[int]struct{}, len(days))
	out := make([]int, 0, len(days))
	for _, day := range days {
		if _, dup := seen[day]; dup {
			continue
		}
		seen[day] = struct{}{}
		out = append(out, day)
	}
	sort.Ints(out)
	return out
}

// MeetsOn reports whether the study is scheduled on the given weekday index.
func (s Study) MeetsOn(weekday int) bool {
	for _, day := range s.Weekdays {
		if day == weekday {
			return true
		}
	}
	return false
}

// ParseStartTime parses an "HH:MM" time of day.
func ParseStartTime(value string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", value)
	if err != nil {
		return 0, 0, err
	}
	return t.Hour(), t.Minute(), nil
}

// WeekdayIndex converts Go's Sunday-based weekday to the Monday-based index
// used by study schedules.
func WeekdayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// StudyRepository captures schedule persistence operations.
type StudyRepository interface {
	CreateStudy(ctx context.Context, study Study) error
	// DeleteStudy removes the study and cascades to membership and ledger
	// rows. It reports whether a study row was actually deleted.
	DeleteStudy(ctx context.Context, name string) (bool, error)
	FindStudyNamesByRoom(ctx context.Context, roomID string) ([]string, error)
	// GetStudy returns nil when no study has the given name.
	GetStudy(ctx context.Context, name string) (*Study, error)
	ListStudies(ctx context.Context) ([]StudyWithMembers, error)
}

// MembershipRepository captures the (study, member) association operations.
type MembershipRepository interface {
	// AddMembers inserts the given members and returns the subsequence that
	// was actually inserted; already-present members are silently excluded.
	AddMembers(ctx context.Context, studyName string, memberIDs []string) ([]string, error)
	// ListMembers returns members in insertion order.
	ListMembers(ctx context.Context, studyName string) ([]string, error)
}
