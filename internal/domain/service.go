package domain

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"
)

// RoomJoinEvent is the decoded voice-room entry the classifier reacts to.
// Moves between rooms arrive as a join into the destination room; re-entering
// the same room is not filtered here, the ledger's uniqueness gate absorbs it.
type RoomJoinEvent struct {
	MemberID   string
	MemberName string
	RoomID     string
}

// CreateStudyInput is the finished study-creation record, either from the
// wizard flow or a direct API call.
type CreateStudyInput struct {
	Name         string
	Weekdays     []int
	StartTime    string
	RoomID       string
	Participants []string
}

// ServiceOption configures optional behaviour for the Service.
type ServiceOption func(*Service)

// WithLogger overrides the logger used for per-event diagnostics.
func WithLogger(logger *log.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithClock overrides the wall clock, used by tests.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// Service orchestrates study management and attendance classification.
type Service struct {
	studies         StudyRepository
	members         MembershipRepository
	ledger          AttendanceRepository
	notifier        Notifier
	loc             *time.Location
	announceChannel string
	logger          *log.Logger
	now             func() time.Time
}

// NewService constructs a Service. All schedule arithmetic happens in loc.
func NewService(studies StudyRepository, members MembershipRepository, ledger AttendanceRepository, notifier Notifier, loc *time.Location, announceChannel string, opts ...ServiceOption) *Service {
	s := &Service{
		studies:         studies,
		members:         members,
		ledger:          ledger,
		notifier:        notifier,
		loc:             loc,
		announceChannel: announceChannel,
		logger:          log.New(log.Writer(), "[attendance] ", log.LstdFlags),
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateStudy validates and persists a new study plus its initial roster.
func (s *Service) CreateStudy(ctx context.Context, input CreateStudyInput) error {
	study := Study{
		Name:      input.Name,
		Weekdays:  NormalizeWeekdays(input.Weekdays),
		StartTime: input.StartTime,
		RoomID:    input.RoomID,
	}
	if err := study.Validate(); err != nil {
		return err
	}
	if err := s.studies.CreateStudy(ctx, study); err != nil {
		return err
	}
	if len(input.Participants) > 0 {
		if _, err := s.members.AddMembers(ctx, study.Name, input.Participants); err != nil {
			return err
		}
	}
	return nil
}

// AddMembers adds members to an existing study and returns those actually added.
func (s *Service) AddMembers(ctx context.Context, studyName string, memberIDs []string) ([]string, error) {
	study, err := s.studies.GetStudy(ctx, studyName)
	if err != nil {
		return nil, err
	}
	if study == nil {
		return nil, ErrStudyNotFound
	}
	return s.members.AddMembers(ctx, studyName, memberIDs)
}

// DeleteStudy removes a study and all membership and attendance rows for it.
func (s *Service) DeleteStudy(ctx context.Context, studyName string) error {
	deleted, err := s.studies.DeleteStudy(ctx, studyName)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrStudyNotFound
	}
	return nil
}

// ListStudies returns all studies with their rosters.
func (s *Service) ListStudies(ctx context.Context) ([]StudyWithMembers, error) {
	return s.studies.ListStudies(ctx)
}

// History returns the raw ledger for a study, most recent date first. Unknown
// studies yield an empty history rather than an error.
func (s *Service) History(ctx context.Context, studyName string) ([]AttendanceRecord, error) {
	return s.ledger.History(ctx, studyName)
}

// Report renders the per-date roster grid for a study. Members with no ledger
// row on a date are shown as absent without any record being written.
func (s *Service) Report(ctx context.Context, studyName string) (Report, error) {
	study, err := s.studies.GetStudy(ctx, studyName)
	if err != nil {
		return Report{}, err
	}
	if study == nil {
		return Report{}, ErrStudyNotFound
	}

	roster, err := s.members.ListMembers(ctx, studyName)
	if err != nil {
		return Report{}, err
	}
	grouped, err := s.ledger.ByDateGrouped(ctx, studyName)
	if err != nil {
		return Report{}, err
	}

	dates := make([]string, 0, len(grouped))
	for date := range grouped {
		dates = append(dates, date)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))

	report := Report{StudyName: studyName, Members: roster, Dates: make([]DateReport, 0, len(dates))}
	for _, date := range dates {
		day := DateReport{Date: date, Entries: make([]MemberStatus, 0, len(roster))}
		for _, member := range roster {
			if checkin, ok := grouped[date][member]; ok {
				day.Entries = append(day.Entries, MemberStatus{MemberID: member, CheckinTime: checkin.CheckinTime, Status: checkin.Status})
			} else {
				day.Entries = append(day.Entries, MemberStatus{MemberID: member, Status: StatusAbsent})
			}
		}
		report.Dates = append(report.Dates, day)
	}
	return report, nil
}

// HandleRoomJoin evaluates every study designated to the joined room.
func (s *Service) HandleRoomJoin(ctx context.Context, ev RoomJoinEvent) error {
	if ev.RoomID == "" {
		return nil
	}

	now := s.now().In(s.loc)
	today := now.Format("2006-01-02")
	checkinTime := now.Format("15:04")
	weekdayToday := WeekdayIndex(now)

	names, err := s.studies.FindStudyNamesByRoom(ctx, ev.RoomID)
	if err != nil {
		return err
	}

	var firstErr error
	for _, name := range names {
		if err := s.evaluateStudy(ctx, name, ev, now, today, checkinTime, weekdayToday); err != nil {
			s.logger.Printf("study %q: %v", name, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (s *Service) evaluateStudy(ctx context.Context, studyName string, ev RoomJoinEvent, now time.Time, today, checkinTime string, weekdayToday int) error {
	study, err := s.studies.GetStudy(ctx, studyName)
	if err != nil {
		return err
	}
	if study == nil {
		return nil
	}

	if !study.MeetsOn(weekdayToday) {
		return nil
	}

	hour, minute, err := ParseStartTime(study.StartTime)
	if err != nil {
		// A malformed stored time skips this study for the event only.
		s.logger.Printf("study %q has malformed start time %q, skipping", studyName, study.StartTime)
		return nil
	}

	scheduledStart := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, s.loc)
	delta := now.Sub(scheduledStart)

	s.nudgePeers(ctx, studyName, ev, today)

	status, recordable := Classify(delta)
	if !recordable {
		s.logger.Printf("%s not recorded for %q (delta=%s)", ev.MemberID, studyName, delta)
		return nil
	}

	inserted, err := s.ledger.RecordAttendance(ctx, AttendanceRecord{
		StudyName:   studyName,
		MemberID:    ev.MemberID,
		Date:        today,
		CheckinTime: checkinTime,
		Status:      status,
	})
	if err != nil {
		return err
	}
	if !inserted {
		return nil
	}

	announcement := Announcement{
		Channel:     s.announceChannel,
		StudyName:   studyName,
		MemberID:    ev.MemberID,
		MemberName:  ev.MemberName,
		Status:      status,
		Date:        today,
		CheckinTime: checkinTime,
	}
	announcement.Text = fmt.Sprintf("✅ %s checked in to **%s** as %s (%s)", displayName(ev), studyName, status, checkinTime)
	if err := s.notifier.AnnounceAttendance(ctx, announcement); err != nil {
		s.logger.Printf("announce failed for %s/%s: %v", studyName, ev.MemberID, err)
	}
	return nil
}

// nudgePeers DMs every other member who has not checked in today, naming the
// joiner. It fires once per qualifying join regardless of the status outcome.
func (s *Service) nudgePeers(ctx context.Context, studyName string, ev RoomJoinEvent, today string) {
	roster, err := s.members.ListMembers(ctx, studyName)
	if err != nil {
		s.logger.Printf("roster lookup failed for %q: %v", studyName, err)
		return
	}

	text := fmt.Sprintf("📢 %s just joined %s. Where are you?", displayName(ev), studyName)
	for _, member := range roster {
		if member == ev.MemberID {
			continue
		}
		checked, err := s.ledger.HasCheckedIn(ctx, studyName, member, today)
		if err != nil {
			s.logger.Printf("check-in lookup failed for %s/%s: %v", studyName, member, err)
			continue
		}
		if checked {
			continue
		}
		if err := s.notifier.NotifyMember(ctx, member, text); err != nil {
			s.logger.Printf("nudge failed for %s/%s: %v", studyName, member, err)
		}
	}
}

func displayName(ev RoomJoinEvent) string {
	if ev.MemberName != "" {
		return ev.MemberName
	}
	return ev.MemberID
}
