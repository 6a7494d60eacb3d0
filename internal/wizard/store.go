// Package wizard holds the transient state of the multi-step study creation
// flow: pick weekdays, pick a start time, pick a voice room. State lives in
// process memory only, keyed by the initiating user, and expires so abandoned
// flows do not accumulate.
package wizard

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/CSPCLAB/study-bot/internal/domain"
)

// ErrSessionExpired is returned when a step continues a flow whose state was
// dropped or never started.
var ErrSessionExpired = errors.New("wizard session expired")

type session struct {
	studyName    string
	participants []string
	weekdays     []int
	startTime    string
	touchedAt    time.Time
}

// Store is a TTL-keyed table of in-flight wizard sessions.
type Store struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions map[string]*session
	now      func() time.Time
}

// NewStore constructs a Store whose sessions expire after ttl of inactivity.
func NewStore(ttl time.Duration) *Store {
	return &Store{
		ttl:      ttl,
		sessions: make(map[string]*session),
		now:      time.Now,
	}
}

// Begin starts (or restarts) a flow for the user. A previous unfinished
// session for the same user is overwritten.
func (s *Store) Begin(userID, studyName string, participants []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[userID] = &session{
		studyName:    studyName,
		participants: append([]string(nil), participants...),
		touchedAt:    s.now(),
	}
}

// SetWeekdays records the weekday selection.
func (s *Store) SetWeekdays(userID string, weekdays []int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.live(userID)
	if err != nil {
		return err
	}
	sess.weekdays = append([]int(nil), weekdays...)
	sess.touchedAt = s.now()
	return nil
}

// SetStartTime records the start-of-day time selection.
func (s *Store) SetStartTime(userID, startTime string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.live(userID)
	if err != nil {
		return err
	}
	sess.startTime = startTime
	sess.touchedAt = s.now()
	return nil
}

// Complete finishes the flow with the room selection and returns the
// study-creation record. The session is consumed.
func (s *Store) Complete(userID, roomID string) (domain.CreateStudyInput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.live(userID)
	if err != nil {
		return domain.CreateStudyInput{}, err
	}
	delete(s.sessions, userID)

	return domain.CreateStudyInput{
		Name:         sess.studyName,
		Weekdays:     sess.weekdays,
		StartTime:    sess.startTime,
		RoomID:       roomID,
		Participants: sess.participants,
	}, nil
}

// live must be called with the lock held.
func (s *Store) live(userID string) (*session, error) {
	sess, ok := s.sessions[userID]
	if !ok {
		return nil, ErrSessionExpired
	}
	if s.now().Sub(sess.touchedAt) > s.ttl {
		delete(s.sessions, userID)
		return nil, ErrSessionExpired
	}
	return sess, nil
}

// Sweep evicts expired sessions until the context is cancelled.
func (s *Store) Sweep(ctx context.Context) {
	ticker := time.NewTicker(s.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.evictExpired()
		}
	}
}

func (s *Store) evictExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.ttl)
	for userID, sess := range s.sessions {
		if sess.touchedAt.Before(cutoff) {
			delete(s.sessions, userID)
		}
	}
}
