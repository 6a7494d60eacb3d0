// Package outbox persists notifications durably and delivers them to Kafka
// for the chat gateway to send as DMs and channel posts.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/CSPCLAB/study-bot/internal/domain"
	"github.com/CSPCLAB/study-bot/internal/events"
)

// Notifier implements domain.Notifier by writing notification_outbox rows.
// Delivery happens asynchronously via the Dispatcher, so classification never
// blocks on the chat platform.
type Notifier struct {
	pool *pgxpool.Pool
}

// NewNotifier constructs a Notifier on the shared pool.
func NewNotifier(pool *pgxpool.Pool) *Notifier {
	return &Notifier{pool: pool}
}

// NotifyMember enqueues a direct message to a single member.
func (n *Notifier) NotifyMember(ctx context.Context, memberID, text string) error {
	return n.enqueue(ctx, "notification.direct", memberID, events.DirectMessageRequested{
		MemberID: memberID,
		Text:     text,
	})
}

// AnnounceAttendance enqueues a channel announcement for a landed check-in.
func (n *Notifier) AnnounceAttendance(ctx context.Context, a domain.Announcement) error {
	return n.enqueue(ctx, "attendance.recorded", a.StudyName, events.AttendanceRecorded{
		Channel:     a.Channel,
		StudyName:   a.StudyName,
		MemberID:    a.MemberID,
		MemberName:  a.MemberName,
		Status:      string(a.Status),
		Date:        a.Date,
		CheckinTime: a.CheckinTime,
		Text:        a.Text,
	})
}

func (n *Notifier) enqueue(ctx context.Context, eventType, partitionKey string, payload interface{}) error {
	meta, ok := eventCatalog[eventType]
	if !ok {
		return fmt.Errorf("unknown event type: %s", eventType)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	// The event key travels as a Kafka header so the gateway can deduplicate
	// redeliveries after a dispatcher crash between publish and mark.
	const stmt = `INSERT INTO notification_outbox (event_key, event_type, topic, schema_subject, partition_key, payload)
        VALUES ($1,$2,$3,$4,$5,$6)`

	if _, err := n.pool.Exec(ctx, stmt, uuid.NewString(), eventType, meta.Topic, meta.SchemaSubject, partitionKey, body); err != nil {
		return err
	}
	enqueuedCounter.WithLabelValues(eventType).Inc()
	return nil
}

// EventMetadata describes how to route an outbox event.
type EventMetadata struct {
	Topic         string
	SchemaSubject string
}

var eventCatalog = map[string]EventMetadata{
	"notification.direct": {
		Topic:         "notification_events",
		SchemaSubject: "notification_events-value",
	},
	"attendance.recorded": {
		Topic:         "attendance_events",
		SchemaSubject: "attendance_events-value",
	},
}
