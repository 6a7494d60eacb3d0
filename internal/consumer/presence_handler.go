package consumer

import (
	"context"
	"encoding/json"

	"github.com/CSPCLAB/study-bot/internal/domain"
	"github.com/CSPCLAB/study-bot/internal/events"
)

// roomJoinedEventType is the only presence event the classifier reacts to.
// Leaves and mutes are published under other event types and skipped here.
const roomJoinedEventType = "voice.room_joined"

// classifier is the slice of the domain service the handler needs.
type classifier interface {
	HandleRoomJoin(context.Context, domain.RoomJoinEvent) error
}

// PresenceHandler decodes voice-room joins and runs attendance classification.
type PresenceHandler struct {
	service classifier
}

// NewPresenceHandler constructs a handler around the domain service.
func NewPresenceHandler(service classifier) *PresenceHandler {
	return &PresenceHandler{service: service}
}

// Handle classifies a room join. Unknown event types are ignored so the
// processor commits them and moves on.
func (h *PresenceHandler) Handle(ctx context.Context, msg Message) error {
	if msg.EventType != roomJoinedEventType {
		return nil
	}

	var ev events.VoiceRoomJoined
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		return err
	}
	if ev.RoomID == "" || ev.MemberID == "" {
		return nil
	}

	return h.service.HandleRoomJoin(ctx, domain.RoomJoinEvent{
		MemberID:   ev.MemberID,
		MemberName: ev.MemberName,
		RoomID:     ev.RoomID,
	})
}
