package consumer

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/CSPCLAB/study-bot/internal/domain"
)

type stubClassifier struct {
	calls []domain.RoomJoinEvent
	err   error
}

func (c *stubClassifier) HandleRoomJoin(_ context.Context, ev domain.RoomJoinEvent) error {
	c.calls = append(c.calls, ev)
	return c.err
}

func TestPresenceHandlerClassifiesRoomJoins(t *testing.T) {
	svc := &stubClassifier{}
	handler := NewPresenceHandler(svc)

	payload, err := json.Marshal(map[string]string{
		"member_id":        "alice",
		"member_name":      "Alice",
		"room_id":          "room-R",
		"previous_room_id": "room-lobby",
	})
	require.NoError(t, err)

	err = handler.Handle(context.Background(), Message{
		EventType: "voice.room_joined",
		Payload:   payload,
	})
	require.NoError(t, err)

	require.Len(t, svc.calls, 1)
	require.Equal(t, domain.RoomJoinEvent{MemberID: "alice", MemberName: "Alice", RoomID: "room-R"}, svc.calls[0])
}

func TestPresenceHandlerIgnoresOtherEventTypes(t *testing.T) {
	svc := &stubClassifier{}
	handler := NewPresenceHandler(svc)

	err := handler.Handle(context.Background(), Message{
		EventType: "voice.room_left",
		Payload:   json.RawMessage(`{"member_id":"alice","room_id":"room-R"}`),
	})
	require.NoError(t, err)
	require.Empty(t, svc.calls)
}

func TestPresenceHandlerSkipsIncompleteEvents(t *testing.T) {
	svc := &stubClassifier{}
	handler := NewPresenceHandler(svc)

	for _, payload := range []string{
		`{"member_id":"alice"}`,
		`{"room_id":"room-R"}`,
	} {
		err := handler.Handle(context.Background(), Message{
			EventType: "voice.room_joined",
			Payload:   json.RawMessage(payload),
		})
		require.NoError(t, err)
	}
	require.Empty(t, svc.calls)
}

func TestPresenceHandlerRejectsMalformedPayload(t *testing.T) {
	svc := &stubClassifier{}
	handler := NewPresenceHandler(svc)

	err := handler.Handle(context.Background(), Message{
		EventType: "voice.room_joined",
		Payload:   json.RawMessage(`not-json`),
	})
	require.Error(t, err)
	require.Empty(t, svc.calls)
}
