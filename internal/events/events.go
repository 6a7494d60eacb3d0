// Package events defines wire payloads exchanged with the chat gateway.
package events

// VoiceRoomJoined is emitted by the chat gateway when a member enters a voice
// room. Transitions out of a room are not published on this event type.
type VoiceRoomJoined struct {
	MemberID       string `json:"member_id"`
	MemberName     string `json:"member_name"`
	RoomID         string `json:"room_id"`
	PreviousRoomID string `json:"previous_room_id,omitempty"`
}

// DirectMessageRequested asks the gateway to deliver a DM to a single member.
type DirectMessageRequested struct {
	MemberID string `json:"member_id"`
	Text     string `json:"text"`
}

// AttendanceRecorded announces a landed check-in to a named text channel.
type AttendanceRecorded struct {
	Channel     string `json:"channel"`
	StudyName   string `json:"study_name"`
	MemberID    string `json:"member_id"`
	MemberName  string `json:"member_name"`
	Status      string `json:"status"`
	Date        string `json:"date"`
	CheckinTime string `json:"checkin_time"`
	Text        string `json:"text"`
}
