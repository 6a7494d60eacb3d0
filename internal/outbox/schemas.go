package outbox

// SchemaCatalogEntry maps event type to schema definition.
type SchemaCatalogEntry struct {
	Schema string
}

var schemaCatalog = map[string]SchemaCatalogEntry{
	"notification.direct": {
		Schema: directMessageSchema,
	},
	"attendance.recorded": {
		Schema: attendanceRecordedSchema,
	},
}

const directMessageSchema = `{
  "type": "object",
  "title": "DirectMessageRequested",
  "properties": {
    "member_id": {"type": "string"},
    "text": {"type": "string"}
  },
  "required": ["member_id", "text"],
  "additionalProperties": false
}`

const attendanceRecordedSchema = `{
  "type": "object",
  "title": "AttendanceRecorded",
  "properties": {
    "channel": {"type": "string"},
    "study_name": {"type": "string"},
    "member_id": {"type": "string"},
    "member_name": {"type": "string"},
    "status": {"type": "string", "enum": ["present", "late"]},
    "date": {"type": "string"},
    "checkin_time": {"type": "string"},
    "text": {"type": "string"}
  },
  "required": ["channel", "study_name", "member_id", "status", "date", "checkin_time", "text"],
  "additionalProperties": false
}`
