package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ddl bootstraps the three attendance tables plus the notification outbox.
// The (study_name, member_id, date) unique key is the idempotence gate for
// check-ins: a replayed join cannot produce a second ledger row.
const ddl = `
CREATE TABLE IF NOT EXISTS studies (
    study_id      BIGSERIAL PRIMARY KEY,
    name          TEXT NOT NULL UNIQUE,
    weekdays      SMALLINT[] NOT NULL,
    start_time    TEXT NOT NULL,
    voice_room_id TEXT NOT NULL,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_studies_voice_room ON studies (voice_room_id);

CREATE TABLE IF NOT EXISTS study_members (
    member_row_id BIGSERIAL PRIMARY KEY,
    study_name    TEXT NOT NULL,
    member_id     TEXT NOT NULL,
    added_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (study_name, member_id)
);

CREATE TABLE IF NOT EXISTS attendance (
    record_id    BIGSERIAL PRIMARY KEY,
    study_name   TEXT NOT NULL,
    member_id    TEXT NOT NULL,
    date         TEXT NOT NULL,
    checkin_time TEXT NOT NULL,
    status       TEXT NOT NULL,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (study_name, member_id, date)
);

CREATE INDEX IF NOT EXISTS idx_attendance_study_date ON attendance (study_name, date DESC);

CREATE TABLE IF NOT EXISTS notification_outbox (
    event_id       BIGSERIAL PRIMARY KEY,
    event_key      TEXT NOT NULL,
    event_type     TEXT NOT NULL,
    topic          TEXT NOT NULL,
    schema_subject TEXT NOT NULL,
    partition_key  TEXT NOT NULL,
    payload        JSONB NOT NULL,
    created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    claimed_at     TIMESTAMPTZ,
    published_at   TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_notification_outbox_unpublished
    ON notification_outbox (event_id) WHERE published_at IS NULL;
`

// EnsureSchema creates the tables if they do not exist yet.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, ddl)
	return err
}
