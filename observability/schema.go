package observability

import "database/sql"

// Schema contains the DDL for the editor event log. Call Init(db) to apply it,
// or pass it to dbopen.WithSchema.
const Schema = `
CREATE TABLE IF NOT EXISTS editor_events (
    event_id    TEXT PRIMARY KEY,
    event_type  TEXT NOT NULL,
    draft_id    TEXT NOT NULL DEFAULT '',
    collection  TEXT NOT NULL DEFAULT '',
    entity_id   TEXT NOT NULL DEFAULT '',
    details     TEXT NOT NULL DEFAULT '{}',
    success     INTEGER NOT NULL DEFAULT 1,
    created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_editor_events_type ON editor_events(event_type, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_editor_events_draft ON editor_events(draft_id, created_at DESC);
`

// Init applies Schema.
func Init(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}
