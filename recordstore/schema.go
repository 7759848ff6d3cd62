package recordstore

// Schema is the DDL for the records table. Collection-specific fields live in
// the fields_json document and are filtered with json_extract.
const Schema = `
CREATE TABLE IF NOT EXISTS records (
    id          TEXT PRIMARY KEY,
    collection  TEXT NOT NULL,
    title       TEXT NOT NULL,
    content     TEXT NOT NULL DEFAULT '',
    excerpt     TEXT NOT NULL DEFAULT '',
    images_json TEXT NOT NULL DEFAULT '[]',
    fields_json TEXT NOT NULL DEFAULT '{}',
    created_at  INTEGER NOT NULL,
    updated_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_records_collection ON records(collection, created_at DESC);
`
