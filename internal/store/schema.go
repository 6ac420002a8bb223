package store

import "fmt"

// EmbeddingDim is the fixed vector width every embedder in this module
// must produce. sqlite-vec's vec0 virtual table requires a static
// dimension per column, so changing this requires a fresh database.
const EmbeddingDim = 256

// schema defines every table, the FTS5 mirror, the sqlite-vec ANN index,
// and the indices that back the three services. It is applied with
// CREATE ... IF NOT EXISTS so that opening an existing database file is
// always safe.
var schema = fmt.Sprintf(baseSchema, EmbeddingDim)

const baseSchema = `
PRAGMA journal_mode = WAL;
PRAGMA foreign_keys = OFF;

CREATE TABLE IF NOT EXISTS turns (
    id          TEXT PRIMARY KEY,
    thread_id   TEXT NOT NULL,
    ts_user     TEXT NOT NULL,
    user_text   TEXT NOT NULL,
    ts_ai       TEXT,
    ai_text     TEXT,
    source_app  TEXT NOT NULL,
    source_url  TEXT,
    source_path TEXT,
    created_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_turns_thread ON turns(thread_id, id);

CREATE TABLE IF NOT EXISTS memories (
    id              TEXT PRIMARY KEY,
    kind            TEXT NOT NULL,
    topic           TEXT NOT NULL,
    text            TEXT NOT NULL,
    snippet_title   TEXT,
    snippet_text    TEXT,
    snippet_loc     TEXT,
    snippet_lang    TEXT,
    created_at      TEXT NOT NULL,
    ttl_seconds     INTEGER,
    source_app      TEXT,
    embedding       BLOB
);
CREATE INDEX IF NOT EXISTS idx_memories_created ON memories(created_at DESC, id);
CREATE INDEX IF NOT EXISTS idx_memories_topic ON memories(topic);
CREATE INDEX IF NOT EXISTS idx_memories_kind ON memories(kind);

CREATE TABLE IF NOT EXISTS memory_entities (
    memory_id TEXT NOT NULL,
    entity    TEXT NOT NULL,
    PRIMARY KEY (memory_id, entity)
);

CREATE TABLE IF NOT EXISTS memory_provenance (
    memory_id TEXT NOT NULL,
    turn_id   TEXT NOT NULL,
    ord       INTEGER NOT NULL,
    PRIMARY KEY (memory_id, turn_id)
);
CREATE INDEX IF NOT EXISTS idx_provenance_turn ON memory_provenance(turn_id);

CREATE VIRTUAL TABLE IF NOT EXISTS memories_fts USING fts5(
    memory_id UNINDEXED,
    text,
    snippet_text
);

CREATE VIRTUAL TABLE IF NOT EXISTS memory_vectors USING vec0(
    memory_id TEXT PRIMARY KEY,
    embedding float[%d] distance_metric=cosine
);

CREATE TABLE IF NOT EXISTS agentic (
    memory_id       TEXT PRIMARY KEY,
    keywords_json   TEXT NOT NULL DEFAULT '[]',
    tags_json       TEXT NOT NULL DEFAULT '[]',
    context         TEXT NOT NULL DEFAULT '',
    category        TEXT NOT NULL,
    retrieval_count INTEGER NOT NULL DEFAULT 0,
    last_accessed   TEXT NOT NULL,
    created_at      TEXT NOT NULL,
    evolution_json  TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS links (
    source    TEXT NOT NULL,
    target    TEXT NOT NULL,
    strength  REAL NOT NULL,
    rationale TEXT,
    PRIMARY KEY (source, target)
);
CREATE INDEX IF NOT EXISTS idx_links_target ON links(target);

CREATE TABLE IF NOT EXISTS workspaces (
    id   TEXT PRIMARY KEY,
    name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS projects (
    id           TEXT PRIMARY KEY,
    name         TEXT NOT NULL,
    workspace_id TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_projects_ws ON projects(workspace_id);

CREATE TABLE IF NOT EXISTS areas (
    id         TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    project_id TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_areas_project ON areas(project_id);

CREATE TABLE IF NOT EXISTS topics (
    id      TEXT PRIMARY KEY,
    name    TEXT NOT NULL,
    area_id TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_topics_area ON topics(area_id);

CREATE TABLE IF NOT EXISTS extraction_progress (
    turn_id     TEXT PRIMARY KEY,
    state       TEXT NOT NULL,
    skip_reason TEXT,
    updated_at  TEXT NOT NULL
);
`
