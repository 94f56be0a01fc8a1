package store

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id            TEXT PRIMARY KEY,
    niche         TEXT NOT NULL,
    niche_key     TEXT NOT NULL,
    unified_score INTEGER NOT NULL DEFAULT 0,
    item_count    INTEGER NOT NULL DEFAULT 0,
    report        TEXT NOT NULL DEFAULT '{}',
    created_at    DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_niche_key ON runs(niche_key);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
CREATE INDEX IF NOT EXISTS idx_runs_score ON runs(unified_score);

CREATE TABLE IF NOT EXISTS run_items (
    run_id       TEXT NOT NULL REFERENCES runs(id),
    id           TEXT NOT NULL,
    source       TEXT NOT NULL,
    external_id  TEXT NOT NULL,
    title        TEXT NOT NULL,
    url          TEXT NOT NULL DEFAULT '',
    description  TEXT NOT NULL DEFAULT '',
    author       TEXT NOT NULL DEFAULT '',
    score        INTEGER NOT NULL DEFAULT 0,
    comments     INTEGER NOT NULL DEFAULT 0,
    community    TEXT NOT NULL DEFAULT '',
    duration_ms  INTEGER NOT NULL DEFAULT 0,
    discussion   TEXT NOT NULL DEFAULT '[]',
    published_at DATETIME NOT NULL,
    collected_at DATETIME NOT NULL,
    PRIMARY KEY (run_id, id)
);

CREATE INDEX IF NOT EXISTS idx_run_items_source ON run_items(source);
`
