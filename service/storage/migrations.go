package storage

const schemaV1 = `
CREATE TABLE IF NOT EXISTS snapshots (
    snapshot_id     INTEGER PRIMARY KEY AUTOINCREMENT,
    pass_id         TEXT UNIQUE NOT NULL,
    taken_at        DATETIME NOT NULL,
    org_score       REAL NOT NULL,
    grade           TEXT NOT NULL,
    critical_count  INTEGER DEFAULT 0,
    high_count      INTEGER DEFAULT 0,
    medium_count    INTEGER DEFAULT 0,
    low_count       INTEGER DEFAULT 0,
    total_findings  INTEGER DEFAULT 0,
    account_count   INTEGER DEFAULT 0,
    failed_count    INTEGER DEFAULT 0,
    created_at      DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_snapshots_taken_at
    ON snapshots(taken_at DESC);

CREATE TABLE IF NOT EXISTS account_scores (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    snapshot_id    INTEGER NOT NULL,
    account_id     TEXT NOT NULL,
    account_name   TEXT,
    score          REAL NOT NULL,
    grade          TEXT NOT NULL,
    finding_count  INTEGER DEFAULT 0,
    FOREIGN KEY (snapshot_id) REFERENCES snapshots(snapshot_id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_account_scores_snapshot
    ON account_scores(snapshot_id);
CREATE INDEX IF NOT EXISTS idx_account_scores_account
    ON account_scores(account_id);
`
