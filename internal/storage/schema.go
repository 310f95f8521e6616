package storage

const schema = `
-- Flashcards with their spaced-repetition state. Timestamps are Unix
-- seconds so that due comparisons and ordering happen exactly in SQL.
CREATE TABLE IF NOT EXISTS cards (
    id TEXT PRIMARY KEY,
    hash TEXT NOT NULL UNIQUE,
    question TEXT NOT NULL,
    answer TEXT NOT NULL,
    notes TEXT NOT NULL DEFAULT '',
    auto_generated INTEGER NOT NULL DEFAULT 0,
    ease REAL NOT NULL,
    repetitions INTEGER NOT NULL,
    interval_days INTEGER NOT NULL,
    last_reviewed_at INTEGER,
    next_review_at INTEGER NOT NULL,
    version INTEGER NOT NULL DEFAULT 1,
    source_id INTEGER,

    FOREIGN KEY(source_id) REFERENCES sources(id) ON DELETE SET NULL
);

CREATE INDEX IF NOT EXISTS idx_cards_due ON cards(next_review_at, id);

-- Deck sources: local directories or git repositories scanned for cards.
CREATE TABLE IF NOT EXISTS sources (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    path TEXT NOT NULL UNIQUE,
    kind TEXT NOT NULL,
    last_synced_at INTEGER
);

-- One row per graded review; the card's history for replay and stats.
CREATE TABLE IF NOT EXISTS review_logs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    card_id TEXT NOT NULL,
    grade INTEGER NOT NULL,
    reviewed_at INTEGER NOT NULL,

    FOREIGN KEY(card_id) REFERENCES cards(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_review_logs_card ON review_logs(card_id, reviewed_at);
`
