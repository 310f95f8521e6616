// Package storage persists cards, deck sources, and review logs in
// SQLite. It is the component responsible for the read-modify-write
// guarantee the scheduler relies on: SaveCard is a compare-and-swap on
// the card's version, so a grade computed from a stale read is never
// silently applied.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // registers the sqlite driver

	"github.com/Keeno5280/LectureLens/internal/domain"
)

// ErrStaleCard is returned by SaveCard when the card's version no
// longer matches the stored row. The caller must re-fetch and re-apply.
var ErrStaleCard = errors.New("storage: card was modified concurrently")

// DB wraps the SQLite connection.
type DB struct {
	conn *sql.DB
}

// Open connects to the database at dsn and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite allows one writer; a single pooled connection avoids
	// SQLITE_BUSY and keeps the foreign_keys pragma in effect.
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := conn.Exec(schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

const cardColumns = `id, hash, question, answer, notes, auto_generated,
	ease, repetitions, interval_days, last_reviewed_at, next_review_at, version, source_id`

// InsertCard stores a new card. The card must carry creation defaults
// (see sm2.Scheduler.NewCard); its version is forced to 1.
func (db *DB) InsertCard(c domain.ReviewCard) error {
	_, err := db.conn.Exec(`
		INSERT INTO cards (`+cardColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?)
	`,
		c.ID, c.Hash, c.Question, c.Answer, c.Notes, boolToInt(c.AutoGenerated),
		c.Ease, c.Repetitions, c.IntervalDays,
		nullUnix(c.LastReviewedAt), c.NextReviewAt.Unix(), nullID(c.SourceID),
	)
	if err != nil {
		return fmt.Errorf("insert card %s: %w", c.ID, err)
	}
	return nil
}

// FindCardByID returns the card with the given ID, or nil if absent.
func (db *DB) FindCardByID(id string) (*domain.ReviewCard, error) {
	return db.findCard("id", id)
}

// FindCardByHash returns the card with the given content hash, or nil
// if absent.
func (db *DB) FindCardByHash(hash string) (*domain.ReviewCard, error) {
	return db.findCard("hash", hash)
}

func (db *DB) findCard(column, value string) (*domain.ReviewCard, error) {
	row := db.conn.QueryRow(
		`SELECT `+cardColumns+` FROM cards WHERE `+column+` = ?`, value)
	c, err := scanCard(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find card by %s %q: %w", column, value, err)
	}
	return &c, nil
}

// FetchDueCards returns cards due at now, most overdue first, ties
// broken by ID. A limit <= 0 means unbounded.
func (db *DB) FetchDueCards(now time.Time, limit int) ([]domain.ReviewCard, error) {
	q := `SELECT ` + cardColumns + ` FROM cards
		WHERE next_review_at <= ? ORDER BY next_review_at, id`
	args := []any{now.Unix()}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := db.conn.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch due cards: %w", err)
	}
	defer rows.Close()
	return collectCards(rows)
}

// SaveCard writes the card's scheduling state back, guarded by the
// version read along with it. Unknown IDs also surface as ErrStaleCard;
// callers fetch the card before saving, so a missing row means it was
// deleted underneath them.
func (db *DB) SaveCard(c domain.ReviewCard) error {
	res, err := db.conn.Exec(`
		UPDATE cards
		SET ease = ?, repetitions = ?, interval_days = ?,
		    last_reviewed_at = ?, next_review_at = ?, version = version + 1
		WHERE id = ? AND version = ?
	`,
		c.Ease, c.Repetitions, c.IntervalDays,
		nullUnix(c.LastReviewedAt), c.NextReviewAt.Unix(),
		c.ID, c.Version,
	)
	if err != nil {
		return fmt.Errorf("save card %s: %w", c.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save card %s: %w", c.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("save card %s at version %d: %w", c.ID, c.Version, ErrStaleCard)
	}
	return nil
}

// DeleteCardByID removes a card; its review logs cascade.
func (db *DB) DeleteCardByID(id string) error {
	if _, err := db.conn.Exec(`DELETE FROM cards WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete card %s: %w", id, err)
	}
	return nil
}

// CardsBySourceID returns all cards belonging to a deck source.
func (db *DB) CardsBySourceID(sourceID int64) ([]domain.ReviewCard, error) {
	rows, err := db.conn.Query(
		`SELECT `+cardColumns+` FROM cards WHERE source_id = ?`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("cards for source %d: %w", sourceID, err)
	}
	defer rows.Close()
	return collectCards(rows)
}

// InsertReviewLog appends one review to the card's history.
func (db *DB) InsertReviewLog(l domain.ReviewLog) error {
	_, err := db.conn.Exec(`
		INSERT INTO review_logs (card_id, grade, reviewed_at) VALUES (?, ?, ?)
	`, l.CardID, int(l.Grade), l.ReviewedAt.Unix())
	if err != nil {
		return fmt.Errorf("insert review log for %s: %w", l.CardID, err)
	}
	return nil
}

// ReviewLogsByCardID returns the card's review history in order.
func (db *DB) ReviewLogsByCardID(cardID string) ([]domain.ReviewLog, error) {
	rows, err := db.conn.Query(`
		SELECT card_id, grade, reviewed_at FROM review_logs
		WHERE card_id = ? ORDER BY reviewed_at, id
	`, cardID)
	if err != nil {
		return nil, fmt.Errorf("review logs for %s: %w", cardID, err)
	}
	defer rows.Close()

	var logs []domain.ReviewLog
	for rows.Next() {
		var l domain.ReviewLog
		var grade int
		var reviewed int64
		if err := rows.Scan(&l.CardID, &grade, &reviewed); err != nil {
			return nil, fmt.Errorf("scan review log: %w", err)
		}
		l.Grade = domain.Grade(grade)
		l.ReviewedAt = time.Unix(reviewed, 0).UTC()
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// Source is a configured deck origin: a local directory or a git URL.
type Source struct {
	ID           int64      `json:"id"`
	Path         string     `json:"path"`
	Kind         string     `json:"kind"` // "local" or "git"
	LastSyncedAt *time.Time `json:"last_synced_at"`
}

// InsertSource registers a deck source and returns its ID.
func (db *DB) InsertSource(path, kind string) (int64, error) {
	res, err := db.conn.Exec(
		`INSERT INTO sources (path, kind) VALUES (?, ?)`, path, kind)
	if err != nil {
		return 0, fmt.Errorf("insert source %s: %w", path, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert source %s: %w", path, err)
	}
	return id, nil
}

// FindSourceByPath returns the source with the given path, or nil.
func (db *DB) FindSourceByPath(path string) (*Source, error) {
	row := db.conn.QueryRow(
		`SELECT id, path, kind, last_synced_at FROM sources WHERE path = ?`, path)
	s, err := scanSource(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find source %s: %w", path, err)
	}
	return &s, nil
}

// AllSources returns every configured deck source.
func (db *DB) AllSources() ([]Source, error) {
	rows, err := db.conn.Query(`SELECT id, path, kind, last_synced_at FROM sources ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		s, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		sources = append(sources, s)
	}
	return sources, rows.Err()
}

// DeleteSource removes a source; its cards remain, detached, so review
// history is never lost by dropping a deck.
func (db *DB) DeleteSource(id int64) error {
	if _, err := db.conn.Exec(`DELETE FROM sources WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete source %d: %w", id, err)
	}
	return nil
}

// UpdateSourceSyncedAt stamps the source's last successful sync.
func (db *DB) UpdateSourceSyncedAt(id int64, now time.Time) error {
	_, err := db.conn.Exec(
		`UPDATE sources SET last_synced_at = ? WHERE id = ?`, now.Unix(), id)
	if err != nil {
		return fmt.Errorf("stamp source %d: %w", id, err)
	}
	return nil
}

// Stats summarizes the collection at a point in time.
type Stats struct {
	New       int `json:"new"`
	Learning  int `json:"learning"`
	Reviewing int `json:"reviewing"`
	Due       int `json:"due"`
	Reviews   int `json:"reviews"`
}

// Stats counts cards per phase, cards currently due, and total reviews.
func (db *DB) Stats(now time.Time) (Stats, error) {
	var s Stats
	err := db.conn.QueryRow(`
		SELECT
			COUNT(CASE WHEN last_reviewed_at IS NULL AND repetitions = 0 THEN 1 END),
			COUNT(CASE WHEN last_reviewed_at IS NOT NULL AND repetitions <= 2 THEN 1 END),
			COUNT(CASE WHEN repetitions > 2 THEN 1 END),
			COUNT(CASE WHEN next_review_at <= ? THEN 1 END)
		FROM cards
	`, now.Unix()).Scan(&s.New, &s.Learning, &s.Reviewing, &s.Due)
	if err != nil {
		return Stats{}, fmt.Errorf("card stats: %w", err)
	}
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM review_logs`).Scan(&s.Reviews); err != nil {
		return Stats{}, fmt.Errorf("review count: %w", err)
	}
	return s, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCard(row scanner) (domain.ReviewCard, error) {
	var c domain.ReviewCard
	var lastReviewed, sourceID sql.NullInt64
	var nextReview int64
	var auto int
	err := row.Scan(
		&c.ID, &c.Hash, &c.Question, &c.Answer, &c.Notes, &auto,
		&c.Ease, &c.Repetitions, &c.IntervalDays,
		&lastReviewed, &nextReview, &c.Version, &sourceID,
	)
	if err != nil {
		return domain.ReviewCard{}, err
	}
	c.AutoGenerated = auto != 0
	if lastReviewed.Valid {
		t := time.Unix(lastReviewed.Int64, 0).UTC()
		c.LastReviewedAt = &t
	}
	c.NextReviewAt = time.Unix(nextReview, 0).UTC()
	c.SourceID = sourceID.Int64
	return c, nil
}

func collectCards(rows *sql.Rows) ([]domain.ReviewCard, error) {
	var cards []domain.ReviewCard
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("scan card: %w", err)
		}
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

func scanSource(row scanner) (Source, error) {
	var s Source
	var synced sql.NullInt64
	if err := row.Scan(&s.ID, &s.Path, &s.Kind, &synced); err != nil {
		return Source{}, err
	}
	if synced.Valid {
		t := time.Unix(synced.Int64, 0).UTC()
		s.LastSyncedAt = &t
	}
	return s, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullUnix(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Unix()
}

func nullID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}
