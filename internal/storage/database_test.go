package storage

import (
	"errors"
	"testing"
	"time"

	"github.com/Keeno5280/LectureLens/internal/domain"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testCard(id string, due time.Time) domain.ReviewCard {
	return domain.ReviewCard{
		ID:           id,
		Content:      domain.Content{Question: "Q " + id, Answer: "A " + id},
		Hash:         "hash-" + id,
		Ease:         2.5,
		NextReviewAt: due,
		Version:      1,
	}
}

func TestInsertAndFindCard(t *testing.T) {
	db := openTestDB(t)
	in := testCard("c1", t0)
	in.Notes = "lecture 2"
	in.AutoGenerated = true

	if err := db.InsertCard(in); err != nil {
		t.Fatalf("InsertCard: %v", err)
	}

	got, err := db.FindCardByID("c1")
	if err != nil {
		t.Fatalf("FindCardByID: %v", err)
	}
	if got == nil {
		t.Fatal("card not found")
	}
	if got.Question != in.Question || got.Notes != in.Notes || !got.AutoGenerated {
		t.Errorf("content mismatch: %+v", got)
	}
	if got.Ease != 2.5 || got.Repetitions != 0 || got.IntervalDays != 0 {
		t.Errorf("creation defaults mismatch: %+v", got)
	}
	if got.LastReviewedAt != nil {
		t.Error("new card must have nil LastReviewedAt")
	}
	if !got.NextReviewAt.Equal(t0) {
		t.Errorf("next review = %v, want %v", got.NextReviewAt, t0)
	}
	if got.Version != 1 {
		t.Errorf("version = %d, want 1", got.Version)
	}

	t.Run("by hash", func(t *testing.T) {
		byHash, err := db.FindCardByHash("hash-c1")
		if err != nil {
			t.Fatalf("FindCardByHash: %v", err)
		}
		if byHash == nil || byHash.ID != "c1" {
			t.Errorf("got %+v", byHash)
		}
	})

	t.Run("absent card is nil nil", func(t *testing.T) {
		missing, err := db.FindCardByID("nope")
		if err != nil || missing != nil {
			t.Errorf("got %+v, %v; want nil, nil", missing, err)
		}
	})

	t.Run("duplicate hash rejected", func(t *testing.T) {
		dup := testCard("c2", t0)
		dup.Hash = "hash-c1"
		if err := db.InsertCard(dup); err == nil {
			t.Error("duplicate content hash must fail")
		}
	})
}

func TestFetchDueCards(t *testing.T) {
	db := openTestDB(t)
	for _, c := range []domain.ReviewCard{
		testCard("b", t0.AddDate(0, 0, -1)),
		testCard("c", t0.AddDate(0, 0, 1)),
		testCard("a", t0),
		testCard("d", t0.AddDate(0, 0, -1)), // same due as b, later id
	} {
		if err := db.InsertCard(c); err != nil {
			t.Fatalf("InsertCard(%s): %v", c.ID, err)
		}
	}

	got, err := db.FetchDueCards(t0, 0)
	if err != nil {
		t.Fatalf("FetchDueCards: %v", err)
	}
	wantOrder := []string{"b", "d", "a"}
	if len(got) != len(wantOrder) {
		t.Fatalf("got %d cards, want %d", len(got), len(wantOrder))
	}
	for i, id := range wantOrder {
		if got[i].ID != id {
			t.Errorf("position %d = %s, want %s", i, got[i].ID, id)
		}
	}

	t.Run("limit", func(t *testing.T) {
		got, err := db.FetchDueCards(t0, 2)
		if err != nil {
			t.Fatalf("FetchDueCards: %v", err)
		}
		if len(got) != 2 || got[0].ID != "b" || got[1].ID != "d" {
			t.Errorf("limited fetch wrong: %+v", got)
		}
	})
}

func TestSaveCardCompareAndSwap(t *testing.T) {
	db := openTestDB(t)
	if err := db.InsertCard(testCard("c1", t0)); err != nil {
		t.Fatalf("InsertCard: %v", err)
	}

	card, err := db.FindCardByID("c1")
	if err != nil {
		t.Fatalf("FindCardByID: %v", err)
	}

	reviewed := t0
	card.Ease = 2.6
	card.Repetitions = 1
	card.IntervalDays = 1
	card.LastReviewedAt = &reviewed
	card.NextReviewAt = t0.AddDate(0, 0, 1)

	if err := db.SaveCard(*card); err != nil {
		t.Fatalf("SaveCard: %v", err)
	}

	fresh, err := db.FindCardByID("c1")
	if err != nil {
		t.Fatalf("FindCardByID: %v", err)
	}
	if fresh.Version != 2 {
		t.Errorf("version = %d, want 2", fresh.Version)
	}
	if fresh.LastReviewedAt == nil || !fresh.LastReviewedAt.Equal(reviewed) {
		t.Errorf("last reviewed = %v, want %v", fresh.LastReviewedAt, reviewed)
	}

	t.Run("stale write rejected", func(t *testing.T) {
		// card still holds version 1; the row is at version 2.
		if err := db.SaveCard(*card); !errors.Is(err, ErrStaleCard) {
			t.Errorf("err = %v, want ErrStaleCard", err)
		}
		// The losing write must not have touched the row.
		after, err := db.FindCardByID("c1")
		if err != nil {
			t.Fatalf("FindCardByID: %v", err)
		}
		if after.Version != 2 {
			t.Errorf("version = %d, want 2", after.Version)
		}
	})

	t.Run("deleted card surfaces as stale", func(t *testing.T) {
		if err := db.DeleteCardByID("c1"); err != nil {
			t.Fatalf("DeleteCardByID: %v", err)
		}
		if err := db.SaveCard(*fresh); !errors.Is(err, ErrStaleCard) {
			t.Errorf("err = %v, want ErrStaleCard", err)
		}
	})
}

func TestReviewLogs(t *testing.T) {
	db := openTestDB(t)
	if err := db.InsertCard(testCard("c1", t0)); err != nil {
		t.Fatalf("InsertCard: %v", err)
	}

	logs := []domain.ReviewLog{
		{CardID: "c1", Grade: domain.Perfect, ReviewedAt: t0},
		{CardID: "c1", Grade: domain.Incorrect, ReviewedAt: t0.AddDate(0, 0, 1)},
	}
	for _, l := range logs {
		if err := db.InsertReviewLog(l); err != nil {
			t.Fatalf("InsertReviewLog: %v", err)
		}
	}

	got, err := db.ReviewLogsByCardID("c1")
	if err != nil {
		t.Fatalf("ReviewLogsByCardID: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d logs, want 2", len(got))
	}
	if got[0].Grade != domain.Perfect || !got[0].ReviewedAt.Equal(t0) {
		t.Errorf("first log = %+v", got[0])
	}

	t.Run("cascade on card delete", func(t *testing.T) {
		if err := db.DeleteCardByID("c1"); err != nil {
			t.Fatalf("DeleteCardByID: %v", err)
		}
		got, err := db.ReviewLogsByCardID("c1")
		if err != nil {
			t.Fatalf("ReviewLogsByCardID: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("logs survived card deletion: %+v", got)
		}
	})
}

func TestSources(t *testing.T) {
	db := openTestDB(t)

	id, err := db.InsertSource("/decks/bio101", "local")
	if err != nil {
		t.Fatalf("InsertSource: %v", err)
	}

	s, err := db.FindSourceByPath("/decks/bio101")
	if err != nil {
		t.Fatalf("FindSourceByPath: %v", err)
	}
	if s == nil || s.ID != id || s.Kind != "local" || s.LastSyncedAt != nil {
		t.Errorf("got %+v", s)
	}

	if err := db.UpdateSourceSyncedAt(id, t0); err != nil {
		t.Fatalf("UpdateSourceSyncedAt: %v", err)
	}
	s, err = db.FindSourceByPath("/decks/bio101")
	if err != nil {
		t.Fatalf("FindSourceByPath: %v", err)
	}
	if s.LastSyncedAt == nil || !s.LastSyncedAt.Equal(t0) {
		t.Errorf("last synced = %v, want %v", s.LastSyncedAt, t0)
	}

	t.Run("cards by source", func(t *testing.T) {
		c := testCard("c1", t0)
		c.SourceID = id
		if err := db.InsertCard(c); err != nil {
			t.Fatalf("InsertCard: %v", err)
		}
		cards, err := db.CardsBySourceID(id)
		if err != nil {
			t.Fatalf("CardsBySourceID: %v", err)
		}
		if len(cards) != 1 || cards[0].ID != "c1" || cards[0].SourceID != id {
			t.Errorf("got %+v", cards)
		}
	})

	t.Run("delete detaches cards", func(t *testing.T) {
		all, err := db.AllSources()
		if err != nil || len(all) != 1 {
			t.Fatalf("AllSources: %v, %v", all, err)
		}
		if err := db.DeleteSource(id); err != nil {
			t.Fatalf("DeleteSource: %v", err)
		}
		all, err = db.AllSources()
		if err != nil || len(all) != 0 {
			t.Errorf("sources after delete: %v, %v", all, err)
		}
		// The source's cards survive, detached.
		card, err := db.FindCardByID("c1")
		if err != nil {
			t.Fatalf("FindCardByID: %v", err)
		}
		if card == nil || card.SourceID != 0 {
			t.Errorf("card after source delete = %+v, want detached card", card)
		}
	})
}

func TestStats(t *testing.T) {
	db := openTestDB(t)
	reviewed := t0.AddDate(0, 0, -10)

	cards := []domain.ReviewCard{
		testCard("new1", t0), // new, due
		testCard("new2", t0.AddDate(0, 0, 2)), // new, not due
	}
	learning := testCard("learn1", t0.AddDate(0, 0, -1)) // learning, due
	learning.Repetitions = 1
	learning.LastReviewedAt = &reviewed
	mature := testCard("rev1", t0.AddDate(0, 0, 30)) // reviewing, not due
	mature.Repetitions = 5
	mature.LastReviewedAt = &reviewed
	cards = append(cards, learning, mature)

	for _, c := range cards {
		if err := db.InsertCard(c); err != nil {
			t.Fatalf("InsertCard(%s): %v", c.ID, err)
		}
	}
	if err := db.InsertReviewLog(domain.ReviewLog{CardID: "learn1", Grade: domain.Recalled, ReviewedAt: reviewed}); err != nil {
		t.Fatalf("InsertReviewLog: %v", err)
	}

	got, err := db.Stats(t0)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	want := Stats{New: 2, Learning: 1, Reviewing: 1, Due: 2, Reviews: 1}
	if got != want {
		t.Errorf("Stats = %+v, want %+v", got, want)
	}
}
