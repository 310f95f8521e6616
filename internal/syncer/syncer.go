// Package syncer reconciles configured deck sources against the card
// store: new cards are inserted with creation defaults, cards whose
// content vanished from their source are deleted, and everything else
// is left alone so review history survives re-imports.
package syncer

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Keeno5280/LectureLens/internal/deck"
	"github.com/Keeno5280/LectureLens/internal/gitsource"
	"github.com/Keeno5280/LectureLens/internal/parser"
	"github.com/Keeno5280/LectureLens/internal/sm2"
	"github.com/Keeno5280/LectureLens/internal/storage"
)

// Syncer walks deck sources and keeps the store in step with them.
type Syncer struct {
	db       *storage.DB
	sched    *sm2.Scheduler
	reposDir string
}

// New returns a Syncer that checks out git sources under reposDir.
func New(db *storage.DB, sched *sm2.Scheduler, reposDir string) *Syncer {
	return &Syncer{db: db, sched: sched, reposDir: reposDir}
}

// Run reconciles every configured source. Individual source failures
// are logged and skipped; Run only fails when the source list itself
// cannot be read.
func (s *Syncer) Run(ctx context.Context) error {
	sources, err := s.db.AllSources()
	if err != nil {
		return fmt.Errorf("list sources: %w", err)
	}
	if len(sources) == 0 {
		slog.Info("no deck sources configured")
		return nil
	}

	if err := os.MkdirAll(s.reposDir, 0o755); err != nil {
		return fmt.Errorf("create repos dir: %w", err)
	}

	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.syncSource(ctx, src); err != nil {
			slog.Error("source sync failed", "id", src.ID, "path", src.Path, "error", err)
		}
	}
	return nil
}

func (s *Syncer) syncSource(ctx context.Context, src storage.Source) error {
	slog.Info("syncing source", "id", src.ID, "kind", src.Kind, "path", src.Path)

	dir := src.Path
	if src.Kind == "git" {
		local, err := gitsource.LocalPath(s.reposDir, src.Path)
		if err != nil {
			return err
		}
		if err := gitsource.Sync(ctx, src.Path, local); err != nil {
			return err
		}
		dir = local
	}

	return s.reconcile(src, dir)
}

// reconcile diffs the deck files under dir against the source's cards.
func (s *Syncer) reconcile(src storage.Source, dir string) error {
	now := time.Now()
	found := make(map[string]bool)
	var inserted, parseErrs int

	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(strings.ToLower(d.Name()), ".md") {
			return nil
		}

		contents, err := parser.ParseFile(path)
		if err != nil {
			parseErrs++
			slog.Warn("deck file unparsable", "path", path, "error", err)
			return nil
		}
		for _, content := range contents {
			hash := deck.Hash(content)
			found[hash] = true

			existing, err := s.db.FindCardByHash(hash)
			if err != nil {
				return fmt.Errorf("lookup %s: %w", hash, err)
			}
			if existing != nil {
				continue
			}
			card := s.sched.NewCard(uuid.NewString(), content, hash, false, src.ID, now)
			if err := s.db.InsertCard(card); err != nil {
				return fmt.Errorf("insert %s: %w", hash, err)
			}
			inserted++
		}
		return nil
	})
	if walkErr != nil {
		return fmt.Errorf("walk %s: %w", dir, walkErr)
	}

	existing, err := s.db.CardsBySourceID(src.ID)
	if err != nil {
		return fmt.Errorf("cards for source %d: %w", src.ID, err)
	}
	var orphaned int
	for _, card := range existing {
		if found[card.Hash] {
			continue
		}
		if err := s.db.DeleteCardByID(card.ID); err != nil {
			slog.Warn("orphaned card not deleted", "id", card.ID, "error", err)
			continue
		}
		orphaned++
	}

	if err := s.db.UpdateSourceSyncedAt(src.ID, now); err != nil {
		slog.Warn("sync timestamp not updated", "source_id", src.ID, "error", err)
	}

	slog.Info("source reconciled",
		"path", src.Path,
		"cards", len(found),
		"inserted", inserted,
		"orphaned", orphaned,
		"parse_errors", parseErrs,
	)
	return nil
}

// DetectKind classifies a source path as "git" or "local".
func DetectKind(path string) string {
	if strings.HasSuffix(path, ".git") ||
		strings.HasPrefix(path, "git@") ||
		strings.HasPrefix(path, "https://") ||
		strings.HasPrefix(path, "http://") {
		return "git"
	}
	return "local"
}
