// Package deck gives flashcard content a stable identity. Cards are
// deduplicated across syncs by a hash of their normalized content, so
// cosmetic edits keep the review history while semantic edits start a
// new card.
package deck

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/Keeno5280/LectureLens/internal/domain"
)

// Normalize returns the canonical form of the content: each field
// lowercased, trimmed, with LF line endings, joined by newlines. The
// separator keeps field boundaries from blurring ("question"+"answer"
// must not collide with "questiona"+"nswer").
func Normalize(c domain.Content) string {
	canon := func(s string) string {
		s = strings.ToLower(s)
		s = strings.ReplaceAll(s, "\r\n", "\n")
		return strings.TrimSpace(s)
	}
	return canon(c.Question) + "\n" + canon(c.Answer) + "\n" + canon(c.Notes)
}

// Hash returns the SHA-256 of the normalized content as a hex string.
func Hash(c domain.Content) string {
	sum := sha256.Sum256([]byte(Normalize(c)))
	return hex.EncodeToString(sum[:])
}
