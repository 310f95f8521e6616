package domain

import (
	"encoding"
	"encoding/json"
	"fmt"
)

// Grade is the reviewer's quality-of-recall rating on the classic 0-5
// scale. Grades below Pass count as a failed recall.
type Grade int

const (
	Blackout      Grade = iota // no recollection at all
	Incorrect                  // wrong, but the answer rang a bell
	IncorrectEasy              // wrong, but the answer felt obvious once seen
	RecalledHard               // correct with serious difficulty
	Recalled                   // correct after some hesitation
	Perfect                    // effortless recall
)

// Pass is the lowest passing grade.
const Pass = RecalledHard

var gradeNames = [...]string{
	Blackout:      "blackout",
	Incorrect:     "incorrect",
	IncorrectEasy: "incorrect-easy",
	RecalledHard:  "recalled-hard",
	Recalled:      "recalled",
	Perfect:       "perfect",
}

// Compile-time interface checks.
var (
	_ fmt.Stringer           = Grade(0)
	_ json.Unmarshaler       = (*Grade)(nil)
	_ encoding.TextMarshaler = Grade(0)
)

// IsValid reports whether g is in the 0-5 range.
func (g Grade) IsValid() bool {
	return g >= Blackout && g <= Perfect
}

// Passing reports whether g counts as a successful recall.
func (g Grade) Passing() bool {
	return g >= Pass
}

// String returns the grade's name, or "Grade(n)" for out-of-range values.
func (g Grade) String() string {
	if g.IsValid() {
		return gradeNames[g]
	}
	return fmt.Sprintf("Grade(%d)", int(g))
}

// MarshalText implements encoding.TextMarshaler.
func (g Grade) MarshalText() ([]byte, error) {
	if !g.IsValid() {
		return nil, fmt.Errorf("grade %d out of range", int(g))
	}
	return []byte(gradeNames[g]), nil
}

// UnmarshalJSON accepts a bare integer, which is how grades arrive from
// API clients.
func (g *Grade) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("grade must be an integer: %w", err)
	}
	*g = Grade(n)
	return nil
}

// MarshalJSON implements json.Marshaler. Grades serialize as integers.
func (g Grade) MarshalJSON() ([]byte, error) {
	return json.Marshal(int(g))
}
