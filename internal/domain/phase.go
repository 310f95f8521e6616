package domain

import "fmt"

// Phase is the derived lifecycle stage of a card. A failed review sends
// a card back to Repetitions == 0, so a lapsed Reviewing card re-enters
// the Learning path on its next pass. There is no terminal phase.
type Phase int

const (
	New       Phase = iota // never reviewed
	Learning               // one or two consecutive passes
	Reviewing              // three or more consecutive passes
)

var phaseNames = [...]string{New: "new", Learning: "learning", Reviewing: "reviewing"}

// String returns the phase's name, or "Phase(n)" for out-of-range values.
func (p Phase) String() string {
	if p >= New && p <= Reviewing {
		return phaseNames[p]
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// MarshalText implements encoding.TextMarshaler.
func (p Phase) MarshalText() ([]byte, error) {
	if p < New || p > Reviewing {
		return nil, fmt.Errorf("phase %d out of range", int(p))
	}
	return []byte(phaseNames[p]), nil
}
