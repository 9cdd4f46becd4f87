// Package id issues ULID identifiers for orders and sessions.
//
// ULIDs are lexicographically sortable by generation time, which makes
// them ideal for journaling records and SQLite indexes. The entropy
// source is seedable: a backtest seeded with the same value issues the
// same ids for the same event times, keeping reports byte-for-byte
// reproducible.
package id

import (
	"math/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// Generator issues ULIDs from a seeded monotonic entropy reader. It is
// not safe for concurrent use; the decision loop is its only caller.
type Generator struct {
	entropy *ulid.MonotonicEntropy
}

// NewGenerator seeds a generator. The same seed and event times yield
// the same id sequence.
func NewGenerator(seed int64) *Generator {
	return &Generator{
		entropy: ulid.Monotonic(rand.New(rand.NewSource(seed)), 0),
	}
}

// Next returns a ULID stamped with the event time t, monotonic within
// the same millisecond.
func (g *Generator) Next(t time.Time) string {
	id, err := ulid.New(ulid.Timestamp(t.UTC()), g.entropy)
	if err != nil {
		// Only possible if time goes backwards past the ULID epoch or
		// entropy fails; both are programming faults here.
		panic(err)
	}
	return id.String()
}
