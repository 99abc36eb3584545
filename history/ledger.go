// Package history keeps the bounded conversation log handed to the
// response engine.
package history

import (
	"sync"

	"github.com/mrsingh-rishi/voice-moderator/model"
)

// DefaultCap holds ten user/assistant pairs.
const DefaultCap = 20

// Ledger is an ordered, capped log of conversation turns. The oldest turns
// are evicted first. It is safe for concurrent use.
type Ledger struct {
	mu    sync.Mutex
	cap   int
	turns []model.ConversationTurn
}

// NewLedger returns an empty ledger holding at most capacity turns.
// A non-positive capacity selects DefaultCap.
func NewLedger(capacity int) *Ledger {
	if capacity <= 0 {
		capacity = DefaultCap
	}
	return &Ledger{
		cap:   capacity,
		turns: make([]model.ConversationTurn, 0, capacity+1),
	}
}

// Append adds turn to the end of the ledger, evicting from the front until
// the ledger is back within its cap.
func (l *Ledger) Append(turn model.ConversationTurn) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.append(turn)
}

// AppendSnapshot appends turn and returns the resulting contents under the
// same lock, so the snapshot ends with turn.
func (l *Ledger) AppendSnapshot(turn model.ConversationTurn) []model.ConversationTurn {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.append(turn)
	return l.snapshot()
}

// Snapshot returns a copy of the ledger, oldest turn first.
func (l *Ledger) Snapshot() []model.ConversationTurn {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshot()
}

// Len returns the number of stored turns.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.turns)
}

// Cap returns the maximum number of stored turns.
func (l *Ledger) Cap() int {
	return l.cap
}

func (l *Ledger) append(turn model.ConversationTurn) {
	l.turns = append(l.turns, turn)
	if over := len(l.turns) - l.cap; over > 0 {
		n := copy(l.turns, l.turns[over:])
		clear(l.turns[n:])
		l.turns = l.turns[:n]
	}
}

func (l *Ledger) snapshot() []model.ConversationTurn {
	out := make([]model.ConversationTurn, len(l.turns))
	copy(out, l.turns)
	return out
}
