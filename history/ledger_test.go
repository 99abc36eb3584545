package history

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrsingh-rishi/voice-moderator/model"
)

func TestLedgerDefaults(t *testing.T) {
	l := NewLedger(0)
	assert.Equal(t, DefaultCap, l.Cap())
	assert.Empty(t, l.Snapshot())
}

func TestLedgerEvictsOldestFirst(t *testing.T) {
	l := NewLedger(3)
	for i := 1; i <= 5; i++ {
		l.Append(model.UserTurn(fmt.Sprintf("turn %d", i)))
		require.LessOrEqual(t, l.Len(), 3)
	}

	snap := l.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, "turn 3", snap[0].Text)
	assert.Equal(t, "turn 4", snap[1].Text)
	assert.Equal(t, "turn 5", snap[2].Text)
}

func TestLedgerTwentyOneTurns(t *testing.T) {
	l := NewLedger(20)
	for i := 1; i <= 21; i++ {
		l.Append(model.UserTurn(fmt.Sprintf("%d", i)))
	}

	snap := l.Snapshot()
	require.Len(t, snap, 20)
	for i, turn := range snap {
		assert.Equal(t, fmt.Sprintf("%d", i+2), turn.Text)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	l := NewLedger(4)
	l.Append(model.UserTurn("hello"))

	snap := l.Snapshot()
	snap[0].Text = "mutated"
	l.Append(model.AssistantTurn("hi"))

	fresh := l.Snapshot()
	assert.Equal(t, "hello", fresh[0].Text)
	assert.Len(t, snap, 1)
}

func TestAppendSnapshotEndsWithTurn(t *testing.T) {
	l := NewLedger(2)
	l.Append(model.UserTurn("a"))
	l.Append(model.AssistantTurn("b"))

	snap := l.AppendSnapshot(model.UserTurn("c"))
	require.Len(t, snap, 2)
	assert.Equal(t, model.AssistantTurn("b"), snap[0])
	assert.Equal(t, model.UserTurn("c"), snap[1])
}

func TestConcurrentAppendsStayWithinCap(t *testing.T) {
	l := NewLedger(20)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				l.Append(model.UserTurn(fmt.Sprintf("%d-%d", g, i)))
				assert.LessOrEqual(t, len(l.Snapshot()), 20)
			}
		}(g)
	}
	wg.Wait()
	assert.Equal(t, 20, l.Len())
}
