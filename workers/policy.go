package workers

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

// TurnPolicy decides when the pending fragments form a complete turn.
// Hold returns how long to wait for more speech before dispatching;
// zero or less dispatches immediately.
type TurnPolicy interface {
	Hold(pending []string) time.Duration
}

// EveryFinal treats each final transcript as a whole turn.
type EveryFinal struct{}

// Hold always dispatches immediately.
func (EveryFinal) Hold([]string) time.Duration { return 0 }

// SilenceWindow dispatches once Window has passed without new speech.
type SilenceWindow struct {
	Window time.Duration
}

// Hold waits the full window regardless of the fragments.
func (p SilenceWindow) Hold([]string) time.Duration { return p.Window }

// Punctuation dispatches right away when the last fragment ends a sentence
// and otherwise waits like SilenceWindow.
type Punctuation struct {
	Window time.Duration
}

// Hold is zero when the last fragment ends in ".", "!" or "?", else Window.
func (p Punctuation) Hold(pending []string) time.Duration {
	if len(pending) == 0 {
		return p.Window
	}
	last := strings.TrimSpace(pending[len(pending)-1])
	if strings.HasSuffix(last, ".") || strings.HasSuffix(last, "!") || strings.HasSuffix(last, "?") {
		return 0
	}
	return p.Window
}

// ParsePolicy maps a TURN_POLICY name to a policy.
func ParsePolicy(name string, window time.Duration) (TurnPolicy, error) {
	switch name {
	case "", "final":
		return EveryFinal{}, nil
	case "silence":
		return SilenceWindow{Window: window}, nil
	case "punctuation":
		return Punctuation{Window: window}, nil
	}
	return nil, errors.Errorf("unknown turn policy %q", name)
}
