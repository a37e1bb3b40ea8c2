package binding

import (
	"fmt"
	"strings"
)

// Mode is the direction values flow between source and target.
type Mode int

const (
	// OneTime writes the target once at bind and never observes.
	OneTime Mode = iota
	// ToView keeps the target in sync with the source.
	ToView
	// FromView writes target changes back into the source.
	FromView
	// TwoWay is ToView and FromView together.
	TwoWay
)

var modeNames = [...]string{
	OneTime:  "one-time",
	ToView:   "to-view",
	FromView: "from-view",
	TwoWay:   "two-way",
}

func (m Mode) String() string {
	if m < 0 || int(m) >= len(modeNames) {
		return fmt.Sprintf("Mode(%d)", int(m))
	}
	return modeNames[m]
}

func (m Mode) toView() bool   { return m == ToView || m == TwoWay }
func (m Mode) fromView() bool { return m == FromView || m == TwoWay }

func ParseMode(s string) (Mode, error) {
	norm := strings.ToLower(strings.ReplaceAll(s, "_", "-"))
	for i, name := range modeNames {
		if name == norm {
			return Mode(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

type State int

const (
	Unbound State = iota
	Bound
	Evaluating
)

func (s State) String() string {
	switch s {
	case Unbound:
		return "unbound"
	case Bound:
		return "bound"
	case Evaluating:
		return "evaluating"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}
