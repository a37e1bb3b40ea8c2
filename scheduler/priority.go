package scheduler

import (
	"fmt"
	"strings"
)

// Priority selects the queue a task is flushed from. Lower values flush
// earlier within one turn of the host loop.
type Priority int

const (
	MicroTask Priority = iota
	Render
	MacroTask
	PostRender
	Idle

	numPriorities
)

var priorityNames = [numPriorities]string{
	MicroTask:  "microTask",
	Render:     "render",
	MacroTask:  "macroTask",
	PostRender: "postRender",
	Idle:       "idle",
}

// Priorities returns every priority in flush order.
func Priorities() []Priority {
	return []Priority{MicroTask, Render, MacroTask, PostRender, Idle}
}

func (p Priority) String() string {
	if !p.Valid() {
		return fmt.Sprintf("Priority(%d)", int(p))
	}
	return priorityNames[p]
}

// Valid reports whether p names one of the five queues.
func (p Priority) Valid() bool {
	return p >= MicroTask && p < numPriorities
}

// ParsePriority accepts the names produced by String, case-insensitively,
// plus the hyphenated forms used in config files ("post-render").
func ParsePriority(s string) (Priority, error) {
	norm := strings.ToLower(strings.ReplaceAll(s, "-", ""))
	for i, name := range priorityNames {
		if strings.ToLower(name) == norm {
			return Priority(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownPriority, s)
}

func (p Priority) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownPriority, int(p))
	}
	return []byte(p.String()), nil
}

func (p *Priority) UnmarshalText(text []byte) error {
	parsed, err := ParsePriority(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
