package binding

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// PartToken marks a dynamic segment in an attribute pattern.
const PartToken = "PART"

// Command names produced by the default patterns.
const (
	CommandBind     = "bind"
	CommandOneTime  = "one-time"
	CommandToView   = "to-view"
	CommandFromView = "from-view"
	CommandTwoWay   = "two-way"
	CommandTrigger  = "trigger"
)

// Match is a recognized attribute name.
type Match struct {
	Pattern string
	Command string
	Parts   []string
}

// Target is the dynamic part of the attribute, such as "value" in
// "value.bind".
func (m Match) Target() string { return strings.Join(m.Parts, ".") }

type pattern struct {
	source  string
	command string
	re      *regexp.Regexp
	statics int
}

// CommandRecognizer maps attribute names such as "value.bind", ":value" or
// "@click" to a target and a binding command. When several patterns match,
// the one with the most static characters wins; a tie is an error.
type CommandRecognizer struct {
	patterns []*pattern
}

// NewCommandRecognizer returns a recognizer preloaded with the dot-command,
// colon and at-sign patterns.
func NewCommandRecognizer() *CommandRecognizer {
	r := &CommandRecognizer{}
	for _, cmd := range []string{CommandBind, CommandOneTime, CommandToView, CommandFromView, CommandTwoWay, CommandTrigger} {
		r.MustRegister(PartToken+"."+cmd, cmd)
	}
	r.MustRegister(":"+PartToken, CommandBind)
	r.MustRegister("@"+PartToken, CommandTrigger)
	return r
}

// Register adds a pattern. Registering a pattern with the same shape as an
// existing one returns ErrAmbiguousPattern.
func (r *CommandRecognizer) Register(source, command string) error {
	p, err := compilePattern(source, command)
	if err != nil {
		return err
	}
	for _, existing := range r.patterns {
		if existing.re.String() == p.re.String() {
			return fmt.Errorf("%w: %q conflicts with %q", ErrAmbiguousPattern, source, existing.source)
		}
	}
	r.patterns = append(r.patterns, p)
	return nil
}

func (r *CommandRecognizer) MustRegister(source, command string) {
	if err := r.Register(source, command); err != nil {
		panic(err)
	}
}

func (r *CommandRecognizer) Patterns() []string {
	out := make([]string, len(r.patterns))
	for i, p := range r.patterns {
		out[i] = p.source
	}
	return out
}

// Recognize resolves an attribute name. Names no pattern matches return
// ErrNoPatternMatch; plain attributes are usually treated as literals by
// the caller.
func (r *CommandRecognizer) Recognize(attr string) (Match, error) {
	var (
		best      *pattern
		bestParts []string
		tied      *pattern
	)
	for _, p := range r.patterns {
		sub := p.re.FindStringSubmatch(attr)
		if sub == nil {
			continue
		}
		switch {
		case best == nil || p.statics > best.statics:
			best, bestParts, tied = p, sub[1:], nil
		case p.statics == best.statics:
			tied = p
		}
	}
	if best == nil {
		return Match{}, fmt.Errorf("%w: %q", ErrNoPatternMatch, attr)
	}
	if tied != nil {
		return Match{}, fmt.Errorf("%w: %q matches %q and %q", ErrAmbiguousPattern, attr, best.source, tied.source)
	}
	return Match{Pattern: best.source, Command: best.command, Parts: slices.Clone(bestParts)}, nil
}

func compilePattern(source, command string) (*pattern, error) {
	if source == "" || command == "" {
		return nil, fmt.Errorf("%w: empty pattern or command", ErrInvalidPattern)
	}
	segments := strings.Split(source, PartToken)
	if len(segments) < 2 {
		return nil, fmt.Errorf("%w: %q has no %s", ErrInvalidPattern, source, PartToken)
	}
	var (
		sb      strings.Builder
		statics int
	)
	sb.WriteByte('^')
	for i, seg := range segments {
		if i > 0 {
			if segments[i-1] == "" && i > 1 {
				return nil, fmt.Errorf("%w: %q has adjacent parts", ErrInvalidPattern, source)
			}
			sb.WriteString(`(.+?)`)
		}
		statics += len(seg)
		sb.WriteString(regexp.QuoteMeta(seg))
	}
	sb.WriteByte('$')
	re, err := regexp.Compile(sb.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPattern, err)
	}
	return &pattern{
		source:  source,
		command: command,
		re:      re,
		statics: statics,
	}, nil
}

// ModeFor maps a binding command to a Mode. The bind command resolves to
// def, which callers pick per target (TwoWay for form values, ToView
// otherwise). Trigger and unknown commands report false.
func ModeFor(command string, def Mode) (Mode, bool) {
	switch command {
	case CommandBind:
		return def, true
	case CommandOneTime:
		return OneTime, true
	case CommandToView:
		return ToView, true
	case CommandFromView:
		return FromView, true
	case CommandTwoWay:
		return TwoWay, true
	}
	return 0, false
}
