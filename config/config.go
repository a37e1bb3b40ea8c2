// Package config loads runtime and benchmark settings from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/delaneyj/bindparty/observation"
	"github.com/delaneyj/bindparty/scheduler"
)

var ErrInvalid = errors.New("config: invalid")

type Config struct {
	LogLevel   string     `yaml:"log_level"`
	DirtyCheck DirtyCheck `yaml:"dirty_check"`
	Scheduler  Scheduler  `yaml:"scheduler"`
	Bench      Bench      `yaml:"bench"`
}

type DirtyCheck struct {
	Priority scheduler.Priority `yaml:"priority"`
	Interval Duration           `yaml:"interval"`
	Disabled bool               `yaml:"disabled"`
}

type Scheduler struct {
	FrameInterval Duration `yaml:"frame_interval"`
	IdleTimeout   Duration `yaml:"idle_timeout"`
	Metrics       bool     `yaml:"metrics"`
	Tracing       bool     `yaml:"tracing"`
}

type Bench struct {
	Widths     []int  `yaml:"widths"`
	Heights    []int  `yaml:"heights"`
	Iterations int    `yaml:"iterations"`
	History    string `yaml:"history"`
}

func Default() Config {
	policy := observation.DefaultDirtyCheckPolicy()
	return Config{
		LogLevel: "info",
		DirtyCheck: DirtyCheck{
			Priority: policy.Priority,
			Interval: Duration(policy.Interval),
		},
		Scheduler: Scheduler{
			FrameInterval: Duration(16 * time.Millisecond),
			IdleTimeout:   Duration(50 * time.Millisecond),
		},
		Bench: Bench{
			Widths:     []int{1, 10, 100, 1000},
			Heights:    []int{1, 10, 100},
			Iterations: 1000,
			History:    "bindbench.db",
		},
	}
}

// Load reads and parses the file at path.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
	}
	cfg, err := Parse(b)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse overlays b onto Default. Unknown fields are rejected.
func Parse(b []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

func (c Config) Validate() error {
	var errs []error
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if !c.DirtyCheck.Priority.Valid() {
		errs = append(errs, fmt.Errorf("%w: dirty_check.priority %d", ErrInvalid, int(c.DirtyCheck.Priority)))
	}
	if c.DirtyCheck.Interval <= 0 {
		errs = append(errs, fmt.Errorf("%w: dirty_check.interval must be positive", ErrInvalid))
	}
	if c.Scheduler.FrameInterval <= 0 {
		errs = append(errs, fmt.Errorf("%w: scheduler.frame_interval must be positive", ErrInvalid))
	}
	if c.Scheduler.IdleTimeout < 0 {
		errs = append(errs, fmt.Errorf("%w: scheduler.idle_timeout is negative", ErrInvalid))
	}
	for _, w := range c.Bench.Widths {
		if w <= 0 {
			errs = append(errs, fmt.Errorf("%w: bench.widths holds %d", ErrInvalid, w))
		}
	}
	for _, h := range c.Bench.Heights {
		if h <= 0 {
			errs = append(errs, fmt.Errorf("%w: bench.heights holds %d", ErrInvalid, h))
		}
	}
	if c.Bench.Iterations <= 0 {
		errs = append(errs, fmt.Errorf("%w: bench.iterations must be positive", ErrInvalid))
	}
	return errors.Join(errs...)
}

func (d DirtyCheck) Policy() observation.DirtyCheckPolicy {
	return observation.DirtyCheckPolicy{
		Priority: d.Priority,
		Interval: time.Duration(d.Interval),
		Disabled: d.Disabled,
	}
}

// ParseLevel maps debug, info, warn and error to slog levels.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToLower(s))); err != nil {
		return 0, fmt.Errorf("%w: log_level %q", ErrInvalid, s)
	}
	return l, nil
}

// Duration is a time.Duration written as a Go duration string in YAML.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

func (d Duration) MarshalYAML() (any, error) { return d.String(), nil }

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("%w: line %d: duration must be a scalar", ErrInvalid, node.Line)
	}
	v, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("%w: line %d: %v", ErrInvalid, node.Line, err)
	}
	*d = Duration(v)
	return nil
}
