// Package container is the root that owns one scheduler and one observer
// locator and hands out bindings and controllers wired to them.
package container

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/delaneyj/bindparty/binding"
	"github.com/delaneyj/bindparty/config"
	"github.com/delaneyj/bindparty/dom"
	"github.com/delaneyj/bindparty/expr"
	"github.com/delaneyj/bindparty/lifecycle"
	"github.com/delaneyj/bindparty/observation"
	"github.com/delaneyj/bindparty/scheduler"
)

const tracerName = "github.com/delaneyj/bindparty/scheduler"

type Container struct {
	Config     config.Config
	Platform   scheduler.Platform
	Scheduler  *scheduler.Scheduler
	Locator    *observation.Locator
	Logger     *slog.Logger
	Recognizer *binding.CommandRecognizer
	Adapter    dom.Adapter
	Converters expr.Converters
	Metrics    *scheduler.Metrics
	Reporter   binding.ErrorReporter
}

type options struct {
	platform   scheduler.Platform
	logger     *slog.Logger
	registerer prometheus.Registerer
	tracer     trace.Tracer
	adapter    dom.Adapter
	reporter   binding.ErrorReporter
}

type Option func(*options)

// WithPlatform replaces the default LoopPlatform, typically with a
// ManualPlatform in tests.
func WithPlatform(p scheduler.Platform) Option {
	return func(o *options) { o.platform = p }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRegisterer sets where scheduler metrics are registered when the
// config enables them. The default is a private registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithTracer overrides the tracer used when the config enables tracing.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

func WithAdapter(a dom.Adapter) Option {
	return func(o *options) { o.adapter = a }
}

func WithErrorReporter(r binding.ErrorReporter) Option {
	return func(o *options) { o.reporter = r }
}

func New(cfg config.Config, opts ...Option) (*Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		level, _ := config.ParseLevel(cfg.LogLevel)
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	}

	platform := o.platform
	if platform == nil {
		platform = scheduler.NewLoopPlatform(
			scheduler.WithFrameInterval(cfg.Scheduler.FrameInterval.Std()),
			scheduler.WithIdleTimeout(cfg.Scheduler.IdleTimeout.Std()),
			scheduler.WithLoopLogger(logger),
		)
	}

	schedOpts := []scheduler.Option{scheduler.WithLogger(logger)}
	var metrics *scheduler.Metrics
	if cfg.Scheduler.Metrics {
		reg := o.registerer
		if reg == nil {
			reg = prometheus.NewRegistry()
		}
		m, err := scheduler.NewMetrics(reg)
		if err != nil {
			return nil, fmt.Errorf("container: registering scheduler metrics: %w", err)
		}
		metrics = m
		schedOpts = append(schedOpts, scheduler.WithMetrics(m))
	}
	if cfg.Scheduler.Tracing {
		tracer := o.tracer
		if tracer == nil {
			tracer = otel.Tracer(tracerName)
		}
		schedOpts = append(schedOpts, scheduler.WithTracer(tracer))
	}
	sched := scheduler.New(platform, schedOpts...)

	locator := observation.NewLocator(sched,
		observation.WithLogger(logger),
		observation.WithDirtyCheckPolicy(cfg.DirtyCheck.Policy()),
	)

	adapter := o.adapter
	if adapter == nil {
		adapter = dom.NewMemoryAdapter()
	}
	reporter := o.reporter
	if reporter == nil {
		reporter = binding.LogReporter{Logger: logger}
	}

	return &Container{
		Config:     cfg,
		Platform:   platform,
		Scheduler:  sched,
		Locator:    locator,
		Logger:     logger,
		Recognizer: binding.NewCommandRecognizer(),
		Adapter:    adapter,
		Converters: expr.Converters{},
		Metrics:    metrics,
		Reporter:   reporter,
	}, nil
}

// Loop returns the container's LoopPlatform, or nil when another platform
// was supplied.
func (c *Container) Loop() *scheduler.LoopPlatform {
	lp, _ := c.Platform.(*scheduler.LoopPlatform)
	return lp
}

func (c *Container) RegisterConverter(name string, vc expr.ValueConverter) {
	c.Converters[name] = vc
}

func (c *Container) bindingOptions() []binding.Option {
	return []binding.Option{
		binding.WithLogger(c.Logger),
		binding.WithErrorReporter(c.Reporter),
		binding.WithResources(c.Converters),
	}
}

func (c *Container) NewBinding(ast expr.Node, target binding.Target, mode binding.Mode) *binding.Binding {
	return binding.New(ast, target, mode, c.Locator, c.bindingOptions()...)
}

func (c *Container) NewListener(ast expr.Node, target binding.EventTarget, event string) *binding.ListenerBinding {
	return binding.NewListener(ast, target, event, c.Locator, c.bindingOptions()...)
}

func (c *Container) NewController(name string, opts ...lifecycle.Option) *lifecycle.Controller {
	opts = append([]lifecycle.Option{lifecycle.WithLogger(c.Logger)}, opts...)
	return lifecycle.New(name, c.Locator, opts...)
}

func (c *Container) NewHydrator() *dom.Hydrator {
	return dom.NewHydrator(c.Adapter, c.Locator, c.Recognizer, c.bindingOptions()...)
}

// Hydrate builds the bindings for n's attribute commands and adds them to
// ctrl.
func (c *Container) Hydrate(ctrl *lifecycle.Controller, n *dom.Node, attrs map[string]expr.Node) error {
	bs, err := c.NewHydrator().Hydrate(n, attrs)
	if err != nil {
		return err
	}
	for _, b := range bs {
		if err := ctrl.AddBinding(b); err != nil {
			return err
		}
	}
	return nil
}
