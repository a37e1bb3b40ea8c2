package binding

import (
	"log/slog"

	"github.com/delaneyj/bindparty/expr"
)

type options struct {
	reporter ErrorReporter
	res      expr.Resources
	logger   *slog.Logger
}

type Option func(*options)

func WithErrorReporter(r ErrorReporter) Option {
	return func(o *options) {
		if r != nil {
			o.reporter = r
		}
	}
}

func WithResources(res expr.Resources) Option {
	return func(o *options) { o.res = res }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.reporter == nil {
		o.reporter = LogReporter{Logger: o.logger}
	}
	return o
}

func (o options) ValueConverter(name string) (expr.ValueConverter, bool) {
	if o.res == nil {
		return nil, false
	}
	return o.res.ValueConverter(name)
}
