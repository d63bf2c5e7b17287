package options

import (
	"github.com/tech-arch1tect/sessiongate/config"
	"go.uber.org/fx"
)

type Options struct {
	Config         *config.Config
	DatabaseModels []any
	ExtraFxOptions []fx.Option
	QuietFx        bool
}

type Option func(*Options)

func Apply(opts ...Option) *Options {
	o := &Options{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithConfig skips environment loading. The config is still validated.
func WithConfig(cfg *config.Config) Option {
	return func(opts *Options) {
		opts.Config = cfg
	}
}

// WithModels adds application models to the auto-migration alongside the session and
// identity tables.
func WithModels(models ...any) Option {
	return func(opts *Options) {
		opts.DatabaseModels = append(opts.DatabaseModels, models...)
	}
}

func WithFxOptions(fxOpts ...fx.Option) Option {
	return func(opts *Options) {
		opts.ExtraFxOptions = append(opts.ExtraFxOptions, fxOpts...)
	}
}

// WithQuietFx silences fx lifecycle events.
func WithQuietFx() Option {
	return func(opts *Options) {
		opts.QuietFx = true
	}
}
