package acore

import (
	"log/slog"

	"github.com/standly/go-acore/internal/logging"
)

type config struct {
	ser    *Serializer
	exec   Executor
	logger *slog.Logger
}

// Option configures a primitive at construction time.
type Option func(*config)

// WithSerializer binds the primitive to a caller-supplied serializer,
// sharing its logical mutex and worker with other primitives bound to it.
func WithSerializer(s *Serializer) Option {
	return func(c *config) {
		if s != nil {
			c.ser = s
		}
	}
}

// WithExecutor overrides where callbacks (timer ticks and the like) run.
func WithExecutor(e Executor) Option {
	return func(c *config) {
		if e != nil {
			c.exec = e
		}
	}
}

// WithLogger overrides the package logger for this primitive.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

func newConfig(opts []Option) config {
	var c config
	for _, o := range opts {
		o(&c)
	}
	if c.ser == nil {
		c.ser = NewSerializer()
	}
	if c.logger == nil {
		c.logger = logging.L()
	}
	return c
}
