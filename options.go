package gate

import (
	"log/slog"
	"time"

	"github.com/xraph/gate/ext"
	"github.com/xraph/gate/middleware"
)

// settings holds the non-generic construction knobs shared by all Gate
// instantiations.
type settings struct {
	logger     *slog.Logger
	nowFn      func() time.Time
	mws        []middleware.Middleware
	extensions []ext.Extension
}

// Option configures a Gate at construction time.
type Option func(*settings)

func defaultSettings() settings {
	return settings{
		logger: slog.Default(),
		nowFn:  time.Now,
	}
}

// WithLogger sets the structured logger for the gate.
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithNowFunc sets the clock used by the queue and breaker. Intended
// for deterministic tests.
func WithNowFunc(fn func() time.Time) Option {
	return func(s *settings) { s.nowFn = fn }
}

// WithMiddleware appends middleware to the execution chain. The chain
// always starts with Recover; middleware given here wrap the operation
// inside it, in the order given.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(s *settings) { s.mws = append(s.mws, mws...) }
}

// WithExtensions registers lifecycle extensions. Extensions are
// notified in registration order.
func WithExtensions(exts ...ext.Extension) Option {
	return func(s *settings) { s.extensions = append(s.extensions, exts...) }
}
