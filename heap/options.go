package heap

import "log/slog"

// Option configures an Allocator.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger routes allocation failures and swallowed deallocation errors to
// logger at debug level.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}
