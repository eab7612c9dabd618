package engine

import "go.uber.org/zap"

// Option configures a Handle at open time.
type Option func(*options)

type options struct {
	logger     *zap.Logger
	scratchDir string
}

func defaultOptions() options {
	return options{logger: zap.NewNop()}
}

// WithLogger sets the structured logger. Defaults to a nop logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithScratchDir places the live image in dir instead of a fresh temp
// directory. The caller keeps ownership: Reset will not remove it.
func WithScratchDir(dir string) Option {
	return func(o *options) { o.scratchDir = dir }
}
