package signalbus

import "go.uber.org/zap"

type Option func(*Bus)

func WithLogger(logger *zap.Logger) Option {
	return func(b *Bus) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithErrorIsolation makes Publish run every handler of the snapshot even when some of
// them fail. Failures, recovered panics included, are returned together as a
// *multierror.Error once the snapshot is processed.
func WithErrorIsolation() Option {
	return func(b *Bus) {
		b.isolate = true
	}
}

func WithMetrics(metrics *Metrics) Option {
	return func(b *Bus) {
		b.metrics = metrics
	}
}
