package es

import "log/slog"

type (
	storeOptions struct {
		log     *slog.Logger
		metrics StoreMetrics
		format  Format
	}

	// StoreOption configures a Store.
	StoreOption interface {
		applyToStore(*storeOptions)
	}

	LogOption     struct{ l *slog.Logger }
	MetricsOption struct{ m StoreMetrics }
	FormatOption  struct{ f Format }
)

func WithLog(l *slog.Logger) LogOption         { return LogOption{l: l} }
func WithMetrics(m StoreMetrics) MetricsOption { return MetricsOption{m: m} }
func WithFormat(f Format) FormatOption         { return FormatOption{f: f} }

func (o LogOption) applyToStore(s *storeOptions)     { s.log = o.l }
func (o MetricsOption) applyToStore(s *storeOptions) { s.metrics = o.m }
func (o FormatOption) applyToStore(s *storeOptions)  { s.format = o.f }

func newStoreOptions(opts []StoreOption) storeOptions {
	o := storeOptions{
		log:     slog.Default(),
		metrics: NopStoreMetrics(),
		format:  FormatJSON,
	}
	for _, opt := range opts {
		opt.applyToStore(&o)
	}
	if o.log == nil {
		o.log = slog.Default()
	}
	if o.metrics == nil {
		o.metrics = NopStoreMetrics()
	}
	return o
}
