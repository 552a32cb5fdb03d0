package flow

import "context"

// unbounded marks a buffer without capacity limit.
const unbounded = -1

// Option customizes a node.
type Option func(*nodeSettings)

type nodeSettings struct {
	name             string
	bufferSize       int
	parallelism      int
	disableLogging   bool
	loggingThreshold int
	config           *Config
	ctx              context.Context
}

// WithName names the node in logs and error messages.
func WithName(name string) Option {
	return func(s *nodeSettings) { s.name = name }
}

// WithBufferSize sets the capacity of the node buffers, overriding Config.MaxBufferSize.
// A negative size makes them unbounded, and 0 keeps Config.MaxBufferSize.
func WithBufferSize(size int) Option {
	return func(s *nodeSettings) {
		if size < 0 {
			size = unbounded
		}
		s.bufferSize = size
	}
}

// WithParallelism sets how many records the node processes at the same time. With more than one,
// output order is no longer guaranteed.
func WithParallelism(workers int) Option {
	return func(s *nodeSettings) { s.parallelism = workers }
}

// WithoutLogging silences the node progress logger.
func WithoutLogging() Option {
	return func(s *nodeSettings) { s.disableLogging = true }
}

// WithLoggingThreshold logs progress every rows processed records.
func WithLoggingThreshold(rows int) Option {
	return func(s *nodeSettings) { s.loggingThreshold = rows }
}

// WithConfig attaches a runtime configuration to the node. Nodes default to DefaultConfig.
func WithConfig(cfg *Config) Option {
	return func(s *nodeSettings) { s.config = cfg }
}

// WithContext sets the context handed to the node I/O callbacks, such as bulk writes.
func WithContext(ctx context.Context) Option {
	return func(s *nodeSettings) { s.ctx = ctx }
}

func newNodeSettings(opts []Option) nodeSettings {
	s := nodeSettings{ctx: context.Background()}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}
