package normalize

import "time"

// Option applies a configuration option to the Normalizer.
type Option func(*Normalizer)

// WithClock sets the clock used for default timestamps.
func WithClock(now func() time.Time) Option {
	return func(n *Normalizer) {
		if now != nil {
			n.now = now
		}
	}
}

// WithIDGenerator sets the generator used for missing ids.
func WithIDGenerator(gen func() string) Option {
	return func(n *Normalizer) {
		if gen != nil {
			n.newID = gen
		}
	}
}
