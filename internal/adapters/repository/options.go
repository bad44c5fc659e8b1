package repository

// Option applies a configuration option to the MemoryStore.
type Option func(*MemoryStore)

// WithAttentionThreshold sets the score below which NeedsAttention reports
// a profile.
func WithAttentionThreshold(score float64) Option {
	return func(s *MemoryStore) {
		if score > 0 && score <= 100 {
			s.attentionBelow = score
		}
	}
}
