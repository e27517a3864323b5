package dedupe

// Option applies a configuration option to a Guard.
type Option func(*Guard)

// WithCapacity bounds how many submission ids are remembered. The oldest
// id is forgotten first. A capacity of zero or less never forgets.
func WithCapacity(n int) Option {
	return func(g *Guard) {
		g.capacity = n
	}
}
