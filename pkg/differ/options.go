package differ

// Option configures a Differ.
type Option func(*Differ)

// WithContent also compares document bodies.
func WithContent(enabled bool) Option {
	return func(d *Differ) {
		d.content = enabled
	}
}

// WithIgnoredFields skips the named fields when comparing.
func WithIgnoredFields(fields ...string) Option {
	return func(d *Differ) {
		for _, f := range fields {
			d.ignore[f] = true
		}
	}
}
