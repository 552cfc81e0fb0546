package seqconf

// ISource provides the sequence mapping (sequence name to backend target) and reports changes.
type ISource interface {
	// Load reads the current mapping.
	Load() (map[string]string, error)
	// Watch calls onChange with every new valid mapping until the source is closed.
	// Invalid updates are logged and skipped, the previous mapping stays in effect.
	// Watch must be called at most once.
	Watch(onChange func(map[string]string)) error
	// Close stops watching and releases all resources.
	Close() error
}
