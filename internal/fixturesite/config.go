package fixturesite

// Config holds configuration for the fixture site.
type Config struct {
	// Addr is the listen address, e.g. ":9999".
	Addr string

	// InitialVersion is the starting version for all pages (default: 1).
	// Version 1 carries the known defects; later versions fix them.
	InitialVersion int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Addr:           ":9999",
		InitialVersion: 1,
	}
}
