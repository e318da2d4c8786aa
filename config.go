package neuralflow

import "runtime"

// Config configures a System.
type Config struct {
	Name        string
	CacheDir    string // where checkpoints spill to
	MaxResident int    // maximum number of checkpoints kept in memory
	Workers     int    // goroutines used to evaluate one layer

	// Preview writes a PNG of the weights next to every checkpoint.
	Preview     bool
	PreviewSize int
}

// DefaultConfig returns a Config that checkpoints to dir.
func DefaultConfig(dir string) Config {
	return Config{
		Name:        "neuralflow",
		CacheDir:    dir,
		MaxResident: 8,
		Workers:     runtime.NumCPU(),
		Preview:     true,
		PreviewSize: 64,
	}
}

// IsValid returns true if a System can be created from the config.
func (c Config) IsValid() bool {
	if c.CacheDir == "" || c.MaxResident < 1 || c.Workers < 1 {
		return false
	}
	if c.Preview && c.PreviewSize < 8 {
		return false
	}
	return true
}
