// Package manifest handles runtime.toml configuration: heap/GC tuning
// and register allocator defaults for an embedding host that wants them
// external to its binary.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// RuntimeConfig is a runtime.toml configuration.
type RuntimeConfig struct {
	Heap      Heap      `toml:"heap"`
	Allocator Allocator `toml:"allocator"`

	// Dir is the directory containing the runtime.toml file (set at load
	// time).
	Dir string `toml:"-"`
}

// Heap configures the managed heap and its collector.
type Heap struct {
	// PageBytes is the minimum page size requested from the page
	// allocator callback, in bytes. Load neither rounds nor validates it.
	PageBytes int `toml:"page-bytes"`
	// ChunkBytes is the allocation granule, in bytes. Must be a small
	// power of two.
	ChunkBytes int `toml:"chunk-bytes"`
	// GCIntervalChunks is the allocation-debt threshold, in chunks, a
	// host should poll Heap.Debt against before triggering a collection.
	GCIntervalChunks int `toml:"gc-interval-chunks"`
	// Greedy disables returning empty pages to the allocator.
	Greedy bool `toml:"greedy"`
}

// Allocator holds tuning values for the register allocator's coloring
// search. ralloc.Allocate does not read them: it starts K and M from the
// ABI's volatile-register counts and stops after a fixed 32 iterations
// with a panic.
type Allocator struct {
	// StartK is the initial number of general-purpose colors tried
	// before the interference graph forces a larger K on retry.
	StartK int `toml:"start-k"`
	// StartM is the initial number of floating-point colors.
	StartM int `toml:"start-m"`
	// MaxIterations is the cap on coloring iterations.
	MaxIterations int `toml:"max-iterations"`
}

// Load parses a runtime.toml file from the given directory.
func Load(dir string) (*RuntimeConfig, error) {
	path := filepath.Join(dir, "runtime.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var c RuntimeConfig
	if err := toml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	c.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	c.applyDefaults()
	return &c, nil
}

// FindAndLoad walks up from startDir to find a runtime.toml file, then
// loads and returns the config. Returns nil if no runtime.toml is found.
func FindAndLoad(startDir string) (*RuntimeConfig, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, "runtime.toml")
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

// Default returns a RuntimeConfig with the same defaults Load applies
// when a runtime.toml omits a field, for a host that wants to run
// without any config file at all.
func Default() *RuntimeConfig {
	c := &RuntimeConfig{}
	c.applyDefaults()
	return c
}

func (c *RuntimeConfig) applyDefaults() {
	if c.Heap.PageBytes == 0 {
		c.Heap.PageBytes = 4096
	}
	if c.Heap.ChunkBytes == 0 {
		c.Heap.ChunkBytes = 16
	}
	if c.Heap.GCIntervalChunks == 0 {
		c.Heap.GCIntervalChunks = 1 << 20
	}
	if c.Allocator.StartK == 0 {
		c.Allocator.StartK = 4
	}
	if c.Allocator.StartM == 0 {
		c.Allocator.StartM = 4
	}
	if c.Allocator.MaxIterations == 0 {
		c.Allocator.MaxIterations = 32
	}
}
