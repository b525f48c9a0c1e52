// Package config loads the process-level TOML configuration file a
// blockworld-dev server binary is started with, mirroring the way the
// teacher's UserConfig/Whitelist types are declared as plain structs and
// serialised with github.com/pelletier/go-toml.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml"
)

// Config is the top-level shape of config.toml.
type Config struct {
	Network struct {
		// Address is where the (out-of-scope) network collaborator should
		// listen. This core only carries it; Load does not validate it and
		// nothing here binds a socket.
		Address string
	}
	World struct {
		// Root is the directory holding the region-file store region.Reader
		// reads from.
		Root string
		// Seed is unused by this core (world generation is a Non-goal) but
		// is still accepted so a config file written for a full server
		// round-trips without losing the field.
		Seed int64
	}
	Tick struct {
		// RateHz overrides the fixed 20-tick cadence; only test harnesses
		// should ever set this away from 20.
		RateHz int
	}
	Chunks struct {
		// DefaultRadius is the chunk-cache radius a view.View starts at
		// before a client requests a different one.
		DefaultRadius int
		// MaxRadius caps any client-requested radius; must not exceed
		// view.MaxRadius.
		MaxRadius int
		// MaxUpdatesPerTick and TickBudgetMillis bound the chunk index's
		// per-tick lifecycle drain.
		MaxUpdatesPerTick int
		TickBudgetMillis  int
	}
	Workers struct {
		// PoolSize is the background task queue's worker count; 0 selects
		// a default based on the host's CPU count.
		PoolSize int
		// QueueSize bounds how many submitted tasks may wait for a worker.
		QueueSize int
	}
	Region struct {
		// DecodeCacheSize sizes the on-disk decode cache's (goleveldb)
		// write buffer, in chunk payloads of about 4KiB each; it does not
		// cap the number of cached chunks and nothing is evicted.
		DecodeCacheSize int
	}
	Scheduling struct {
		// SpillDir is where the scheduled-update ring's overflow store
		// lives. Empty selects an in-memory store, fine for a single
		// process lifetime but not durable across restarts.
		SpillDir string
	}
}

// TickInterval returns the configured tick cadence as a time.Duration,
// falling back to the standard 20Hz cadence when RateHz is unset.
func (c Config) TickInterval() time.Duration {
	if c.Tick.RateHz <= 0 {
		return 50 * time.Millisecond
	}
	return time.Second / time.Duration(c.Tick.RateHz)
}

// TickBudget returns the chunk index's per-tick lifecycle wall-clock
// budget, falling back to a conservative default.
func (c Config) TickBudget() time.Duration {
	if c.Chunks.TickBudgetMillis <= 0 {
		return 40 * time.Millisecond
	}
	return time.Duration(c.Chunks.TickBudgetMillis) * time.Millisecond
}

// Default returns the configuration a fresh install should start from.
func Default() Config {
	var c Config
	c.Network.Address = "0.0.0.0:19132"
	c.World.Root = "."
	c.Tick.RateHz = 20
	c.Chunks.DefaultRadius = 8
	c.Chunks.MaxRadius = 16
	c.Chunks.MaxUpdatesPerTick = 64
	c.Chunks.TickBudgetMillis = 40
	c.Workers.PoolSize = 0
	c.Workers.QueueSize = 256
	c.Region.DecodeCacheSize = 512
	c.Scheduling.SpillDir = "scheduled-overflow"
	return c
}

// Load reads and parses the TOML file at path. If the file does not exist,
// it is created holding the marshalled default configuration and that
// default is returned, matching the teacher's LoadWhitelist convention of
// self-seeding a missing config file rather than failing startup on it.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		def := Default()
		if writeErr := Save(path, def); writeErr != nil {
			return Config{}, fmt.Errorf("config: seed default at %s: %w", path, writeErr)
		}
		return def, nil
	}
	c := Default()
	if err := toml.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return c, nil
}

// Save marshals c as TOML and writes it to path.
func Save(path string, c Config) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}
