package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadSeedsDefaultWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	c, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c != Default() {
		t.Fatalf("Load(missing) = %+v, want Default() = %+v", c, Default())
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected Load to seed %s, stat err: %v", path, err)
	}

	// A second load reads back exactly what was seeded.
	c2, err := Load(path)
	if err != nil {
		t.Fatalf("second load: %v", err)
	}
	if c2 != c {
		t.Fatalf("second Load() = %+v, want %+v", c2, c)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	c := Default()
	c.Tick.RateHz = 40
	c.Chunks.MaxRadius = 4
	if err := Save(path, c); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Tick.RateHz != 40 || got.Chunks.MaxRadius != 4 {
		t.Fatalf("Load() = %+v, want RateHz=40 MaxRadius=4", got)
	}
}

func TestTickIntervalFallsBackTo20Hz(t *testing.T) {
	var c Config
	if got, want := c.TickInterval(), 50*time.Millisecond; got != want {
		t.Fatalf("TickInterval() with RateHz=0 = %v, want %v", got, want)
	}
	c.Tick.RateHz = 10
	if got, want := c.TickInterval(), 100*time.Millisecond; got != want {
		t.Fatalf("TickInterval() with RateHz=10 = %v, want %v", got, want)
	}
}

func TestTickBudgetFallsBackToDefault(t *testing.T) {
	var c Config
	if got, want := c.TickBudget(), 40*time.Millisecond; got != want {
		t.Fatalf("TickBudget() with TickBudgetMillis=0 = %v, want %v", got, want)
	}
	c.Chunks.TickBudgetMillis = 25
	if got, want := c.TickBudget(), 25*time.Millisecond; got != want {
		t.Fatalf("TickBudget() with TickBudgetMillis=25 = %v, want %v", got, want)
	}
}
