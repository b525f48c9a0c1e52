package region

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/blockworld-dev/server/content"
	"github.com/blockworld-dev/server/world"
)

func TestDecodeCachePutGet(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "decode-cache")
	c, err := OpenDecodeCache(dir, 64)
	if err != nil {
		t.Fatalf("open decode cache: %v", err)
	}
	defer c.Close()

	if _, ok := c.Get(1, 3, -4); ok {
		t.Fatal("expected a miss on an empty cache")
	}

	payload := []byte("decompressed chunk payload")
	if err := c.Put(1, 3, -4, payload); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, ok := c.Get(1, 3, -4)
	if !ok || string(got) != string(payload) {
		t.Fatalf("Get(1, 3, -4) = %q, %v, want %q, true", got, ok, payload)
	}

	// A different chunk key is independent.
	if _, ok := c.Get(1, 3, -5); ok {
		t.Fatal("expected a miss for a different chunk key")
	}

	if err := c.Delete(1, 3, -4); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := c.Get(1, 3, -4); ok {
		t.Fatal("expected a miss after delete")
	}
}

func TestReaderUsesDecodeCacheToSkipDisk(t *testing.T) {
	reg, err := content.LoadBlockRegistry([]byte(testFixture))
	if err != nil {
		t.Fatalf("load fixture: %v", err)
	}

	root := t.TempDir()
	cache, err := OpenDecodeCache(filepath.Join(root, "cache"), 0)
	if err != nil {
		t.Fatalf("open decode cache: %v", err)
	}
	defer cache.Close()

	r := NewReader(slog.Default(), root, reg)
	r.Cache = cache

	// No region file exists on disk at all -- seeding the cache directly
	// and asserting a successful load proves the cache entry alone
	// satisfied it, without the reader ever touching the filesystem.
	if err := cache.Put(1, 0, 0, buildChunkNBT(t)); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	idx := world.NewIndex(world.IndexConfig{Blocks: reg, Loader: r})
	idx.AddChunkInterest(world.ChunkPos{World: 1, CX: 0, CZ: 0}, 1)

	c, ok := idx.GetChunkInternal(world.ChunkPos{World: 1, CX: 0, CZ: 0})
	if !ok {
		t.Fatalf("expected chunk shell to exist")
	}
	stone, _ := reg.ID("stone")
	if got := c.Section(world.MinWorldY).At(0, 0, 0); got != stone {
		t.Fatalf("expected bottom section to be stone from the cached payload, got %v", got)
	}

	if _, err := os.Stat(filepath.Join(root, "world", "region", "r.0.0.mca")); !os.IsNotExist(err) {
		t.Fatalf("expected no region file to have been written/read, stat err = %v", err)
	}
}
