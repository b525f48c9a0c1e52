package region

import (
	"encoding/binary"
	"fmt"

	"github.com/df-mc/goleveldb/leveldb"
	"github.com/df-mc/goleveldb/leveldb/opt"
)

// DecodeCache is an on-disk cache of decompressed chunk NBT payloads, keyed
// by (worldID, cx, cz). A cache hit lets Reader skip the sector read and
// decompression step on a repeated load of the same chunk (e.g. a player
// re-entering a chunk a moment after its shell was evicted); it does not
// cache past the NBT parse, since that cost is small next to disk IO and
// decompression.
type DecodeCache struct {
	db *leveldb.DB
}

// OpenDecodeCache opens (creating if absent) a goleveldb store at dir.
// maxEntries only sizes goleveldb's in-memory write buffer (about 4KiB per
// entry); the store itself is not capped, tracks no entry count, and an
// entry is removed only by Delete.
func OpenDecodeCache(dir string, maxEntries int) (*DecodeCache, error) {
	opts := &opt.Options{}
	if maxEntries > 0 {
		// Roughly 4KiB of payload per chunk; scales the write buffer to the
		// configured working set instead of goleveldb's default.
		opts.WriteBuffer = maxEntries * 4096
	}
	db, err := leveldb.OpenFile(dir, opts)
	if err != nil {
		return nil, fmt.Errorf("region: open decode cache: %w", err)
	}
	return &DecodeCache{db: db}, nil
}

// Close releases the underlying goleveldb store.
func (c *DecodeCache) Close() error { return c.db.Close() }

func decodeCacheKey(worldID uint32, cx, cz int32) []byte {
	key := make([]byte, 12)
	binary.BigEndian.PutUint32(key[0:4], worldID)
	binary.BigEndian.PutUint32(key[4:8], uint32(cx))
	binary.BigEndian.PutUint32(key[8:12], uint32(cz))
	return key
}

// Get returns the cached decompressed payload for (worldID, cx, cz), if any.
func (c *DecodeCache) Get(worldID uint32, cx, cz int32) ([]byte, bool) {
	val, err := c.db.Get(decodeCacheKey(worldID, cx, cz), nil)
	if err != nil {
		return nil, false
	}
	return val, true
}

// Put stores the decompressed payload for (worldID, cx, cz), overwriting
// any prior entry.
func (c *DecodeCache) Put(worldID uint32, cx, cz int32, payload []byte) error {
	return c.db.Put(decodeCacheKey(worldID, cx, cz), payload, nil)
}

// Delete removes any cached entry for (worldID, cx, cz), used when a
// chunk's backing region sector is known to have been rewritten.
func (c *DecodeCache) Delete(worldID uint32, cx, cz int32) error {
	return c.db.Delete(decodeCacheKey(worldID, cx, cz), nil)
}
