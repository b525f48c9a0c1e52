package region

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/cespare/xxhash/v2"
	kgzip "github.com/klauspost/compress/gzip"
	kzlib "github.com/klauspost/compress/zlib"
	"golang.org/x/sync/semaphore"

	"github.com/blockworld-dev/server/content"
	"github.com/blockworld-dev/server/nbt"
	"github.com/blockworld-dev/server/world"
)

// defaultMaxConcurrentReads bounds how many region-file reads a Reader
// allows in flight at once, independent of the background worker pool's
// own size -- the worker pool bounds CPU-bound decode work, this bounds
// open file descriptors and concurrent disk seeks against the same
// spinning-or-networked volume.
const defaultMaxConcurrentReads = 8

// ServerWorldVersion is the data-version stamp a chunk's NBT payload must
// carry to be accepted; anything else is treated as an async load failure.
const ServerWorldVersion = 3700

// requiredStatus is the chunk generation status this core accepts; partially
// generated chunks fail the load rather than being treated as playable.
const requiredStatus = "minecraft:full"

// maxDecompressedSize bounds the scratch buffer a single chunk's sector
// payload may decompress into, so a corrupt or adversarial size field
// cannot exhaust memory.
const maxDecompressedSize = 4 << 20

// maxNegativeCacheEntries bounds the known-missing-region set so a server
// churning through an unbounded set of empty regions can't grow it forever.
const maxNegativeCacheEntries = 4096

// LoadObserver receives the outcome of each completed async chunk load, so
// the metrics collector can count successes/failures without Reader
// depending on Prometheus.
type LoadObserver interface {
	ObserveChunkLoad(success bool)
}

// Reader is the async chunk reader: given a chunk shell, it locates,
// validates, decompresses and decodes its backing region-file sectors. It
// satisfies world.Loader.
type Reader struct {
	log      *slog.Logger
	root     string
	reg      *content.BlockRegistry
	Observer LoadObserver // optional
	Cache    *DecodeCache // optional on-disk decompressed-payload cache

	reads *semaphore.Weighted

	mu      sync.Mutex
	missing map[uint64]struct{} // hash of (worldId, rx, rz) known absent on disk
	order   []uint64            // FIFO eviction order for missing
}

// NewReader returns a Reader rooted at root (e.g. the server's data
// directory), resolving worldId 1 to the "world" subdirectory per the
// design's single-world-ID support.
func NewReader(log *slog.Logger, root string, reg *content.BlockRegistry) *Reader {
	if log == nil {
		log = slog.Default()
	}
	return &Reader{
		log:     log,
		root:    root,
		reg:     reg,
		reads:   semaphore.NewWeighted(defaultMaxConcurrentReads),
		missing: make(map[uint64]struct{}),
	}
}

func worldFolder(worldID uint32) (string, error) {
	if worldID == 1 {
		return "world", nil
	}
	return "", fmt.Errorf("region: unknown world ID %d", worldID)
}

func regionKey(worldID uint32, rx, rz int32) uint64 {
	var buf [12]byte
	buf[0], buf[1], buf[2], buf[3] = byte(worldID), byte(worldID>>8), byte(worldID>>16), byte(worldID>>24)
	buf[4], buf[5], buf[6], buf[7] = byte(rx), byte(rx>>8), byte(rx>>16), byte(rx>>24)
	buf[8], buf[9], buf[10], buf[11] = byte(rz), byte(rz>>8), byte(rz>>16), byte(rz>>24)
	return xxhash.Sum64(buf[:])
}

// knownMissing reports whether region (worldID, rx, rz) was already
// observed absent, so a repeat load attempt can skip the stat/open call.
func (r *Reader) knownMissing(key uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.missing[key]
	return ok
}

func (r *Reader) rememberMissing(key uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.missing[key]; ok {
		return
	}
	if len(r.order) >= maxNegativeCacheEntries {
		evict := r.order[0]
		r.order = r.order[1:]
		delete(r.missing, evict)
	}
	r.missing[key] = struct{}{}
	r.order = append(r.order, key)
}

// Load implements world.Loader. It always calls shell.Finish exactly once,
// on the same goroutine it runs on -- the task queue (or, with none
// configured, the calling tick-thread goroutine itself) is responsible for
// scheduling that goroutine.
func (r *Reader) Load(shell *world.Chunk) {
	success := r.load(shell)
	if r.Observer != nil {
		r.Observer.ObserveChunkLoad(success)
	}
	shell.Finish(success)
}

func (r *Reader) load(shell *world.Chunk) bool {
	pos := shell.Pos
	rx, rz := pos.CX>>5, pos.CZ>>5
	key := regionKey(pos.World, rx, rz)
	if r.knownMissing(key) {
		return true // absent region -> generated-empty, not a failure
	}

	var decompressed []byte
	if r.Cache != nil {
		if cached, ok := r.Cache.Get(pos.World, pos.CX, pos.CZ); ok {
			decompressed = cached
		}
	}

	if decompressed == nil {
		folder, err := worldFolder(pos.World)
		if err != nil {
			r.log.Info("region: load failed", "pos", pos, "err", err)
			return false
		}
		path := filepath.Join(r.root, folder, "region", fmt.Sprintf("r.%d.%d.mca", rx, rz))

		if err := r.reads.Acquire(context.Background(), 1); err != nil {
			r.log.Info("region: read slot acquire failed", "path", path, "err", err)
			return false
		}
		defer r.reads.Release(1)

		f, err := os.Open(path)
		if err != nil {
			if os.IsNotExist(err) {
				r.rememberMissing(key)
				return true
			}
			r.log.Info("region: open failed", "path", path, "err", err)
			return false
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			r.log.Info("region: stat failed", "path", path, "err", err)
			return false
		}

		header, err := readHeader(f)
		if err != nil {
			r.log.Info("region: header read failed", "path", path, "err", err)
			return false
		}
		loc := header[chunkSlot(pos.CX, pos.CZ)]
		if !loc.present() {
			return true // absent chunk -> caller treats as generated-empty
		}

		raw, method, err := readSectorPayload(f, info.Size(), loc)
		if err != nil {
			r.log.Info("region: sector read failed", "pos", pos, "err", err)
			return false
		}

		decompressed, err = decompress(raw, method)
		if err != nil {
			r.log.Info("region: decompress failed", "pos", pos, "err", err)
			return false
		}

		if r.Cache != nil {
			if err := r.Cache.Put(pos.World, pos.CX, pos.CZ, decompressed); err != nil {
				r.log.Info("region: decode cache write failed", "pos", pos, "err", err)
			}
		}
	}

	root, err := nbt.NewReader(decompressed).ReadCompound()
	if err != nil {
		r.log.Info("region: nbt parse failed", "pos", pos, "err", err)
		return false
	}

	if dv, ok := root.Int("DataVersion"); !ok || dv != ServerWorldVersion {
		r.log.Info("region: unexpected data version", "pos", pos, "got", dv)
		return false
	}
	if status, ok := root.Str("Status"); !ok || status != requiredStatus {
		r.log.Info("region: chunk not fully generated", "pos", pos, "status", status)
		return false
	}

	sections := root.ListField("sections")
	if err := r.populate(shell, sections); err != nil {
		r.log.Info("region: section decode failed", "pos", pos, "err", err)
		return false
	}
	return true
}

func decompress(raw []byte, method byte) ([]byte, error) {
	var rc io.ReadCloser
	var err error
	switch method {
	case compressionGzip:
		rc, err = kgzip.NewReader(bytes.NewReader(raw))
	case compressionZlib:
		rc, err = kzlib.NewReader(bytes.NewReader(raw))
	default:
		return nil, fmt.Errorf("region: unsupported compression method %d", method)
	}
	if err != nil {
		return nil, fmt.Errorf("open decompressor: %w", err)
	}
	defer rc.Close()

	limited := io.LimitReader(rc, maxDecompressedSize+1)
	out, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("decompress: %w", err)
	}
	if len(out) > maxDecompressedSize {
		return nil, fmt.Errorf("decompressed payload exceeds %d bytes", maxDecompressedSize)
	}
	return out, nil
}

// populate decodes every section compound into shell's block sections, then
// derives the motion-blocking height map from the result.
func (r *Reader) populate(shell *world.Chunk, sections []nbt.Value) error {
	for _, sec := range sections {
		y, ok := sec.Int("Y")
		if !ok {
			return fmt.Errorf("section missing Y index")
		}
		worldY := int32(y) * world.SectionHeight
		index := int((int64(worldY) - world.MinWorldY) / world.SectionHeight)
		if index < 0 || index >= world.SectionsPerChunk {
			continue // padding sections below/above the playable volume
		}
		blocks, err := resolveSection(sec, r.reg)
		if err != nil {
			return fmt.Errorf("section Y=%d: %w", y, err)
		}
		shell.SetSection(index, world.NewSection(blocks))
	}

	for lz := 0; lz < world.ChunkWidth; lz++ {
		for lx := 0; lx < world.ChunkWidth; lx++ {
			shell.SetHeight(lx, lz, computeHeight(shell, lx, lz))
		}
	}
	return nil
}

func computeHeight(shell *world.Chunk, lx, lz int) int16 {
	for y := int32(world.MaxWorldY); y >= world.MinWorldY; y-- {
		sec := shell.Section(y)
		ly := int(y-world.MinWorldY) % world.SectionHeight
		if sec.At(lx, ly, lz) != content.AirState {
			return int16(y + 1)
		}
	}
	return int16(world.MinWorldY)
}
