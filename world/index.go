package world

import (
	"log/slog"
	"time"

	"github.com/blockworld-dev/server/content"
	"github.com/brentp/intintmap"
)

// Loader is the interface the async chunk reader satisfies. Index
// owns scheduling loads onto it; Index never touches section buffers the
// loader has not yet published.
type Loader interface {
	// Load populates shell's sections/height map, then calls
	// shell.Finish(success) exactly once, from whatever goroutine
	// Load runs on.
	Load(shell *Chunk)
}

// TaskSubmitter dispatches a func() onto the background worker pool.
type TaskSubmitter interface {
	Submit(func()) bool
}

// Index is the sole authority on chunk existence, load state, and memory
// lifetime. It is owned and mutated by the tick thread only, except
// for the atomic load-completion flags on individual chunks.
type Index struct {
	log    *slog.Logger
	blocks *content.BlockRegistry
	loader Loader
	tasks  TaskSubmitter
	lights *LightEngine

	handles *intintmap.Map // packed ChunkPos key -> slot index
	slots   []*Chunk
	free    []int32 // recycled slot indices

	updateRing []int64 // power-of-two ring of pending packed keys
	ringHead   int
	ringTail   int
	ringMask   int

	maxUpdatesPerTick int
	tickBudget        time.Duration
}

// IndexConfig configures a new Index.
type IndexConfig struct {
	Log               *slog.Logger
	Blocks            *content.BlockRegistry
	Loader            Loader
	Tasks             TaskSubmitter
	MaxUpdatesPerTick int           // e.g. 64
	TickBudget        time.Duration // e.g. 40ms
	RingSize          int           // power of two, e.g. 4096
}

// NewIndex builds an empty Index.
func NewIndex(cfg IndexConfig) *Index {
	if cfg.MaxUpdatesPerTick <= 0 {
		cfg.MaxUpdatesPerTick = 64
	}
	if cfg.TickBudget <= 0 {
		cfg.TickBudget = 40 * time.Millisecond
	}
	if cfg.RingSize <= 0 {
		cfg.RingSize = 4096
	}
	ring := nextPow2(cfg.RingSize)
	return &Index{
		log:               cfg.Log,
		blocks:            cfg.Blocks,
		loader:            cfg.Loader,
		tasks:             cfg.Tasks,
		lights:            NewLightEngine(),
		handles:           intintmap.New(1024, 0.6),
		updateRing:        make([]int64, ring),
		ringMask:          ring - 1,
		maxUpdatesPerTick: cfg.MaxUpdatesPerTick,
		tickBudget:        cfg.TickBudget,
	}
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// GetChunkInternal returns a chunk in any state, used by the lifecycle
// itself and by lighting which must see self-lit-but-not-ready neighbours.
func (idx *Index) GetChunkInternal(pos ChunkPos) (*Chunk, bool) {
	key := pos.Pack()
	slot, ok := idx.handles.Get(key)
	if !ok {
		return nil, false
	}
	return idx.slots[slot], true
}

// GetChunkIfLoaded returns only READY chunks, for gameplay code.
func (idx *Index) GetChunkIfLoaded(pos ChunkPos) (*Chunk, bool) {
	c, ok := idx.GetChunkInternal(pos)
	if !ok || !c.Ready() {
		return nil, false
	}
	return c, true
}

func (idx *Index) ensureShell(pos ChunkPos) *Chunk {
	if c, ok := idx.GetChunkInternal(pos); ok {
		return c
	}
	c := newChunk(pos, idx.blocks)
	var slot int32
	if n := len(idx.free); n > 0 {
		slot = idx.free[n-1]
		idx.free = idx.free[:n-1]
		idx.slots[slot] = c
	} else {
		slot = int32(len(idx.slots))
		idx.slots = append(idx.slots, c)
	}
	idx.handles.Put(pos.Pack(), int64(slot))
	return c
}

// AddChunkInterest adjusts interest on pos by delta, which may be negative.
// It also adjusts neighbour-interest on the 8 surrounding chunks
// symmetrically, creating shells as needed, and schedules a lifecycle
// update for every touched chunk.
func (idx *Index) AddChunkInterest(pos ChunkPos, delta int32) {
	c := idx.ensureShell(pos)
	c.interestCount += delta
	idx.enqueueUpdate(pos)

	for _, n := range pos.Neighbours() {
		nc := idx.ensureShell(n)
		nc.neighbourInterestCount += delta
		idx.enqueueUpdate(n)
	}

	if c.state == stateShell && c.interestCount > 0 {
		idx.beginLoad(c)
	}
}

func (idx *Index) enqueueUpdate(pos ChunkPos) {
	c, ok := idx.GetChunkInternal(pos)
	if !ok || c.pendingUpdate {
		return
	}
	next := (idx.ringTail + 1) & idx.ringMask
	if next == idx.ringHead {
		// Ring full: this request is dropped. pendingUpdate stays false,
		// so the next enqueueUpdate for the chunk can queue it again.
		return
	}
	c.pendingUpdate = true
	idx.updateRing[idx.ringTail] = pos.Pack()
	idx.ringTail = next
}

func (idx *Index) popUpdate() (ChunkPos, bool) {
	if idx.ringHead == idx.ringTail {
		return ChunkPos{}, false
	}
	key := idx.updateRing[idx.ringHead]
	idx.ringHead = (idx.ringHead + 1) & idx.ringMask
	pos := UnpackChunkPos(key)
	if c, ok := idx.GetChunkInternal(pos); ok {
		c.pendingUpdate = false
	}
	return pos, true
}

func (idx *Index) beginLoad(c *Chunk) {
	c.state = stateLoadingAsync
	shell := c
	if idx.tasks != nil && idx.loader != nil {
		idx.tasks.Submit(func() { idx.loader.Load(shell) })
	} else if idx.loader != nil {
		idx.loader.Load(shell)
	} else {
		shell.markFinishedLoad(true)
	}
}

// TickChunkLoader drains pending lifecycle steps for one tick, bounded by
// count and by wall-clock budget since tickStart.
func (idx *Index) TickChunkLoader(tickStart time.Time) {
	processed := 0
	for processed < idx.maxUpdatesPerTick {
		if time.Since(tickStart) > idx.tickBudget {
			break
		}
		pos, ok := idx.popUpdate()
		if !ok {
			break
		}
		idx.stepLifecycle(pos)
		processed++
	}
}

func (idx *Index) stepLifecycle(pos ChunkPos) {
	c, ok := idx.GetChunkInternal(pos)
	if !ok {
		return
	}

	switch c.state {
	case stateLoadingAsync:
		if finished, success := c.pollFinishedLoad(); finished {
			c.state = stateLoadDone
			if success {
				// fall through to self-light below
			}
			idx.lights.SelfLight(idx, c)
			c.state = stateLitSelf
			idx.notifyNeighboursSelfLit(pos)
			idx.tryPromoteReady(c)
		}
	case stateLitSelf:
		idx.tryPromoteReady(c)
	}

	if c.interestCount+c.neighbourInterestCount == 0 {
		idx.tryUnload(c)
	}
}

func (idx *Index) notifyNeighboursSelfLit(pos ChunkPos) {
	for _, n := range pos.Neighbours() {
		idx.enqueueUpdate(n)
	}
}

// tryPromoteReady implements the READY gate:
// self and all 8 neighbours must be at least LIT_SELF.
func (idx *Index) tryPromoteReady(c *Chunk) {
	if c.state != stateLitSelf {
		return
	}
	for _, n := range c.Pos.Neighbours() {
		nc, ok := idx.GetChunkInternal(n)
		if !ok || (nc.state != stateLitSelf && nc.state != stateReady) {
			return
		}
	}
	c.state = stateReady
}

func (idx *Index) tryUnload(c *Chunk) {
	if c.state == stateLoadingAsync {
		// Load in flight: re-enqueue for a later tick rather than freeing
		// mid-load.
		idx.enqueueUpdate(c.Pos)
		return
	}
	key := c.Pos.Pack()
	slot, ok := idx.handles.Get(key)
	if !ok {
		return
	}
	idx.handles.Del(key)
	idx.slots[slot] = nil
	idx.free = append(idx.free, int32(slot))
}

// CollectLoadedChunks performs a rectangular range query over READY chunks.
func (idx *Index) CollectLoadedChunks(world uint32, fromX, fromZ, toX, toZ int32, out []*Chunk) []*Chunk {
	for cx := fromX; cx <= toX; cx++ {
		for cz := fromZ; cz <= toZ; cz++ {
			if c, ok := idx.GetChunkIfLoaded(ChunkPos{World: world, CX: cx, CZ: cz}); ok {
				out = append(out, c)
			}
		}
	}
	return out
}

// CollectChangedChunks intersects the per-tick changed-chunk list with a
// rectangular range.
func CollectChangedChunks(tick *TickState, world uint32, fromX, fromZ, toX, toZ int32, out []*Chunk) []*Chunk {
	for _, c := range tick.ChangedChunks() {
		if c.Pos.World != world {
			continue
		}
		if c.Pos.CX < fromX || c.Pos.CX > toX || c.Pos.CZ < fromZ || c.Pos.CZ > toZ {
			continue
		}
		out = append(out, c)
	}
	return out
}

// LoadedChunkCount returns the number of chunks currently tracked by the
// index, in any state.
func (idx *Index) LoadedChunkCount() int {
	return idx.handles.Size()
}
