package world

import (
	"sync/atomic"

	"github.com/blockworld-dev/server/content"
)

// Atomic chunk-load handshake flags, set with a release-fetch-or by the
// worker and polled with an acquire-load by the tick thread. Apart from the
// SetSection/SetHeight writes a Loader makes before Finish, these are the
// only bits of a Chunk a worker goroutine may touch.
const (
	flagFinishedLoad uint32 = 1 << iota
	flagLoadSuccess
	flagRequestingUpdate // not read or set; Index guards enqueues with Chunk.pendingUpdate
)

// loadState is the main-thread-only chunk lifecycle state.
type loadState uint8

const (
	stateShell loadState = iota
	stateLoadingAsync
	stateLoadDone
	stateLitSelf
	stateReady
)

// BlockEntity is a minimal placeholder for the inline block-entity table:
// block-entities carry extra per-position data (e.g. sign text) that this
// core treats opaquely -- it only needs to know a position holds one so
// tickable block-entities are visited.
type BlockEntity struct {
	Pos  Pos
	Kind string
}

// localEvent is an in-chunk event emitted this tick for particles/sounds,
// consumed by the outbound packet producer and never persisted.
type localEvent struct {
	Pos  Pos
	Kind uint16
	Data int32
}

// Chunk owns one 16-wide column's full vertical extent: block sections,
// light sections, height map, block-entities, local events, change
// tracking, and the cross-thread load handshake.
type Chunk struct {
	Pos ChunkPos

	sections      [SectionsPerChunk]*Section
	light         [LightSectionsPerChunk]*LightSection
	heightMap     [chunkWidth * chunkWidth]int16 // motion-blocking height map
	blockEntities []BlockEntity
	events        []localEvent

	// atomicFlags is written only via atomic ops; see flagFinishedLoad etc.
	atomicFlags atomic.Uint32

	// Main-thread-only loader bookkeeping.
	state         loadState
	pendingUpdate bool // true while the chunk sits in the index's update ring; prevents double-enqueue

	// interest bookkeeping.
	interestCount           int32
	neighbourInterestCount  int32

	// Per-tick change tracking. changeSets come from TickState's pool and
	// are cleared by TickState.Reset at tick end.
	changedSections uint16 // bitmap, bit i => section i changed this tick
	changeSets      [SectionsPerChunk]*changeSet

	blocks *content.BlockRegistry
}

func newChunk(pos ChunkPos, reg *content.BlockRegistry) *Chunk {
	c := &Chunk{Pos: pos, blocks: reg}
	for i := range c.heightMap {
		c.heightMap[i] = int16(MinWorldY)
	}
	for i := range c.sections {
		c.sections[i] = newNullSection()
	}
	for i := range c.light {
		c.light[i] = newLightSection()
	}
	return c
}

// markFinishedLoad performs the worker-side release-publish.
func (c *Chunk) markFinishedLoad(success bool) {
	v := flagFinishedLoad
	if success {
		v |= flagLoadSuccess
	}
	for {
		old := c.atomicFlags.Load()
		if c.atomicFlags.CompareAndSwap(old, old|v) {
			return
		}
	}
}

// pollFinishedLoad is the tick-thread-side acquire-load.
func (c *Chunk) pollFinishedLoad() (finished, success bool) {
	v := c.atomicFlags.Load()
	return v&flagFinishedLoad != 0, v&flagLoadSuccess != 0
}

// Finish is the worker-side publish a Loader implementation (the region
// reader) calls exactly once, after populating sections and the height map
// with SetSection/SetHeight, from whatever goroutine Load runs on.
func (c *Chunk) Finish(success bool) { c.markFinishedLoad(success) }

// SetSection installs section data decoded by an async Loader. Must only be
// called before Finish publishes the chunk.
func (c *Chunk) SetSection(index int, s *Section) {
	c.sections[index] = s
}

// SetHeight installs one column's cached motion-blocking height, as
// computed by an async Loader from the sections it just populated. Must
// only be called before Finish publishes the chunk.
func (c *Chunk) SetHeight(lx, lz int, h int16) {
	c.heightMap[lz*chunkWidth+lx] = h
}

// State returns the chunk's lifecycle state, main-thread-only.
func (c *Chunk) State() loadState { return c.state }

// Ready reports whether the chunk is visible to gameplay.
func (c *Chunk) Ready() bool { return c.state == stateReady }

// Section returns the section at world-y y (must be within [MinWorldY,MaxWorldY]).
func (c *Chunk) Section(y int32) *Section {
	idx := (int(y) - MinWorldY) / SectionHeight
	return c.sections[idx]
}

// HeightAt returns the cached motion-blocking height map value for local
// column (lx, lz).
func (c *Chunk) HeightAt(lx, lz int) int16 { return c.heightMap[lz*chunkWidth+lx] }

// ChangedSections returns the indices of sections with at least one block
// write this tick, for the per-client view's section-update packet pass.
func (c *Chunk) ChangedSections() []int {
	var out []int
	for i := 0; i < SectionsPerChunk; i++ {
		if c.changedSections&(1<<uint(i)) != 0 {
			out = append(out, i)
		}
	}
	return out
}

// SectionChangePositions returns the 12-bit in-section positions touched
// this tick for the given section index. Empty if the section did not
// change.
func (c *Chunk) SectionChangePositions(section int) []int32 {
	cs := c.changeSets[section]
	if cs == nil {
		return nil
	}
	return cs.Positions()
}
