package world

import "github.com/blockworld-dev/server/content"

// ChunkGetBlockState never fails. Positions above the world resolve to air,
// below it to void-air (both map to content.AirState, since cave-air and
// void-air count as air for every purpose here), and in-range positions
// return the stored state.
func ChunkGetBlockState(c *Chunk, pos Pos) content.EntryID {
	if pos.Y < MinWorldY || pos.Y > MaxWorldY {
		return content.AirState
	}
	lx, ly, lz, sec := pos.Local()
	return c.sections[sec].at(lx, ly, lz)
}

// SetResult is the outcome of ChunkSetBlockState.
type SetResult struct {
	Old, New content.EntryID
	Failed   bool
}

// ChunkSetBlockState implements. Requires the chunk to be READY;
// returns Failed=true without mutating state otherwise.
func ChunkSetBlockState(c *Chunk, tick *TickState, pos Pos, newState content.EntryID) SetResult {
	if !c.Ready() {
		return SetResult{Old: content.AirState, New: content.AirState, Failed: true}
	}
	if pos.Y < MinWorldY || pos.Y > MaxWorldY {
		return SetResult{Old: content.AirState, New: content.AirState, Failed: true}
	}
	lx, ly, lz, sec := pos.Local()
	old, newSection := c.sections[sec].set(lx, ly, lz, newState)
	c.sections[sec] = newSection
	if old == newState {
		return SetResult{Old: old, New: newState}
	}

	updateHeightMap(c, lx, lz, pos.Y, newState)
	markChanged(tick, c, sec, lx, ly, lz)

	return SetResult{Old: old, New: newState}
}

// updateHeightMap applies the height-map maintenance rules.
func updateHeightMap(c *Chunk, lx, lz int, y int32, newState content.EntryID) {
	idx := lz*chunkWidth + lx
	stored := c.heightMap[idx]
	isAir := newState == content.AirState

	if y+1 == int32(stored) && isAir {
		for scan := y; scan >= MinWorldY; scan-- {
			if ChunkGetBlockState(c, Pos{World: c.Pos.World, X: int32(lx) + c.Pos.CX*chunkWidth, Y: scan, Z: int32(lz) + c.Pos.CZ*chunkWidth}) != content.AirState {
				c.heightMap[idx] = int16(scan + 1)
				return
			}
		}
		c.heightMap[idx] = int16(MinWorldY)
		return
	}
	if y >= int32(stored) && !isAir {
		c.heightMap[idx] = int16(y + 1)
	}
}

// markChanged implements the change-tracking half of: on the first
// write of the tick to a chunk, mark it changed and clear its bitmap; on
// every write, set the section bit and insert the in-section index.
func markChanged(tick *TickState, c *Chunk, section, lx, ly, lz int) {
	if c.changedSections == 0 {
		tick.noteChangedChunk(c)
	}
	if c.changedSections&(1<<uint(section)) == 0 {
		c.changedSections |= 1 << uint(section)
		c.changeSets[section] = tick.acquireChangeSet()
	}
	c.changeSets[section].insert(int32(sectionIndex(lx, ly, lz)))
}

// clearChangeTracking resets a chunk's per-tick change state at tick end.
// changeSets are nil'd out, not just the bitmap: a changeSet is returned to
// the pool by TickState.Reset in the same pass, and another chunk's
// acquireChangeSet can hand that same object out again next tick. Leaving
// c.changeSets[i] pointing at it would let markChanged's old reuse branch
// (now removed) alias two chunks' change tracking onto one changeSet.
func clearChangeTracking(c *Chunk) {
	c.changedSections = 0
	for i := range c.changeSets {
		c.changeSets[i] = nil
	}
}
