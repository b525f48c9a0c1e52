package world

import "github.com/blockworld-dev/server/content"

// WorldGetBlockState resolves pos's chunk via the index and reads through it.
// If the chunk is not READY, returns air ("unknown block" default) without
// distinguishing the two cases further -- this core has a single default
// state (air) for both out-of-range and not-yet-loaded reads.
func WorldGetBlockState(idx *Index, pos Pos) content.EntryID {
	c, ok := idx.GetChunkIfLoaded(pos.Chunk())
	if !ok {
		return content.AirState
	}
	return ChunkGetBlockState(c, pos)
}

// WorldSetBlockState resolves pos's chunk and writes through it. Fails if
// the chunk is not READY.
func WorldSetBlockState(idx *Index, tick *TickState, pos Pos, newState content.EntryID) SetResult {
	c, ok := idx.GetChunkIfLoaded(pos.Chunk())
	if !ok {
		return SetResult{Old: content.AirState, New: content.AirState, Failed: true}
	}
	return ChunkSetBlockState(c, tick, pos, newState)
}

// internalBlockState is used by the lighting engine, which must be able to
// read cells of neighbours that are merely self-lit, not yet READY. Null
// (never-created) neighbours read as air, via the same read-only
// all-air substitution lighting uses for absent neighbour sections.
func internalBlockState(idx *Index, pos Pos) content.EntryID {
	c, ok := idx.GetChunkInternal(pos.Chunk())
	if !ok {
		return content.AirState
	}
	return ChunkGetBlockState(c, pos)
}
