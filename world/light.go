package world

import "github.com/blockworld-dev/server/content"

// LightEngine runs BFS sky/block light propagation across a 3x3
// chunk grid plus top/bottom padding. The queue is reused for sky then
// block light.
type LightEngine struct {
	queue []lightEntry
}

type lightEntry struct {
	pos Pos
}

// NewLightEngine constructs an engine with a reusable BFS frontier.
func NewLightEngine() *LightEngine {
	return &LightEngine{queue: make([]lightEntry, 0, 4096)}
}

// lightSectionFor returns the light section for world-y y,
// accounting for the one padding section above and below the block volume.
func lightSectionFor(c *Chunk, y int32) *LightSection {
	// Adding SectionHeight skips the bottom pad section and keeps the
	// dividend non-negative down to the pad's lowest cell, so the
	// truncating division acts as a floor there.
	idx := (int(y) - MinWorldY + SectionHeight) / SectionHeight
	if idx < 0 {
		idx = 0
	}
	if idx >= LightSectionsPerChunk {
		idx = LightSectionsPerChunk - 1
	}
	return c.light[idx]
}

func localLightIndex(lx, ly, lz int) int {
	return sectionIndex(lx, (ly%SectionHeight+SectionHeight)%SectionHeight, lz)
}

func skyAt(idx *Index, pos Pos) uint8 {
	c, ok := idx.GetChunkInternal(pos.Chunk())
	if !ok {
		return allMaxSky.get(0)
	}
	lx, ly, lz, _ := pos.Local()
	return lightSectionFor(c, pos.Y).sky.get(localLightIndex(lx, ly, lz))
}

func blockLightAt(idx *Index, pos Pos) uint8 {
	c, ok := idx.GetChunkInternal(pos.Chunk())
	if !ok {
		return allZeroBlock.get(0)
	}
	lx, ly, lz, _ := pos.Local()
	return lightSectionFor(c, pos.Y).block.get(localLightIndex(lx, ly, lz))
}

func setSkyAt(idx *Index, pos Pos, v uint8) {
	c, ok := idx.GetChunkInternal(pos.Chunk())
	if !ok {
		return
	}
	lx, ly, lz, _ := pos.Local()
	lightSectionFor(c, pos.Y).sky.set(localLightIndex(lx, ly, lz), v)
}

func setBlockLightAt(idx *Index, pos Pos, v uint8) {
	c, ok := idx.GetChunkInternal(pos.Chunk())
	if !ok {
		return
	}
	lx, ly, lz, _ := pos.Local()
	lightSectionFor(c, pos.Y).block.set(localLightIndex(lx, ly, lz), v)
}

// BlockLightCanPropagate implements the geometric opacity test:
// light passes iff neither side presents a full occluding face toward d.
func BlockLightCanPropagate(blocks *content.BlockRegistry, from, to content.EntryID, d Direction) bool {
	fromFace := blocks.State(from).FullFaces
	toFace := blocks.State(to).FullFaces
	bit := uint8(1) << uint8(d)
	oppBit := uint8(1) << uint8(d.Opposite())
	return fromFace&bit == 0 && toFace&oppBit == 0
}

// stateReduction returns a block-state's extra light cost (e.g. water,
// leaves), via its cached Opacity field.
func stateReduction(blocks *content.BlockRegistry, state content.EntryID) uint8 {
	return blocks.State(state).Opacity
}

type lightKind uint8

const (
	lightSky lightKind = iota
	lightBlock
)

func (e *LightEngine) get(idx *Index, kind lightKind, pos Pos) uint8 {
	if kind == lightSky {
		return skyAt(idx, pos)
	}
	return blockLightAt(idx, pos)
}

func (e *LightEngine) set(idx *Index, kind lightKind, pos Pos, v uint8) {
	if kind == lightSky {
		setSkyAt(idx, pos, v)
	} else {
		setBlockLightAt(idx, pos, v)
	}
}

// propagate runs BFS to quiescence over e.queue for the given light kind.
func (e *LightEngine) propagate(idx *Index, kind lightKind) {
	for len(e.queue) > 0 {
		entry := e.queue[len(e.queue)-1]
		e.queue = e.queue[:len(e.queue)-1]

		fromValue := e.get(idx, kind, entry.pos)
		fromState := internalBlockState(idx, entry.pos)

		for _, d := range DirectNeighbourOrder {
			to := entry.pos.Side(d)
			if to.Y < MinWorldY-SectionHeight || to.Y > MaxWorldY+SectionHeight {
				continue
			}
			toState := internalBlockState(idx, to)
			if !BlockLightCanPropagate(idx.blocks, fromState, toState, d) {
				continue
			}

			var attenuation uint8 = 1
			if kind == lightSky && d == DirNegY && fromValue == 15 {
				attenuation = 0
			}
			if r := stateReduction(idx.blocks, toState); r > attenuation {
				attenuation = r
			}
			if attenuation >= fromValue {
				continue
			}
			tentative := fromValue - attenuation

			if e.get(idx, kind, to) >= tentative {
				continue
			}
			e.set(idx, kind, to, tentative)
			e.queue = append(e.queue, lightEntry{pos: to})
		}
	}
}

// SelfLight performs the self-light pass for a newly loaded chunk:
// sky-light seeding from the padding section, block-light seeding from
// every emitting cell in the chunk, then border exchange with any already
// self-lit side neighbour.
func (e *LightEngine) SelfLight(idx *Index, c *Chunk) {
	e.seedSky(idx, c)
	e.propagate(idx, lightSky)

	e.seedBlockLight(idx, c)
	e.propagate(idx, lightBlock)

	e.exchangeBorders(idx, c)
}

func (e *LightEngine) seedSky(idx *Index, c *Chunk) {
	e.queue = e.queue[:0]
	baseX, baseZ := c.Pos.CX*chunkWidth, c.Pos.CZ*chunkWidth
	top := Pos{World: c.Pos.World, Y: MaxWorldY + SectionHeight}
	for lx := 0; lx < chunkWidth; lx++ {
		for lz := 0; lz < chunkWidth; lz++ {
			pos := top
			pos.X = baseX + int32(lx)
			pos.Z = baseZ + int32(lz)
			setSkyAt(idx, pos, 15)
			e.queue = append(e.queue, lightEntry{pos: pos})
		}
	}
}

func (e *LightEngine) seedBlockLight(idx *Index, c *Chunk) {
	e.queue = e.queue[:0]
	baseX, baseZ := c.Pos.CX*chunkWidth, c.Pos.CZ*chunkWidth
	for lx := 0; lx < chunkWidth; lx++ {
		for lz := 0; lz < chunkWidth; lz++ {
			for y := int32(MinWorldY); y <= MaxWorldY; y++ {
				pos := Pos{World: c.Pos.World, X: baseX + int32(lx), Y: y, Z: baseZ + int32(lz)}
				state := internalBlockState(idx, pos)
				if emission := idx.blocks.State(state).Light; emission > 0 {
					setBlockLightAt(idx, pos, emission)
					e.queue = append(e.queue, lightEntry{pos: pos})
				}
			}
		}
	}
}

// exchangeBorders handles border exchange: for each side neighbour that is
// itself self-lit, walk the shared edge column and enqueue each cell as if
// propagating inward, for both light kinds.
func (e *LightEngine) exchangeBorders(idx *Index, c *Chunk) {
	type side struct {
		d Direction
	}
	sides := []side{{DirNegX}, {DirPosX}, {DirNegZ}, {DirPosZ}}
	for _, s := range sides {
		npos := c.Pos.Side4(s.d)
		n, ok := idx.GetChunkInternal(npos)
		if !ok || (n.state != stateLitSelf && n.state != stateReady) {
			continue
		}
		e.walkEdge(idx, c, s.d, lightSky)
		e.propagate(idx, lightSky)
		e.walkEdge(idx, c, s.d, lightBlock)
		e.propagate(idx, lightBlock)
	}
}

// Side4 returns the neighbouring chunk position in one of the 4 horizontal
// directions.
func (p ChunkPos) Side4(d Direction) ChunkPos {
	dx, _, dz := d.Delta()
	return ChunkPos{World: p.World, CX: p.CX + dx, CZ: p.CZ + dz}
}

func (e *LightEngine) walkEdge(idx *Index, c *Chunk, d Direction, kind lightKind) {
	e.queue = e.queue[:0]
	baseX, baseZ := c.Pos.CX*chunkWidth, c.Pos.CZ*chunkWidth
	var edgeX, edgeZ func(i int) (int32, int32)
	switch d {
	case DirNegX:
		edgeX = func(i int) (int32, int32) { return baseX, baseZ + int32(i) }
	case DirPosX:
		edgeX = func(i int) (int32, int32) { return baseX + chunkWidth - 1, baseZ + int32(i) }
	case DirNegZ:
		edgeZ = func(i int) (int32, int32) { return baseX + int32(i), baseZ }
	case DirPosZ:
		edgeZ = func(i int) (int32, int32) { return baseX + int32(i), baseZ + chunkWidth - 1 }
	}
	pick := edgeX
	if pick == nil {
		pick = edgeZ
	}
	for i := 0; i < chunkWidth; i++ {
		x, z := pick(i)
		for y := int32(MinWorldY); y <= MaxWorldY; y++ {
			pos := Pos{World: c.Pos.World, X: x, Y: y, Z: z}
			if e.get(idx, kind, pos) > 0 {
				e.queue = append(e.queue, lightEntry{pos: pos})
			}
		}
	}
}
