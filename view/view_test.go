package view

import (
	"testing"
	"time"

	"github.com/blockworld-dev/server/content"
	"github.com/blockworld-dev/server/world"
)

const testFixture = `
states:
  - name: air
  - name: stone
    full_faces: 63
`

// newTestIndex brings every chunk within span of (0,0) up to READY by
// giving each one direct interest and draining the (synchronous, no
// Loader/TaskSubmitter configured) loader a few times.
func newTestIndex(t *testing.T, span int32) (*world.Index, *content.BlockRegistry) {
	t.Helper()
	reg, err := content.LoadBlockRegistry([]byte(testFixture))
	if err != nil {
		t.Fatalf("load fixture: %v", err)
	}
	idx := world.NewIndex(world.IndexConfig{Blocks: reg})
	for cx := -span; cx <= span; cx++ {
		for cz := -span; cz <= span; cz++ {
			idx.AddChunkInterest(world.ChunkPos{World: 1, CX: cx, CZ: cz}, 1)
		}
	}
	for i := 0; i < 4; i++ {
		idx.TickChunkLoader(time.Now())
	}
	return idx, reg
}

func TestViewStreamsEveryChunkOnceWithinBudget(t *testing.T) {
	idx, _ := newTestIndex(t, 4)
	v := New(idx, 2, 1)
	tick := world.NewTickState()

	seen := map[world.ChunkPos]bool{}
	centre := world.ChunkPos{World: 1, CX: 0, CZ: 0}
	budget := 25 // (2*2+1)^2 chunks, one per tick, no slack
	for i := 0; i < budget; i++ {
		packets := v.Tick(tick, centre)
		for _, p := range packets {
			if p.Kind != PacketChunkWithLight {
				continue
			}
			if seen[p.Chunk] {
				t.Fatalf("chunk %v sent twice", p.Chunk)
			}
			seen[p.Chunk] = true
		}
	}

	for dx := int32(-2); dx <= 2; dx++ {
		for dz := int32(-2); dz <= 2; dz++ {
			pos := world.ChunkPos{World: 1, CX: dx, CZ: dz}
			if !seen[pos] {
				t.Fatalf("chunk %v within radius never streamed", pos)
			}
		}
	}
}

func TestViewEmitsSectionUpdateForChangedChunkAlreadySent(t *testing.T) {
	idx, reg := newTestIndex(t, 4)
	v := New(idx, 1, 64)
	tick := world.NewTickState()
	centre := world.ChunkPos{World: 1, CX: 0, CZ: 0}

	// First tick streams every chunk in range (budget comfortably covers
	// the 3x3 grid at radius 1).
	v.Tick(tick, centre)
	tick.Reset(1)

	stone, ok := reg.ID("stone")
	if !ok {
		t.Fatalf("fixture missing stone")
	}
	world.WorldSetBlockState(idx, tick, world.Pos{World: 1, X: 3, Y: 70, Z: 14}, stone)

	packets := v.Tick(tick, centre)
	found := false
	for _, p := range packets {
		if p.Kind != PacketSectionBlocksUpdate {
			continue
		}
		if p.Chunk != (world.ChunkPos{World: 1, CX: 0, CZ: 0}) {
			continue
		}
		for _, b := range p.Blocks {
			if b.X == 3 && b.Z == 14 {
				found = true
			}
		}
	}
	if !found {
		t.Fatalf("expected a section-update packet covering the changed block, got %+v", packets)
	}
}

func TestViewSuppressesOwnChangeUntilAcked(t *testing.T) {
	idx, reg := newTestIndex(t, 4)
	v := New(idx, 1, 64)
	tick := world.NewTickState()
	centre := world.ChunkPos{World: 1, CX: 0, CZ: 0}

	v.Tick(tick, centre)
	tick.Reset(1)

	stone, _ := reg.ID("stone")
	pos := world.Pos{World: 1, X: 1, Y: 70, Z: 1}
	v.RecordOwnChange(pos, 5)
	world.WorldSetBlockState(idx, tick, pos, stone)

	packets := v.Tick(tick, centre)
	for _, p := range packets {
		if p.Kind != PacketSectionBlocksUpdate {
			continue
		}
		for _, b := range p.Blocks {
			if b.X == 1 && b.Z == 1 {
				t.Fatalf("own unacknowledged change should not be echoed back")
			}
		}
	}

	v.Ack(5)
	tick.Reset(2)
	pos2 := world.Pos{World: 1, X: 1, Y: 71, Z: 1}
	world.WorldSetBlockState(idx, tick, pos2, stone)
	packets = v.Tick(tick, centre)
	found := false
	for _, p := range packets {
		if p.Kind != PacketSectionBlocksUpdate {
			continue
		}
		for _, b := range p.Blocks {
			if b.X == 1 && b.Z == 1 {
				found = true
			}
		}
	}
	if !found {
		t.Fatalf("expected the post-ack change at a different position to come through, got %+v", packets)
	}
}

func TestViewDropsInterestWhenCentreMovesAway(t *testing.T) {
	// No broad pre-population here: a radius-1 view's own recentre pass
	// gives every cell of its 3x3 ring direct interest, which is enough
	// for the centre chunk alone to reach READY (its 8 neighbours only
	// need to reach LIT_SELF, which direct interest on each of them also
	// provides) -- see world/entity's use of the same Grid3x3 pattern.
	reg, err := content.LoadBlockRegistry([]byte(testFixture))
	if err != nil {
		t.Fatalf("load fixture: %v", err)
	}
	idx := world.NewIndex(world.IndexConfig{Blocks: reg})
	v := New(idx, 1, 64)
	tick := world.NewTickState()

	v.Tick(tick, world.ChunkPos{World: 1, CX: 0, CZ: 0})
	if _, ok := idx.GetChunkIfLoaded(world.ChunkPos{World: 1, CX: 0, CZ: 0}); !ok {
		t.Fatalf("origin chunk should have reached READY under the view's own 3x3 interest ring")
	}
	before := idx.LoadedChunkCount()

	v.Tick(tick, world.ChunkPos{World: 1, CX: 5, CZ: 5})
	for i := 0; i < 4; i++ {
		idx.TickChunkLoader(time.Now())
	}

	if _, ok := idx.GetChunkIfLoaded(world.ChunkPos{World: 1, CX: 0, CZ: 0}); ok {
		t.Fatalf("origin chunk should have lost interest and unloaded after the view moved away")
	}
	if idx.LoadedChunkCount() >= before {
		t.Fatalf("expected chunk count to drop after moving away, before=%d after=%d", before, idx.LoadedChunkCount())
	}
}
