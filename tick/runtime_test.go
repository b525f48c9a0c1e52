package tick

import (
	"testing"
	"time"

	"github.com/blockworld-dev/server/content"
	"github.com/blockworld-dev/server/view"
	"github.com/blockworld-dev/server/world"
	"github.com/blockworld-dev/server/world/entity"
)

const testFixture = `
states:
  - name: air
  - name: stone
    full_faces: 63
`

func TestRunTickStreamsChunkThenSectionUpdate(t *testing.T) {
	reg, err := content.LoadBlockRegistry([]byte(testFixture))
	if err != nil {
		t.Fatalf("load fixture: %v", err)
	}
	idx := world.NewIndex(world.IndexConfig{Blocks: reg})
	rt := NewRuntime(nil, idx, nil)
	rt.Solver = &entity.Solver{Idx: idx, Blocks: reg}

	const player = uint32(1)
	rt.Views[player] = view.New(idx, 1, 64)
	centre := world.ChunkPos{World: 1, CX: 0, CZ: 0}
	rt.PlayerChunks[player] = centre

	// The centre chunk's neighbours only reach LIT_SELF (and so let the
	// centre itself reach READY) after a few rounds of the chunk index's
	// bounded per-tick lifecycle drain, so give it several ticks rather
	// than assuming convergence inside the first one.
	foundChunk := false
	for i := 0; i < 8 && !foundChunk; i++ {
		for _, p := range rt.RunTick(time.Now())[player] {
			if p.Kind == view.PacketChunkWithLight && p.Chunk == centre {
				foundChunk = true
			}
		}
	}
	if !foundChunk {
		t.Fatalf("expected the centre chunk to stream within a few ticks")
	}

	stone, _ := reg.ID("stone")
	rt.QueueInput(func(rt *Runtime) {
		world.WorldSetBlockState(rt.Idx, rt.State, world.Pos{World: 1, X: 1, Y: 70, Z: 1}, stone)
	})

	packets := rt.RunTick(time.Now())
	foundSection := false
	for _, p := range packets[player] {
		if p.Kind != view.PacketSectionBlocksUpdate {
			continue
		}
		for _, b := range p.Blocks {
			if b.X == 1 && b.Z == 1 {
				foundSection = true
			}
		}
	}
	if !foundSection {
		t.Fatalf("expected queued input's block change to produce a section update, got %+v", packets[player])
	}
}

func TestRunTickAdvancesEntityMotion(t *testing.T) {
	reg, err := content.LoadBlockRegistry([]byte(testFixture))
	if err != nil {
		t.Fatalf("load fixture: %v", err)
	}
	idx := world.NewIndex(world.IndexConfig{Blocks: reg})
	rt := NewRuntime(nil, idx, nil)
	rt.Solver = &entity.Solver{Idx: idx, Blocks: reg}

	id := rt.Entities.Spawn(1, entity.KindItem, content.EntryID(999), entity.Vec3{0.5, 80.0, 0.5}, 0.25, 0.25)
	e := rt.Entities.Resolve(id)
	e.Vel = entity.Vec3{0, 0, 0}

	for i := 0; i < 5; i++ {
		rt.RunTick(time.Now())
	}

	if e.Vel[1] >= 0 {
		t.Fatalf("expected item to have accumulated downward velocity from gravity, got %v", e.Vel[1])
	}
}
