package entity

import (
	"math"

	"github.com/blockworld-dev/server/content"
	"github.com/blockworld-dev/server/world"
)

const (
	maxSweepIterations = 4
	itemGravity        = 0.04
	defaultFriction    = 0.6
	groundItemDamping  = -0.5
)

// Solver advances entity motion by one tick against a chunk index's
// block-state store.
type Solver struct {
	Idx    *world.Index
	Blocks *content.BlockRegistry
}

// Tick performs one motion tick for e: gravity, the swept collision walk,
// friction and bounce. Entities of KindNull are skipped by the caller
// before this is reached. Items whose TypeState is air or whose
// PickupTimeout is negative are left unmoved; Tick does not despawn them.
func (s *Solver) Tick(e *Entity) {
	if e.Kind == KindItem && (e.TypeState == content.AirState || e.PickupTimeout < 0) {
		return
	}

	e.Vel[1] -= itemGravity

	disp := e.Vel
	remaining := 1.0
	box := BoxFromCentreBase(e.Pos, e.Width, e.Height)
	startOnGround := e.OnGround
	e.OnGround = false

	for iter := 0; iter < maxSweepIterations && remaining > sweepEpsilon; iter++ {
		step := disp.Mul(remaining)
		impact, ok := s.firstHit(e.World, box, step)
		if !ok {
			box = box.Translate(step)
			remaining = 0
			break
		}
		dt, face := impact.hit.dt, impact.hit.face

		box = box.Translate(step.Mul(dt))

		switch {
		case face == world.DirPosY && impact.kind == "slime_block":
			// Living entities reflect with factor -1; everything else
			// (items, projectiles) reflects softer at -0.8.
			factor := -0.8
			if e.Kind == KindGeneric {
				factor = -1.0
			}
			e.Vel[1] *= factor
		case face == world.DirPosY && impact.kind == "bed":
			e.Vel[1] *= 0.66
		case face == world.DirPosY:
			e.Vel[1] = 0
			e.OnGround = true
		case face == world.DirNegY:
			e.Vel[1] = 0
		case face == world.DirPosX || face == world.DirNegX:
			e.Vel[0] = 0
		default:
			e.Vel[2] = 0
		}

		remaining -= dt * remaining
		disp = e.Vel
	}

	e.Pos = Vec3{
		(box.Min[0] + box.Max[0]) / 2,
		box.Min[1],
		(box.Min[2] + box.Max[2]) / 2,
	}

	s.applyFriction(e, startOnGround)

	if e.Kind == KindItem && e.OnGround {
		e.Vel[1] *= groundItemDamping
	}

	e.ChangedData |= ChangedPosition | ChangedVelocity
	if e.OnGround != startOnGround {
		e.ChangedData |= ChangedOnGround
	}
}

type hitWithKind struct {
	hit  sweepHit
	kind string
}

// firstHit scans every integer block position inside the swept bounds (box
// enlarged by the entity's own extent, then by 1 on every axis to catch
// block models that extend past their unit cell) and returns the earliest
// collision.
func (s *Solver) firstHit(worldID uint32, box Box, disp Vec3) (hitWithKind, bool) {
	swept := box.UnionSweep(disp).Grow(1)

	minX, minY, minZ := int(math.Floor(swept.Min[0])), int(math.Floor(swept.Min[1])), int(math.Floor(swept.Min[2]))
	maxX, maxY, maxZ := int(math.Ceil(swept.Max[0])), int(math.Ceil(swept.Max[1])), int(math.Ceil(swept.Max[2]))

	var best hitWithKind
	found := false

	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			for z := minZ; z <= maxZ; z++ {
				pos := world.Pos{World: worldID, X: int32(x), Y: int32(y), Z: int32(z)}
				id := world.WorldGetBlockState(s.Idx, pos)
				state := s.Blocks.State(id)
				if len(state.Boxes) == 0 {
					continue
				}
				if skipsCollision(state.CollisionKind) {
					continue
				}
				offset := Vec3{float64(x), float64(y), float64(z)}
				for _, raw := range state.Boxes {
					blockBox := Box{
						Min: Vec3{raw[0], raw[1], raw[2]},
						Max: Vec3{raw[3], raw[4], raw[5]},
					}.Translate(offset)
					h := sweepBox(box, disp, blockBox)
					if h.hit && (!found || h.dt < best.hit.dt) {
						best = hitWithKind{hit: h, kind: state.CollisionKind}
						found = true
					}
				}
			}
		}
	}
	return best, found
}

// skipsCollision reports the block kinds the collision sweep passes
// through entirely: entities swim through water/lava/powder snow rather
// than colliding with them, and scaffolding/bamboo only collide from
// specific interactions this core does not model.
func skipsCollision(kind string) bool {
	switch kind {
	case "water", "lava", "powder_snow", "scaffolding", "bamboo":
		return true
	}
	return false
}

// applyFriction reduces horizontal velocity using the friction of the block
// below the entity's position after this tick's move, applied only when the
// entity was on the ground at the start of the tick.
func (s *Solver) applyFriction(e *Entity, wasOnGround bool) {
	friction := 1.0
	if wasOnGround {
		below := world.Pos{
			World: e.World,
			X:     int32(math.Floor(e.Pos[0])),
			Y:     int32(math.Floor(e.Pos[1])) - 1,
			Z:     int32(math.Floor(e.Pos[2])),
		}
		state := s.Blocks.State(world.WorldGetBlockState(s.Idx, below))
		f := state.Friction
		if f == 0 {
			f = defaultFriction
		}
		friction = f
	}
	e.Vel[0] *= friction
	e.Vel[2] *= friction
}
