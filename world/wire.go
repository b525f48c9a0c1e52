package world

import (
	"github.com/blockworld-dev/server/content"
	"github.com/blockworld-dev/server/world/redstone"
)

// wireAdapter implements redstone.WireGraph over the block-state store,
// bridging world.Pos/content.EntryID to the redstone package's
// transport-agnostic Pos/Environment types.
type wireAdapter struct {
	idx    *Index
	tick   *TickState
	world  uint32
	ctx    *UpdateContext
}

func toWorldPos(world uint32, p redstone.Pos) Pos {
	return Pos{World: world, X: p.X, Y: p.Y, Z: p.Z}
}

func toWirePos(p Pos) redstone.Pos {
	return redstone.Pos{X: p.X, Y: p.Y, Z: p.Z}
}

// wirePowerOf returns the power level encoded in a wire block-state: every
// wire block type occupies 16 contiguous states, 0-15, mirroring the
// teacher's RedstoneDust.Power convention (server/block/redstone_dust.go).
func wirePowerOf(blocks *content.BlockRegistry, base content.EntryID, state content.EntryID) uint8 {
	if state < base || state >= base+16 {
		return 0
	}
	return uint8(state - base)
}

func (w *wireAdapter) Power(p redstone.Pos) uint8 {
	pos := toWorldPos(w.world, p)
	state := WorldGetBlockState(w.idx, pos)
	base := wireBaseState(state, w.idx.blocks)
	return wirePowerOf(w.idx.blocks, base, state)
}

func (w *wireAdapter) SetPower(p redstone.Pos, level uint8) {
	pos := toWorldPos(w.world, p)
	state := WorldGetBlockState(w.idx, pos)
	base := wireBaseState(state, w.idx.blocks)
	newState := base + content.EntryID(level&0xF)
	if newState == state {
		return
	}
	WorldSetBlockState(w.idx, w.tick, pos, newState)
	if w.ctx != nil {
		PushDirectNeighbourUpdates(w.ctx, pos)
	}
}

// wireBaseState finds the 0-power state for the wire type occupying state,
// by walking backward over the contiguous run of states sharing state's
// TypeName and IsWire flag. Content registries declare a wire type's 16
// power variants as consecutive fixture rows (power 0 first), so the run
// boundary is the first preceding state with a different type or a
// non-wire state.
func wireBaseState(state content.EntryID, blocks *content.BlockRegistry) content.EntryID {
	info := blocks.State(state)
	if !info.IsWire {
		return state
	}
	base := state
	for base > 0 {
		prev := base - 1
		prevInfo := blocks.State(prev)
		if prevInfo.TypeName != info.TypeName || !prevInfo.IsWire {
			break
		}
		base = prev
	}
	return base
}

func (w *wireAdapter) Environment(p redstone.Pos) redstone.Environment {
	pos := toWorldPos(w.world, p)
	var env redstone.Environment
	var total uint8

	dirs := [4]Direction{DirNegX, DirPosX, DirNegZ, DirPosZ}
	for i, d := range dirs {
		neighbourPos := pos.Side(d)
		neighbourState := WorldGetBlockState(w.idx, neighbourPos)
		ninfo := w.idx.blocks.State(neighbourState)

		connected := ninfo.WireConnect || ninfo.IsWire
		side := redstone.SideNone
		if connected {
			side = redstone.SideSide
			upPos := neighbourPos.Side(DirPosY)
			aboveNeighbourInfo := w.idx.blocks.State(WorldGetBlockState(w.idx, upPos))
			if !aboveNeighbourInfo.Conductor && w.idx.blocks.State(WorldGetBlockState(w.idx, upPos)).IsWire {
				side = redstone.SideUp
			}
		}
		env.Sides[i] = side

		if power := w.powerFromNeighbour(pos, neighbourPos, d); power > total {
			total = power
		}
	}
	env.IncomingPower = total
	return env
}

// powerFromNeighbour computes the power arriving at pos from one horizontal
// neighbour: direct emitting sources, or an adjacent wire one less than its
// own level. Diagonal wire power through a non-conductor
// above/below is also considered, but never diagonally through a full
// conductor.
func (w *wireAdapter) powerFromNeighbour(pos, neighbourPos Pos, d Direction) uint8 {
	nState := WorldGetBlockState(w.idx, neighbourPos)
	ninfo := w.idx.blocks.State(nState)
	if ninfo.PowerOut > 0 {
		return ninfo.PowerOut
	}
	if ninfo.IsWire {
		base := wireBaseState(nState, w.idx.blocks)
		if p := wirePowerOf(w.idx.blocks, base, nState); p > 0 {
			return p - 1
		}
		return 0
	}
	// Diagonal: a wire one level above or below the neighbour, provided the
	// intervening block is not a full conductor.
	var best uint8
	for _, vy := range []Direction{DirPosY, DirNegY} {
		mid := neighbourPos.Side(vy)
		midInfo := w.idx.blocks.State(WorldGetBlockState(w.idx, mid))
		if midInfo.Conductor {
			continue
		}
		diag := mid
		dx, _, dz := d.Delta()
		diag.X += dx
		diag.Z += dz
		diagInfo := w.idx.blocks.State(WorldGetBlockState(w.idx, diag))
		if diagInfo.IsWire {
			diagBase := wireBaseState(WorldGetBlockState(w.idx, diag), w.idx.blocks)
			p := wirePowerOf(w.idx.blocks, diagBase, WorldGetBlockState(w.idx, diag))
			if p > 0 && p-1 > best {
				best = p - 1
			}
		}
	}
	return best
}

// LinelessPower implements point 2: the power that would arrive at pos
// ignoring other wires on the same line -- i.e. the maximum of all
// non-wire (source) contributions only.
func (w *wireAdapter) LinelessPower(p redstone.Pos) uint8 {
	pos := toWorldPos(w.world, p)
	var best uint8
	for _, d := range [4]Direction{DirNegX, DirPosX, DirNegZ, DirPosZ} {
		neighbourPos := pos.Side(d)
		info := w.idx.blocks.State(WorldGetBlockState(w.idx, neighbourPos))
		if info.PowerOut > best {
			best = info.PowerOut
		}
	}
	return best
}

// ConnectedWires returns horizontally and diagonally connected wire
// positions (wire_out edges), never diagonally through a full conductor.
func (w *wireAdapter) ConnectedWires(p redstone.Pos) []redstone.Pos {
	pos := toWorldPos(w.world, p)
	var out []redstone.Pos
	for _, d := range [4]Direction{DirNegX, DirPosX, DirNegZ, DirPosZ} {
		n := pos.Side(d)
		if w.idx.blocks.State(WorldGetBlockState(w.idx, n)).IsWire {
			out = append(out, toWirePos(n))
			continue
		}
		for _, vy := range []Direction{DirPosY, DirNegY} {
			mid := n.Side(vy)
			if w.idx.blocks.State(WorldGetBlockState(w.idx, mid)).Conductor {
				continue
			}
			dx, _, dz := d.Delta()
			diag := mid
			diag.X += dx
			diag.Z += dz
			if w.idx.blocks.State(WorldGetBlockState(w.idx, diag)).IsWire {
				out = append(out, toWirePos(diag))
			}
		}
	}
	return out
}

// OnWireSourceChanged is called by the behavior dispatch when
// a source neighbouring a wire turns on/off or a wire's own computed power
// changes. goingUp selects PropagateUp vs the two-pass PropagateDown.
func OnWireSourceChanged(idx *Index, tick *TickState, ctx *UpdateContext, pos Pos, goingUp bool) {
	w := &wireAdapter{idx: idx, tick: tick, world: pos.World, ctx: ctx}
	wp := toWirePos(pos)
	if goingUp {
		redstone.PropagateUp(w, wp, redstone.DefaultBudget)
	} else {
		redstone.PropagateDown(w, wp, redstone.DefaultBudget)
	}
}
