// Package view maintains, per connected player, the square ring of chunks
// the client is aware of: which have been sent, which newly need interest,
// and which changed this tick and need a section-update packet. It owns no
// socket; Tick returns the packets the network collaborator should encode
// and send.
package view

import (
	"github.com/blockworld-dev/server/world"
)

// MaxRadius bounds every View's backing bitmap so growing or shrinking the
// cache never requires reallocating or remapping addressed cells -- the
// address of (x, z) relative to the centre is stable across a radius
// change, only the subset of addresses considered "in range" changes.
const MaxRadius = 32

const maxDiam = 2*MaxRadius + 1

type cellFlag uint8

const (
	flagSent cellFlag = 1 << iota
	flagAddedInterest
)

// PacketKind names the outbound packet families this package produces. The
// wire encoding of each lives in the network collaborator; View only
// decides what to send and when.
type PacketKind uint8

const (
	// PacketChunkWithLight carries one full READY chunk's block and light
	// data the first time it is streamed to a client.
	PacketChunkWithLight PacketKind = iota
	// PacketSectionBlocksUpdate carries the changed cells of one section of
	// an already-sent chunk.
	PacketSectionBlocksUpdate
)

// BlockPos is a section-local changed cell, decoded from a chunk's change
// set for packet production.
type BlockPos struct {
	X, Y, Z int
}

// Packet is one outbound unit of work produced by Tick.
type Packet struct {
	Kind    PacketKind
	Chunk   world.ChunkPos
	Section int        // valid only for PacketSectionBlocksUpdate
	Blocks  []BlockPos // valid only for PacketSectionBlocksUpdate
}

// View is one player's chunk cache state machine.
type View struct {
	idx *world.Index

	radius     int32
	nextRadius int32
	centre     world.ChunkPos
	haveCentre bool

	flags [maxDiam * maxDiam]cellFlag

	sendBudget int

	// ownChanges/lastAck implement the echo-suppression half of 4.7: block
	// positions this client itself just placed are not re-sent as a
	// section update until the client has acknowledged the sequence number
	// that carried them, since the client already applied them optimistically.
	ownChanges []ownChange
	lastAck    int64
}

type ownChange struct {
	pos world.Pos
	seq int64
}

// New returns a View with no centre yet; the first Tick call takes its
// playerChunk as the centre and adds interest on the whole starting cache,
// which then streams within the per-tick send budget.
func New(idx *world.Index, radius int, sendBudget int) *View {
	if radius > MaxRadius {
		radius = MaxRadius
	}
	return &View{
		idx:        idx,
		radius:     int32(radius),
		nextRadius: int32(radius),
		sendBudget: sendBudget,
		lastAck:    -1,
	}
}

// SetRadius requests a new view radius, applied gradually by Tick (one
// ring per tick) so a view-distance change never produces an instantaneous
// burst of interest churn.
func (v *View) SetRadius(r int) {
	if r > MaxRadius {
		r = MaxRadius
	}
	if r < 0 {
		r = 0
	}
	v.nextRadius = int32(r)
}

// RecordOwnChange notes that this client's own action produced pos at
// sequence seq, so the next section-update pass should not echo it back
// until Ack(seq) or later is observed.
func (v *View) RecordOwnChange(pos world.Pos, seq int64) {
	v.ownChanges = append(v.ownChanges, ownChange{pos: pos, seq: seq})
}

// Ack records the highest block-change sequence number the client has
// acknowledged, pruning echo-suppression entries at or below it.
func (v *View) Ack(seq int64) {
	if seq > v.lastAck {
		v.lastAck = seq
	}
	kept := v.ownChanges[:0]
	for _, c := range v.ownChanges {
		if c.seq > v.lastAck {
			kept = append(kept, c)
		}
	}
	v.ownChanges = kept
}

func (v *View) addr(x, z int32) int {
	return int(z-v.centre.CZ+MaxRadius)*maxDiam + int(x-v.centre.CX+MaxRadius)
}

func inBounds(off int) bool { return off >= 0 && off < maxDiam }

// Tick advances this player's view by one tick: it shifts the cache if the
// player's chunk moved, streams newly-interested READY chunks outward in
// spiral order within budget, and emits section-update packets for chunks
// already sent that changed this tick.
func (v *View) Tick(tick *world.TickState, playerChunk world.ChunkPos) []Packet {
	var out []Packet

	v.applyRadiusStep()

	if !v.haveCentre || playerChunk != v.centre {
		v.recentre(playerChunk)
	}

	out = v.streamNewChunks(out)
	out = v.emitSectionUpdates(tick, out)
	return out
}

// applyRadiusStep grows or shrinks the active radius by at most one ring
// per tick toward nextRadius, dropping interest on any ring that shrinks
// out of range.
func (v *View) applyRadiusStep() {
	if v.radius == v.nextRadius {
		return
	}
	if v.radius < v.nextRadius {
		v.radius++
		if !v.haveCentre {
			return
		}
		for _, o := range spiralOffsets(int(v.radius)) {
			if maxAbs(o.dx, o.dz) != int32(v.radius) {
				continue // already interested from a previous, smaller ring
			}
			pos := world.ChunkPos{World: v.centre.World, CX: v.centre.CX + o.dx, CZ: v.centre.CZ + o.dz}
			off := int(o.dz+MaxRadius)*maxDiam + int(o.dx+MaxRadius)
			if v.flags[off]&flagAddedInterest != 0 {
				continue
			}
			v.idx.AddChunkInterest(pos, 1)
			v.flags[off] |= flagAddedInterest
		}
		return
	}
	oldRadius := v.radius
	v.radius--
	if !v.haveCentre {
		return
	}
	for _, o := range spiralOffsets(int(oldRadius)) {
		if maxAbs(o.dx, o.dz) <= v.radius {
			continue
		}
		x, z := v.centre.CX+o.dx, v.centre.CZ+o.dz
		v.dropInterest(x, z)
	}
}

func maxAbs(a, b int32) int32 {
	if a < 0 {
		a = -a
	}
	if b < 0 {
		b = -b
	}
	if a > b {
		return a
	}
	return b
}

// recentre shifts AddChunkInterest calls for the ring moving from the old
// centre to the new one: every position in range of exactly one of the two
// centres gets its interest incremented or decremented.
func (v *View) recentre(newCentre world.ChunkPos) {
	oldCentre := v.centre
	hadCentre := v.haveCentre
	radius := v.radius

	if hadCentre {
		for _, o := range spiralOffsets(int(radius)) {
			pos := world.ChunkPos{World: oldCentre.World, CX: oldCentre.CX + o.dx, CZ: oldCentre.CZ + o.dz}
			dx, dz := pos.CX-newCentre.CX, pos.CZ-newCentre.CZ
			if maxAbs(dx, dz) <= radius {
				continue // still in range of the new centre
			}
			v.idx.AddChunkInterest(pos, -1)
		}
	}

	var fresh [maxDiam * maxDiam]cellFlag
	if hadCentre {
		for _, o := range spiralOffsets(int(radius)) {
			x, z := oldCentre.CX+o.dx, oldCentre.CZ+o.dz
			dx, dz := x-newCentre.CX, z-newCentre.CZ
			if maxAbs(dx, dz) > radius {
				continue
			}
			srcOff := int(z-oldCentre.CZ+MaxRadius)*maxDiam + int(x-oldCentre.CX+MaxRadius)
			dstOff := int(dz+MaxRadius)*maxDiam + int(dx+MaxRadius)
			if inBounds(srcOff) && inBounds(dstOff) {
				fresh[dstOff] = v.flags[srcOff]
			}
		}
	}
	v.flags = fresh
	v.centre = newCentre
	v.haveCentre = true

	for _, o := range spiralOffsets(int(radius)) {
		pos := world.ChunkPos{World: newCentre.World, CX: newCentre.CX + o.dx, CZ: newCentre.CZ + o.dz}
		off := int(o.dz+MaxRadius)*maxDiam + int(o.dx+MaxRadius)
		if v.flags[off]&flagAddedInterest != 0 {
			continue
		}
		if hadCentre {
			dx, dz := pos.CX-oldCentre.CX, pos.CZ-oldCentre.CZ
			if maxAbs(dx, dz) <= radius {
				continue // already had interest, just relocated above
			}
		}
		v.idx.AddChunkInterest(pos, 1)
		v.flags[off] |= flagAddedInterest
	}
}

func (v *View) dropInterest(x, z int32) {
	off := v.addr(x, z)
	if !inBounds(off) {
		return
	}
	if v.flags[off]&flagAddedInterest != 0 {
		v.idx.AddChunkInterest(world.ChunkPos{World: v.centre.World, CX: x, CZ: z}, -1)
	}
	v.flags[off] = 0
}

// streamNewChunks walks the spiral order within the active radius and sends
// the first sendBudget chunks that are interested-but-unsent and READY.
func (v *View) streamNewChunks(out []Packet) []Packet {
	if !v.haveCentre {
		return out
	}
	sent := 0
	for _, o := range spiralOffsets(int(v.radius)) {
		if sent >= v.sendBudget {
			break
		}
		x, z := v.centre.CX+o.dx, v.centre.CZ+o.dz
		off := int(o.dz+MaxRadius)*maxDiam + int(o.dx+MaxRadius)
		f := v.flags[off]
		if f&flagAddedInterest == 0 || f&flagSent != 0 {
			continue
		}
		pos := world.ChunkPos{World: v.centre.World, CX: x, CZ: z}
		if _, ok := v.idx.GetChunkIfLoaded(pos); !ok {
			continue
		}
		out = append(out, Packet{Kind: PacketChunkWithLight, Chunk: pos})
		v.flags[off] |= flagSent
		sent++
	}
	return out
}

// emitSectionUpdates intersects this tick's changed-chunk list with chunks
// already sent to this client and emits one packet per changed section,
// decoding the section's change set into block-local coordinates and
// filtering out cells this client's own recent, unacknowledged placements
// already produced (avoiding a flicker back to the server's authoritative
// state before the client's own optimistic update is acknowledged).
func (v *View) emitSectionUpdates(tick *world.TickState, out []Packet) []Packet {
	if !v.haveCentre {
		return out
	}
	for _, c := range tick.ChangedChunks() {
		if c.Pos.World != v.centre.World {
			continue
		}
		dx, dz := c.Pos.CX-v.centre.CX, c.Pos.CZ-v.centre.CZ
		if maxAbs(dx, dz) > v.radius {
			continue
		}
		off := int(dz+MaxRadius)*maxDiam + int(dx+MaxRadius)
		if v.flags[off]&flagSent == 0 {
			continue
		}
		for _, sec := range c.ChangedSections() {
			positions := c.SectionChangePositions(sec)
			if len(positions) == 0 {
				continue
			}
			blocks := make([]BlockPos, 0, len(positions))
			for _, p := range positions {
				lx, ly, lz := world.DecodeSectionIndex(p)
				if v.suppressedByOwnChange(c.Pos, sec, lx, ly, lz) {
					continue
				}
				blocks = append(blocks, BlockPos{X: lx, Y: ly, Z: lz})
			}
			if len(blocks) == 0 {
				continue
			}
			out = append(out, Packet{Kind: PacketSectionBlocksUpdate, Chunk: c.Pos, Section: sec, Blocks: blocks})
		}
	}
	return out
}

func (v *View) suppressedByOwnChange(chunk world.ChunkPos, section, lx, ly, lz int) bool {
	if len(v.ownChanges) == 0 {
		return false
	}
	worldY := int32(section)*world.SectionHeight + int32(ly) + world.MinWorldY
	worldX := chunk.CX*16 + int32(lx)
	worldZ := chunk.CZ*16 + int32(lz)
	for _, c := range v.ownChanges {
		if c.pos.X == worldX && c.pos.Y == worldY && c.pos.Z == worldZ {
			return true
		}
	}
	return false
}
