// Package entity owns the tracked-entity pool and per-tick motion solver:
// a fixed-size array of entity records addressed by generational ID, and a
// swept axis-aligned-bounding-box integrator that advances position against
// the block-state store.
package entity

import "github.com/blockworld-dev/server/content"

// MaxEntities bounds the entity pool. Index 0 is the reserved null entity,
// returned by every failed lookup. The ID format reserves 20 bits for the
// index (room for over a million slots); the pool itself is sized far
// smaller since a fixed [MaxEntities]Entity array is allocated inline.
const MaxEntities = 1 << 14

const (
	indexBits      = 20
	generationBits = 12
	indexMask      = 1<<indexBits - 1
)

// ID packs generation(12) | index(20). Comparing a stored ID against the
// slot's live generation detects use-after-free: a caller holding a stale ID
// for a despawned-and-reused slot resolves to the null entity rather than to
// whatever new occupant took the slot.
type ID uint32

// Null is the reserved ID for slot 0, returned by any failed lookup.
const Null ID = 0

func makeID(generation uint32, index int) ID {
	return ID(generation<<indexBits | uint32(index)&indexMask)
}

func (id ID) index() int { return int(id) & indexMask }

// Kind distinguishes the entity records that carry type-specific motion
// rules (an item with air type or a negative pickup timeout is not moved).
type Kind uint8

const (
	KindNull Kind = iota
	KindItem
	KindGeneric
)

// Entity is one pooled tracked-entity record.
type Entity struct {
	id ID

	Kind Kind
	// TypeState is the content-registry item/entity-type this record
	// represents; for KindItem entities, EntryID of the stacked item.
	TypeState content.EntryID

	World uint32
	Pos   Vec3
	Vel   Vec3
	Yaw   float64
	Pitch float64

	Width, Height float64
	OnGround      bool

	PickupTimeout int32 // ticks remaining before an item entity may be picked up; <=0 after spawn means immediately pickable; a negative value also stops Solver.Tick from moving the item

	// ChangedData is the per-tick delta bitfield consumed by outbound
	// encoders; cleared once per tick by Pool.ResetChangedData.
	ChangedData uint32

	generation uint32
	alive      bool
}

const (
	ChangedPosition uint32 = 1 << iota
	ChangedVelocity
	ChangedRotation
	ChangedOnGround
)

// Pool is the fixed-size entity array plus free list.
type Pool struct {
	slots     [MaxEntities]Entity
	free      []int
	liveCount int
}

// NewPool returns an empty pool with slot 0 permanently reserved as the
// null entity.
func NewPool() *Pool {
	p := &Pool{}
	p.free = make([]int, 0, MaxEntities-1)
	for i := MaxEntities - 1; i >= 1; i-- {
		p.free = append(p.free, i)
	}
	p.slots[0].generation = 1
	return p
}

// Spawn claims a free slot and returns its entity ID. Returns Null if the
// pool is exhausted.
func (p *Pool) Spawn(worldID uint32, kind Kind, typeState content.EntryID, pos Vec3, width, height float64) ID {
	if len(p.free) == 0 {
		return Null
	}
	idx := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]

	slot := &p.slots[idx]
	gen := slot.generation
	*slot = Entity{
		Kind:       kind,
		TypeState:  typeState,
		World:      worldID,
		Pos:        pos,
		Width:      width,
		Height:     height,
		generation: gen,
		alive:      true,
	}
	slot.id = makeID(gen, idx)
	p.liveCount++
	return slot.id
}

// Despawn frees id's slot, bumping its generation so outstanding IDs
// referring to it resolve to the null entity on their next lookup.
func (p *Pool) Despawn(id ID) {
	idx := id.index()
	if idx == 0 || idx >= MaxEntities {
		return
	}
	slot := &p.slots[idx]
	if !slot.alive || slot.id != id {
		return
	}
	slot.alive = false
	slot.generation++
	p.free = append(p.free, idx)
	p.liveCount--
}

// Resolve returns the entity referred to by id, or the null entity (Kind ==
// KindNull, index 0) if id is stale or out of range. Never returns a
// different live entity than the one the caller's ID names.
func (p *Pool) Resolve(id ID) *Entity {
	idx := id.index()
	if idx <= 0 || idx >= MaxEntities {
		return &p.slots[0]
	}
	slot := &p.slots[idx]
	if !slot.alive || slot.id != id {
		return &p.slots[0]
	}
	return slot
}

// LiveCount returns the number of currently spawned entities.
func (p *Pool) LiveCount() int { return p.liveCount }

// ID returns the entity's own packed ID.
func (e *Entity) ID() ID { return e.id }

// ResetChangedData clears the per-tick delta bitfield; the tick runtime
// calls it once per tick, after motion and the view pass.
func (p *Pool) ResetChangedData() {
	for i := 1; i < MaxEntities; i++ {
		s := &p.slots[i]
		if s.alive {
			s.ChangedData = 0
		}
	}
}

// Each calls fn for every live entity. fn must not Spawn or Despawn.
func (p *Pool) Each(fn func(*Entity)) {
	for i := 1; i < MaxEntities; i++ {
		s := &p.slots[i]
		if s.alive {
			fn(s)
		}
	}
}
