package world

import "github.com/segmentio/fasthash/fnv1a"

// changeSet is an open-addressed hash-set of 12-bit in-section positions.
// Probe length 4; on probe failure the table doubles and every entry is
// rehashed. Initial capacity 128.
//
// Unlike a hand-rolled tick arena, this implementation lets these
// sets be ordinary heap allocations: TickState.Reset calls reset on each
// set and returns it to a sync.Pool-backed free list, so steady-state ticks
// do not allocate once the pool is warm.
type changeSet struct {
	slots []int32 // -1 == empty
	count int
}

const changeSetProbeLen = 4
const changeSetInitCap = 128

func newChangeSet() *changeSet {
	cs := &changeSet{slots: make([]int32, changeSetInitCap)}
	for i := range cs.slots {
		cs.slots[i] = -1
	}
	return cs
}

func (cs *changeSet) reset() {
	for i := range cs.slots {
		cs.slots[i] = -1
	}
	cs.count = 0
}

// insert adds pos (a 12-bit in-section index) to the set, doubling and
// rehashing on probe exhaustion.
func (cs *changeSet) insert(pos int32) {
	if cs.tryInsert(pos) {
		return
	}
	cs.grow()
	for !cs.tryInsert(pos) {
		cs.grow()
	}
}

func (cs *changeSet) tryInsert(pos int32) bool {
	n := len(cs.slots)
	h := int(fnv1a.HashUint32(uint32(pos))) & (n - 1)
	for i := 0; i < changeSetProbeLen; i++ {
		idx := (h + i) % n
		if cs.slots[idx] == pos {
			return true
		}
		if cs.slots[idx] == -1 {
			cs.slots[idx] = pos
			cs.count++
			return true
		}
	}
	return false
}

func (cs *changeSet) grow() {
	old := cs.slots
	cs.slots = make([]int32, len(old)*2)
	for i := range cs.slots {
		cs.slots[i] = -1
	}
	cs.count = 0
	for _, v := range old {
		if v != -1 {
			// Direct reinsert: guaranteed to find a slot in the doubled table
			// within probe length almost always; on the rare pathological
			// case we recurse, which itself doubles again.
			if !cs.tryInsert(v) {
				cs.grow()
				cs.tryInsert(v)
			}
		}
	}
}

// Positions returns every 12-bit position currently tracked.
func (cs *changeSet) Positions() []int32 {
	out := make([]int32, 0, cs.count)
	for _, v := range cs.slots {
		if v != -1 {
			out = append(out, v)
		}
	}
	return out
}
