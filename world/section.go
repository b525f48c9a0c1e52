package world

import "github.com/blockworld-dev/server/content"

// sectionVolume is the number of cells in one 16x16x16 section, yzx order
// (y outer).
const sectionVolume = SectionHeight * chunkWidth * chunkWidth

// nullSectionMarker is the single shared read-only representation of an
// entirely-air section: no heap storage is owned, and reads resolve to air
// without ever touching a nil pointer. It is never written to; the zero
// value already satisfies "all air" for every method below.
var nullSectionMarker = &Section{isNull: true}

// Section is either the shared null section or an owned 4096-entry buffer of
// block-state indices.
type Section struct {
	isNull     bool
	blocks     []content.EntryID // nil when isNull; len == sectionVolume otherwise
	nonAirCount int
}

// newNullSection returns the shared null-section marker. Callers must treat
// the returned value as read-only.
func newNullSection() *Section { return nullSectionMarker }

// Empty reports whether the section owns no storage (all air).
func (s *Section) Empty() bool { return s == nil || s.isNull }

func sectionIndex(lx, ly, lz int) int {
	// yzx order: y outer.
	return (ly*chunkWidth+lz)*chunkWidth + lx
}

// DecodeSectionIndex inverts sectionIndex, used by packet producers turning
// a section's change-set entries back into in-section coordinates.
func DecodeSectionIndex(idx int32) (lx, ly, lz int) {
	lx = int(idx) % chunkWidth
	lz = (int(idx) / chunkWidth) % chunkWidth
	ly = int(idx) / (chunkWidth * chunkWidth)
	return
}

// at returns the block-state index at the given in-section coordinates.
func (s *Section) at(lx, ly, lz int) content.EntryID {
	if s.Empty() {
		return content.AirState
	}
	return s.blocks[sectionIndex(lx, ly, lz)]
}

// At is the exported form of at, used by collaborators outside this package
// (the region reader's height-map derivation) that only need to read.
func (s *Section) At(lx, ly, lz int) content.EntryID { return s.at(lx, ly, lz) }

// set writes newState at the given in-section coordinates, lazily
// allocating storage if the section was null and newState is non-air, and
// releasing storage if the write empties the section. Returns the previous
// state and the (possibly new) section the caller should store back.
func (s *Section) set(lx, ly, lz int, newState content.EntryID) (old content.EntryID, out *Section) {
	if s.Empty() {
		if newState == content.AirState {
			return content.AirState, s
		}
		fresh := &Section{blocks: make([]content.EntryID, sectionVolume)}
		idx := sectionIndex(lx, ly, lz)
		fresh.blocks[idx] = newState
		fresh.nonAirCount = 1
		return content.AirState, fresh
	}
	idx := sectionIndex(lx, ly, lz)
	old = s.blocks[idx]
	if old == newState {
		return old, s
	}
	s.blocks[idx] = newState
	if old == content.AirState && newState != content.AirState {
		s.nonAirCount++
	} else if old != content.AirState && newState == content.AirState {
		s.nonAirCount--
	}
	if s.nonAirCount == 0 {
		// Invariant: nonAirCount == 0 <=> section buffer is null.
		return old, newNullSection()
	}
	return old, s
}

// NewSection builds an owned section from a fully-populated 4096-entry
// block array in yzx order (y outer), as decoded by the async chunk reader.
// Returns the shared null section if every cell is air.
func NewSection(blocks []content.EntryID) *Section {
	s := &Section{blocks: blocks}
	for _, b := range blocks {
		if b != content.AirState {
			s.nonAirCount++
		}
	}
	if s.nonAirCount == 0 {
		return newNullSection()
	}
	return s
}

// NonAirCount returns the number of non-air cells, used by invariant checks.
func (s *Section) NonAirCount() int {
	if s.Empty() {
		return 0
	}
	return s.nonAirCount
}
