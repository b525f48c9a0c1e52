// Package redstone implements the redstone-wire power propagation
// algorithm as a small, world-agnostic BFS over a caller-supplied
// WireGraph. It is decoupled from the world package's Pos/Chunk types so
// the power propagation math can be tested in isolation from chunk loading.
package redstone

// Pos is a generic integer position, independent of world.Pos so this
// package has no import-cycle dependency on the world package.
type Pos struct{ X, Y, Z int32 }

// SideState is the visual connection state of one horizontal side of a
// wire: purely cosmetic, computed alongside power.
type SideState uint8

const (
	SideNone SideState = iota
	SideSide
	SideUp
)

// Environment is the transient per-evaluation snapshot of a wire's
// surroundings: the visual side state of each of the 4 horizontal sides and
// the computed incoming power. Per-candidate wire presence and power flow
// are not kept.
type Environment struct {
	Sides        [4]SideState
	IncomingPower uint8 // 0-15, computed fresh each evaluation (no caching)
}
