package redstone

import "golang.org/x/exp/slices"

// WireGraph is the interface the world package implements so this package's
// BFS can read/write wire power without depending on world's Pos/Chunk
// types. Every method is expected to be called from the single tick thread.
type WireGraph interface {
	// Power returns the currently stored power level (0-15) at pos.
	Power(pos Pos) uint8
	// SetPower writes the power level at pos. It stores no visual side
	// states; Environment computes those on each call.
	SetPower(pos Pos, level uint8)
	// Environment recomputes the wire environment at pos from scratch --
	// this package never caches it.
	Environment(pos Pos) Environment
	// LinelessPower computes the power that would arrive at pos ignoring
	// other wires on the same line, used to detect
	// independently-powered wires during the power-down pass.
	LinelessPower(pos Pos) uint8
	// ConnectedWires returns the wire_out edges from pos: neighbouring wire
	// positions reachable via horizontal connection or diagonal-through-
	// non-conductor (never diagonal through a full conductor).
	ConnectedWires(pos Pos) []Pos
}

// DefaultBudget is the soft propagation limit protecting the tick budget,
// e.g. 500 wires per propagation step.
const DefaultBudget = 500

// PropagateUp implements "power going up": BFS from start,
// writing the new (higher) power on each wire reachable via wire_out edges
// whose newly computed environment power exceeds its stored power.
func PropagateUp(g WireGraph, start Pos, budget int) {
	if budget <= 0 {
		budget = DefaultBudget
	}
	visited := map[Pos]struct{}{start: {}}
	queue := []Pos{start}
	steps := 0
	for len(queue) > 0 && steps < budget {
		pos := queue[0]
		queue = queue[1:]
		steps++

		env := g.Environment(pos)
		if env.IncomingPower > g.Power(pos) {
			g.SetPower(pos, env.IncomingPower)
		} else {
			g.SetPower(pos, g.Power(pos)) // rewrites the unchanged level; no side state is stored
			continue
		}
		for _, next := range g.ConnectedWires(pos) {
			if _, ok := visited[next]; ok {
				continue
			}
			visited[next] = struct{}{}
			if g.Environment(next).IncomingPower > g.Power(next) {
				queue = append(queue, next)
			}
		}
	}
}

// PropagateDown implements "power going down": a two-pass
// BFS. Pass one walks the line the start wire was part of (wires whose
// current power equals start.power - distance), zeroing them and collecting
// any wire along the way that is independently powered per its lineless
// environment. Pass two re-runs PropagateUp from each collected source.
func PropagateDown(g WireGraph, start Pos, budget int) {
	if budget <= 0 {
		budget = DefaultBudget
	}
	startPower := g.Power(start)

	type frontier struct {
		pos      Pos
		distance uint8
	}
	visited := map[Pos]struct{}{start: {}}
	queue := []frontier{{pos: start, distance: 0}}
	var sources []Pos
	steps := 0

	for len(queue) > 0 && steps < budget {
		f := queue[0]
		queue = queue[1:]
		steps++

		expected := int(startPower) - int(f.distance)
		if expected < 0 {
			expected = 0
		}
		if int(g.Power(f.pos)) != expected {
			// Not part of the same line any more; leave it alone.
			continue
		}
		if lp := g.LinelessPower(f.pos); lp > 0 && !slices.Contains(sources, f.pos) {
			sources = append(sources, f.pos)
		}
		g.SetPower(f.pos, 0)

		for _, next := range g.ConnectedWires(f.pos) {
			if _, ok := visited[next]; ok {
				continue
			}
			visited[next] = struct{}{}
			queue = append(queue, frontier{pos: next, distance: f.distance + 1})
		}
	}

	for _, s := range sources {
		PropagateUp(g, s, budget)
	}
}
