package entity

import "github.com/blockworld-dev/server/world"

// sweepEpsilon guards against division noise near-zero velocity components
// and against reporting a hit time indistinguishable from the start of the
// step.
const sweepEpsilon = 1e-7

// sweepHit is the result of testing one moving box against one static box
// along a displacement.
type sweepHit struct {
	dt   float64 // time of impact in [0, 1), fraction of disp
	face world.Direction
	hit  bool
}

// sweepBox computes the earliest time-of-impact of moving along disp from
// starting box `a` into the static box `b`, testing all 6 face-crossings
// via the standard swept-AABB slab method: entry/exit times are computed
// per axis and the latest entry time (if it is before the earliest exit
// time) is the time of impact, with the axis of that entry giving the hit
// face.
func sweepBox(a Box, disp Vec3, b Box) sweepHit {
	tFirst, tLast := 0.0, 1.0
	hitAxis := -1
	hitNeg := false

	for axis := 0; axis < 3; axis++ {
		v := disp[axis]
		if v > -sweepEpsilon && v < sweepEpsilon {
			if a.Max[axis] <= b.Min[axis] || a.Min[axis] >= b.Max[axis] {
				return sweepHit{}
			}
			continue
		}

		var entryDist, exitDist float64
		if v > 0 {
			entryDist = b.Min[axis] - a.Max[axis]
			exitDist = b.Max[axis] - a.Min[axis]
		} else {
			entryDist = b.Max[axis] - a.Min[axis]
			exitDist = b.Min[axis] - a.Max[axis]
		}

		entry := entryDist / v
		exit := exitDist / v

		// >= (not strictly >) so a box already flush against a surface
		// still registers a zero-time hit on approach, instead of being
		// treated as "no new collision" and tunnelling straight through.
		if entry >= tFirst {
			tFirst = entry
			hitAxis = axis
			hitNeg = v < 0
		}
		if exit < tLast {
			tLast = exit
		}
		if tFirst > tLast {
			return sweepHit{}
		}
	}

	if hitAxis == -1 || tFirst < 0 || tFirst >= 1 {
		return sweepHit{}
	}

	// The hit face is the side of the static box the entity runs into,
	// which faces back opposite the direction of travel along that axis.
	var travel world.Direction
	switch hitAxis {
	case 0:
		if hitNeg {
			travel = world.DirNegX
		} else {
			travel = world.DirPosX
		}
	case 1:
		if hitNeg {
			travel = world.DirNegY
		} else {
			travel = world.DirPosY
		}
	default:
		if hitNeg {
			travel = world.DirNegZ
		} else {
			travel = world.DirPosZ
		}
	}
	return sweepHit{dt: tFirst, face: travel.Opposite(), hit: true}
}
