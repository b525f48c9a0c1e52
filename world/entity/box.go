package entity

import "github.com/go-gl/mathgl/mgl64"

// Vec3 is the entity-space double-precision position/velocity vector.
type Vec3 = mgl64.Vec3

// Box is an axis-aligned bounding box in world space.
type Box struct {
	Min, Max Vec3
}

// BoxFromCentreBase builds the box an entity of the given width/height
// occupies when its feet are at pos.
func BoxFromCentreBase(pos Vec3, width, height float64) Box {
	half := width / 2
	return Box{
		Min: Vec3{pos[0] - half, pos[1], pos[2] - half},
		Max: Vec3{pos[0] + half, pos[1] + height, pos[2] + half},
	}
}

// Translate returns b shifted by d.
func (b Box) Translate(d Vec3) Box {
	return Box{Min: b.Min.Add(d), Max: b.Max.Add(d)}
}

// Grow returns b expanded outward by amt on every axis.
func (b Box) Grow(amt float64) Box {
	g := Vec3{amt, amt, amt}
	return Box{Min: b.Min.Sub(g), Max: b.Max.Add(g)}
}

// UnionSweep returns the smallest box containing both b and the displacement
// swept volume: b translated by disp, plus b itself.
func (b Box) UnionSweep(disp Vec3) Box {
	out := b
	moved := b.Translate(disp)
	for i := 0; i < 3; i++ {
		if moved.Min[i] < out.Min[i] {
			out.Min[i] = moved.Min[i]
		}
		if moved.Max[i] > out.Max[i] {
			out.Max[i] = moved.Max[i]
		}
	}
	return out
}

// Overlaps reports whether b and o share any volume.
func (b Box) Overlaps(o Box) bool {
	for i := 0; i < 3; i++ {
		if b.Max[i] <= o.Min[i] || b.Min[i] >= o.Max[i] {
			return false
		}
	}
	return true
}
