package spatial

import (
	"math"

	"github.com/golang/geo/r3"
)

// Box is an axis-aligned region of space.
type Box struct {
	Min r3.Vector `json:"min"`
	Max r3.Vector `json:"max"`
}

// NewBox returns a box spanning the two given corners, whatever their order.
func NewBox(a, b r3.Vector) Box {
	return Box{
		Min: r3.Vector{X: math.Min(a.X, b.X), Y: math.Min(a.Y, b.Y), Z: math.Min(a.Z, b.Z)},
		Max: r3.Vector{X: math.Max(a.X, b.X), Y: math.Max(a.Y, b.Y), Z: math.Max(a.Z, b.Z)},
	}
}

func (b Box) Center() r3.Vector {
	return b.Min.Add(b.Max).Mul(0.5)
}

// Extent returns the half-size of the box on every axis.
func (b Box) Extent() r3.Vector {
	return b.Max.Sub(b.Min).Mul(0.5)
}

func (b Box) Size() r3.Vector {
	return b.Max.Sub(b.Min)
}

// Contains reports whether p is inside the box. Bounds are inclusive on all
// axes.
func (b Box) Contains(p r3.Vector) bool {
	return b.ContainsXY(p) &&
		p.Z >= b.Min.Z &&
		p.Z <= b.Max.Z
}

// ContainsXY is the planar version of Contains, Z is ignored.
func (b Box) ContainsXY(p r3.Vector) bool {
	return p.X >= b.Min.X &&
		p.X <= b.Max.X &&
		p.Y >= b.Min.Y &&
		p.Y <= b.Max.Y
}

// Intersects reports whether the interiors of two boxes overlap. Boxes that
// only share a face do not intersect.
func (b Box) Intersects(other Box) bool {
	return b.Min.X < other.Max.X && b.Max.X > other.Min.X &&
		b.Min.Y < other.Max.Y && b.Max.Y > other.Min.Y &&
		b.Min.Z < other.Max.Z && b.Max.Z > other.Min.Z
}

// IntersectsXY is the planar version of Intersects.
func (b Box) IntersectsXY(other Box) bool {
	return b.Min.X < other.Max.X && b.Max.X > other.Min.X &&
		b.Min.Y < other.Max.Y && b.Max.Y > other.Min.Y
}

// RandomPoint maps three uniform samples in [0, 1) to a point of the box.
func (b Box) RandomPoint(u, v, w float64) r3.Vector {
	s := b.Size()
	return r3.Vector{
		X: b.Min.X + s.X*u,
		Y: b.Min.Y + s.Y*v,
		Z: b.Min.Z + s.Z*w,
	}
}
