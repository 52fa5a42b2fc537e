package spatial

import (
	"math"

	"github.com/golang/geo/r3"
)

// DefaultHeightTolerance is the maximum height difference between a planar
// query instigator and the entities it sees.
const DefaultHeightTolerance = 100

// Geometry defines how a tree partitions space: which axes the contains test
// looks at, how a region is split and how query candidates are filtered.
type Geometry interface {
	// Returns the geometry name, used in logs and metric labels.
	Name() string

	// Returns the number of children created when a node splits.
	FanOut() int

	// Reports whether the region contains the point.
	Contains(b Box, p r3.Vector) bool

	// Splits the region at its midpoint. The returned boxes tile b exactly
	// and their count equals FanOut.
	Split(b Box) []Box

	// Reports whether a candidate found in the same leaf as the instigator is
	// kept in the query result.
	Accept(candidate, instigator r3.Vector) bool
}

// Planar partitions the X/Y plane into quadrants. The world is still three
// dimensional, so query candidates are filtered on their height difference.
type Planar struct {
	// The maximum absolute Z difference between a candidate and the query
	// instigator. Zero or less disables the filter.
	HeightTolerance float64
}

func (g Planar) Name() string {
	return "quadtree"
}

func (g Planar) FanOut() int {
	return 4
}

func (g Planar) Contains(b Box, p r3.Vector) bool {
	return b.ContainsXY(p)
}

// Split returns the quadrants in bottom-left, bottom-right, top-right,
// top-left order. Every quadrant keeps the Z span of b.
func (g Planar) Split(b Box) []Box {
	min := b.Min
	max := b.Max
	c := b.Center()

	return []Box{
		{Min: r3.Vector{X: min.X, Y: min.Y, Z: min.Z}, Max: r3.Vector{X: c.X, Y: c.Y, Z: max.Z}},
		{Min: r3.Vector{X: c.X, Y: min.Y, Z: min.Z}, Max: r3.Vector{X: max.X, Y: c.Y, Z: max.Z}},
		{Min: r3.Vector{X: c.X, Y: c.Y, Z: min.Z}, Max: r3.Vector{X: max.X, Y: max.Y, Z: max.Z}},
		{Min: r3.Vector{X: min.X, Y: c.Y, Z: min.Z}, Max: r3.Vector{X: c.X, Y: max.Y, Z: max.Z}},
	}
}

func (g Planar) Accept(candidate, instigator r3.Vector) bool {
	if g.HeightTolerance <= 0 {
		return true
	}
	return math.Abs(candidate.Z-instigator.Z) <= g.HeightTolerance
}

// Volumetric partitions space into octants.
type Volumetric struct{}

func (g Volumetric) Name() string {
	return "octree"
}

func (g Volumetric) FanOut() int {
	return 8
}

func (g Volumetric) Contains(b Box, p r3.Vector) bool {
	return b.Contains(p)
}

// Split returns the octants starting with the one at the min corner and
// ending with the one at the max corner minus X.
func (g Volumetric) Split(b Box) []Box {
	min := b.Min
	max := b.Max
	c := b.Center()

	return []Box{
		{Min: min, Max: c},
		{Min: r3.Vector{X: c.X, Y: min.Y, Z: min.Z}, Max: r3.Vector{X: max.X, Y: c.Y, Z: c.Z}},
		{Min: r3.Vector{X: c.X, Y: min.Y, Z: c.Z}, Max: r3.Vector{X: max.X, Y: c.Y, Z: max.Z}},
		{Min: r3.Vector{X: min.X, Y: min.Y, Z: c.Z}, Max: r3.Vector{X: c.X, Y: c.Y, Z: max.Z}},
		{Min: r3.Vector{X: min.X, Y: c.Y, Z: min.Z}, Max: r3.Vector{X: c.X, Y: max.Y, Z: c.Z}},
		{Min: r3.Vector{X: c.X, Y: c.Y, Z: min.Z}, Max: r3.Vector{X: max.X, Y: max.Y, Z: c.Z}},
		{Min: c, Max: max},
		{Min: r3.Vector{X: min.X, Y: c.Y, Z: c.Z}, Max: r3.Vector{X: c.X, Y: max.Y, Z: max.Z}},
	}
}

func (g Volumetric) Accept(candidate, instigator r3.Vector) bool {
	return true
}
