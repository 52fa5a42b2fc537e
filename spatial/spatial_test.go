package spatial

import (
	"time"

	"github.com/golang/geo/r3"
)

type testEntity struct {
	name       string
	pos        r3.Vector
	responders map[*Tree]*Node
}

func newTestEntity(name string, x, y, z float64) *testEntity {
	return &testEntity{
		name:       name,
		pos:        r3.Vector{X: x, Y: y, Z: z},
		responders: make(map[*Tree]*Node),
	}
}

func (e *testEntity) Position() r3.Vector {
	return e.pos
}

func (e *testEntity) SetQueryResponder(t *Tree, leaf *Node) {
	e.responders[t] = leaf
}

func (e *testEntity) moveTo(x, y, z float64) {
	e.pos = r3.Vector{X: x, Y: y, Z: z}
}

// plainEntity does not record query responders.
type plainEntity struct {
	pos r3.Vector
}

func (e *plainEntity) Position() r3.Vector {
	return e.pos
}

func cube(size float64) Box {
	return Box{Max: r3.Vector{X: size, Y: size, Z: size}}
}

func volume(b Box) float64 {
	s := b.Size()
	return s.X * s.Y * s.Z
}

func area(b Box) float64 {
	s := b.Size()
	return s.X * s.Y
}

type recordingMetrics struct {
	inserts      int
	queries      int
	removes      int
	merges       int
	evictions    int
	subdivisions []int
}

func (m *recordingMetrics) ObserveInsert(time.Duration) {
	m.inserts++
}

func (m *recordingMetrics) ObserveQuery(time.Duration) {
	m.queries++
}

func (m *recordingMetrics) ObserveRemove(merged bool, evicted int) {
	m.removes++
	if merged {
		m.merges++
	}
	m.evictions += evicted
}

func (m *recordingMetrics) ObserveSubdivide(depth int) {
	m.subdivisions = append(m.subdivisions, depth)
}
