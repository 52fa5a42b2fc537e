package simulation

import (
	"github.com/aukilabs/flocktree/models"
	"github.com/aukilabs/flocktree/spatial"
	"github.com/golang/geo/r3"
)

const (
	DefaultSeparationRange = 300

	// The weight of the flocking vector against the agent heading.
	flockWeight = 5
)

// Heading is implemented by entities exposing the direction they move toward.
type Heading interface {
	Heading() r3.Vector
}

// Flock returns the flocking vector of an agent at position given its
// neighbors. Neighbors that do not implement Heading are ignored by the
// alignment rule.
func Flock(steering models.Steering, position r3.Vector, speed, separationRange float64, neighbors []spatial.Entity) r3.Vector {
	var flock r3.Vector
	if len(neighbors) == 0 {
		return flock
	}

	switch steering {
	case models.SteeringSeparation:
		for _, n := range neighbors {
			toNeighbor := n.Position().Sub(position)
			distance := toNeighbor.Norm()
			if distance == 0 || distance >= separationRange {
				continue
			}
			flock = flock.Sub(toNeighbor.Mul(1 / distance))
		}

	case models.SteeringAlignment:
		for _, n := range neighbors {
			if h, ok := n.(Heading); ok {
				flock = flock.Add(h.Heading().Mul(speed))
			}
		}

	case models.SteeringCohesion:
		var center r3.Vector
		for _, n := range neighbors {
			center = center.Add(n.Position())
		}
		center = center.Mul(1 / float64(len(neighbors)))
		flock = center.Sub(position)
	}

	return flock
}

// Steer blends the agent heading with its flocking vector and returns the unit
// direction to move along. It returns the zero vector when both cancel out.
func Steer(heading, flock r3.Vector) r3.Vector {
	return heading.Add(flock.Mul(flockWeight)).Normalize()
}
