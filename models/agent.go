package models

import (
	"sync"

	"github.com/aukilabs/flocktree/spatial"
	"github.com/golang/geo/r3"
)

// Steering is the flocking rule an agent follows.
type Steering string

const (
	SteeringSeparation Steering = "separation"
	SteeringAlignment  Steering = "alignment"
	SteeringCohesion   Steering = "cohesion"
)

// Steerings lists the steering rules in the order they are picked at random.
var Steerings = []Steering{
	SteeringSeparation,
	SteeringAlignment,
	SteeringCohesion,
}

// ParseSteering returns the steering matching the given name.
func ParseSteering(v string) (Steering, bool) {
	for _, s := range Steerings {
		if string(s) == v {
			return s, true
		}
	}
	return "", false
}

// Agent is a flocking actor moving through the world. It is indexed by the
// spatial trees it is inserted in.
type Agent struct {
	ID       uint32
	Speed    float64
	Steering Steering

	mutex      sync.RWMutex
	position   r3.Vector
	direction  r3.Vector
	responders map[*spatial.Tree]*spatial.Node
}

func NewAgent(id uint32, position, direction r3.Vector, speed float64, steering Steering) *Agent {
	return &Agent{
		ID:         id,
		Speed:      speed,
		Steering:   steering,
		position:   position,
		direction:  direction,
		responders: make(map[*spatial.Tree]*spatial.Node),
	}
}

func (a *Agent) Position() r3.Vector {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	return a.position
}

func (a *Agent) SetPosition(v r3.Vector) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	a.position = v
}

// Heading returns the direction the agent is moving toward.
func (a *Agent) Heading() r3.Vector {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	return a.direction
}

func (a *Agent) SetHeading(v r3.Vector) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	a.direction = v
}

// SetQueryResponder records the leaf of t that last resolved a query
// involving the agent.
func (a *Agent) SetQueryResponder(t *spatial.Tree, leaf *spatial.Node) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	if a.responders == nil {
		a.responders = make(map[*spatial.Tree]*spatial.Node)
	}
	a.responders[t] = leaf
}

// QueryResponder returns the last leaf of t that resolved a query involving
// the agent, nil when there is none.
func (a *Agent) QueryResponder(t *spatial.Tree) *spatial.Node {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	return a.responders[t]
}

// ClearQueryResponder forgets the responder leaf of t.
func (a *Agent) ClearQueryResponder(t *spatial.Tree) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	delete(a.responders, t)
}

// AgentState is a point in time copy of an agent.
type AgentState struct {
	ID        uint32    `json:"id"`
	Position  r3.Vector `json:"position"`
	Direction r3.Vector `json:"direction"`
	Steering  Steering  `json:"steering"`
}

func (a *Agent) State() AgentState {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	return AgentState{
		ID:        a.ID,
		Position:  a.position,
		Direction: a.direction,
		Steering:  a.Steering,
	}
}

func AgentStates(agents []*Agent) []AgentState {
	states := make([]AgentState, len(agents))
	for i, a := range agents {
		states[i] = a.State()
	}
	return states
}
