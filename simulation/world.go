package simulation

import (
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/aukilabs/flocktree/featureflag"
	"github.com/aukilabs/flocktree/models"
	"github.com/aukilabs/flocktree/spatial"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/golang/geo/r3"
)

// TreeType is the spatial index used to find the neighbors of agents.
type TreeType string

const (
	// Every agent sees every other agent.
	TreeTypeNone     TreeType = "none"
	TreeTypeQuadtree TreeType = "quadtree"
	TreeTypeOctree   TreeType = "octree"
)

// SteeringRandom picks one of models.Steerings for each spawned agent.
const SteeringRandom = "random"

const (
	ErrTypeInvalidConfig = "invalid_config"
)

// Config describes a simulated world.
type Config struct {
	TreeType           TreeType
	MaxDepth           int
	MaxEntitiesPerLeaf int
	HeightTolerance    float64

	// The world spans [-WorldSize/2, WorldSize/2] along X and Y and
	// [0, WorldHeight] along Z.
	WorldSize   float64
	WorldHeight float64

	AgentCount      int
	Speed           float64
	SeparationRange float64
	Steering        string
	Seed            int64

	FeatureFlags featureflag.FeatureFlag

	// The sink notified of tree operations. Defaults to no metrics.
	Metrics spatial.Metrics
}

// DefaultConfig returns the configuration of a quadtree world.
func DefaultConfig() Config {
	return Config{
		TreeType:           TreeTypeQuadtree,
		MaxDepth:           spatial.DefaultMaxDepth,
		MaxEntitiesPerLeaf: spatial.DefaultMaxEntitiesPerLeaf,
		HeightTolerance:    spatial.DefaultHeightTolerance,
		WorldSize:          10000,
		WorldHeight:        2000,
		AgentCount:         200,
		Speed:              600,
		SeparationRange:    DefaultSeparationRange,
		Steering:           string(models.SteeringSeparation),
		Seed:               1,
	}
}

// Bounds returns the world bounds described by the config.
func (c Config) Bounds() spatial.Box {
	half := c.WorldSize / 2
	return spatial.NewBox(
		r3.Vector{X: -half, Y: -half, Z: 0},
		r3.Vector{X: half, Y: half, Z: c.WorldHeight},
	)
}

func (c Config) validate() error {
	switch c.TreeType {
	case TreeTypeNone, TreeTypeQuadtree, TreeTypeOctree:
	default:
		return errors.New("unknown tree type").
			WithType(ErrTypeInvalidConfig).
			WithTag("tree_type", c.TreeType)
	}

	if c.Steering != SteeringRandom {
		if _, ok := models.ParseSteering(c.Steering); !ok {
			return errors.New("unknown steering").
				WithType(ErrTypeInvalidConfig).
				WithTag("steering", c.Steering)
		}
	}

	if c.WorldSize <= 0 || c.WorldHeight <= 0 {
		return errors.New("world must have a positive size").
			WithType(ErrTypeInvalidConfig).
			WithTag("world_size", c.WorldSize).
			WithTag("world_height", c.WorldHeight)
	}

	if c.AgentCount < 0 {
		return errors.New("agent count must not be negative").
			WithType(ErrTypeInvalidConfig).
			WithTag("agent_count", c.AgentCount)
	}

	if c.Speed < 0 {
		return errors.New("speed must not be negative").
			WithType(ErrTypeInvalidConfig).
			WithTag("speed", c.Speed)
	}

	if c.MaxDepth < 0 || c.MaxEntitiesPerLeaf < 1 {
		return errors.New("invalid tree capacity").
			WithType(ErrTypeInvalidConfig).
			WithTag("max_depth", c.MaxDepth).
			WithTag("max_entities_per_leaf", c.MaxEntitiesPerLeaf)
	}

	return nil
}

// WorldStats holds the running counters of a world.
type WorldStats struct {
	Steps       uint64 `json:"steps"`
	Respawns    uint64 `json:"respawns"`
	Relocations uint64 `json:"relocations"`
	Rebuilds    uint64 `json:"rebuilds"`
}

// World moves the agents of a session and keeps the spatial tree up to date.
//
// Step must be called from a single goroutine, typically a session frame
// handler. Snapshot can be called from any goroutine.
type World struct {
	conf    Config
	session *models.Session
	bounds  spatial.Box
	tree    *spatial.Tree
	rand    *rand.Rand
	flags   featureflag.FeatureFlag

	stats    WorldStats
	sequence uint64
	frame    atomic.Pointer[DebugFrame]
}

// NewWorld creates a world populated with conf.AgentCount agents registered
// in the given session.
func NewWorld(session *models.Session, conf Config) (*World, error) {
	if session == nil {
		return nil, errors.New("session is nil").WithType(ErrTypeInvalidConfig)
	}

	if err := conf.validate(); err != nil {
		return nil, errors.New("creating world failed").Wrap(err)
	}

	if conf.SeparationRange <= 0 {
		conf.SeparationRange = DefaultSeparationRange
	}

	flags := conf.FeatureFlags
	if flags == nil {
		flags = featureflag.New(nil)
	}

	w := &World{
		conf:    conf,
		session: session,
		bounds:  conf.Bounds(),
		rand:    rand.New(rand.NewSource(conf.Seed)),
		flags:   flags,
	}

	options := []spatial.Option{
		spatial.WithMaxDepth(conf.MaxDepth),
		spatial.WithMaxEntitiesPerLeaf(conf.MaxEntitiesPerLeaf),
		spatial.WithMetrics(conf.Metrics),
	}

	switch conf.TreeType {
	case TreeTypeQuadtree:
		w.tree = spatial.NewQuadtree(conf.HeightTolerance, options...)
	case TreeTypeOctree:
		w.tree = spatial.NewOctree(options...)
	}

	if w.tree != nil {
		w.tree.Build(w.bounds)
	}

	for i := 0; i < conf.AgentCount; i++ {
		w.Spawn()
	}

	logs.WithTag("session_uuid", session.SessionUUID).
		WithTag("tree_type", conf.TreeType).
		WithTag("agent_count", conf.AgentCount).
		WithTag("world_bounds", w.bounds).
		Info("world created")
	return w, nil
}

func (w *World) Tree() *spatial.Tree {
	return w.tree
}

func (w *World) Bounds() spatial.Box {
	return w.bounds
}

func (w *World) TreeType() TreeType {
	return w.conf.TreeType
}

func (w *World) Stats() WorldStats {
	return w.stats
}

// Spawn adds an agent at a random position of the world with a random
// diagonal heading.
func (w *World) Spawn() *models.Agent {
	steering := models.Steering(w.conf.Steering)
	if w.conf.Steering == SteeringRandom {
		steering = models.Steerings[w.rand.Intn(len(models.Steerings))]
	}

	a := models.NewAgent(
		w.session.NewAgentID(),
		w.randomPosition(),
		w.randomHeading(),
		w.conf.Speed,
		steering,
	)
	w.session.AddAgent(a)

	if w.tree != nil {
		w.tree.Insert(a)
	}
	return a
}

// HandleFrame steps the world by the frame duration.
func (w *World) HandleFrame(dt time.Duration) {
	w.Step(dt)
}

// Step moves every agent along its steered heading for dt.
func (w *World) Step(dt time.Duration) {
	agents := w.session.Agents()

	if w.tree != nil && w.flags.IsSet(featureflag.FlagRebuildEveryFrame) {
		w.rebuild(agents)
	}

	seconds := dt.Seconds()
	for _, a := range agents {
		w.stepAgent(a, agents, seconds)
	}
	w.stats.Steps++

	w.flags.IfSet(featureflag.FlagVisualize, func() {
		w.publish(agents)
	})
}

func (w *World) stepAgent(a *models.Agent, agents []*models.Agent, seconds float64) {
	position := a.Position()

	neighbors := w.neighbors(a, position, agents)
	flock := Flock(a.Steering, position, a.Speed, w.conf.SeparationRange, neighbors)
	direction := Steer(a.Heading(), flock)
	a.SetPosition(position.Add(direction.Mul(a.Speed * seconds)))

	// Planar trees ignore height, the world does not.
	if !w.bounds.Contains(a.Position()) {
		a.SetPosition(w.randomPosition())
		a.SetHeading(w.randomHeading())
		w.stats.Respawns++
	}

	if w.tree == nil {
		return
	}

	responder := a.QueryResponder(w.tree)
	if responder != nil &&
		responder.Has(a) &&
		w.tree.Geometry().Contains(responder.Bounds(), a.Position()) {
		return
	}

	if responder != nil {
		w.tree.RemoveFromNode(responder, a)
		a.ClearQueryResponder(w.tree)
	}
	w.tree.Insert(a)
	w.stats.Relocations++
}

func (w *World) neighbors(a *models.Agent, position r3.Vector, agents []*models.Agent) []spatial.Entity {
	if w.tree != nil {
		return w.tree.Query(position, a)
	}

	neighbors := make([]spatial.Entity, 0, len(agents))
	for _, other := range agents {
		if other != a {
			neighbors = append(neighbors, other)
		}
	}
	return neighbors
}

func (w *World) rebuild(agents []*models.Agent) {
	w.tree.ClearTree(true)
	for _, a := range agents {
		a.ClearQueryResponder(w.tree)
		w.tree.Insert(a)
	}
	w.stats.Rebuilds++
}

func (w *World) randomPosition() r3.Vector {
	return w.bounds.RandomPoint(w.rand.Float64(), w.rand.Float64(), w.rand.Float64())
}

func (w *World) randomHeading() r3.Vector {
	return r3.Vector{
		X: w.randomSign(),
		Y: w.randomSign(),
		Z: w.randomSign(),
	}
}

func (w *World) randomSign() float64 {
	if w.rand.Intn(2) == 0 {
		return -1
	}
	return 1
}

// Close logs the tree latencies and the world counters, then removes the
// agents from the tree and the session. Frames must no longer be dispatched.
func (w *World) Close() {
	if w.tree != nil {
		w.tree.LogSummary()
	}

	for _, a := range w.session.Agents() {
		if w.tree != nil {
			w.tree.Remove(a)
			a.ClearQueryResponder(w.tree)
		}
		w.session.RemoveAgent(a)
	}

	logs.WithTag("session_uuid", w.session.SessionUUID).
		WithTag("tree_type", w.conf.TreeType).
		WithTag("steps", w.stats.Steps).
		WithTag("respawns", w.stats.Respawns).
		WithTag("relocations", w.stats.Relocations).
		WithTag("rebuilds", w.stats.Rebuilds).
		Info("world closed")
}
