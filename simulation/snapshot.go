package simulation

import (
	"time"

	"github.com/aukilabs/flocktree/models"
	"github.com/aukilabs/flocktree/spatial"
)

// DebugFrame is an immutable picture of the world published after a step.
type DebugFrame struct {
	Sequence    uint64              `json:"sequence"`
	Time        time.Time           `json:"time"`
	SessionUUID string              `json:"session_uuid"`
	TreeType    TreeType            `json:"tree_type"`
	WorldBounds spatial.Box         `json:"world_bounds"`
	Agents      []models.AgentState `json:"agents"`
	Tree        *spatial.DebugInfo  `json:"tree,omitempty"`
	Stats       WorldStats          `json:"stats"`
}

// Snapshot returns the last published debug frame, nil when visualization is
// disabled or no step ran yet.
func (w *World) Snapshot() *DebugFrame {
	return w.frame.Load()
}

func (w *World) publish(agents []*models.Agent) {
	w.sequence++

	frame := &DebugFrame{
		Sequence:    w.sequence,
		Time:        time.Now(),
		SessionUUID: w.session.SessionUUID,
		TreeType:    w.conf.TreeType,
		WorldBounds: w.bounds,
		Agents:      models.AgentStates(agents),
		Stats:       w.stats,
	}

	if w.tree != nil {
		info := w.tree.DebugInfo()
		frame.Tree = &info
	}

	w.frame.Store(frame)
}

// Summary returns a copy of the frame without the agents and the leaves.
func (f *DebugFrame) Summary() *DebugFrame {
	summary := *f
	summary.Agents = nil

	if f.Tree != nil {
		info := *f.Tree
		info.Leaves = nil
		summary.Tree = &info
	}
	return &summary
}
