package models

import (
	"sync"
	"testing"
	"time"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/require"
)

func TestSessionNewAgentID(t *testing.T) {
	session := NewSession(42, time.Second)
	defer session.Close()

	require.NotZero(t, session.NewAgentID())
	require.NotEmpty(t, session.SessionUUID)
	require.Equal(t, time.Second, session.FrameDuration())
}

func TestSessionAddAgent(t *testing.T) {
	session := NewSession(42, time.Second)
	defer session.Close()

	agent := NewAgent(777, r3.Vector{}, r3.Vector{X: 1}, 1, SteeringCohesion)
	session.AddAgent(agent)
	session.AddAgent(agent)
	require.Len(t, session.agents, 1)
	require.Equal(t, 1, session.AgentCount())
	require.Same(t, agent, session.agents[777])
}

func TestSessionRemoveAgent(t *testing.T) {
	session := NewSession(42, time.Second)
	defer session.Close()

	agent := NewAgent(session.NewAgentID(), r3.Vector{}, r3.Vector{X: 1}, 1, SteeringCohesion)
	session.AddAgent(agent)
	session.RemoveAgent(agent)
	require.Empty(t, session.agents)
	require.Zero(t, session.AgentCount())
	require.Equal(t, agent.ID, session.NewAgentID())
}

func TestSessionAgents(t *testing.T) {
	session := NewSession(42, time.Second)
	defer session.Close()

	for i := 10; i >= 1; i-- {
		session.AddAgent(NewAgent(uint32(i), r3.Vector{}, r3.Vector{}, 1, SteeringAlignment))
	}

	agents := session.Agents()
	require.Len(t, agents, 10)
	for i, a := range agents {
		require.Equal(t, uint32(i+1), a.ID)
	}
}

func TestSessionDispatchFrames(t *testing.T) {
	session := NewSession(42, time.Millisecond)

	var wg sync.WaitGroup
	wg.Add(1)

	var once sync.Once
	cancel := session.HandleFrame(func(dt time.Duration) {
		require.Positive(t, dt)
		once.Do(wg.Done)
	})
	defer cancel()

	go session.StartDispatchFrames()
	wg.Wait()

	session.Close()
	session.Close()
	require.NotZero(t, session.FrameCount())
}

func TestSessionHandleFrameCancel(t *testing.T) {
	session := NewSession(42, time.Hour)
	defer session.Close()

	var calls int
	cancel := session.HandleFrame(func(time.Duration) {
		calls++
	})

	session.dispatchFrame(time.Millisecond)
	require.Equal(t, 1, calls)

	cancel()
	session.dispatchFrame(time.Millisecond)
	require.Equal(t, 1, calls)
	require.Empty(t, session.frameHandlers)
	require.Equal(t, uint64(2), session.FrameCount())
}
