package models

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session represents a simulation run that contains agents and the frame
// handlers stepping them.
type Session struct {
	ID          uint32
	SessionUUID string

	agentIDs   SequentialIDGenerator
	agentMutex sync.RWMutex
	agents     map[uint32]*Agent

	startFrameOnce  sync.Once
	closeFrameChan  chan struct{}
	frameDuration   time.Duration
	frameTicker     *time.Ticker
	frameHandlerIDs SequentialIDGenerator
	frameHandlers   map[uint32]func(dt time.Duration)
	frameMutex      sync.RWMutex
	frameCount      uint64

	closeOnce sync.Once
}

func NewSession(id uint32, frameDuration time.Duration) *Session {
	return &Session{
		ID:             id,
		SessionUUID:    uuid.New().String(),
		closeFrameChan: make(chan struct{}, 1),
		frameDuration:  frameDuration,
		frameTicker:    time.NewTicker(frameDuration),
		agents:         make(map[uint32]*Agent),
		frameHandlers:  make(map[uint32]func(time.Duration)),
	}
}

func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.frameTicker.Stop()
		s.closeFrameChan <- struct{}{}
	})
}

func (s *Session) NewAgentID() uint32 {
	return s.agentIDs.New()
}

func (s *Session) AddAgent(a *Agent) {
	s.agentMutex.Lock()
	defer s.agentMutex.Unlock()

	if _, ok := s.agents[a.ID]; !ok {
		instrumentIncreaseAgentGauge(s.SessionUUID)
		instrumentCountAgent(s.SessionUUID)
	}
	s.agents[a.ID] = a
}

func (s *Session) RemoveAgent(a *Agent) {
	s.agentMutex.Lock()
	defer s.agentMutex.Unlock()

	if _, ok := s.agents[a.ID]; !ok {
		return
	}

	delete(s.agents, a.ID)
	s.agentIDs.Reuse(a.ID)
	instrumentDecreaseAgentGauge(s.SessionUUID)
}

// Agents returns the session agents sorted by id.
func (s *Session) Agents() []*Agent {
	s.agentMutex.RLock()
	defer s.agentMutex.RUnlock()

	agents := make([]*Agent, 0, len(s.agents))
	for _, a := range s.agents {
		agents = append(agents, a)
	}

	sort.Slice(agents, func(i, j int) bool {
		return agents[i].ID < agents[j].ID
	})
	return agents
}

func (s *Session) AgentCount() int {
	s.agentMutex.RLock()
	defer s.agentMutex.RUnlock()

	return len(s.agents)
}

// HandleFrame registers a handler called on every frame with the frame
// duration.
func (s *Session) HandleFrame(h func(dt time.Duration)) (cancel func()) {
	s.frameMutex.Lock()
	defer s.frameMutex.Unlock()

	id := s.frameHandlerIDs.New()
	s.frameHandlers[id] = h

	return func() {
		s.frameMutex.Lock()
		defer s.frameMutex.Unlock()

		delete(s.frameHandlers, id)
		s.frameHandlerIDs.Reuse(id)
	}
}

// StartDispatchFrames calls the frame handlers on every tick until the session
// is closed. It blocks.
func (s *Session) StartDispatchFrames() {
	s.startFrameOnce.Do(func() {
		last := time.Now()

		for {
			select {
			case <-s.closeFrameChan:
				return

			case now := <-s.frameTicker.C:
				dt := now.Sub(last)
				last = now
				s.dispatchFrame(dt)
			}
		}
	})
}

func (s *Session) dispatchFrame(dt time.Duration) {
	start := time.Now()

	s.frameMutex.RLock()
	for _, h := range s.frameHandlers {
		h(dt)
	}
	s.frameMutex.RUnlock()

	s.frameMutex.Lock()
	s.frameCount++
	s.frameMutex.Unlock()

	instrumentFrameLatency(s.SessionUUID, time.Since(start))
}

// FrameCount returns the number of dispatched frames.
func (s *Session) FrameCount() uint64 {
	s.frameMutex.RLock()
	defer s.frameMutex.RUnlock()

	return s.frameCount
}

func (s *Session) FrameDuration() time.Duration {
	return s.frameDuration
}
