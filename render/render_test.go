package render

import (
	"context"
	"testing"
	"time"

	"github.com/aukilabs/flocktree/models"
	"github.com/aukilabs/flocktree/simulation"
	"github.com/aukilabs/flocktree/spatial"
	"github.com/gdamore/tcell/v2"
	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/require"
)

type frameSource struct {
	frame *simulation.DebugFrame
}

func (s frameSource) Snapshot() *simulation.DebugFrame {
	return s.frame
}

func newTestScreen(t *testing.T) tcell.SimulationScreen {
	screen := tcell.NewSimulationScreen("UTF-8")
	require.NoError(t, screen.Init())
	screen.SetSize(41, 21)
	t.Cleanup(screen.Fini)
	return screen
}

func testFrame() *simulation.DebugFrame {
	world := spatial.NewBox(r3.Vector{X: -50, Y: -50}, r3.Vector{X: 50, Y: 50, Z: 10})

	return &simulation.DebugFrame{
		Sequence:    7,
		TreeType:    simulation.TreeTypeQuadtree,
		WorldBounds: world,
		Agents: []models.AgentState{
			{ID: 1, Position: r3.Vector{}},
			{ID: 2, Position: r3.Vector{X: 500}},
		},
		Tree: &spatial.DebugInfo{
			LeafCount: 1,
			Leaves: []spatial.LeafInfo{
				{Bounds: world, Color: spatial.DepthToColor(0, 4)},
			},
		},
	}
}

func runeAt(screen tcell.SimulationScreen, x, y int) rune {
	r, _, _, _ := screen.GetContent(x, y)
	return r
}

func TestViewerDraw(t *testing.T) {
	screen := newTestScreen(t)
	v := NewViewer(screen, frameSource{}, 0)
	require.Equal(t, DefaultRefreshInterval, v.refreshInterval)

	v.Draw(testFrame())
	require.Equal(t, uint64(7), v.lastSequence)

	require.Equal(t, 'q', runeAt(screen, 1, 0))
	require.Equal(t, tcell.RuneULCorner, runeAt(screen, 0, 1))
	require.Equal(t, tcell.RuneURCorner, runeAt(screen, 40, 1))
	require.Equal(t, tcell.RuneLLCorner, runeAt(screen, 0, 20))
	require.Equal(t, tcell.RuneLRCorner, runeAt(screen, 40, 20))
	require.Equal(t, tcell.RuneHLine, runeAt(screen, 20, 1))
	require.Equal(t, tcell.RuneVLine, runeAt(screen, 0, 11))
	require.Equal(t, agentRune, runeAt(screen, 20, 11))

	_, _, style, _ := screen.GetContent(0, 1)
	fg, _, _ := style.Decompose()
	require.Equal(t, tcell.NewRGBColor(0, 255, 0), fg)
}

func TestViewerDrawWithoutFrame(t *testing.T) {
	screen := newTestScreen(t)
	v := NewViewer(screen, frameSource{}, time.Millisecond)

	v.Draw(nil)
	require.Equal(t, 'w', runeAt(screen, 0, 0))
	require.Zero(t, v.lastSequence)
}

func TestViewerRun(t *testing.T) {
	t.Run("quits on q", func(t *testing.T) {
		screen := newTestScreen(t)
		v := NewViewer(screen, frameSource{frame: testFrame()}, time.Millisecond)

		done := make(chan error, 1)
		go func() {
			done <- v.Run(context.Background())
		}()

		screen.InjectKey(tcell.KeyRune, 'q', tcell.ModNone)

		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("viewer did not quit")
		}
		require.Equal(t, uint64(7), v.lastSequence)
	})

	t.Run("stops when the context is canceled", func(t *testing.T) {
		screen := newTestScreen(t)
		v := NewViewer(screen, frameSource{}, time.Millisecond)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		require.NoError(t, v.Run(ctx))
	})
}

func TestProjection(t *testing.T) {
	p := projection{
		bounds: spatial.NewBox(r3.Vector{}, r3.Vector{X: 10, Y: 10}),
		width:  11,
		height: 11,
	}

	x, y, ok := p.project(r3.Vector{X: 10, Y: 10})
	require.True(t, ok)
	require.Equal(t, 10, x)
	require.Zero(t, y)

	x, y, ok = p.project(r3.Vector{X: 0, Y: 0})
	require.True(t, ok)
	require.Zero(t, x)
	require.Equal(t, 10, y)

	_, _, ok = p.project(r3.Vector{X: -1})
	require.False(t, ok)

	_, _, ok = projection{width: 10, height: 10}.project(r3.Vector{})
	require.False(t, ok)
}
