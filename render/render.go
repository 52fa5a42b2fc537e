// Package render draws the debug frames of a world in a terminal. Only the
// X/Y plane is drawn, so octree leaves stacked along Z overlap.
package render

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/aukilabs/flocktree/simulation"
	"github.com/aukilabs/flocktree/spatial"
	"github.com/gdamore/tcell/v2"
	"github.com/golang/geo/r3"
)

const (
	DefaultRefreshInterval = time.Second / 30

	agentRune = '*'
)

// FrameSource provides the last published debug frame.
type FrameSource interface {
	Snapshot() *simulation.DebugFrame
}

// Viewer draws debug frames on a terminal screen.
type Viewer struct {
	screen          tcell.Screen
	source          FrameSource
	refreshInterval time.Duration
	lastSequence    uint64
}

// NewViewer creates a viewer drawing on an initialized screen.
func NewViewer(screen tcell.Screen, source FrameSource, refreshInterval time.Duration) *Viewer {
	if refreshInterval <= 0 {
		refreshInterval = DefaultRefreshInterval
	}

	return &Viewer{
		screen:          screen,
		source:          source,
		refreshInterval: refreshInterval,
	}
}

// Run redraws the screen every time a new frame is published. It returns
// when the context is canceled or when q or Esc is pressed.
func (v *Viewer) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan tcell.Event, 16)
	go func() {
		for {
			ev := v.screen.PollEvent()
			if ev == nil {
				return
			}

			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	ticker := time.NewTicker(v.refreshInterval)
	defer ticker.Stop()

	v.Draw(v.source.Snapshot())

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev := <-events:
			switch ev := ev.(type) {
			case *tcell.EventKey:
				if ev.Key() == tcell.KeyEscape || (ev.Key() == tcell.KeyRune && ev.Rune() == 'q') {
					return nil
				}

			case *tcell.EventResize:
				v.screen.Sync()
				v.Draw(v.source.Snapshot())
			}

		case <-ticker.C:
			frame := v.source.Snapshot()
			if frame != nil && frame.Sequence != v.lastSequence {
				v.Draw(frame)
			}
		}
	}
}

// Draw renders the frame: the status line on the first row, then the leaf
// regions and the agents projected on the remaining rows.
func (v *Viewer) Draw(frame *simulation.DebugFrame) {
	v.screen.Clear()
	width, height := v.screen.Size()

	if frame == nil {
		v.drawText(0, 0, "waiting for debug frames...", tcell.StyleDefault)
		v.screen.Show()
		return
	}
	v.lastSequence = frame.Sequence

	p := projection{
		bounds: frame.WorldBounds,
		width:  width,
		height: height - 1,
		top:    1,
	}

	if frame.Tree != nil {
		for _, leaf := range frame.Tree.Leaves {
			v.drawRegion(p, leaf.Bounds, colorStyle(leaf.Color))
		}
	}

	agentStyle := tcell.StyleDefault.Foreground(tcell.ColorWhite).Bold(true)
	for _, a := range frame.Agents {
		if x, y, ok := p.project(a.Position); ok {
			v.screen.SetContent(x, y, agentRune, nil, agentStyle)
		}
	}

	v.drawText(0, 0, statusLine(frame), tcell.StyleDefault.Reverse(true))
	v.screen.Show()
}

func (v *Viewer) drawRegion(p projection, b spatial.Box, style tcell.Style) {
	x0, y1, _ := p.project(b.Min)
	x1, y0, _ := p.project(b.Max)
	x0, x1 = clamp(x0, 0, p.width-1), clamp(x1, 0, p.width-1)
	y0, y1 = clamp(y0, p.top, p.top+p.height-1), clamp(y1, p.top, p.top+p.height-1)

	for x := x0; x <= x1; x++ {
		v.screen.SetContent(x, y0, tcell.RuneHLine, nil, style)
		v.screen.SetContent(x, y1, tcell.RuneHLine, nil, style)
	}
	for y := y0; y <= y1; y++ {
		v.screen.SetContent(x0, y, tcell.RuneVLine, nil, style)
		v.screen.SetContent(x1, y, tcell.RuneVLine, nil, style)
	}

	v.screen.SetContent(x0, y0, tcell.RuneULCorner, nil, style)
	v.screen.SetContent(x1, y0, tcell.RuneURCorner, nil, style)
	v.screen.SetContent(x0, y1, tcell.RuneLLCorner, nil, style)
	v.screen.SetContent(x1, y1, tcell.RuneLRCorner, nil, style)
}

func (v *Viewer) drawText(x, y int, text string, style tcell.Style) {
	width, _ := v.screen.Size()
	for _, r := range text {
		if x >= width {
			return
		}
		v.screen.SetContent(x, y, r, nil, style)
		x++
	}
}

func statusLine(frame *simulation.DebugFrame) string {
	s := fmt.Sprintf(" %s | agents: %d | frame: %d", frame.TreeType, len(frame.Agents), frame.Sequence)
	if frame.Tree != nil {
		s += fmt.Sprintf(" | leaves: %d | depth: %d", frame.Tree.LeafCount, frame.Tree.DeepestLeaf)
	}
	return s + " | q: quit "
}

func colorStyle(c spatial.Color) tcell.Style {
	return tcell.StyleDefault.Foreground(tcell.NewRGBColor(int32(c.R), int32(c.G), int32(c.B)))
}

// projection maps the world X/Y plane to screen cells, Y growing upward.
type projection struct {
	bounds spatial.Box
	width  int
	height int
	top    int
}

func (p projection) project(v r3.Vector) (x, y int, ok bool) {
	size := p.bounds.Size()
	if size.X <= 0 || size.Y <= 0 || p.width <= 0 || p.height <= 0 {
		return 0, 0, false
	}

	u := (v.X - p.bounds.Min.X) / size.X
	w := (p.bounds.Max.Y - v.Y) / size.Y

	x = int(math.Round(u * float64(p.width-1)))
	y = p.top + int(math.Round(w*float64(p.height-1)))
	ok = u >= 0 && u <= 1 && w >= 0 && w <= 1
	return x, y, ok
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
