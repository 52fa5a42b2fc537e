package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aukilabs/flocktree/models"
	"github.com/aukilabs/flocktree/simulation"
	"github.com/aukilabs/flocktree/spatial"
	"github.com/golang/geo/r3"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/require"
)

type frameSource struct {
	frame *simulation.DebugFrame
}

func (s frameSource) Snapshot() *simulation.DebugFrame {
	return s.frame
}

func TestHandleHealthCheck(t *testing.T) {
	w := httptest.NewRecorder()
	HandleHealthCheck(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
}

func TestHandleReadyCheck(t *testing.T) {
	ready := false
	h := HandleReadyCheck(func() bool { return ready })

	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	ready = true
	w = httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	require.Equal(t, http.StatusOK, w.Code)
}

func TestHandleVersion(t *testing.T) {
	w := httptest.NewRecorder()
	HandleVersion("v1.2.3")(w, httptest.NewRequest(http.MethodGet, "/version", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "v1.2.3", w.Body.String())
}

func TestHandleWithCORS(t *testing.T) {
	h := HandleWithCORS(HandleVersion("v1.2.3"))

	t.Run("preflight", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/version", nil))
		require.Equal(t, http.StatusNoContent, w.Code)
		require.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
		require.Empty(t, w.Body.String())
	})

	t.Run("get", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/version", nil))
		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
		require.Equal(t, "v1.2.3", w.Body.String())
	})
}

func TestMetricsPathFormatter(t *testing.T) {
	tests := []struct {
		statusCode int
		path       string
		expected   string
	}{
		{statusCode: http.StatusOK, path: "/debug/tree", expected: "/debug/tree"},
		{statusCode: http.StatusOK, path: "/debug/pprof/heap", expected: "/debug/pprof"},
		{statusCode: http.StatusNotFound, path: "/debug/tree", expected: ""},
		{statusCode: http.StatusMovedPermanently, path: "/health", expected: ""},
		{statusCode: http.StatusBadRequest, path: "/health", expected: ""},
		{statusCode: http.StatusMethodNotAllowed, path: "/health", expected: ""},
	}

	for _, test := range tests {
		t.Run(test.path, func(t *testing.T) {
			require.Equal(t, test.expected, MetricsPathFormatter(test.statusCode, test.path))
		})
	}
}

func TestHandleDebugTree(t *testing.T) {
	frame := &simulation.DebugFrame{
		Sequence:    3,
		TreeType:    simulation.TreeTypeOctree,
		WorldBounds: spatial.NewBox(r3.Vector{}, r3.Vector{X: 10, Y: 10, Z: 10}),
		Agents: []models.AgentState{
			{ID: 1, Position: r3.Vector{X: 1, Y: 2, Z: 3}},
		},
		Tree: &spatial.DebugInfo{
			Name:      "octree",
			LeafCount: 1,
			Leaves:    []spatial.LeafInfo{{EntityCount: 1}},
		},
	}

	t.Run("no frame", func(t *testing.T) {
		w := httptest.NewRecorder()
		HandleDebugTree(frameSource{})(w, httptest.NewRequest(http.MethodGet, "/debug/tree", nil))
		require.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("frame", func(t *testing.T) {
		w := httptest.NewRecorder()
		HandleDebugTree(frameSource{frame: frame})(w, httptest.NewRequest(http.MethodGet, "/debug/tree", nil))
		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, "application/json", w.Header().Get("Content-Type"))

		var res simulation.DebugFrame
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
		require.Equal(t, uint64(3), res.Sequence)
		require.Equal(t, simulation.TreeTypeOctree, res.TreeType)
		require.Len(t, res.Agents, 1)
		require.Equal(t, r3.Vector{X: 1, Y: 2, Z: 3}, res.Agents[0].Position)
		require.Len(t, res.Tree.Leaves, 1)
	})

	t.Run("summary", func(t *testing.T) {
		w := httptest.NewRecorder()
		HandleDebugTree(frameSource{frame: frame})(w, httptest.NewRequest(http.MethodGet, "/debug/tree?summary=true", nil))
		require.Equal(t, http.StatusOK, w.Code)

		var res simulation.DebugFrame
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
		require.Empty(t, res.Agents)
		require.Equal(t, 1, res.Tree.LeafCount)
		require.Empty(t, res.Tree.Leaves)

		require.Len(t, frame.Agents, 1)
		require.Len(t, frame.Tree.Leaves, 1)
	})
}

func TestListenAndServe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- ListenAndServe(ctx, time.Second,
			&http.Server{Addr: "127.0.0.1:0", Handler: http.HandlerFunc(HandleHealthCheck)},
		)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("servers did not stop")
	}
}
