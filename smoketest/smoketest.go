package smoketest

import (
	"context"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/aukilabs/flocktree/simulation"
	ftwebsocket "github.com/aukilabs/flocktree/websocket"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

const (
	DefaultTimeout = 5 * time.Second

	ErrTypeNoFrame      = "no_frame"
	ErrTypeInvalidFrame = "invalid_frame"
)

type Options struct {
	// The debug stream endpoint tested when a request does not name one.
	Endpoint string

	// The origin sent during the WebSocket handshake.
	Origin string

	// The time given to receive a frame when a request does not set one.
	Timeout time.Duration

	SendResult func(context.Context, Results) error
}

// Request is the body of a smoke test request. All fields are optional.
type Request struct {
	Endpoint string        `json:"endpoint"`
	Timeout  time.Duration `json:"timeout"`
}

// Results describes the outcome of a smoke test run.
type Results struct {
	Endpoint          string        `json:"endpoint"`
	Success           bool          `json:"success"`
	Error             string        `json:"error,omitempty"`
	Sequence          uint64        `json:"sequence,omitempty"`
	TreeType          string        `json:"tree_type,omitempty"`
	Agents            int           `json:"agents"`
	Leaves            int           `json:"leaves"`
	OverflowingLeaves int           `json:"overflowing_leaves"`
	Latency           time.Duration `json:"latency"`
}

func HandleSmokeTest(ctx context.Context, opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "reading body failed", http.StatusInternalServerError)
			return
		}

		var req Request
		if len(b) != 0 {
			if err := json.Unmarshal(b, &req); err != nil {
				http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
				return
			}
		}

		endpoint := req.Endpoint
		if endpoint == "" {
			endpoint = opts.Endpoint
		}

		timeout := req.Timeout
		if timeout <= 0 {
			timeout = opts.Timeout
		}

		go func() {
			res, err := Run(ctx, endpoint, opts.Origin, timeout)
			if err != nil {
				logs.Warn(err)
			}

			if opts.SendResult == nil {
				return
			}
			if err := opts.SendResult(ctx, res); err != nil {
				logs.WithTag("endpoint", endpoint).
					Warn(errors.New("sending smoke test result failed").Wrap(err))
			}
		}()

		w.WriteHeader(http.StatusOK)
	}
}

// Run connects to a debug stream, waits for a frame and checks that the
// indexed world it describes is consistent.
func Run(ctx context.Context, endpoint, origin string, timeout time.Duration) (Results, error) {
	res := Results{Endpoint: endpoint}

	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if origin == "" {
		origin = "http://localhost"
	}

	frame, latency, err := receiveFrame(ctx, endpoint, origin, timeout)
	res.Latency = latency
	if err != nil {
		res.Error = err.Error()
		return res, err
	}

	res.Sequence = frame.Sequence
	res.TreeType = string(frame.TreeType)
	res.Agents = len(frame.Agents)

	if frame.Tree != nil {
		res.Leaves = frame.Tree.LeafCount
		res.OverflowingLeaves = frame.Tree.OverflowingLeaves
	}

	if err := checkFrame(frame); err != nil {
		res.Error = err.Error()
		return res, err
	}

	res.Success = true
	return res, nil
}

func receiveFrame(ctx context.Context, endpoint, origin string, timeout time.Duration) (*simulation.DebugFrame, time.Duration, error) {
	start := time.Now()

	conf, err := websocket.NewConfig(endpoint, origin)
	if err != nil {
		return nil, 0, errors.New("invalid endpoint").
			WithTag("endpoint", endpoint).
			Wrap(err)
	}
	conf.Dialer = &net.Dialer{Timeout: timeout}

	conn, err := websocket.DialConfig(conf)
	if err != nil {
		return nil, time.Since(start), errors.New("connecting to debug stream failed").
			WithTag("endpoint", endpoint).
			Wrap(err)
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, time.Since(start), errors.New("setting read deadline failed").Wrap(err)
	}

	var data []byte
	if err := websocket.Message.Receive(conn, &data); err != nil {
		return nil, time.Since(start), errors.New("receiving frame failed").
			WithType(ErrTypeNoFrame).
			WithTag("endpoint", endpoint).
			WithTag("timeout", timeout).
			Wrap(err)
	}
	latency := time.Since(start)

	var msg ftwebsocket.Msg
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, latency, errors.New("decoding frame failed").
			WithType(ErrTypeInvalidFrame).
			Wrap(err)
	}

	if msg.Frame == nil {
		return nil, latency, errors.New("message without frame").
			WithType(ErrTypeNoFrame).
			WithTag("msg_type", msg.Type)
	}
	return msg.Frame, latency, nil
}

func checkFrame(frame *simulation.DebugFrame) error {
	for _, a := range frame.Agents {
		if !frame.WorldBounds.Contains(a.Position) {
			return errors.New("agent outside of the world").
				WithType(ErrTypeInvalidFrame).
				WithTag("agent_id", a.ID).
				WithTag("position", a.Position)
		}
	}

	if frame.Tree == nil || frame.Tree.Leaves == nil {
		return nil
	}

	if frame.Tree.LeafCount != len(frame.Tree.Leaves) {
		return errors.New("leaf count mismatch").
			WithType(ErrTypeInvalidFrame).
			WithTag("leaf_count", frame.Tree.LeafCount).
			WithTag("leaves", len(frame.Tree.Leaves))
	}

	// Agents on a shared face are held by every touching leaf.
	entities := 0
	for _, l := range frame.Tree.Leaves {
		entities += l.EntityCount
	}
	if entities < len(frame.Agents) {
		return errors.New("agents missing from the tree").
			WithType(ErrTypeInvalidFrame).
			WithTag("agents", len(frame.Agents)).
			WithTag("indexed", entities)
	}
	return nil
}
