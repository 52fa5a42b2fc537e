package websocket

import (
	"context"
	"time"

	"github.com/aukilabs/flocktree/simulation"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/google/uuid"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

const (
	// The header a client can set to identify itself in logs.
	HeaderClientID = "X-Client-Id"

	DefaultPollInterval = 100 * time.Millisecond

	ErrTypeMsgEncode = "msg_encode"
	ErrTypeMsgDecode = "msg_decode"
)

// FrameSource provides the last published debug frame.
type FrameSource interface {
	Snapshot() *simulation.DebugFrame
}

// StreamHandler streams the debug frames of a world to a single client. A new
// handler is created for each connection.
type StreamHandler struct {
	// The source of the streamed frames.
	Source FrameSource

	// The interval between each check for a new frame.
	Interval time.Duration

	conn         *websocket.Conn
	clientID     string
	summary      bool
	lastSequence uint64
}

func (h *StreamHandler) HandleConnect(conn *websocket.Conn) {
	h.conn = conn

	if req := conn.Request(); req != nil {
		h.clientID = req.Header.Get(HeaderClientID)
	}
	if h.clientID == "" {
		h.clientID = uuid.NewString()
	}
}

func (h *StreamHandler) HandleDisconnect(err error) {
}

func (h *StreamHandler) HandleClientMsg(ctx context.Context, msg ClientMsg) error {
	h.summary = msg.Summary
	return nil
}

func (h *StreamHandler) NextMsg() (Msg, bool) {
	frame := h.Source.Snapshot()
	if frame == nil || frame.Sequence == h.lastSequence {
		return Msg{}, false
	}
	h.lastSequence = frame.Sequence

	if h.summary {
		return Msg{Type: MsgTypeSummary, Frame: frame.Summary()}, true
	}
	return Msg{Type: MsgTypeFrame, Frame: frame}, true
}

func (h *StreamHandler) Receiver() Receiver {
	return func() (ClientMsg, int, error) {
		var data []byte
		if err := websocket.Message.Receive(h.conn, &data); err != nil {
			return ClientMsg{}, 0, err
		}

		var msg ClientMsg
		if err := json.Unmarshal(data, &msg); err != nil {
			return ClientMsg{}, len(data), errors.New("decoding client message failed").
				WithType(ErrTypeMsgDecode).
				Wrap(err)
		}
		return msg, len(data), nil
	}
}

func (h *StreamHandler) Sender() Sender {
	return func(msg Msg) (int, error) {
		b, err := json.Marshal(msg)
		if err != nil {
			return 0, errors.New("encoding message failed").
				WithType(ErrTypeMsgEncode).
				WithTag("msg_type", msg.Type).
				Wrap(err)
		}

		if err := websocket.Message.Send(h.conn, string(b)); err != nil {
			return 0, err
		}
		return len(b), nil
	}
}

func (h *StreamHandler) PollInterval() time.Duration {
	if h.Interval <= 0 {
		return DefaultPollInterval
	}
	return h.Interval
}

func (h *StreamHandler) Close() {
}

func (h *StreamHandler) GetClientID() string {
	return h.clientID
}
