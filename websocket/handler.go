package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/aukilabs/flocktree/simulation"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"golang.org/x/net/websocket"
)

const (
	sendChanSize    = 8
	receiveChanSize = 8
)

const (
	MsgTypeFrame   = "frame"
	MsgTypeSummary = "summary"
)

// Msg is a message sent to a debug stream client.
type Msg struct {
	Type  string                 `json:"type"`
	Frame *simulation.DebugFrame `json:"frame,omitempty"`
}

// ClientMsg is a message sent by a debug stream client to configure its
// stream.
type ClientMsg struct {
	// Streams frames without agents and leaves.
	Summary bool `json:"summary"`
}

// Sender sends a message and returns the number of bytes written.
type Sender func(Msg) (int, error)

// Receiver blocks until a client message is received and returns the number
// of bytes read.
type Receiver func() (ClientMsg, int, error)

// Handler represents a debug stream handler.
type Handler interface {
	// Handles a client connection.
	HandleConnect(conn *websocket.Conn)

	// Handles a client's disconnection.
	HandleDisconnect(error)

	// Handles a message sent by the client.
	HandleClientMsg(ctx context.Context, msg ClientMsg) error

	// Returns the next message to send, false when nothing new happened
	// since the last call.
	NextMsg() (Msg, bool)

	// Creates a message receiver used to receive incoming messages.
	Receiver() Receiver

	// Creates a message sender used to send the stream messages.
	Sender() Sender

	// The interval between each check for a new message.
	PollInterval() time.Duration

	// Closes the handler and releases its allocated resources.
	Close()

	// Get ClientID
	GetClientID() string
}

// Handle streams the handler messages to the connection until the client
// disconnects or ctx is canceled.
func Handle(ctx context.Context, conn *websocket.Conn, h Handler) {
	handler := handler{
		Conn:    conn,
		Handler: h,
	}

	handler.Handle(ctx)
}

type handler struct {
	// The WebSocket connection.
	Conn *websocket.Conn

	// The debug stream handler.
	Handler Handler

	sendChan       chan Msg
	sender         Sender
	receiveChan    chan ClientMsg
	receiver       Receiver
	disconnectChan chan error
}

func (h *handler) Handle(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	h.Handler.HandleConnect(h.Conn)

	h.disconnectChan = make(chan error, 8)
	defer func() {
		for len(h.disconnectChan) != 0 {
			<-h.disconnectChan
		}
	}()

	var wg sync.WaitGroup
	defer wg.Wait()

	h.sendChan = make(chan Msg, sendChanSize)
	h.sender = h.Handler.Sender()

	wg.Add(1)
	go func() {
		defer wg.Done()
		h.startSending(ctx)
	}()

	h.receiveChan = make(chan ClientMsg, receiveChanSize)
	h.receiver = h.Handler.Receiver()

	wg.Add(1)
	go func() {
		defer wg.Done()
		h.startReceiving(ctx)
	}()

	pollTicker := time.NewTicker(h.Handler.PollInterval())
	defer pollTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.handleDisconnect(ctx.Err())
			return

		case <-pollTicker.C:
			if msg, ok := h.Handler.NextMsg(); ok {
				h.send(msg)
			}

		case msg := <-h.receiveChan:
			if err := h.Handler.HandleClientMsg(ctx, msg); err != nil {
				h.disconnect(errors.New("handling client message failed").Wrap(err))
			}

		case err := <-h.disconnectChan:
			h.handleDisconnect(err)
			// cancel context so go routines can cleanly exit
			cancel()
			return
		}
	}
}

// send queues the message. Messages are dropped while the client is slower
// than the stream.
func (h *handler) send(msg Msg) {
	select {
	case h.sendChan <- msg:

	default:
		instrumentDroppedMsg(msg.Type)
		logs.WithTag(clientIDTag, h.Handler.GetClientID()).
			WithTag("msg_type", msg.Type).
			Debug("message dropped")
	}
}

func (h *handler) startSending(ctx context.Context) {
	defer func() {
		for len(h.sendChan) != 0 {
			<-h.sendChan
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case msg := <-h.sendChan:
			if _, err := h.sender(msg); err != nil {
				h.disconnect(errors.New("sending message failed").Wrap(err))
				return
			}
		}
	}
}

func (h *handler) startReceiving(ctx context.Context) {
	for {
		msg, _, err := h.receiver()
		if err != nil {
			if ctx.Err() == nil {
				h.disconnect(errors.New("receiving message failed").Wrap(err))
			}
			return
		}

		select {
		case <-ctx.Done():
			return

		case h.receiveChan <- msg:
		}
	}
}

func (h *handler) disconnect(err error) {
	select {
	case h.disconnectChan <- err:

	default:
	}
}

func (h *handler) handleDisconnect(err error) {
	h.Conn.Close()
	h.Handler.HandleDisconnect(err)
}
