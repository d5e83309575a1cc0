package mcpws

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// wsTransport is the production Transport, built on gorilla/websocket.
type wsTransport struct {
	logger *zap.Logger
}

// NewTransport returns the production WebSocket transport.
func NewTransport(logger *zap.Logger) Transport {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &wsTransport{logger: logger}
}

func (t *wsTransport) Open(ctx context.Context, ep Endpoint) (Session, error) {
	dialer := websocket.Dialer{}

	conn, resp, err := dialer.DialContext(ctx, ep.URL(), nil)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		if errors.Is(err, websocket.ErrBadHandshake) && resp != nil {
			return nil, &HandshakeError{Status: resp.StatusCode}
		}
		return nil, fmt.Errorf("dial %s://%s:%d: %w", ep.Scheme, ep.Host, ep.Port, err)
	}

	s := &wsSession{
		id:     uuid.New().String(),
		conn:   conn,
		logger: t.logger,
		ctrl:   make(chan Frame, 8),
	}

	// Surface control frames as opcode-tagged reads instead of handling
	// them inside the library. Replying to pings is the state machine's
	// job, so the default handlers must not answer anything themselves.
	conn.SetPingHandler(func(appData string) error {
		s.pushControl(Frame{Opcode: OpPing, Payload: []byte(appData)})
		return nil
	})
	conn.SetPongHandler(func(appData string) error {
		s.pushControl(Frame{Opcode: OpPong, Payload: []byte(appData)})
		return nil
	})
	conn.SetCloseHandler(func(code int, text string) error {
		s.pushControl(Frame{Opcode: OpClose, Payload: closePayload(code, text)})
		return nil
	})

	t.logger.Debug("Transport session opened",
		zap.String("session", s.id),
		zap.String("host", ep.Host),
		zap.Int("port", ep.Port),
	)

	return s, nil
}

// wsSession wraps one gorilla connection. Receive is called only by the
// client's control loop, so pending needs no locking; ctrl is the handoff
// point from gorilla's handler callbacks, which run inside ReadMessage on
// the same goroutine but are kept channel-based so the ordering is explicit.
type wsSession struct {
	id     string
	conn   *websocket.Conn
	logger *zap.Logger

	ctrl    chan Frame
	pending []Frame

	closeOnce sync.Once
	closed    atomic.Bool
}

func (s *wsSession) ID() string {
	return s.id
}

func (s *wsSession) Send(f Frame, timeout time.Duration) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}

	deadline := time.Now().Add(timeout)

	switch f.Opcode {
	case OpPing:
		return s.conn.WriteControl(websocket.PingMessage, f.Payload, deadline)
	case OpPong:
		return s.conn.WriteControl(websocket.PongMessage, f.Payload, deadline)
	case OpClose:
		payload := f.Payload
		if len(payload) == 0 {
			payload = websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		}
		return s.conn.WriteControl(websocket.CloseMessage, payload, deadline)
	case OpBinary:
		if err := s.conn.SetWriteDeadline(deadline); err != nil {
			return err
		}
		return s.conn.WriteMessage(websocket.BinaryMessage, f.Payload)
	default:
		if err := s.conn.SetWriteDeadline(deadline); err != nil {
			return err
		}
		return s.conn.WriteMessage(websocket.TextMessage, f.Payload)
	}
}

func (s *wsSession) Receive(timeout time.Duration) (Frame, error) {
	if s.closed.Load() {
		return Frame{}, ErrSessionClosed
	}

	if f, ok := s.popPending(); ok {
		return f, nil
	}

	if err := s.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return Frame{}, err
	}

	mt, data, err := s.conn.ReadMessage()

	// Control frames encountered during the read were pushed by the
	// handlers before ReadMessage returned; queue them first to preserve
	// arrival order.
	s.drainControl()

	if err != nil {
		if f, ok := s.popPending(); ok {
			return f, nil
		}

		var ce *websocket.CloseError
		if errors.As(err, &ce) {
			return Frame{Opcode: OpClose, Payload: closePayload(ce.Code, ce.Text)}, nil
		}

		var ne net.Error
		if errors.Is(err, os.ErrDeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
			return Frame{}, ErrReceiveTimeout
		}

		return Frame{}, fmt.Errorf("read: %w", err)
	}

	f := Frame{Payload: data}
	switch mt {
	case websocket.BinaryMessage:
		f.Opcode = OpBinary
	default:
		f.Opcode = OpText
	}
	s.pending = append(s.pending, f)

	next, _ := s.popPending()
	return next, nil
}

func (s *wsSession) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		if err := s.conn.Close(); err != nil {
			s.logger.Debug("Session close error", zap.String("session", s.id), zap.Error(err))
		}
	})
	return nil
}

func (s *wsSession) pushControl(f Frame) {
	select {
	case s.ctrl <- f:
	default:
		s.logger.Warn("Control frame buffer full, dropping frame",
			zap.String("session", s.id),
			zap.Stringer("opcode", f.Opcode),
		)
	}
}

func (s *wsSession) drainControl() {
	for {
		select {
		case f := <-s.ctrl:
			s.pending = append(s.pending, f)
		default:
			return
		}
	}
}

func (s *wsSession) popPending() (Frame, bool) {
	if len(s.pending) == 0 {
		return Frame{}, false
	}
	f := s.pending[0]
	s.pending = s.pending[1:]
	return f, true
}

// closePayload rebuilds the wire form of a close frame: a big-endian status
// code followed by an optional UTF-8 reason.
func closePayload(code int, text string) []byte {
	payload := make([]byte, 2, 2+len(text))
	binary.BigEndian.PutUint16(payload, uint16(code))
	return append(payload, text...)
}
