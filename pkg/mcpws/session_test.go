package mcpws

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testUpgrader = websocket.Upgrader{}

func wsEndpoint(t *testing.T, srv *httptest.Server, path string) Endpoint {
	t.Helper()
	ep, err := ParseEndpoint("ws://" + strings.TrimPrefix(srv.URL, "http://") + path)
	require.NoError(t, err)
	return ep
}

func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(mt, data); err != nil {
				return
			}
		}
	}))
}

func TestTransportOpenAndEcho(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	transport := NewTransport(zap.NewNop())
	sess, err := transport.Open(context.Background(), wsEndpoint(t, srv, "/mcp/"))
	require.NoError(t, err)
	defer sess.Close()

	assert.NotEmpty(t, sess.ID())

	require.NoError(t, sess.Send(Frame{Opcode: OpText, Payload: []byte("hello")}, time.Second))
	f, err := sess.Receive(time.Second)
	require.NoError(t, err)
	assert.Equal(t, OpText, f.Opcode)
	assert.Equal(t, "hello", string(f.Payload))

	require.NoError(t, sess.Send(Frame{Opcode: OpBinary, Payload: []byte{0xDE, 0xAD}}, time.Second))
	f, err = sess.Receive(time.Second)
	require.NoError(t, err)
	assert.Equal(t, OpBinary, f.Opcode)
	assert.Equal(t, []byte{0xDE, 0xAD}, f.Payload)
}

func TestTransportReceiveTimeout(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	transport := NewTransport(zap.NewNop())
	sess, err := transport.Open(context.Background(), wsEndpoint(t, srv, "/mcp/"))
	require.NoError(t, err)
	defer sess.Close()

	_, err = sess.Receive(50 * time.Millisecond)
	assert.ErrorIs(t, err, ErrReceiveTimeout)
}

func TestTransportSurfacesServerPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		if err := conn.WriteControl(websocket.PingMessage, []byte{0x01, 0x02}, time.Now().Add(time.Second)); err != nil {
			return
		}
		conn.ReadMessage()
	}))
	defer srv.Close()

	transport := NewTransport(zap.NewNop())
	sess, err := transport.Open(context.Background(), wsEndpoint(t, srv, "/mcp/"))
	require.NoError(t, err)
	defer sess.Close()

	var f Frame
	require.Eventually(t, func() bool {
		var rerr error
		f, rerr = sess.Receive(100 * time.Millisecond)
		return rerr == nil
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, OpPing, f.Opcode)
	assert.Equal(t, []byte{0x01, 0x02}, f.Payload)
}

func TestTransportSurfacesServerClose(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "maintenance")
		conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		conn.ReadMessage()
	}))
	defer srv.Close()

	transport := NewTransport(zap.NewNop())
	sess, err := transport.Open(context.Background(), wsEndpoint(t, srv, "/mcp/"))
	require.NoError(t, err)
	defer sess.Close()

	var f Frame
	require.Eventually(t, func() bool {
		var rerr error
		f, rerr = sess.Receive(100 * time.Millisecond)
		return rerr == nil
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, OpClose, f.Opcode)
	assert.Equal(t, websocket.CloseGoingAway, closeCode(f.Payload))
}

func TestTransportHandshakeRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	transport := NewTransport(zap.NewNop())
	_, err := transport.Open(context.Background(), wsEndpoint(t, srv, "/mcp/?token=bad"))
	require.Error(t, err)

	var he *HandshakeError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusUnauthorized, he.Status)
}

func TestTransportDialFailure(t *testing.T) {
	transport := NewTransport(zap.NewNop())

	ep, err := ParseEndpoint("ws://127.0.0.1:1/mcp/")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err = transport.Open(ctx, ep)
	require.Error(t, err)

	// A refused dial is not a handshake rejection; there is no status.
	var he *HandshakeError
	assert.False(t, errors.As(err, &he))
}

func TestSessionCloseIdempotent(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	transport := NewTransport(zap.NewNop())
	sess, err := transport.Open(context.Background(), wsEndpoint(t, srv, "/mcp/"))
	require.NoError(t, err)

	assert.NoError(t, sess.Close())
	assert.NoError(t, sess.Close())

	assert.ErrorIs(t, sess.Send(Frame{Opcode: OpText, Payload: []byte("x")}, time.Second), ErrSessionClosed)
	_, err = sess.Receive(time.Second)
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestSessionIDsAreUnique(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	transport := NewTransport(zap.NewNop())

	s1, err := transport.Open(context.Background(), wsEndpoint(t, srv, "/mcp/"))
	require.NoError(t, err)
	defer s1.Close()

	s2, err := transport.Open(context.Background(), wsEndpoint(t, srv, "/mcp/"))
	require.NoError(t, err)
	defer s2.Close()

	assert.NotEqual(t, s1.ID(), s2.ID())
}
