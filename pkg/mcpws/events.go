package mcpws

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// EventSink receives lifecycle and message notifications from the client.
//
// Callbacks are invoked synchronously from the client's control loop and
// must return promptly: a slow callback delays frame processing for the
// whole connection. Callers who need to do real work per event should wrap
// their sink in an AsyncSink.
type EventSink interface {
	// OnConnected is called after the WebSocket handshake completes.
	OnConnected(ctx context.Context)

	// OnDisconnected is called after the transport session is torn down,
	// whether the close was requested or caused by a failure.
	OnDisconnected(ctx context.Context)

	// OnMessage is called for every inbound text or binary frame. The
	// payload is owned by the sink after the call returns.
	OnMessage(ctx context.Context, payload []byte)

	// OnMessageSent is called after a text frame has been written to the
	// transport.
	OnMessageSent(ctx context.Context, payload []byte)

	// OnError is called when the client enters the Error state or a
	// connection attempt fails without auto-reconnect to fall back on.
	OnError(ctx context.Context, err error)
}

// BaseSink is a no-op EventSink. Embed it to implement only the callbacks
// you care about.
type BaseSink struct{}

func (BaseSink) OnConnected(ctx context.Context)                   {}
func (BaseSink) OnDisconnected(ctx context.Context)                {}
func (BaseSink) OnMessage(ctx context.Context, payload []byte)     {}
func (BaseSink) OnMessageSent(ctx context.Context, payload []byte) {}
func (BaseSink) OnError(ctx context.Context, err error)            {}

// LoggingSink is an EventSink that logs every callback, for debugging and
// demonstration.
type LoggingSink struct {
	logger   *zap.Logger
	logLevel zapcore.Level
	name     string // Optional name for identification in logs
}

// NewLoggingSink creates a LoggingSink with the specified logger and log level.
func NewLoggingSink(logger *zap.Logger, logLevel zapcore.Level) *LoggingSink {
	return &LoggingSink{
		logger:   logger,
		logLevel: logLevel,
		name:     "LoggingSink",
	}
}

// NewNamedLoggingSink creates a LoggingSink with a custom name for identification.
func NewNamedLoggingSink(logger *zap.Logger, logLevel zapcore.Level, name string) *LoggingSink {
	return &LoggingSink{
		logger:   logger,
		logLevel: logLevel,
		name:     name,
	}
}

func (l *LoggingSink) OnConnected(ctx context.Context) {
	l.logger.Log(l.logLevel, "OnConnected called", zap.String("sink", l.name))
}

func (l *LoggingSink) OnDisconnected(ctx context.Context) {
	l.logger.Log(l.logLevel, "OnDisconnected called", zap.String("sink", l.name))
}

func (l *LoggingSink) OnMessage(ctx context.Context, payload []byte) {
	l.logger.Log(l.logLevel, "OnMessage called",
		zap.String("sink", l.name),
		zap.ByteString("payload", payload),
		zap.Int("size", len(payload)),
	)
}

func (l *LoggingSink) OnMessageSent(ctx context.Context, payload []byte) {
	l.logger.Log(l.logLevel, "OnMessageSent called",
		zap.String("sink", l.name),
		zap.ByteString("payload", payload),
		zap.Int("size", len(payload)),
	)
}

func (l *LoggingSink) OnError(ctx context.Context, err error) {
	l.logger.Log(l.logLevel, "OnError called",
		zap.String("sink", l.name),
		zap.Error(err),
	)
}
