package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/edgelink/mcpws/pkg/mcpws"
)

// connectCmd represents the connect command
var connectCmd = &cobra.Command{
	Use:   "connect <websocket-url>",
	Short: "Connect to an MCP WebSocket server",
	Long: `Connect to an MCP WebSocket server and keep the connection alive.

Inbound text and binary frames are printed to stdout. Lines read from
stdin are sent to the server as text frames.

The URL path, including any query string (which may carry an
authentication token), is passed to the server verbatim. A URL without a
path defaults to /mcp/.

Examples:
  mcpws connect ws://localhost:8080/mcp/
  mcpws connect wss://device.example.com/mcp/?token=secret
  mcpws connect --no-reconnect ws://localhost:8080/mcp/`,
	Args: cobra.ExactArgs(1),
	RunE: runConnect,
}

var (
	connectTimeout time.Duration
	reconnectDelay time.Duration
	pingInterval   time.Duration
	queueSize      int
	noReconnect    bool
)

func init() {
	rootCmd.AddCommand(connectCmd)

	connectCmd.Flags().DurationVar(&connectTimeout, "connect-timeout", mcpws.DefaultConnectTimeout, "dial and handshake timeout")
	connectCmd.Flags().DurationVar(&reconnectDelay, "reconnect-delay", mcpws.DefaultReconnectDelay, "base delay between reconnect attempts")
	connectCmd.Flags().DurationVar(&pingInterval, "ping-interval", mcpws.DefaultPingInterval, "keepalive ping interval")
	connectCmd.Flags().IntVar(&queueSize, "queue-size", mcpws.DefaultQueueCapacity, "outbound send queue capacity")
	connectCmd.Flags().BoolVar(&noReconnect, "no-reconnect", false, "exit instead of reconnecting when the connection drops")
}

func runConnect(cmd *cobra.Command, args []string) error {
	logger, err := setupLogger()
	if err != nil {
		return fmt.Errorf("failed to setup logger: %w", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := mcpws.NewClient().
		WithEndpoint(args[0]).
		WithLogger(logger).
		WithEventSink(&printingSink{logger: logger}).
		WithAutoReconnect(!noReconnect).
		WithConnectTimeout(connectTimeout).
		WithReconnectDelay(reconnectDelay).
		WithPingInterval(pingInterval).
		WithQueueCapacity(queueSize).
		Build()
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	if err := client.Start(ctx); err != nil {
		return err
	}

	// Lines from stdin become outbound text frames.
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			line := scanner.Text()
			if line == "" {
				continue
			}
			if err := client.SendText(line); err != nil {
				logger.Warn("Message not sent", zap.Error(err))
			}
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	logger.Info("Listening... (Press Ctrl+C to exit)")

	select {
	case sig := <-sigChan:
		logger.Debug("Signal received, exiting", zap.String("signal", sig.String()))
	case <-ctx.Done():
	}

	if err := client.Stop(); err != nil {
		logger.Warn("Error during client stop", zap.Error(err))
	}

	stats := client.Stats()
	logger.Info("Shutdown complete",
		zap.Uint64("sent", stats.Sent),
		zap.Uint64("received", stats.Received),
		zap.Uint64("reconnects", stats.Reconnects),
	)
	return nil
}

type printingSink struct {
	mcpws.BaseSink
	logger *zap.Logger
}

func (s *printingSink) OnConnected(ctx context.Context) {
	s.logger.Info("Connection established")
}

func (s *printingSink) OnDisconnected(ctx context.Context) {
	s.logger.Info("Connection lost")
}

func (s *printingSink) OnMessage(ctx context.Context, payload []byte) {
	fmt.Printf("%s\n", payload)
}

func (s *printingSink) OnError(ctx context.Context, err error) {
	s.logger.Error("Client error", zap.Error(err))
}
