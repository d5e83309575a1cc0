package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/edgelink/mcpws/pkg/mcpws"
	"github.com/edgelink/mcpws/pkg/mcpws/sensor"
)

// sensorCmd represents the sensor command
var sensorCmd = &cobra.Command{
	Use:   "sensor <websocket-url>",
	Short: "Publish simulated sensor readings to an MCP WebSocket server",
	Long: `Publish simulated temperature and humidity readings as JSON text
frames. Useful for exercising a server without real hardware.

Examples:
  mcpws sensor ws://localhost:8080/mcp/
  mcpws sensor --sample-interval 5s wss://broker.example.com/mcp/?token=secret`,
	Args: cobra.ExactArgs(1),
	RunE: runSensor,
}

var sampleInterval time.Duration

func init() {
	rootCmd.AddCommand(sensorCmd)

	sensorCmd.Flags().DurationVar(&sampleInterval, "sample-interval", sensor.DefaultInterval, "time between readings")
}

func runSensor(cmd *cobra.Command, args []string) error {
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
		Build()
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	if err := client.Start(ctx); err != nil {
		return err
	}

	sim := sensor.NewSimulator(logger, sampleInterval, func(r sensor.Reading) {
		data, err := json.Marshal(r)
		if err != nil {
			logger.Warn("Failed to marshal reading", zap.Error(err))
			return
		}
		if err := client.Send(data); err != nil {
			logger.Warn("Reading not sent", zap.Error(err))
		}
	})
	sim.Start()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	logger.Info("Publishing readings... (Press Ctrl+C to exit)",
		zap.Duration("interval", sampleInterval))

	select {
	case sig := <-sigChan:
		logger.Debug("Signal received, exiting", zap.String("signal", sig.String()))
	case <-ctx.Done():
	}

	sim.Stop()
	if err := client.Stop(); err != nil {
		logger.Warn("Error during client stop", zap.Error(err))
	}

	stats := client.Stats()
	logger.Info("Shutdown complete",
		zap.Uint64("sent", stats.Sent),
		zap.Uint64("reconnects", stats.Reconnects),
	)
	return nil
}
