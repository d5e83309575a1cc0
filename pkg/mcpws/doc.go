// Package mcpws implements a reconnecting WebSocket client for MCP endpoints.
//
// The client maintains a single long-lived connection to a remote endpoint,
// re-establishing it automatically with exponential backoff when it fails.
// Outbound frames from any number of producers are multiplexed through one
// bounded FIFO send queue, and inbound frames are delivered to an EventSink
// owned by the caller.
package mcpws
