// Package proxymetrics tracks per-connection counters for the claim
// gateway: active connection count and bytes moved in each direction.
// Grounded in rust-shared/src/socket_gateway/metrics.rs's
// Connections/ProxyState/ProxyDirection, re-expressed with atomic counters
// (Go's defer gives a synchronous decrement on connection close, so the
// original's Drop-spawns-a-task workaround has no Go analogue) and
// exported as Prometheus metrics via github.com/prometheus/client_golang,
// matching the admin /metrics surface style in the teacher's
// internal/gateway/server.go adminHandler.
package proxymetrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Direction distinguishes which way bytes moved on a proxied connection.
type Direction int

const (
	ClientToServer Direction = iota
	ServerToClient
)

var (
	activeConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "waypoint",
		Subsystem: "proxy",
		Name:      "active_connections",
		Help:      "Number of currently proxied connections.",
	})
	bytesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "waypoint",
		Subsystem: "proxy",
		Name:      "bytes_total",
		Help:      "Bytes moved through the claim gateway, by direction.",
	}, []string{"direction"})
)

// Register adds this package's collectors to reg. Call once per process.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(activeConnections, bytesTotal)
}

// Connections tracks the lifetime of one proxied connection.
type Connections struct {
	numConnections      int64
	clientToServerBytes atomic.Int64
	serverToClientBytes atomic.Int64
}

// NewConnection records the start of one proxied connection and returns a
// handle whose Close must be called exactly once when the connection ends.
func NewConnection() *Connections {
	activeConnections.Inc()
	return &Connections{}
}

// Message records bytes moved in the given direction.
func (c *Connections) Message(dir Direction, n int) {
	switch dir {
	case ClientToServer:
		c.clientToServerBytes.Add(int64(n))
		bytesTotal.WithLabelValues("client_to_server").Add(float64(n))
	case ServerToClient:
		c.serverToClientBytes.Add(int64(n))
		bytesTotal.WithLabelValues("server_to_client").Add(float64(n))
	}
}

// Snapshot returns the current byte counters for this connection, to
// populate an instance's ProxyMetrics Post payload.
func (c *Connections) Snapshot() (clientToServer, serverToClient int64) {
	return c.clientToServerBytes.Load(), c.serverToClientBytes.Load()
}

// Close records the end of this proxied connection.
func (c *Connections) Close() {
	activeConnections.Dec()
}
