// Package metricsloop posts a process memory snapshot to the registry on a
// fixed interval, for containers that want basic system-metrics visibility
// without a GPU/LLM collaborator. Grounded in
// rust-shared/src/metrics/mod.rs's read_stats/start_system_metrics_loop.
package metricsloop

import (
	"context"
	"runtime"
	"time"

	"github.com/tzafon/waypoint/internal/instance"
	"github.com/tzafon/waypoint/internal/logging"
	"github.com/tzafon/waypoint/internal/rpcproto"
	"go.uber.org/zap"
)

const interval = 5 * time.Second

// Poster is the subset of *rpcproto.Client this loop needs.
type Poster interface {
	PostInstanceDescription(ctx context.Context, req *rpcproto.PostRequest) (bool, error)
}

// Start runs the system metrics loop on its own goroutine until ctx is
// cancelled.
func Start(ctx context.Context, client Poster, id instance.ID) {
	go run(ctx, client, id)
}

func run(ctx context.Context, client Poster, id instance.ID) {
	next := time.Now()
	for {
		stats := readStats()
		if _, err := client.PostInstanceDescription(ctx, &rpcproto.PostRequest{
			InstanceID:    id,
			SystemMetrics: stats,
		}); err != nil {
			logging.Warn("metricsloop: failed to post system metrics", zap.String("instance_id", string(id)), zap.Error(err))
		}

		next = next.Add(interval)
		delay := time.Until(next)
		if delay < 0 {
			delay = 0
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// readStats reports the Go runtime's current heap usage. The original's
// cgroup-aware total/free memory split has no direct Go runtime
// equivalent without invoking an external library this build does not
// carry, so TotalMemoryBytes here reports runtime.MemStats.Sys (memory
// obtained from the OS by the Go runtime) rather than a cgroup limit.
func readStats() *instance.SystemMetrics {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return &instance.SystemMetrics{
		UsedMemoryBytes:  m.Alloc,
		TotalMemoryBytes: m.Sys,
	}
}
