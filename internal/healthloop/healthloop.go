// Package healthloop implements the container-side heartbeat: register an
// instance once at startup, then post a HealthCheck update on a fixed
// interval until the registry stops accepting the update or the retry
// budget is exhausted. Grounded in rust-shared/src/utils.rs's
// initialize_health_loop/start_heart_beat.
package healthloop

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/tzafon/waypoint/internal/instance"
	"github.com/tzafon/waypoint/internal/logging"
	"github.com/tzafon/waypoint/internal/rpcproto"
	"go.uber.org/zap"
)

const (
	heartbeatInterval = 1 * time.Second
	maxRetries        = 3
)

// Registrar is the subset of *rpcproto.Client the health loop needs,
// narrowed for testability.
type Registrar interface {
	TryAddInstance(ctx context.Context, id instance.ID, typ instance.Type) (bool, error)
	TryUpdateInstanceDescription(ctx context.Context, req *rpcproto.TryUpdateRequest) (bool, error)
}

// Start registers id as typ with the given services, then runs the
// heartbeat loop on its own goroutine until ctx is cancelled or the
// instance is deemed unhealthy (rejected update, or maxRetries consecutive
// transport errors) - in which case cancel is called, tearing down the
// container's whole top-level cancellation scope along with it, matching
// rust-shared/src/utils.rs's start_heart_beat calling
// cancellation_token.cancel() when it gives up on the instance. The dial
// itself is not retried here; callers that need startup backoff against a
// not-yet-ready registry should wrap their rpcproto.Dial call with
// backoff.Retry before calling Start.
func Start(ctx context.Context, cancel context.CancelFunc, client Registrar, id instance.ID, typ instance.Type, services map[instance.ServiceKind]instance.ServiceEndpoint) error {
	ok, err := client.TryAddInstance(ctx, id, typ)
	if err != nil {
		return fmt.Errorf("healthloop: register instance: %w", err)
	}
	if !ok {
		return fmt.Errorf("healthloop: instance %s already registered", id)
	}

	if len(services) > 0 {
		if _, err := client.TryUpdateInstanceDescription(ctx, &rpcproto.TryUpdateRequest{
			InstanceID: id,
			Services:   services,
		}); err != nil {
			logging.Warn("healthloop: failed posting initial services", zap.String("instance_id", string(id)), zap.Error(err))
		}
	}

	go heartbeat(ctx, cancel, client, id)
	return nil
}

func heartbeat(ctx context.Context, cancel context.CancelFunc, client Registrar, id instance.ID) {
	next := time.Now()
	retries := 0
	for {
		ok, err := client.TryUpdateInstanceDescription(ctx, &rpcproto.TryUpdateRequest{
			InstanceID:  id,
			HealthCheck: &instance.HealthCheck{},
		})
		switch {
		case err == nil && ok:
			retries = 0
		case err == nil && !ok:
			logging.Error("healthloop: instance is unhealthy, should be killed", zap.String("instance_id", string(id)))
			cancel()
			return
		default:
			retries++
			logging.Error("healthloop: heartbeat transport error", zap.String("instance_id", string(id)), zap.Error(err), zap.Int("retries", retries))
			if retries >= maxRetries {
				logging.Error("healthloop: retry budget exhausted, stopping heartbeat", zap.String("instance_id", string(id)))
				cancel()
				return
			}
		}

		next = next.Add(heartbeatInterval)
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

// DialWithBackoff wraps rpcproto.Dial with an exponential backoff retry,
// for use against a registry that may not be accepting connections yet at
// container startup (e.g. during a coordinated rollout).
func DialWithBackoff(ctx context.Context, dial func() (*rpcproto.Client, error)) (*rpcproto.Client, error) {
	var client *rpcproto.Client
	op := func() error {
		c, err := dial()
		if err != nil {
			return err
		}
		client = c
		return nil
	}

	b := backoff.WithContext(backoff.NewExponentialBackOff(), ctx)
	if err := backoff.Retry(op, b); err != nil {
		return nil, fmt.Errorf("healthloop: dial registry: %w", err)
	}
	return client, nil
}
