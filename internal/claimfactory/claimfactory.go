// Package claimfactory implements the Claim Connection Factory: on each
// incoming client connection, atomically claim a free registry instance of
// a target type, dial its backend service, and rewrite the request to
// reach it. Grounded in
// rust-instance-container/src/browser/ephemeral_browser_proxy.rs's
// ChromeWarmpoolProxyConfig (get_instance/get_proxy_config/new_connection)
// and ServerConnectionManager (on_close).
package claimfactory

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/tzafon/waypoint/internal/gateway"
	"github.com/tzafon/waypoint/internal/httpframe"
	"github.com/tzafon/waypoint/internal/instance"
	"github.com/tzafon/waypoint/internal/logging"
	"github.com/tzafon/waypoint/internal/proxymetrics"
	"github.com/tzafon/waypoint/internal/rewrite"
	"github.com/tzafon/waypoint/internal/rpcproto"
	"go.uber.org/zap"
)

// staleAfter is how old a health_check may be before a candidate is
// skipped as unhealthy during claim (spec.md §4.4).
const staleAfter = 5 * time.Second

// ErrNoAvailableInstance is returned when the candidate list is exhausted
// without a successful claim.
var ErrNoAvailableInstance = errors.New("claimfactory: no available instance found")

// Factory is a gateway.ConnectionFactory that claims a free
// instance.Description of TargetType per connection and proxies to the
// service named by ProxyKind.
type Factory struct {
	Client     *rpcproto.Client
	CallerID   instance.ID
	TargetType instance.Type
	ProxyKind  instance.ServiceKind
}

// Claim implements gateway.ConnectionFactory.
func (f *Factory) Claim(ctx context.Context, req *httpframe.Request) (net.Conn, *httpframe.Request, func(gateway.CloseResult), error) {
	desc, err := f.claimInstance(ctx)
	if err != nil {
		return nil, nil, nil, err
	}

	endpoint, ok := desc.Services[f.ProxyKind]
	if !ok {
		return nil, nil, nil, fmt.Errorf("claimfactory: claimed instance %s has no %s service", desc.InstanceID, f.ProxyKind)
	}

	cfg := rewrite.NewConfig(endpoint.Address).
		WithPathOverride(rewrite.Replace("/")).
		WithHeaderOverride("Host", endpoint.Address)
	rewritten := cfg.Apply(req)

	conn, err := net.Dial("tcp", endpoint.Address)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("claimfactory: dial backend %s: %w", endpoint.Address, err)
	}

	conns := proxymetrics.NewConnection()
	instanceID := desc.InstanceID

	closeCB := func(res gateway.CloseResult) {
		conns.Close()
		if res.Err != nil {
			logging.Warn("claimfactory: proxied connection ended with error", zap.String("instance_id", string(instanceID)), zap.Error(res.Err))
		}
		// Unconditionally mark the claimed instance killed on close, so it
		// is never reused, matching ServerConnectionManager::on_close.
		ok, err := f.Client.TryUpdateInstanceDescription(context.Background(), &rpcproto.TryUpdateRequest{
			InstanceID:          instanceID,
			KillInstanceRequest: &instance.KillRequest{Reason: instance.Killed},
		})
		if err != nil {
			logging.Warn("claimfactory: failed to kill instance on close", zap.String("instance_id", string(instanceID)), zap.Error(err))
			return
		}
		if !ok {
			logging.Debug("claimfactory: kill-on-close was a no-op (already dead)", zap.String("instance_id", string(instanceID)))
		}
	}

	return conn, rewritten, closeCB, nil
}

// claimInstance implements the first-match claim algorithm: list
// candidates, skip unhealthy/claimed/killed/missing-service entries,
// attempt the decisive parent write, and return on the first winner.
func (f *Factory) claimInstance(ctx context.Context) (*instance.Description, error) {
	ids, err := f.Client.GetAllInstances(ctx, f.TargetType)
	if err != nil {
		return nil, fmt.Errorf("claimfactory: list instances: %w", err)
	}

	now := time.Now()
	for _, id := range ids {
		desc, err := f.Client.GetInstance(ctx, id)
		if err != nil {
			logging.Warn("claimfactory: get_instance failed during claim scan", zap.String("instance_id", string(id)), zap.Error(err))
			continue
		}

		if !desc.IsAlive() || desc.IsClaimed() {
			continue
		}
		if desc.HealthCheck == nil || now.UnixMilli()-desc.HealthCheck.TimestampMs > staleAfter.Milliseconds() {
			continue
		}
		if _, ok := desc.Services[f.ProxyKind]; !ok {
			continue
		}

		won, err := f.Client.TryUpdateInstanceDescription(ctx, &rpcproto.TryUpdateRequest{
			InstanceID: id,
			Parent:     &instance.Relationship{InstanceID: f.CallerID},
		})
		if err != nil {
			logging.Warn("claimfactory: claim attempt errored", zap.String("instance_id", string(id)), zap.Error(err))
			continue
		}
		if !won {
			continue
		}

		claimed, err := f.Client.GetInstance(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("claimfactory: get_instance after claim: %w", err)
		}
		return claimed, nil
	}

	return nil, ErrNoAvailableInstance
}
