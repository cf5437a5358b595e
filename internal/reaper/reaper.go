// Package reaper implements the registry's periodic unhealthy-instance
// sweep: once a second, classify every live instance and kill the ones
// that have overstayed a type-specific deadline. Grounded directly in
// rust-instance-manager/src/service.rs's unhealth_instance/
// kill_unhealth_instances/start_kill_loop.
package reaper

import (
	"context"
	"time"

	"github.com/tzafon/waypoint/internal/instance"
	"github.com/tzafon/waypoint/internal/logging"
	"github.com/tzafon/waypoint/internal/registry"
	"go.uber.org/zap"
)

const (
	interval = 1 * time.Second

	chromeBrowserHealthCheckTimeout = 5 * time.Second
	chromeBrowserSessionLifetime    = 1 * time.Hour
	chromeBrowserMaxLifetime        = 24 * time.Hour

	agentStartupGrace     = 60 * time.Second
	agentHealthCheckTimeout = 5 * time.Second
	agentMaxLifetime        = 24 * time.Hour
)

// Run blocks, sweeping reg every interval on an absolute schedule (drift
// does not accumulate from sweep duration), until ctx is cancelled.
func Run(ctx context.Context, reg *registry.Registry) {
	next := time.Now()
	for {
		sweep(reg)
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

func sweep(reg *registry.Registry) {
	now := time.Now().UnixMilli()
	for _, desc := range reg.Snapshot() {
		if !desc.IsAlive() {
			continue
		}
		reason, ok := classify(desc, now)
		if !ok {
			continue
		}
		killed, err := reg.TryUpdate(instance.Update{
			InstanceID:          desc.InstanceID,
			KillInstanceRequest: &instance.KillRequest{Reason: reason},
		})
		if err != nil {
			logging.Warn("reaper: kill attempt errored", zap.String("instance_id", string(desc.InstanceID)), zap.Error(err))
			continue
		}
		if killed {
			logging.Info("reaper: killed instance", zap.String("instance_id", string(desc.InstanceID)), zap.String("reason", string(reason)))
		}
	}
}

// classify reports the kill reason for desc if it has overstayed its
// type-specific deadline, matching unhealth_instance's per-type match arms.
// ChromeBrowser and FakeInstance share one set of rules; Agent has its own.
func classify(desc *instance.Description, now int64) (instance.KillReason, bool) {
	switch desc.InstanceType {
	case instance.ChromeBrowser, instance.FakeInstance:
		return classifyBrowser(desc, now)
	case instance.Agent:
		return classifyAgent(desc, now)
	default:
		return "", false
	}
}

// classifyBrowser evaluates one ordered if/elif/elif chain, matching
// unhealth_instance's match arms: the session-lifetime check only applies
// (and only short-circuits the rest) when it actually fires for a claimed
// instance; a claimed instance that is within its session lifetime still
// falls through to the health-check and max-lifetime checks below, so a
// claimed browser that stops heartbeating is reaped long before its
// session timeout would otherwise catch it.
func classifyBrowser(desc *instance.Description, now int64) (instance.KillReason, bool) {
	if desc.Parent != nil && now-desc.Parent.TimestampMs > chromeBrowserSessionLifetime.Milliseconds() {
		return instance.Timeout, true
	}
	if now-desc.LastActivityMs() > chromeBrowserHealthCheckTimeout.Milliseconds() {
		return instance.HealthCheckFailed, true
	}
	if now-desc.CreatedTimestampMs > chromeBrowserMaxLifetime.Milliseconds() {
		return instance.Killed, true
	}
	return "", false
}

func classifyAgent(desc *instance.Description, now int64) (instance.KillReason, bool) {
	if now-desc.CreatedTimestampMs < agentStartupGrace.Milliseconds() {
		return "", false
	}
	lastActivity := desc.LastActivityMs()
	if now-lastActivity > agentHealthCheckTimeout.Milliseconds() {
		return instance.HealthCheckFailed, true
	}
	if now-lastActivity > agentMaxLifetime.Milliseconds() {
		return instance.Timeout, true
	}
	return "", false
}
