// Package instance defines the InstanceDescription aggregate and the
// sub-record types the registry stores per instance, along with the
// tagged-variant update dispatcher used to apply a TryUpdate/Post payload
// without reflection.
package instance

// Type enumerates the kinds of worker instance the registry tracks.
type Type string

const (
	ChromeBrowser     Type = "ChromeBrowser"
	Agent             Type = "Agent"
	WarmpoolChromeProxy Type = "WarmpoolChromeProxy"
	FakeInstance      Type = "FakeInstance"
)

// ServiceKind enumerates the backend services an instance may expose.
type ServiceKind string

const (
	ChromeDebugPort ServiceKind = "chrome_debug"
	AutomationPort  ServiceKind = "automation"
)

// KillReason enumerates why an instance was killed.
type KillReason string

const (
	Timeout           KillReason = "Timeout"
	HealthCheckFailed KillReason = "HealthCheckFailed"
	Killed            KillReason = "Killed"
	ParentDead        KillReason = "ParentDead"
)

// ID identifies one instance. Ids are opaque strings minted by callers
// (generation scheme is out of scope per spec, see cmd binaries for the
// uuid-based default).
type ID string

// ServiceEndpoint is one entry in an instance's Services map.
type ServiceEndpoint struct {
	Address     string // "host:port"
	TimestampMs int64
}

// HealthCheck records the last heartbeat time for an instance.
type HealthCheck struct {
	TimestampMs int64
}

// Relationship records one end of a parent/child link: which instance, and
// when the registry stamped it.
type Relationship struct {
	InstanceID  ID
	TimestampMs int64
}

// KillRequest records why and when an instance was killed. Terminal: once
// set on a description it is never replaced.
type KillRequest struct {
	Reason      KillReason
	TimestampMs int64
}

// ProxyMetrics mirrors the connection/byte counters tracked by
// internal/proxymetrics. The registry stores whatever a Post supplies; no
// binary in this repository posts it.
type ProxyMetrics struct {
	TimestampMs         int64
	ActiveConnections   int64
	ClientToServerBytes int64
	ServerToClientBytes int64
}

// SystemMetrics mirrors the process memory snapshot posted by
// internal/metricsloop.
type SystemMetrics struct {
	TimestampMs     int64
	UsedMemoryBytes uint64
	TotalMemoryBytes uint64
}

// GPUMetrics and LLMMetrics are posted by container-side collaborators this
// system does not implement; the registry stores them opaquely as
// last-writer-wins blobs, per spec.md's "typed records with timestamp".
type GPUMetrics struct {
	TimestampMs int64
	UtilizationPercent float64
	MemoryUsedBytes    uint64
}

type LLMMetrics struct {
	TimestampMs     int64
	TokensProcessed int64
	ModelName       string
}

// Description is the one central aggregate: the authoritative record for a
// single instance. Fields not covered by a particular update are left at
// their previous value.
type Description struct {
	InstanceID        ID
	InstanceType      Type
	CreatedTimestampMs int64

	Services map[ServiceKind]ServiceEndpoint

	HealthCheck *HealthCheck
	Parent      *Relationship
	Children    []Relationship

	KillInstanceRequest *KillRequest

	ProxyMetrics  *ProxyMetrics
	SystemMetrics *SystemMetrics
	GPUMetrics    *GPUMetrics
	LLMMetrics    *LLMMetrics
}

// Clone returns a deep copy, so that registry consumers never observe or
// mutate registry-owned state directly (spec.md §3 "Ownership").
func (d *Description) Clone() *Description {
	if d == nil {
		return nil
	}
	out := *d
	if d.Services != nil {
		out.Services = make(map[ServiceKind]ServiceEndpoint, len(d.Services))
		for k, v := range d.Services {
			out.Services[k] = v
		}
	}
	if d.HealthCheck != nil {
		hc := *d.HealthCheck
		out.HealthCheck = &hc
	}
	if d.Parent != nil {
		p := *d.Parent
		out.Parent = &p
	}
	if d.Children != nil {
		out.Children = append([]Relationship(nil), d.Children...)
	}
	if d.KillInstanceRequest != nil {
		k := *d.KillInstanceRequest
		out.KillInstanceRequest = &k
	}
	if d.ProxyMetrics != nil {
		m := *d.ProxyMetrics
		out.ProxyMetrics = &m
	}
	if d.SystemMetrics != nil {
		m := *d.SystemMetrics
		out.SystemMetrics = &m
	}
	if d.GPUMetrics != nil {
		m := *d.GPUMetrics
		out.GPUMetrics = &m
	}
	if d.LLMMetrics != nil {
		m := *d.LLMMetrics
		out.LLMMetrics = &m
	}
	return &out
}

// IsAlive reports whether the description has no kill request recorded.
func (d *Description) IsAlive() bool {
	return d.KillInstanceRequest == nil
}

// IsClaimed reports whether a parent has been set.
func (d *Description) IsClaimed() bool {
	return d.Parent != nil
}

// LastActivityMs is health_check.timestamp_ms if present, else
// created_timestamp_ms, matching the reaper's "last_activity" definition
// (spec.md §4.6).
func (d *Description) LastActivityMs() int64 {
	if d.HealthCheck != nil {
		return d.HealthCheck.TimestampMs
	}
	return d.CreatedTimestampMs
}
