package instance

// Update is the payload shape accepted by TryUpdate: a subset of the
// mutable sub-records, identified by instance id. Each non-nil field is
// applied by a dedicated apply* function below — the tagged-variant
// dispatch pattern from the original's traits.rs, avoiding reflection.
type Update struct {
	InstanceID ID

	Services    map[ServiceKind]ServiceEndpoint
	HealthCheck *HealthCheck
	Parent      *Relationship
	// Children is never set directly by a caller; it is a side effect of a
	// parent write on the parent's own description (see
	// registry.validateAndApplyParent).
	KillInstanceRequest *KillRequest
}

// PostUpdate is the payload shape accepted by Post: metrics only, no
// invariant-carrying fields, last-writer-wins.
type PostUpdate struct {
	InstanceID ID

	ProxyMetrics  *ProxyMetrics
	SystemMetrics *SystemMetrics
	GPUMetrics    *GPUMetrics
	LLMMetrics    *LLMMetrics
}

// Empty reports whether u carries none of the mutable sub-records
// (Services, HealthCheck, Parent, KillInstanceRequest).
func (u Update) Empty() bool {
	return u.Services == nil && u.HealthCheck == nil && u.Parent == nil && u.KillInstanceRequest == nil
}

// applyServices stamps and assigns Services. Timestamps on individual
// endpoints are set by the registry at apply time (I5), not by the caller.
func applyServices(d *Description, services map[ServiceKind]ServiceEndpoint, nowMs int64) {
	if services == nil {
		return
	}
	if d.Services == nil {
		d.Services = make(map[ServiceKind]ServiceEndpoint, len(services))
	}
	for kind, ep := range services {
		ep.TimestampMs = nowMs
		d.Services[kind] = ep
	}
}

// applyHealthCheck stamps and assigns HealthCheck.
func applyHealthCheck(d *Description, hc *HealthCheck, nowMs int64) {
	if hc == nil {
		return
	}
	d.HealthCheck = &HealthCheck{TimestampMs: nowMs}
}

// applyParent stamps and assigns Parent on the child description. The
// corresponding append to the parent's Children list is a separate
// operation performed by the registry under the same critical section
// (see registry.validateAndApplyParent), since it touches a second
// description.
func applyParent(d *Description, rel *Relationship, nowMs int64) {
	if rel == nil {
		return
	}
	d.Parent = &Relationship{InstanceID: rel.InstanceID, TimestampMs: nowMs}
}

// appendChild stamps and appends one child relationship. Mirrors the
// original's Children variant, which sets the timestamp on each appended
// entry and appends to an initially-absent list.
func appendChild(d *Description, childID ID, nowMs int64) {
	d.Children = append(d.Children, Relationship{InstanceID: childID, TimestampMs: nowMs})
}

// applyKill stamps and assigns KillInstanceRequest. Terminal: callers must
// check IsAlive before calling this (the registry enforces I2).
func applyKill(d *Description, kr *KillRequest, nowMs int64) {
	if kr == nil {
		return
	}
	d.KillInstanceRequest = &KillRequest{Reason: kr.Reason, TimestampMs: nowMs}
}

// applyProxyMetrics, applySystemMetrics, applyGPUMetrics, applyLLMMetrics
// stamp and last-writer-wins assign their respective sub-record. No
// invariant beyond existence of the target instance (spec.md §4.5 Post).
func applyProxyMetrics(d *Description, m *ProxyMetrics, nowMs int64) {
	if m == nil {
		return
	}
	cp := *m
	cp.TimestampMs = nowMs
	d.ProxyMetrics = &cp
}

func applySystemMetrics(d *Description, m *SystemMetrics, nowMs int64) {
	if m == nil {
		return
	}
	cp := *m
	cp.TimestampMs = nowMs
	d.SystemMetrics = &cp
}

func applyGPUMetrics(d *Description, m *GPUMetrics, nowMs int64) {
	if m == nil {
		return
	}
	cp := *m
	cp.TimestampMs = nowMs
	d.GPUMetrics = &cp
}

func applyLLMMetrics(d *Description, m *LLMMetrics, nowMs int64) {
	if m == nil {
		return
	}
	cp := *m
	cp.TimestampMs = nowMs
	d.LLMMetrics = &cp
}

// ApplyUpdate applies every present field of u onto d, registry-stamping
// each with nowMs. The caller (internal/registry) is responsible for
// invariant checks (I2, I3) and the kill-cascade (I4) before/after calling
// this; ApplyUpdate itself performs no validation, matching the original's
// separation between validate_relationship and
// update_instance_description.
func ApplyUpdate(d *Description, u Update, nowMs int64) {
	applyServices(d, u.Services, nowMs)
	applyHealthCheck(d, u.HealthCheck, nowMs)
	applyParent(d, u.Parent, nowMs)
	applyKill(d, u.KillInstanceRequest, nowMs)
}

// ApplyPost applies every present metrics field of u onto d, stamping each
// with nowMs.
func ApplyPost(d *Description, u PostUpdate, nowMs int64) {
	applyProxyMetrics(d, u.ProxyMetrics, nowMs)
	applySystemMetrics(d, u.SystemMetrics, nowMs)
	applyGPUMetrics(d, u.GPUMetrics, nowMs)
	applyLLMMetrics(d, u.LLMMetrics, nowMs)
}

// AppendChild is exported for internal/registry to call on the parent's
// description when a parent write on the child is accepted.
func AppendChild(d *Description, childID ID, nowMs int64) {
	appendChild(d, childID, nowMs)
}
