// Package registry implements the Instance Manager's process-wide registry:
// a mutex-guarded map of instance id to instance.Description, with the
// TryAdd/TryUpdate/Post/GetAllInstances/GetInstance surfaces and the
// invariants I1-I5 from the instance lifecycle specification. Grounded in
// rust-instance-manager/src/service.rs's InnerService/Service, with the
// mutex-guarded-map concurrency idiom drawn from the teacher's
// internal/registry/memory/memory.go.
package registry

import (
	"errors"
	"sync"
	"time"

	"github.com/tzafon/waypoint/internal/instance"
	"github.com/tzafon/waypoint/internal/logging"
	"go.uber.org/zap"
)

// ErrNotFound is returned by GetInstance and by TryUpdate when the target
// instance does not exist.
var ErrNotFound = errors.New("registry: instance not found")

// ErrShapeInvalid is returned when a caller's payload carries a forbidden
// field for the surface it was sent to (spec.md §4.5/§7).
var ErrShapeInvalid = errors.New("registry: request shape invalid")

// Clock abstracts wall-clock time so tests can control "now" exactly,
// matching the reaper and health-loop boundary tests in spec.md §8 (B4,
// scenario 3).
type Clock func() time.Time

func defaultClock() time.Time { return time.Now() }

// Registry is the Instance Manager's in-memory store. The zero value is not
// usable; construct with New.
type Registry struct {
	mu        sync.Mutex
	instances map[instance.ID]*instance.Description
	clock     Clock
}

// New constructs an empty Registry using the real wall clock.
func New() *Registry {
	return &Registry{
		instances: make(map[instance.ID]*instance.Description),
		clock:     defaultClock,
	}
}

// NewWithClock constructs an empty Registry using the given clock, for
// deterministic tests of reaper/health-loop timing boundaries.
func NewWithClock(clock Clock) *Registry {
	r := New()
	r.clock = clock
	return r
}

func (r *Registry) nowMs() int64 {
	return r.clock().UnixMilli()
}

// TryAdd inserts a brand-new instance. Requires InstanceID and
// InstanceType; duplicate insert (I1) returns (false, nil), never an
// error.
func (r *Registry) TryAdd(id instance.ID, typ instance.Type) (bool, error) {
	if id == "" || typ == "" {
		return false, ErrShapeInvalid
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.instances[id]; exists {
		return false, nil
	}

	r.instances[id] = &instance.Description{
		InstanceID:         id,
		InstanceType:       typ,
		CreatedTimestampMs: r.nowMs(),
	}
	return true, nil
}

// TryUpdate applies u to the named instance. Returns (false, nil) for any
// ConditionFailed case: instance killed (I2), or a parent write that fails
// validation (I3). A missing target instance is returned as ErrNotFound
// per spec.md §7's NotFound kind, and an empty InstanceID as
// ErrShapeInvalid. On a successful kill write
// the cascade (I4) runs before returning.
func (r *Registry) TryUpdate(u instance.Update) (bool, error) {
	if u.InstanceID == "" {
		return false, ErrShapeInvalid
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	desc, exists := r.instances[u.InstanceID]
	if !exists {
		return false, ErrNotFound
	}

	if !desc.IsAlive() {
		// I2: terminal, no further mutation accepted.
		return false, nil
	}

	if u.Parent != nil {
		ok, err := r.validateAndApplyParent(desc, u.Parent.InstanceID)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}

	now := r.nowMs()
	instance.ApplyUpdate(desc, instance.Update{
		Services:            u.Services,
		HealthCheck:         u.HealthCheck,
		KillInstanceRequest: u.KillInstanceRequest,
	}, now)

	if u.KillInstanceRequest != nil {
		r.cascadeKill(desc, now)
	}

	return true, nil
}

// validateAndApplyParent implements I3: both endpoints must exist, differ,
// and the parent must be alive; on success the child gets its Parent field
// set and the parent's Children list gets the child appended, under the
// same lock.
func (r *Registry) validateAndApplyParent(child *instance.Description, parentID instance.ID) (bool, error) {
	if parentID == "" || parentID == child.InstanceID {
		// self-relationship: ConditionFailed, not an error.
		return false, nil
	}
	if child.Parent != nil {
		return false, nil
	}

	parent, exists := r.instances[parentID]
	if !exists {
		return false, nil
	}
	if !parent.IsAlive() {
		return false, nil
	}

	now := r.nowMs()
	instance.ApplyUpdate(child, instance.Update{Parent: &instance.Relationship{InstanceID: parentID}}, now)
	instance.AppendChild(parent, child.InstanceID, now)
	return true, nil
}

// cascadeKill implements I4: every transitively reachable live child of
// victim receives a ParentDead kill, under the same critical section as
// the triggering kill. Uses a worklist, matching Design Note 9 ("the
// cascade uses a worklist seeded from the victim's children").
func (r *Registry) cascadeKill(victim *instance.Description, nowMs int64) {
	worklist := append([]instance.Relationship(nil), victim.Children...)
	for len(worklist) > 0 {
		rel := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]

		child, exists := r.instances[rel.InstanceID]
		if !exists || !child.IsAlive() {
			continue
		}

		instance.ApplyUpdate(child, instance.Update{
			KillInstanceRequest: &instance.KillRequest{Reason: instance.ParentDead},
		}, nowMs)

		worklist = append(worklist, child.Children...)
	}
}

// Post applies metrics-only last-writer-wins fields. The instance must
// exist (else ErrNotFound) and be alive; a Post to a killed instance is
// ignored and returns (false, nil).
func (r *Registry) Post(u instance.PostUpdate) (bool, error) {
	if u.InstanceID == "" {
		return false, ErrShapeInvalid
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	desc, exists := r.instances[u.InstanceID]
	if !exists {
		return false, ErrNotFound
	}
	if !desc.IsAlive() {
		return false, nil
	}

	instance.ApplyPost(desc, u, r.nowMs())
	return true, nil
}

// GetAllInstances returns the ids of all entries of the given type that
// have a HealthCheck set and no KillInstanceRequest (spec.md §4.5, Design
// Note (b): instances invisible until their first heartbeat).
func (r *Registry) GetAllInstances(typ instance.Type) []instance.ID {
	r.mu.Lock()
	defer r.mu.Unlock()

	var ids []instance.ID
	for id, desc := range r.instances {
		if desc.InstanceType != typ {
			continue
		}
		if desc.HealthCheck == nil {
			continue
		}
		if !desc.IsAlive() {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// GetInstance returns a deep copy of the named instance's description.
// Not-found is an error.
func (r *Registry) GetInstance(id instance.ID) (*instance.Description, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	desc, exists := r.instances[id]
	if !exists {
		return nil, ErrNotFound
	}
	return desc.Clone(), nil
}

// Snapshot returns a deep copy of every instance currently registered, for
// the status page and reaper's per-pass scan. Callers never observe
// registry-owned state directly (spec.md §3 Ownership).
func (r *Registry) Snapshot() []*instance.Description {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*instance.Description, 0, len(r.instances))
	for _, desc := range r.instances {
		out = append(out, desc.Clone())
	}
	return out
}

// LogDropped logs a best-effort metrics write that was silently ignored
// because the instance was already dead, matching the teacher's per-event
// Warn-level logging for expected, non-fatal rejections.
func LogDropped(id instance.ID, surface string) {
	logging.Warn("registry: mutation rejected on dead instance", zap.String("instance_id", string(id)), zap.String("surface", surface))
}
