package registry

import (
	"sync"
	"testing"
	"time"

	"github.com/tzafon/waypoint/internal/instance"
)

// P1 / R1: an instance exists at most once; TryAdd with a seen id returns
// false; a successful TryAdd followed by GetInstance round-trips id, type,
// a populated created timestamp, and no other fields.
func TestTryAdd_DuplicateReturnsFalse(t *testing.T) {
	r := New()

	ok, err := r.TryAdd("c1", instance.ChromeBrowser)
	if err != nil || !ok {
		t.Fatalf("first TryAdd: got (%v, %v), want (true, nil)", ok, err)
	}

	ok, err = r.TryAdd("c1", instance.ChromeBrowser)
	if err != nil || ok {
		t.Fatalf("duplicate TryAdd: got (%v, %v), want (false, nil)", ok, err)
	}

	desc, err := r.GetInstance("c1")
	if err != nil {
		t.Fatalf("GetInstance: %v", err)
	}
	if desc.InstanceID != "c1" || desc.InstanceType != instance.ChromeBrowser {
		t.Fatalf("GetInstance: got %+v", desc)
	}
	if desc.CreatedTimestampMs == 0 {
		t.Fatalf("CreatedTimestampMs not stamped")
	}
	if desc.HealthCheck != nil || desc.Parent != nil || desc.Children != nil || desc.KillInstanceRequest != nil {
		t.Fatalf("unexpected fields populated after TryAdd: %+v", desc)
	}
}

// P2: once an instance has kill_instance_request, no later TryUpdate of
// health/parent/children/services succeeds, and Post is ignored too.
func TestTryUpdate_AfterKillIsTerminal(t *testing.T) {
	r := New()
	if _, err := r.TryAdd("c1", instance.ChromeBrowser); err != nil {
		t.Fatal(err)
	}

	ok, err := r.TryUpdate(instance.Update{InstanceID: "c1", KillInstanceRequest: &instance.KillRequest{Reason: instance.Killed}})
	if err != nil || !ok {
		t.Fatalf("kill write: got (%v, %v)", ok, err)
	}

	ok, err = r.TryUpdate(instance.Update{InstanceID: "c1", HealthCheck: &instance.HealthCheck{}})
	if err != nil || ok {
		t.Fatalf("post-kill health update: got (%v, %v), want (false, nil)", ok, err)
	}

	ok, err = r.Post(instance.PostUpdate{InstanceID: "c1", SystemMetrics: &instance.SystemMetrics{}})
	if err != nil || ok {
		t.Fatalf("post-kill metrics post: got (%v, %v), want (false, nil)", ok, err)
	}
}

// P3: for any two concurrent claim attempts on the same instance, at most
// one observes true from the parent-setting TryUpdate.
func TestTryUpdate_ConcurrentClaimsExactlyOneWins(t *testing.T) {
	r := New()
	if _, err := r.TryAdd("c1", instance.ChromeBrowser); err != nil {
		t.Fatal(err)
	}
	if _, err := r.TryAdd("p1", instance.WarmpoolChromeProxy); err != nil {
		t.Fatal(err)
	}
	if _, err := r.TryAdd("p2", instance.WarmpoolChromeProxy); err != nil {
		t.Fatal(err)
	}

	const attempts = 2
	results := make([]bool, attempts)
	parents := []instance.ID{"p1", "p2"}

	var wg sync.WaitGroup
	wg.Add(attempts)
	for i := 0; i < attempts; i++ {
		go func(i int) {
			defer wg.Done()
			ok, err := r.TryUpdate(instance.Update{InstanceID: "c1", Parent: &instance.Relationship{InstanceID: parents[i]}})
			if err != nil {
				t.Errorf("TryUpdate[%d]: %v", i, err)
			}
			results[i] = ok
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, ok := range results {
		if ok {
			wins++
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d (results=%v)", wins, results)
	}
}

// Seed scenario 1: happy claim, then a second concurrent claim fails, and
// GetInstance reflects the winning parent.
func TestScenario_HappyClaim(t *testing.T) {
	r := New()
	if _, err := r.TryAdd("c1", instance.ChromeBrowser); err != nil {
		t.Fatal(err)
	}
	if _, err := r.TryAdd("p1", instance.WarmpoolChromeProxy); err != nil {
		t.Fatal(err)
	}
	if _, err := r.TryAdd("p2", instance.WarmpoolChromeProxy); err != nil {
		t.Fatal(err)
	}
	if _, err := r.TryUpdate(instance.Update{InstanceID: "c1", HealthCheck: &instance.HealthCheck{}}); err != nil {
		t.Fatal(err)
	}
	if _, err := r.TryUpdate(instance.Update{InstanceID: "c1", Services: map[instance.ServiceKind]instance.ServiceEndpoint{
		instance.ChromeDebugPort: {Address: "10.0.0.1:9222"},
	}}); err != nil {
		t.Fatal(err)
	}

	ok, err := r.TryUpdate(instance.Update{InstanceID: "c1", Parent: &instance.Relationship{InstanceID: "p1"}})
	if err != nil || !ok {
		t.Fatalf("first claim: got (%v, %v)", ok, err)
	}

	ok, err = r.TryUpdate(instance.Update{InstanceID: "c1", Parent: &instance.Relationship{InstanceID: "p2"}})
	if err != nil || ok {
		t.Fatalf("second claim: got (%v, %v), want (false, nil)", ok, err)
	}

	desc, err := r.GetInstance("c1")
	if err != nil {
		t.Fatal(err)
	}
	if desc.Parent == nil || desc.Parent.InstanceID != "p1" {
		t.Fatalf("expected parent p1, got %+v", desc.Parent)
	}
}

// Seed scenario 2: cascade. Tree p->c->g; killing p marks c and g
// ParentDead immediately (before the mutation returns).
func TestScenario_KillCascade(t *testing.T) {
	r := New()
	for _, id := range []instance.ID{"p", "c", "g"} {
		if _, err := r.TryAdd(id, instance.FakeInstance); err != nil {
			t.Fatal(err)
		}
	}

	ok, err := r.TryUpdate(instance.Update{InstanceID: "c", Parent: &instance.Relationship{InstanceID: "p"}})
	if err != nil || !ok {
		t.Fatalf("link c->p: got (%v, %v)", ok, err)
	}
	ok, err = r.TryUpdate(instance.Update{InstanceID: "g", Parent: &instance.Relationship{InstanceID: "c"}})
	if err != nil || !ok {
		t.Fatalf("link g->c: got (%v, %v)", ok, err)
	}

	ok, err = r.TryUpdate(instance.Update{InstanceID: "p", KillInstanceRequest: &instance.KillRequest{Reason: instance.Killed}})
	if err != nil || !ok {
		t.Fatalf("kill p: got (%v, %v)", ok, err)
	}

	c, err := r.GetInstance("c")
	if err != nil {
		t.Fatal(err)
	}
	if c.KillInstanceRequest == nil || c.KillInstanceRequest.Reason != instance.ParentDead {
		t.Fatalf("c not cascaded: %+v", c.KillInstanceRequest)
	}

	g, err := r.GetInstance("g")
	if err != nil {
		t.Fatal(err)
	}
	if g.KillInstanceRequest == nil || g.KillInstanceRequest.Reason != instance.ParentDead {
		t.Fatalf("g not cascaded: %+v", g.KillInstanceRequest)
	}
}

// P5: every sub-record written by a client bears a timestamp assigned by
// the registry, not the caller; the apply functions overwrite any
// caller-supplied TimestampMs on a sub-record with the registry clock -
// this test checks that two writes separated by a clock tick get distinct
// registry-stamped values.
func TestTimestamps_AreRegistryStamped(t *testing.T) {
	base := time.UnixMilli(1_000_000)
	clock := base
	r := NewWithClock(func() time.Time { return clock })

	if _, err := r.TryAdd("c1", instance.ChromeBrowser); err != nil {
		t.Fatal(err)
	}
	clock = base.Add(10 * time.Second)
	if _, err := r.TryUpdate(instance.Update{InstanceID: "c1", HealthCheck: &instance.HealthCheck{}}); err != nil {
		t.Fatal(err)
	}

	desc, err := r.GetInstance("c1")
	if err != nil {
		t.Fatal(err)
	}
	if desc.HealthCheck.TimestampMs != base.Add(10*time.Second).UnixMilli() {
		t.Fatalf("expected registry-stamped timestamp, got %d", desc.HealthCheck.TimestampMs)
	}
	if desc.HealthCheck.TimestampMs == desc.CreatedTimestampMs {
		t.Fatalf("expected distinct timestamps across writes")
	}
}

// I3: self-relationship and killed-parent are rejected as ConditionFailed.
func TestParent_SelfAndDeadParentRejected(t *testing.T) {
	r := New()
	if _, err := r.TryAdd("c1", instance.ChromeBrowser); err != nil {
		t.Fatal(err)
	}
	ok, err := r.TryUpdate(instance.Update{InstanceID: "c1", Parent: &instance.Relationship{InstanceID: "c1"}})
	if err != nil || ok {
		t.Fatalf("self-parent: got (%v, %v), want (false, nil)", ok, err)
	}

	if _, err := r.TryAdd("p1", instance.WarmpoolChromeProxy); err != nil {
		t.Fatal(err)
	}
	if _, err := r.TryUpdate(instance.Update{InstanceID: "p1", KillInstanceRequest: &instance.KillRequest{Reason: instance.Killed}}); err != nil {
		t.Fatal(err)
	}
	ok, err = r.TryUpdate(instance.Update{InstanceID: "c1", Parent: &instance.Relationship{InstanceID: "p1"}})
	if err != nil || ok {
		t.Fatalf("dead parent: got (%v, %v), want (false, nil)", ok, err)
	}
}

// GetAllInstances: invisible until a health_check has been posted (Design
// Note (b)).
func TestGetAllInstances_InvisibleUntilHeartbeat(t *testing.T) {
	r := New()
	if _, err := r.TryAdd("c1", instance.ChromeBrowser); err != nil {
		t.Fatal(err)
	}
	if ids := r.GetAllInstances(instance.ChromeBrowser); len(ids) != 0 {
		t.Fatalf("expected no visible instances before heartbeat, got %v", ids)
	}
	if _, err := r.TryUpdate(instance.Update{InstanceID: "c1", HealthCheck: &instance.HealthCheck{}}); err != nil {
		t.Fatal(err)
	}
	ids := r.GetAllInstances(instance.ChromeBrowser)
	if len(ids) != 1 || ids[0] != "c1" {
		t.Fatalf("expected [c1], got %v", ids)
	}
}
