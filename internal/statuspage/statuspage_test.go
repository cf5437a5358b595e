package statuspage

import (
	"strings"
	"testing"
	"time"

	"github.com/tzafon/waypoint/internal/instance"
	"github.com/tzafon/waypoint/internal/registry"
)

func TestDashboard_CachesWithinExpiration(t *testing.T) {
	reg := registry.New()
	if _, err := reg.TryAdd("c1", instance.ChromeBrowser); err != nil {
		t.Fatal(err)
	}
	s := New(reg)

	first, err := s.Dashboard()
	if err != nil {
		t.Fatalf("Dashboard: %v", err)
	}

	if _, err := reg.TryAdd("c2", instance.ChromeBrowser); err != nil {
		t.Fatal(err)
	}

	second, err := s.Dashboard()
	if err != nil {
		t.Fatalf("Dashboard: %v", err)
	}
	if second != first {
		t.Fatal("expected the cached render to be reused within cacheExpiration, despite registry state changing")
	}
}

func TestDashboard_RefreshesAfterExpiration(t *testing.T) {
	reg := registry.New()
	if _, err := reg.TryAdd("c1", instance.ChromeBrowser); err != nil {
		t.Fatal(err)
	}
	s := New(reg)

	if _, err := s.Dashboard(); err != nil {
		t.Fatalf("Dashboard: %v", err)
	}

	time.Sleep(cacheExpiration + 100*time.Millisecond)

	if _, err := reg.TryAdd("c2", instance.ChromeBrowser); err != nil {
		t.Fatal(err)
	}
	html, err := s.Dashboard()
	if err != nil {
		t.Fatalf("Dashboard: %v", err)
	}
	if !strings.Contains(html, "2") {
		t.Fatalf("expected a refreshed render reflecting 2 browsers, got: %s", html)
	}
}

func TestInstance_UnknownIDErrors(t *testing.T) {
	s := New(registry.New())
	if _, err := s.Instance("missing"); err == nil {
		t.Fatal("expected an error for an unknown instance id")
	}
}

func TestInstance_RendersKillReason(t *testing.T) {
	reg := registry.New()
	if _, err := reg.TryAdd("c1", instance.ChromeBrowser); err != nil {
		t.Fatal(err)
	}
	if _, err := reg.TryUpdate(instance.Update{InstanceID: "c1", KillInstanceRequest: &instance.KillRequest{Reason: instance.Timeout}}); err != nil {
		t.Fatal(err)
	}

	s := New(reg)
	html, err := s.Instance("c1")
	if err != nil {
		t.Fatalf("Instance: %v", err)
	}
	if !strings.Contains(html, "Timeout") {
		t.Fatalf("expected the kill reason in the rendered page, got: %s", html)
	}
}

func TestTruncate(t *testing.T) {
	short := "short-id"
	if got := truncate(short); got != short {
		t.Fatalf("got %q, want unchanged %q", got, short)
	}

	long := strings.Repeat("x", maxLabelLen+10)
	got := truncate(long)
	if len(got) != maxLabelLen {
		t.Fatalf("got length %d, want %d", len(got), maxLabelLen)
	}
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("got %q, want a \"...\" suffix", got)
	}
}

func TestFormatID_Empty(t *testing.T) {
	l := formatID("")
	if l.label != "No ID" || l.url != "" {
		t.Fatalf("got %+v, want label \"No ID\" and no url", l)
	}
}

func TestStateOf(t *testing.T) {
	claimed := int64(1000)
	cases := []struct {
		name string
		b    browserState
		want string
	}{
		{"connected", browserState{claimedAt: &claimed}, "connected"},
		{"dead", browserState{dead: true}, "dead"},
		{"idle", browserState{}, "idle"},
	}
	for _, c := range cases {
		if got := stateOf(c.b); got != c.want {
			t.Errorf("%s: got %q, want %q", c.name, got, c.want)
		}
	}
}
