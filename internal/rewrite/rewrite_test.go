package rewrite

import (
	"testing"

	"github.com/tzafon/waypoint/internal/httpframe"
)

// B1: a request with path "/" under Prefix("/X") emits path "/X", not "/X/".
func TestPrefix_RootPath(t *testing.T) {
	cfg := NewConfig("h:1").WithPathOverride(Prefix("/X"))
	req := &httpframe.Request{Method: "GET", Path: "/", Version: "HTTP/1.1"}
	got := cfg.Apply(req)
	if got.Path != "/X" {
		t.Fatalf("got path %q, want /X", got.Path)
	}
}

func TestPrefix_NonRootPath(t *testing.T) {
	cfg := NewConfig("h:1").WithPathOverride(Prefix("/X"))
	req := &httpframe.Request{Method: "GET", Path: "/a", Version: "HTTP/1.1"}
	got := cfg.Apply(req)
	if got.Path != "/X/a" {
		t.Fatalf("got path %q, want /X/a", got.Path)
	}
}

// B2: a request with path "/a" under Append("/X") emits "/aX"; under
// Append with path "/", emits "/X".
func TestAppend_NonRootAndRoot(t *testing.T) {
	cfg := NewConfig("h:1").WithPathOverride(Append("/X"))

	got := cfg.Apply(&httpframe.Request{Method: "GET", Path: "/a", Version: "HTTP/1.1"})
	if got.Path != "/aX" {
		t.Fatalf("got path %q, want /aX", got.Path)
	}

	got = cfg.Apply(&httpframe.Request{Method: "GET", Path: "/", Version: "HTTP/1.1"})
	if got.Path != "/X" {
		t.Fatalf("got path %q, want /X", got.Path)
	}
}

func TestReplace_AlwaysVerbatim(t *testing.T) {
	cfg := NewConfig("h:1").WithPathOverride(Replace("/devtools/page/abc"))
	got := cfg.Apply(&httpframe.Request{Method: "GET", Path: "/anything", Version: "HTTP/1.1"})
	if got.Path != "/devtools/page/abc" {
		t.Fatalf("got path %q, want /devtools/page/abc", got.Path)
	}
}

// Seed scenario 5: full rewrite round-trip.
func TestScenario_Rewrite(t *testing.T) {
	cfg := NewConfig("h:1").
		WithPathOverride(Replace("/devtools/page/abc")).
		WithHeaderOverride("Host", "h:1")

	req := &httpframe.Request{
		Method:  "GET",
		Path:    "/",
		Version: "HTTP/1.1",
		Headers: []httpframe.HeaderField{{Key: "Host", Value: "x"}},
	}

	got := cfg.Apply(req)
	if got.Method != "GET" || got.Path != "/devtools/page/abc" || got.Version != "HTTP/1.1" {
		t.Fatalf("unexpected rewritten request: %+v", got)
	}
	if len(got.Headers) != 1 || got.Headers[0].Key != "Host" || got.Headers[0].Value != "h:1" {
		t.Fatalf("unexpected headers: %+v", got.Headers)
	}
}

// Header override removes existing same-key entries before appending
// overrides; non-overridden entries keep their relative order.
func TestHeaderOverride_RemovesThenAppends(t *testing.T) {
	cfg := NewConfig("h:1").WithHeaderOverride("Host", "h:1")
	req := &httpframe.Request{
		Method:  "GET",
		Path:    "/",
		Version: "HTTP/1.1",
		Headers: []httpframe.HeaderField{
			{Key: "Accept", Value: "*/*"},
			{Key: "Host", Value: "old"},
			{Key: "User-Agent", Value: "test"},
		},
	}
	got := cfg.Apply(req)
	if len(got.Headers) != 3 {
		t.Fatalf("got %d headers, want 3: %+v", len(got.Headers), got.Headers)
	}
	if got.Headers[0] != (httpframe.HeaderField{Key: "Accept", Value: "*/*"}) {
		t.Fatalf("Accept header order not preserved: %+v", got.Headers[0])
	}
	if got.Headers[1] != (httpframe.HeaderField{Key: "User-Agent", Value: "test"}) {
		t.Fatalf("User-Agent header order not preserved: %+v", got.Headers[1])
	}
	if got.Headers[2] != (httpframe.HeaderField{Key: "Host", Value: "h:1"}) {
		t.Fatalf("Host override not appended: %+v", got.Headers[2])
	}
}
