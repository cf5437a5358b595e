package httpframe

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

// R2: parse then write of any well-formed HTTP/1.1 request header block
// yields the same request line and header key/value list.
func TestParseWriteRoundTrip(t *testing.T) {
	raw := "GET / HTTP/1.1\r\nHost: example.com\r\nContent-Length: 10\r\n\r\n"

	req, err := Parse(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if req.Method != "GET" || req.Path != "/" || req.Version != "HTTP/1.1" {
		t.Fatalf("unexpected request line: %+v", req)
	}
	want := []HeaderField{{"Host", "example.com"}, {"Content-Length", "10"}}
	if len(req.Headers) != len(want) {
		t.Fatalf("got %d headers, want %d", len(req.Headers), len(want))
	}
	for i, h := range want {
		if req.Headers[i] != h {
			t.Fatalf("header[%d] = %+v, want %+v", i, req.Headers[i], h)
		}
	}

	var buf bytes.Buffer
	if err := req.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	if buf.String() != raw {
		t.Fatalf("round-trip mismatch:\ngot:  %q\nwant: %q", buf.String(), raw)
	}
}

func TestParse_MissingBlankLine(t *testing.T) {
	_, err := Parse(strings.NewReader("GET / HTTP/1.1\r\nHost: x\r\n"))
	if err == nil {
		t.Fatalf("expected parse error for missing terminator")
	}
}

func TestParse_MalformedHeader(t *testing.T) {
	_, err := Parse(strings.NewReader("GET / HTTP/1.1\r\nHostexample.com\r\n\r\n"))
	if err == nil {
		t.Fatalf("expected parse error for header with no colon")
	}
}

func TestParse_MalformedRequestLine(t *testing.T) {
	_, err := Parse(strings.NewReader("GET /\r\n\r\n"))
	if err == nil {
		t.Fatalf("expected parse error for request line missing version")
	}
}

// Body bytes after the terminator are left unread, for the caller to relay
// verbatim via a bidirectional copy.
func TestParse_DoesNotConsumeBody(t *testing.T) {
	r := strings.NewReader("GET / HTTP/1.1\r\n\r\nBODYBYTES")
	if _, err := Parse(r); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	rest := make([]byte, len("BODYBYTES"))
	n, err := r.Read(rest)
	if err != nil {
		t.Fatalf("reading remaining body: %v", err)
	}
	if string(rest[:n]) != "BODYBYTES" {
		t.Fatalf("body bytes consumed or altered: %q", rest[:n])
	}
}

// bulkReader returns its entire remaining payload on the first Read call,
// the way a *net.TCPConn can hand back everything the kernel received in
// one segment - header block and any pipelined body together - and does
// not implement io.ByteReader, unlike strings.Reader.
type bulkReader struct {
	data []byte
	pos  int
}

func (b *bulkReader) Read(p []byte) (int, error) {
	if b.pos >= len(b.data) {
		return 0, io.EOF
	}
	n := copy(p, b.data[b.pos:])
	b.pos += n
	return n, nil
}

// A transport that delivers the header block and pipelined body bytes in
// a single underlying Read (as a real socket can) must not lose those
// trailing bytes: readUntilEmptyLine must never buffer past the
// terminator regardless of what type of io.Reader it is given.
func TestParse_DoesNotConsumeBody_BulkReader(t *testing.T) {
	r := &bulkReader{data: []byte("GET / HTTP/1.1\r\n\r\nBODYBYTES")}
	if _, err := Parse(r); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	rest := make([]byte, len("BODYBYTES"))
	n, err := r.Read(rest)
	if err != nil {
		t.Fatalf("reading remaining body: %v", err)
	}
	if string(rest[:n]) != "BODYBYTES" {
		t.Fatalf("body bytes consumed or altered: %q", rest[:n])
	}
}
