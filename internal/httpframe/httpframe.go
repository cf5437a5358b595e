// Package httpframe implements the minimal HTTP/1.1 framing the gateway
// needs: read request line + headers up to the terminating blank line,
// parse into a Request, and write a (possibly rewritten) Request back out
// in the same insertion order. No body buffering - the body, if any, is
// left to the subsequent bidirectional copy. Grounded in
// rust-shared/src/socket_gateway/http_proxy.rs's read_until_empty_line /
// Request::new / write_to_stream.
package httpframe

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrParse is returned for any malformed request: missing method/path/
// version, a header line with no colon, or no terminating blank line.
var ErrParse = errors.New("httpframe: parse error")

// HeaderField is one header line, key and value as split on the first
// colon and trimmed. Kept as an ordered slice, not a map, so write-back
// preserves the original order (and override semantics in internal/rewrite
// stay well-defined).
type HeaderField struct {
	Key   string
	Value string
}

// Request is a parsed HTTP/1.1 request line plus headers.
type Request struct {
	Method  string
	Path    string
	Version string
	Headers []HeaderField
}

const terminator = "\r\n\r\n"

// Parse reads from r until the exact CRLFCRLF terminator and parses the
// request line and headers. It never reads past the terminator, so the
// request body (if any) remains unread on r for the caller to relay
// verbatim.
func Parse(r io.Reader) (*Request, error) {
	raw, err := readUntilEmptyLine(r)
	if err != nil {
		return nil, err
	}

	lines := strings.Split(strings.TrimSuffix(raw, terminator), "\r\n")
	if len(lines) == 0 || lines[0] == "" {
		return nil, fmt.Errorf("%w: empty request", ErrParse)
	}

	req := &Request{}
	if err := parseRequestLine(lines[0], req); err != nil {
		return nil, err
	}

	for _, line := range lines[1:] {
		if line == "" {
			continue
		}
		field, err := parseHeaderLine(line)
		if err != nil {
			return nil, err
		}
		req.Headers = append(req.Headers, field)
	}

	return req, nil
}

// readUntilEmptyLine reads byte by byte, appending to an accumulating
// string, until the buffer ends with CRLFCRLF. It issues a single-byte
// Read call directly against r for every byte - never wrapping r in a
// bufio.Reader or any other pre-fetching buffer - so that a transport
// like *net.TCPConn never has body bytes (or pipelined bytes following
// the header block) silently pulled into a buffer that is discarded when
// this function returns. Byte-at-a-time matches the original's approach
// of never over-reading into the body.
func readUntilEmptyLine(r io.Reader) (string, error) {
	var sb strings.Builder
	var buf [1]byte
	for {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return "", fmt.Errorf("%w: %v", ErrParse, err)
		}
		sb.WriteByte(buf[0])
		if strings.HasSuffix(sb.String(), terminator) {
			return sb.String(), nil
		}
	}
}

func parseRequestLine(line string, req *Request) error {
	parts := strings.SplitN(line, " ", 3)
	if len(parts) != 3 {
		return fmt.Errorf("%w: malformed request line %q", ErrParse, line)
	}
	req.Method, req.Path, req.Version = parts[0], parts[1], parts[2]
	if req.Method == "" || req.Path == "" || req.Version == "" {
		return fmt.Errorf("%w: missing method/path/version", ErrParse)
	}
	return nil
}

func parseHeaderLine(line string) (HeaderField, error) {
	idx := strings.Index(line, ":")
	if idx < 0 {
		return HeaderField{}, fmt.Errorf("%w: malformed header %q", ErrParse, line)
	}
	return HeaderField{
		Key:   strings.TrimSpace(line[:idx]),
		Value: strings.TrimSpace(line[idx+1:]),
	}, nil
}

// WriteTo emits the request line, each header in insertion order, and the
// terminating blank line.
func (req *Request) WriteTo(w io.Writer) error {
	bw := bufio.NewWriter(w)

	if _, err := fmt.Fprintf(bw, "%s %s %s\r\n", req.Method, req.Path, req.Version); err != nil {
		return err
	}
	for _, h := range req.Headers {
		if _, err := fmt.Fprintf(bw, "%s: %s\r\n", h.Key, h.Value); err != nil {
			return err
		}
	}
	if _, err := bw.WriteString("\r\n"); err != nil {
		return err
	}
	return bw.Flush()
}
