package gateway

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/tzafon/waypoint/internal/httpframe"
)

// echoFactory dials a local echo-style backend that just reflects whatever
// bytes it receives back, after accepting the rewritten request.
type echoFactory struct {
	backendAddr string
	closed      chan CloseResult
}

func (f *echoFactory) Claim(ctx context.Context, req *httpframe.Request) (net.Conn, *httpframe.Request, func(CloseResult), error) {
	conn, err := net.Dial("tcp", f.backendAddr)
	if err != nil {
		return nil, nil, nil, err
	}
	return conn, req, func(r CloseResult) { f.closed <- r }, nil
}

func startEchoBackend(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				buf := make([]byte, 4096)
				for {
					n, err := c.Read(buf)
					if n > 0 {
						c.Write(buf[:n])
					}
					if err != nil {
						return
					}
				}
			}(conn)
		}
	}()
	t.Cleanup(func() { ln.Close() })
	return ln.Addr().String()
}

func TestServe_ProxiesRequestAndCopiesBody(t *testing.T) {
	backendAddr := startEchoBackend(t)
	factory := &echoFactory{backendAddr: backendAddr, closed: make(chan CloseResult, 1)}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	listenAddr := ln.Addr().String()
	ln.Close()

	errCh := make(chan error, 1)
	go func() { errCh <- Serve(ctx, listenAddr, factory) }()
	time.Sleep(50 * time.Millisecond)

	conn, err := net.Dial("tcp", listenAddr)
	if err != nil {
		t.Fatalf("dial gateway: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte("GET / HTTP/1.1\r\nHost: x\r\n\r\n")); err != nil {
		t.Fatalf("write request: %v", err)
	}
	if _, err := conn.Write([]byte("hello-body")); err != nil {
		t.Fatalf("write body: %v", err)
	}

	reader := bufio.NewReader(conn)
	buf := make([]byte, len("GET / HTTP/1.1\r\nHost: x\r\n\r\nhello-body"))
	n := 0
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for n < len(buf) {
		m, err := reader.Read(buf[n:])
		if err != nil {
			t.Fatalf("read echoed bytes (got %d/%d): %v", n, len(buf), err)
		}
		n += m
	}
	if string(buf) != "GET / HTTP/1.1\r\nHost: x\r\n\r\nhello-body" {
		t.Fatalf("unexpected echo: %q", buf)
	}

	conn.Close()
	select {
	case <-factory.closed:
	case <-time.After(2 * time.Second):
		t.Fatalf("close callback never invoked")
	}
}
