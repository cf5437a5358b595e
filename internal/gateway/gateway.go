// Package gateway implements the Ephemeral Proxy Gateway's data plane: bind
// a TCP listener, and for each accepted client parse one HTTP/1.1 request,
// hand it to a pluggable ConnectionFactory, write the (rewritten) request
// upstream, then splice the two sockets until either side closes.
// Grounded in rust-shared/src/socket_gateway/simple_gateway.rs's
// start_simple_http_gateway_with_proxy_config accept loop, and in the
// teacher's internal/proxy/tcp/proxy.go pipe() for the bidirectional copy.
package gateway

import (
	"context"
	"errors"
	"io"
	"net"
	"time"

	"github.com/tzafon/waypoint/internal/httpframe"
	"github.com/tzafon/waypoint/internal/logging"
	"go.uber.org/zap"
)

// CloseResult is passed to a ConnectionFactory's close callback describing
// how the proxied stream ended.
type CloseResult struct {
	Err error
}

// ConnectionFactory is the capability set Design Note 9 calls for: turn one
// freshly-parsed client request into an upstream connection, plus a
// callback invoked once the proxied stream terminates. Two concrete
// implementations satisfy it: internal/claimfactory (claims a registry
// instance per connection) and internal/staticfactory (always dials the
// same backend, used by the container's own exposed ports).
type ConnectionFactory interface {
	// Claim resolves req into an upstream connection and the (possibly
	// rewritten) request to write to it. The returned close func is
	// invoked exactly once, after the proxied stream ends.
	Claim(ctx context.Context, req *httpframe.Request) (upstream net.Conn, rewritten *httpframe.Request, close func(CloseResult), err error)
}

// Serve binds listenAddr and runs the accept loop until ctx is cancelled.
// Each accepted connection is handled on its own goroutine; a per-connection
// error is logged and isolated, never propagated to the listener.
func Serve(ctx context.Context, listenAddr string, factory ConnectionFactory) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", listenAddr)
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			logging.Warn("gateway: accept error", zap.Error(err))
			continue
		}

		go handleConnection(ctx, conn, factory)
	}
}

func handleConnection(ctx context.Context, client net.Conn, factory ConnectionFactory) {
	defer client.Close()

	req, err := httpframe.Parse(client)
	if err != nil {
		logging.Warn("gateway: parse error", zap.Error(err))
		return
	}

	upstream, rewritten, closeCB, err := factory.Claim(ctx, req)
	if err != nil {
		logging.Warn("gateway: claim failed", zap.Error(err))
		return
	}
	defer upstream.Close()

	if err := rewritten.WriteTo(upstream); err != nil {
		logging.Warn("gateway: failed writing rewritten request upstream", zap.Error(err))
		if closeCB != nil {
			closeCB(CloseResult{Err: err})
		}
		return
	}

	err = pipe(ctx, client, upstream)
	if closeCB != nil {
		closeCB(CloseResult{Err: err})
	}
}

// pipe performs a bidirectional byte copy between client and upstream,
// closing the write side of each once the opposite direction reaches EOF.
// It returns ctx.Err() as soon as ctx is cancelled; otherwise, once one
// direction's copy completes it waits up to 5 seconds for the other, then
// returns the first direction's error.
func pipe(ctx context.Context, client, upstream net.Conn) error {
	errCh := make(chan error, 2)

	go func() {
		_, err := io.Copy(upstream, client)
		closeWrite(upstream)
		errCh <- err
	}()
	go func() {
		_, err := io.Copy(client, upstream)
		closeWrite(client)
		errCh <- err
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		select {
		case <-time.After(5 * time.Second):
		case <-errCh:
		}
		return err
	}
}

type writeCloser interface {
	CloseWrite() error
}

func closeWrite(conn net.Conn) {
	if wc, ok := conn.(writeCloser); ok {
		wc.CloseWrite()
	}
}
