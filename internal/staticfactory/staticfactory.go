// Package staticfactory implements the container's own static forwarding
// proxy: unlike internal/claimfactory, every connection dials the same
// fixed backend under a fixed rewrite.Config, with no registry interaction
// at all. Grounded in
// rust-instance-container/src/browser/main.rs's HttpProxyConfig::new +
// with_header_override + with_path_override wiring ahead of
// start_simple_http_gateway_with_proxy_config.
package staticfactory

import (
	"context"
	"net"

	"github.com/tzafon/waypoint/internal/gateway"
	"github.com/tzafon/waypoint/internal/httpframe"
	"github.com/tzafon/waypoint/internal/rewrite"
)

// Factory is a gateway.ConnectionFactory that always dials Config.ServerAddr
// and applies Config's rewrite rule, with no close-time side effect.
type Factory struct {
	Config rewrite.Config
}

// New returns a Factory dialing addr, replacing every request path with
// path and overriding the Host header to addr - the shape the
// instance-container binary's own cdp_port proxy uses.
func New(addr, path string) *Factory {
	return &Factory{
		Config: rewrite.NewConfig(addr).
			WithPathOverride(rewrite.Replace(path)).
			WithHeaderOverride("Host", addr),
	}
}

// Claim implements gateway.ConnectionFactory.
func (f *Factory) Claim(ctx context.Context, req *httpframe.Request) (net.Conn, *httpframe.Request, func(gateway.CloseResult), error) {
	conn, err := net.Dial("tcp", f.Config.ServerAddr)
	if err != nil {
		return nil, nil, nil, err
	}
	rewritten := f.Config.Apply(req)
	return conn, rewritten, func(gateway.CloseResult) {}, nil
}
