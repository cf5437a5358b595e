// Command claim-gateway runs the warm-pool claim proxy: on every accepted
// connection it claims a free ChromeBrowser instance from the registry and
// proxies to its chrome-debug or automation service, killing the claimed
// instance once the connection ends. Grounded in
// rust-instance-container/src/browser/ephemeral_browser_proxy.rs's
// ChromeWarmpoolProxyConfig binary wiring.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/tzafon/waypoint/internal/claimfactory"
	"github.com/tzafon/waypoint/internal/gateway"
	"github.com/tzafon/waypoint/internal/healthloop"
	"github.com/tzafon/waypoint/internal/instance"
	"github.com/tzafon/waypoint/internal/logging"
	"github.com/tzafon/waypoint/internal/rpcproto"
	"github.com/tzafon/waypoint/internal/tlsconf"
	"go.uber.org/zap"
)

const instanceIDPrefix = "ephemeral-browser-proxy"

func main() {
	cdpPort := flag.Int("cdp-port", 9222, "Port to accept Chrome DevTools connections on")
	automationPort := flag.Int("automation-port", 1337, "Port to accept automation connections on")
	instanceManagerAddr := flag.String("instance-manager", "", "Registry RPC address")
	caPath := flag.String("ca-path", tlsconf.ClientPaths.CAPath, "Path to the CA certificate")
	certPath := flag.String("cert-path", tlsconf.ClientPaths.CertPath, "Path to the client certificate")
	keyPath := flag.String("key-path", tlsconf.ClientPaths.KeyPath, "Path to the client key")
	instanceID := flag.String("instance-id", os.Getenv("HOSTNAME"), "This instance's own id (defaults to $HOSTNAME)")
	debugLog := flag.Bool("debug-log", false, "Enable debug logging")
	flag.Parse()

	logger, closer, err := logging.New(logging.Config{Level: logging.DebugEnabled(*debugLog)})
	if err != nil {
		fmt.Fprintln(flag.CommandLine.Output(), "claim-gateway: failed to initialize logger:", err)
		return
	}
	logging.SetGlobal(logger)
	defer logging.Global().Sync()
	if closer != nil {
		defer closer.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	selfID := instance.ID(*instanceID)
	if selfID == "" {
		selfID = instance.ID(fmt.Sprintf("%s-%s", instanceIDPrefix, uuid.NewString()))
	}

	tlsConfig, err := tlsconf.ClientConfig(tlsconf.Paths{CAPath: *caPath, CertPath: *certPath, KeyPath: *keyPath})
	if err != nil {
		logging.Fatal("claim-gateway: failed to load TLS material", zap.Error(err))
	}

	client, err := healthloop.DialWithBackoff(ctx, func() (*rpcproto.Client, error) {
		return rpcproto.Dial(*instanceManagerAddr, tlsConfig)
	})
	if err != nil {
		logging.Fatal("claim-gateway: failed to dial registry", zap.Error(err))
	}
	defer client.Close()

	if err := healthloop.Start(ctx, stop, client, selfID, instance.WarmpoolChromeProxy, nil); err != nil {
		logging.Fatal("claim-gateway: failed to start health loop", zap.Error(err))
	}

	cdpFactory := &claimfactory.Factory{
		Client:     client,
		CallerID:   selfID,
		TargetType: instance.ChromeBrowser,
		ProxyKind:  instance.ChromeDebugPort,
	}
	automationFactory := &claimfactory.Factory{
		Client:     client,
		CallerID:   selfID,
		TargetType: instance.ChromeBrowser,
		ProxyKind:  instance.AutomationPort,
	}

	go func() {
		addr := fmt.Sprintf("0.0.0.0:%d", *cdpPort)
		logging.Info("claim-gateway: cdp proxy listening", zap.String("addr", addr))
		if err := gateway.Serve(ctx, addr, cdpFactory); err != nil {
			logging.Error("claim-gateway: cdp proxy stopped", zap.Error(err))
		}
	}()

	addr := fmt.Sprintf("0.0.0.0:%d", *automationPort)
	logging.Info("claim-gateway: automation proxy listening", zap.String("addr", addr))
	if err := gateway.Serve(ctx, addr, automationFactory); err != nil {
		logging.Error("claim-gateway: automation proxy stopped", zap.Error(err))
	}
}
