// Command instance-container runs one ChromeBrowser instance: it launches
// headless Chrome and the tzafonwright automation server, exposes Chrome's
// DevTools endpoint over a static rewrite proxy on --cdp-port (tzafonwright
// listens on --tzafonwright-port itself, unproxied), and registers itself with
// the registry as a ChromeBrowser, posting heartbeats and system metrics
// until killed. Grounded in
// rust-instance-container/src/browser/main.rs.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/url"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/tzafon/waypoint/internal/browserproc"
	"github.com/tzafon/waypoint/internal/gateway"
	"github.com/tzafon/waypoint/internal/healthloop"
	"github.com/tzafon/waypoint/internal/instance"
	"github.com/tzafon/waypoint/internal/logging"
	"github.com/tzafon/waypoint/internal/metricsloop"
	"github.com/tzafon/waypoint/internal/rpcproto"
	"github.com/tzafon/waypoint/internal/staticfactory"
	"github.com/tzafon/waypoint/internal/tlsconf"
	"go.uber.org/zap"
)

const instanceIDPrefix = "browser-container"

func main() {
	chromeBinaryPath := flag.String("chrome-binary-path", "", "Path to the Chrome binary")
	cdpPort := flag.Int("cdp-port", 9222, "Port to accept connections on")
	tzafonwrightPort := flag.Int("tzafonwright-port", 1337, "Tzafonwright port")
	tzafonwrightBinaryPath := flag.String("tzafonwright-binary-path", "/app/tzafonwright", "Path to the Tzafonwright project directory")
	instanceManagerAddr := flag.String("instance-manager", "", "Registry RPC address")
	caPath := flag.String("ca-path", tlsconf.ClientPaths.CAPath, "Path to the CA certificate")
	certPath := flag.String("cert-path", tlsconf.ClientPaths.CertPath, "Path to the client certificate")
	keyPath := flag.String("key-path", tlsconf.ClientPaths.KeyPath, "Path to the client key")
	ipAddress := flag.String("ip-address", "", "IP address to advertise (defaults to `hostname -i`)")
	debugLog := flag.Bool("debug-log", false, "Enable debug logging")
	flag.Parse()

	logger, closer, err := logging.New(logging.Config{Level: logging.DebugEnabled(*debugLog)})
	if err != nil {
		fmt.Fprintln(flag.CommandLine.Output(), "instance-container: failed to initialize logger:", err)
		return
	}
	logging.SetGlobal(logger)
	defer logging.Global().Sync()
	if closer != nil {
		defer closer.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ip := *ipAddress
	if ip == "" {
		resolved, err := hostnameIP()
		if err != nil {
			logging.Fatal("instance-container: failed to get IP address", zap.Error(err))
		}
		ip = resolved
	}
	logging.Info("instance-container: ip address", zap.String("ip", ip))

	wsPath, err := browserproc.StartChrome(ctx, *chromeBinaryPath)
	if err != nil {
		logging.Fatal("instance-container: failed to start chrome", zap.Error(err))
	}
	logging.Info("instance-container: chrome started", zap.String("ws_path", wsPath))

	if err := browserproc.StartTzafonwright(ctx, *tzafonwrightBinaryPath, wsPath, *tzafonwrightPort); err != nil {
		logging.Fatal("instance-container: failed to start tzafonwright", zap.Error(err))
	}
	logging.Info("instance-container: tzafonwright started")

	u, err := url.Parse(wsPath)
	if err != nil {
		logging.Fatal("instance-container: failed to parse devtools ws url", zap.Error(err))
	}
	serverAddr := u.Host

	staticProxy := staticfactory.New(serverAddr, u.Path)
	go func() {
		addr := fmt.Sprintf("0.0.0.0:%d", *cdpPort)
		logging.Info("instance-container: cdp proxy listening", zap.String("addr", addr))
		if err := gateway.Serve(ctx, addr, staticProxy); err != nil {
			logging.Error("instance-container: cdp proxy stopped", zap.Error(err))
		}
	}()
	logging.Info("instance-container: proxy started")

	tlsConfig, err := tlsconf.ClientConfig(tlsconf.Paths{CAPath: *caPath, CertPath: *certPath, KeyPath: *keyPath})
	if err != nil {
		logging.Fatal("instance-container: failed to load TLS material", zap.Error(err))
	}

	client, err := healthloop.DialWithBackoff(ctx, func() (*rpcproto.Client, error) {
		return rpcproto.Dial(*instanceManagerAddr, tlsConfig)
	})
	if err != nil {
		logging.Fatal("instance-container: failed to dial registry", zap.Error(err))
	}
	defer client.Close()

	selfID := instance.ID(fmt.Sprintf("%s-%s", instanceIDPrefix, uuid.NewString()))
	logging.Info("instance-container: instance id", zap.String("instance_id", string(selfID)))

	services := map[instance.ServiceKind]instance.ServiceEndpoint{
		instance.ChromeDebugPort: {Address: fmt.Sprintf("%s:%d", ip, *cdpPort)},
		instance.AutomationPort:  {Address: fmt.Sprintf("%s:%d", ip, *tzafonwrightPort)},
	}

	if err := healthloop.Start(ctx, stop, client, selfID, instance.ChromeBrowser, services); err != nil {
		logging.Fatal("instance-container: failed to start instance manager connection", zap.Error(err))
	}
	metricsloop.Start(ctx, client, selfID)

	<-ctx.Done()
	logging.Info("instance-container: exiting")
}

func hostnameIP() (string, error) {
	out, err := exec.Command("hostname", "-i").Output()
	if err != nil {
		return "", fmt.Errorf("instance-container: hostname -i: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

