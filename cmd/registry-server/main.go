// Command registry-server runs the Instance Manager: the Registry RPC
// service (internal/rpcproto, internal/registry), the reaper sweep
// (internal/reaper), and the read-only status page (internal/statuspage).
// Grounded in rust-instance-manager/src/lib.rs's binary wiring.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/tzafon/waypoint/internal/instance"
	"github.com/tzafon/waypoint/internal/logging"
	"github.com/tzafon/waypoint/internal/reaper"
	"github.com/tzafon/waypoint/internal/registry"
	"github.com/tzafon/waypoint/internal/rpcproto"
	"github.com/tzafon/waypoint/internal/statuspage"
	"github.com/tzafon/waypoint/internal/tlsconf"
	"go.uber.org/zap"
)

func main() {
	port := flag.Int("port", 50052, "Registry RPC listen port")
	statusPagePort := flag.Int("status-page-port", 4242, "Status page HTTP listen port")
	caPath := flag.String("ca-path", tlsconf.ServerPaths.CAPath, "Path to the CA certificate")
	certPath := flag.String("cert-path", tlsconf.ServerPaths.CertPath, "Path to the server certificate")
	keyPath := flag.String("key-path", tlsconf.ServerPaths.KeyPath, "Path to the server key")
	debugLog := flag.Bool("debug-log", false, "Enable debug logging")
	flag.Parse()

	logger, closer, err := logging.New(logging.Config{Level: logging.DebugEnabled(*debugLog)})
	if err != nil {
		fmt.Fprintln(flag.CommandLine.Output(), "registry-server: failed to initialize logger:", err)
		return
	}
	logging.SetGlobal(logger)
	defer logging.Global().Sync()
	if closer != nil {
		defer closer.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tlsConfig, err := tlsconf.ServerConfig(tlsconf.Paths{CAPath: *caPath, CertPath: *certPath, KeyPath: *keyPath})
	if err != nil {
		logging.Fatal("registry-server: failed to load TLS material", zap.Error(err))
	}

	reg := registry.New()

	grpcServer := rpcproto.NewGRPCServer(tlsConfig, reg)
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", *port))
	if err != nil {
		logging.Fatal("registry-server: failed to bind RPC port", zap.Int("port", *port), zap.Error(err))
	}

	go reaper.Run(ctx, reg)

	statusSrv := statuspage.New(reg)
	mux := http.NewServeMux()
	mux.HandleFunc("/browsers", func(w http.ResponseWriter, r *http.Request) {
		if id := r.URL.Query().Get("instance_id"); id != "" {
			html, err := statusSrv.Instance(instance.ID(id))
			if err != nil {
				http.Error(w, err.Error(), http.StatusNotFound)
				return
			}
			w.Write([]byte(html))
			return
		}
		html, err := statusSrv.Dashboard()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Write([]byte(html))
	})
	httpSrv := &http.Server{Addr: fmt.Sprintf(":%d", *statusPagePort), Handler: mux}

	go func() {
		logging.Info("registry-server: status page listening", zap.Int("port", *statusPagePort))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error("registry-server: status page server error", zap.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		grpcServer.GracefulStop()
		httpSrv.Shutdown(context.Background())
	}()

	logging.Info("registry-server: RPC listening", zap.Int("port", *port))
	if err := grpcServer.Serve(lis); err != nil {
		logging.Error("registry-server: RPC server error", zap.Error(err))
	}
}
