// Command instance-query lists registered instances of a given type,
// optionally filtered by whether they have a parent and whether they are
// alive, and prints a child-count table keyed by parent instance id.
// Grounded in rust-instance-manager/src/cli.rs.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sync"

	"github.com/tzafon/waypoint/internal/instance"
	"github.com/tzafon/waypoint/internal/logging"
	"github.com/tzafon/waypoint/internal/rpcproto"
	"github.com/tzafon/waypoint/internal/tlsconf"
	"go.uber.org/zap"
)

func main() {
	instanceType := flag.String("instance-type", "", "Instance type to query (ChromeBrowser, Agent, WarmpoolChromeProxy, FakeInstance)")
	hasParent := flag.Bool("has-parent", false, "Only show instances with (true) or without (false) a parent")
	alive := flag.Bool("alive", true, "Only show instances that are alive (true) or dead (false)")
	instanceManagerAddr := flag.String("instance-manager", "", "Registry RPC address")
	caPath := flag.String("ca-path", tlsconf.ClientPaths.CAPath, "Path to the CA certificate")
	certPath := flag.String("cert-path", tlsconf.ClientPaths.CertPath, "Path to the client certificate")
	keyPath := flag.String("key-path", tlsconf.ClientPaths.KeyPath, "Path to the client key")
	debugLog := flag.Bool("debug-log", false, "Enable debug logging")
	flag.Parse()

	logger, closer, err := logging.New(logging.Config{Level: logging.DebugEnabled(*debugLog)})
	if err != nil {
		fmt.Fprintln(os.Stderr, "instance-query: failed to initialize logger:", err)
		os.Exit(1)
	}
	logging.SetGlobal(logger)
	defer logging.Global().Sync()
	if closer != nil {
		defer closer.Close()
	}

	if *instanceType == "" {
		fmt.Fprintln(os.Stderr, "instance-query: --instance-type is required")
		os.Exit(1)
	}

	ctx := context.Background()

	tlsConfig, err := tlsconf.ClientConfig(tlsconf.Paths{CAPath: *caPath, CertPath: *certPath, KeyPath: *keyPath})
	if err != nil {
		logging.Fatal("instance-query: failed to load TLS material", zap.Error(err))
	}

	client, err := rpcproto.Dial(*instanceManagerAddr, tlsConfig)
	if err != nil {
		logging.Fatal("instance-query: failed to dial registry", zap.Error(err))
	}
	defer client.Close()

	typ := instance.Type(*instanceType)
	ids, err := client.GetAllInstances(ctx, typ)
	if err != nil {
		logging.Fatal("instance-query: get_all_instances failed", zap.Error(err))
	}
	logging.Info("instance-query: instances found", zap.Int("count", len(ids)), zap.String("type", *instanceType))

	descs := make([]*instance.Description, len(ids))
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id instance.ID) {
			defer wg.Done()
			desc, err := client.GetInstance(ctx, id)
			if err != nil {
				logging.Info("instance-query: get_instance error", zap.String("instance_id", string(id)), zap.Error(err))
				return
			}
			descs[i] = desc
		}(i, id)
	}
	wg.Wait()

	numChildren := make(map[instance.ID]int)
	for _, desc := range descs {
		if desc == nil {
			continue
		}
		hasP := desc.Parent != nil
		if hasP != *hasParent {
			continue
		}
		isAlive := desc.HealthCheck != nil && desc.KillInstanceRequest == nil
		if isAlive != *alive {
			continue
		}
		if desc.Parent == nil {
			logging.Info("instance-query: no parent instance id found, skipping", zap.String("instance_id", string(desc.InstanceID)))
			continue
		}
		numChildren[desc.Parent.InstanceID]++
	}

	logging.Info("instance-query: child count by parent", zap.Any("num_children", numChildren))
}
