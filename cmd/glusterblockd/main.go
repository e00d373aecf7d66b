// Command glusterblockd is the node daemon: it listens on one TCP port
// (--port, default rpctransport.DefaultPort) and serves both RPC programs, "Coordinator" and "Agent", off the
// same listener. klog's own flags are registered onto the pflag.FlagSet via
// AddGoFlagSet so -v and friends work alongside ours.
package main

import (
	"flag"
	"fmt"
	"net"

	"github.com/spf13/pflag"
	"k8s.io/klog/v2"

	"github.com/syldej/gluster-block/internal/glog"
	"github.com/syldej/gluster-block/pkg/agent"
	"github.com/syldej/gluster-block/pkg/coordinator"
	"github.com/syldej/gluster-block/pkg/rpctransport"
)

var (
	volumesRoot = pflag.String("volumes-root", "/var/lib/gluster-block",
		"root directory standing in for the shared distributed filesystem mount")
	port = pflag.Int("port", rpctransport.DefaultPort, "TCP port both RPC programs listen on")
)

func main() {
	klog.InitFlags(nil)
	pflag.CommandLine.AddGoFlagSet(flag.CommandLine)
	pflag.Parse()
	defer klog.Flush()

	coord := coordinator.NewServer(*volumesRoot)

	ag, err := agent.NewServer()
	if err != nil {
		glog.Fatalf("initializing agent: %v", err)
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", *port))
	if err != nil {
		glog.Fatalf("listening on port %d: %v", *port, err)
	}
	glog.Infof("glusterblockd listening on %s (volumes-root %s)", ln.Addr(), *volumesRoot)

	services := map[string]interface{}{
		"Coordinator": coord,
		"Agent":       ag,
	}
	if err := rpctransport.Serve(ln, services); err != nil {
		glog.Fatalf("serving rpc: %v", err)
	}
}
