package coordinator

import (
	"strings"
	"sync"

	"github.com/syldej/gluster-block/internal/glog"
	"github.com/syldej/gluster-block/pkg/block"
	"github.com/syldej/gluster-block/pkg/rpcapi"
	"github.com/syldej/gluster-block/pkg/rpctransport"
	"github.com/syldej/gluster-block/pkg/volume"
)

// statusTags groups the three per-host status transitions a fan-out appends
// to the metadata log: in-progress before dispatch, then success or fail
// after the worker returns.
type statusTags struct {
	InProgress block.MetaStatus
	Success    block.MetaStatus
	Fail       block.MetaStatus
}

var createTags = statusTags{InProgress: block.ConfigInProgress, Success: block.ConfigSuccess, Fail: block.ConfigFail}
var deleteTags = statusTags{InProgress: block.CleanupInProgress, Success: block.CleanupSuccess, Fail: block.CleanupFail}

// remoteOp is the operation a fan-out dispatches to every host: the RPC
// service method to call, a per-host argument builder, and the status trio
// to record. A small descriptor rather than an interface hierarchy; there
// are exactly two instances, createOp and deleteOp.
type remoteOp struct {
	method string // "Agent.Create" or "Agent.Delete"
	args   func(addr string) interface{}
	tags   statusTags
}

// fanOut appends "<addr>: tags.InProgress" then dispatches op to every host
// in hosts, one goroutine per host, and awaits all of them before returning.
// A slow or failing host never blocks or cancels a sibling: each goroutine
// is independent and only the transport timeout in pkg/rpctransport bounds
// its runtime. A transport error and a remote non-zero exit both record
// tags.Fail for that host.
//
// Per-host reply text is collected into a slice indexed by host position
// and joined once at the end; each goroutine writes only its own index, so
// no lock guards the replies.
func fanOut(v *volume.Handle, blockName string, hosts []string, op remoteOp) string {
	var wg sync.WaitGroup
	replies := make([]string, len(hosts))

	for i, addr := range hosts {
		wg.Add(1)
		go func(i int, addr string) {
			defer wg.Done()

			if err := v.AppendMeta(blockName, block.SerializeHost(addr, op.tags.InProgress)); err != nil {
				glog.Errorf("appending %s status for %s on %s: %v", op.tags.InProgress, blockName, addr, err)
			}

			var resp rpcapi.Response
			err := rpctransport.Call(addr, op.method, op.args(addr), &resp)

			status := op.tags.Success
			switch {
			case err != nil:
				status = op.tags.Fail
				glog.Errorf("%s on host %s for %s: %v", op.method, addr, blockName, err)
			case resp.Exit != 0:
				status = op.tags.Fail
				glog.Errorf("%s on host %s for %s: exit %d: %s", op.method, addr, blockName, resp.Exit, resp.Out)
			}

			if aerr := v.AppendMeta(blockName, block.SerializeHost(addr, status)); aerr != nil {
				glog.Errorf("appending %s status for %s on %s: %v", status, blockName, addr, aerr)
			}
			replies[i] = resp.Out
		}(i, addr)
	}

	wg.Wait()
	return strings.Join(replies, "\n")
}

// createOp builds the remoteOp descriptor for Agent.Create.
func createOp(volumeName, volfileserver, blockName, gbid string, size uint64) remoteOp {
	return remoteOp{
		method: "Agent.Create",
		args: func(addr string) interface{} {
			return &rpcapi.CreateArgs{
				Volume:        volumeName,
				VolFileServer: volfileserver,
				BlockName:     blockName,
				Gbid:          gbid,
				Size:          size,
			}
		},
		tags: createTags,
	}
}

// deleteOp builds the remoteOp descriptor for Agent.Delete.
func deleteOp(blockName, gbid string) remoteOp {
	return remoteOp{
		method: "Agent.Delete",
		args: func(addr string) interface{} {
			return &rpcapi.DeleteArgs{BlockName: blockName, Gbid: gbid}
		},
		tags: deleteTags,
	}
}
