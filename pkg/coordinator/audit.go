package coordinator

import (
	"strings"

	"github.com/syldej/gluster-block/internal/glog"
	"github.com/syldej/gluster-block/pkg/block"
	"github.com/syldej/gluster-block/pkg/gberrors"
	"github.com/syldej/gluster-block/pkg/volume"
)

// auditAndRewind reconciles the configured multipath factor against the
// hosts actually reporting CONFIGSUCCESS. hosts[:mpath] were the primary
// fan-out targets; the remainder are spares held in reserve. On each round
// it re-reads the metadata log and counts, over the latest status per
// address: successes, failures, and in-progress entries. Every address
// whose latest status is CONFIGSUCCESS, CONFIGFAIL or CONFIGINPROGRESS is
// spent; hosts beyond that point are the spares still untouched for this
// block. If the deficit can
// be covered it fans a fresh create out to exactly that many spares and
// re-audits; a host that already reported a final status is never retried,
// so addresses accumulate in request order. If the spares cannot cover the
// deficit it stops without dispatching anything further and the caller
// rewinds.
//
// Each round consumes at least one spare, so the loop runs at most
// len(hosts) times; the round counter is a hard cap on top of that, not the
// termination condition. Returns the composite reply text of every round it
// ran, joined in round order, so the caller can append it to the primary
// fan-out's own text.
func auditAndRewind(v *volume.Handle, blockName string, mpath int, hosts []string, volumeName, volfileserver, gbid string, size uint64) (string, error) {
	if mpath > len(hosts) {
		return "", &gberrors.ErrMultipathExceedsHosts{Mpath: uint32(mpath), Hosts: len(hosts)}
	}

	var rounds []string
	joined := func() string { return strings.Join(rounds, "\n") }

	for round := 0; round <= len(hosts); round++ {
		m, err := block.Open(v, blockName)
		if err != nil {
			return joined(), err
		}

		success := m.CountByStatus(block.ConfigSuccess)
		spent := m.CountByStatus(block.ConfigSuccess, block.ConfigFail, block.ConfigInProgress)
		need := mpath - success
		spare := len(hosts) - spent

		if need <= 0 {
			return joined(), nil
		}
		if spare == 0 || spare < need {
			glog.Warningf("no spare nodes for %s: need %d, have %d", blockName, need, spare)
			return joined(), &gberrors.ErrNoSpareNodes{BlockName: blockName, Need: need, Spare: spare}
		}

		next := hosts[spent : spent+need]
		rounds = append(rounds, fanOut(v, blockName, next, createOp(volumeName, volfileserver, blockName, gbid, size)))
	}

	// Unreachable while each round spends at least one host; kept so a log
	// anomaly can never spin this loop forever.
	return joined(), &gberrors.ErrNoSpareNodes{BlockName: blockName, Need: mpath, Spare: 0}
}
