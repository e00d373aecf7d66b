// Package coordinator implements the CLI-facing RPC service "Coordinator":
// it owns each block's metadata log, fans create/delete operations out to
// the Agent service on candidate hosts (pkg/agent, via pkg/rpctransport),
// and runs the audit loop that reconciles the requested multipath factor
// against what the hosts actually report. A single Server type holds just
// the shared root path, one method per CLI operation, each acquiring the
// per-volume lock before touching shared state.
package coordinator

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/syldej/gluster-block/internal/glog"
	"github.com/syldej/gluster-block/pkg/block"
	"github.com/syldej/gluster-block/pkg/gberrors"
	"github.com/syldej/gluster-block/pkg/rpcapi"
	"github.com/syldej/gluster-block/pkg/volume"
)

// Server is the Coordinator RPC service.
type Server struct {
	// VolumesRoot is the local stand-in for the shared distributed
	// filesystem mountpoint: every volume named in a CLI request becomes
	// VolumesRoot/<volume>.
	VolumesRoot string
}

// NewServer constructs a Coordinator rooted at volumesRoot.
func NewServer(volumesRoot string) *Server {
	return &Server{VolumesRoot: volumesRoot}
}

func (s *Server) openVolume(volumeName, volfileserver string) (*volume.Handle, error) {
	return volume.Open(s.VolumesRoot, volumeName, volfileserver)
}

// CreateCli is the Coordinator.CreateCli RPC handler.
func (s *Server) CreateCli(args *rpcapi.CreateCliArgs, reply *rpcapi.Response) error {
	out, err := s.create(args)
	*reply = rpcapi.Response{Out: out, Exit: gberrors.ExitCode(err)}
	return nil
}

// create guards the multipath factor against the candidate host count,
// claims the per-volume lock, rejects a name already in use, mints a gbid,
// writes the header, creates the backing file, fans create out to the
// primary hosts, then audits to cover any failures with spares. The reply
// text is the accumulated composite text of every fan-out round, in
// dispatch order, not a synthesized summary.
func (s *Server) create(args *rpcapi.CreateCliArgs) (string, error) {
	hosts, err := ParseHosts(args.BlockHosts)
	if err != nil {
		return err.Error(), err
	}
	if int(args.Mpath) > len(hosts) {
		e := &gberrors.ErrMultipathExceedsHosts{Mpath: args.Mpath, Hosts: len(hosts)}
		return e.Error(), e
	}

	v, err := s.openVolume(args.Volume, args.VolFileServer)
	if err != nil {
		return fmt.Sprintf("opening volume %s: %v", args.Volume, err), err
	}
	defer v.Close()

	unlock, err := v.Lock()
	if err != nil {
		return fmt.Sprintf("locking volume %s: %v", args.Volume, err), err
	}
	defer unlock.Unlock()

	if exists, err := v.MetaExists(args.BlockName); err != nil {
		return fmt.Sprintf("checking %s: %v", args.BlockName, err), err
	} else if exists {
		e := &gberrors.ErrBlockExists{BlockName: args.BlockName}
		return e.Error(), e
	}

	gbid := uuid.NewString()
	header := block.SerializeHeader(args.Volume, gbid, args.Size, args.Mpath)
	if err := v.AppendMeta(args.BlockName, strings.TrimRight(header, "\n")); err != nil {
		return fmt.Sprintf("writing metadata for %s: %v", args.BlockName, err), err
	}

	if err := v.CreateStore(gbid, args.Size); err != nil {
		appendEntryCreate(v, args.BlockName, block.EntryCreateFail)
		return fmt.Sprintf("creating backing file for %s: %v", args.BlockName, err), err
	}
	appendEntryCreate(v, args.BlockName, block.EntryCreateSuccess)

	primary := hosts[:args.Mpath]
	out := fanOut(v, args.BlockName, primary, createOp(args.Volume, args.VolFileServer, args.BlockName, gbid, args.Size))

	auditOut, auditErr := auditAndRewind(v, args.BlockName, int(args.Mpath), hosts, args.Volume, args.VolFileServer, gbid, args.Size)
	if auditOut != "" {
		out = strings.Join([]string{out, auditOut}, "\n")
	}
	if auditErr == nil {
		return out, nil
	}

	// The requested multipath factor could not be reached with the
	// available spares: unwind (deleteall=false) every host whose latest
	// status is neither CONFIGSUCCESS nor CLEANUPSUCCESS. Hosts that reached
	// CONFIGSUCCESS are not unwound, so the backing file and metadata log
	// are removed only when no host reached CONFIGSUCCESS and every unwind
	// succeeded; otherwise both are retained.
	meta, rerr := block.Open(v, args.BlockName)
	if rerr != nil {
		glog.Errorf("re-reading metadata for %s after audit failure: %v", args.BlockName, rerr)
		return out, auditErr
	}
	cleanupOut, cerr := cleanupAndMaybeUnlink(v, args.BlockName, meta, false)
	if cleanupOut != "" {
		out = strings.Join([]string{out, cleanupOut}, "\n")
	}
	if cerr != nil {
		glog.Errorf("rewind cleanup for %s: %v", args.BlockName, cerr)
	}
	return out, auditErr
}

func appendEntryCreate(v *volume.Handle, blockName string, status block.EntryCreateStatus) {
	if err := v.AppendMeta(blockName, strings.TrimRight(block.SerializeEntryCreate(status), "\n")); err != nil {
		glog.Errorf("appending ENTRYCREATE %s for %s: %v", status, blockName, err)
	}
}

// DeleteCli is the Coordinator.DeleteCli RPC handler. The CLI always sends
// Deleteall=true; the false mode is reserved for create's own rewind path,
// never for a CLI-initiated delete.
func (s *Server) DeleteCli(args *rpcapi.DeleteCliArgs, reply *rpcapi.Response) error {
	out, err := s.delete(args.Volume, args.BlockName, args.Deleteall)
	*reply = rpcapi.Response{Out: out, Exit: gberrors.ExitCode(err)}
	return nil
}

func (s *Server) delete(volumeName, blockName string, deleteall bool) (string, error) {
	v, err := s.openVolume(volumeName, "")
	if err != nil {
		return fmt.Sprintf("opening volume %s: %v", volumeName, err), err
	}
	defer v.Close()

	unlock, err := v.Lock()
	if err != nil {
		return fmt.Sprintf("locking volume %s: %v", volumeName, err), err
	}
	defer unlock.Unlock()

	meta, err := block.Open(v, blockName)
	if err != nil {
		if block.IsNotFound(err) {
			e := &gberrors.ErrBlockNotFound{BlockName: blockName}
			return e.Error(), e
		}
		return fmt.Sprintf("reading metadata for %s: %v", blockName, err), err
	}

	return cleanupAndMaybeUnlink(v, blockName, meta, deleteall)
}

// deleteTargets builds the cleanup target set: every address whose latest
// status is CONFIGINPROGRESS, CONFIGFAIL, CLEANUPINPROGRESS, or CLEANUPFAIL,
// plus CONFIGSUCCESS when deleteall is true. Addresses already at
// CLEANUPSUCCESS are never re-targeted.
func deleteTargets(meta *block.MetaInfo, deleteall bool) []string {
	want := []block.MetaStatus{block.ConfigInProgress, block.ConfigFail, block.CleanupInProgress, block.CleanupFail}
	if deleteall {
		want = append(want, block.ConfigSuccess)
	}
	return meta.AddrsByStatus(want...)
}

// cleanupAndMaybeUnlink fans Agent.Delete out to deleteTargets(meta,
// deleteall), re-reads the log, and unlinks the backing file and log only if
// every host entry now reads CLEANUPSUCCESS; otherwise both are retained for
// operator inspection. The target set is built from the meta the caller read
// and the unlink decision from a fresh read, as two distinct steps.
func cleanupAndMaybeUnlink(v *volume.Handle, blockName string, meta *block.MetaInfo, deleteall bool) (string, error) {
	targets := deleteTargets(meta, deleteall)
	out := fanOut(v, blockName, targets, deleteOp(blockName, meta.Gbid))

	final, err := block.Open(v, blockName)
	if err != nil {
		return out, fmt.Errorf("re-reading metadata for %s: %w", blockName, err)
	}

	if final.CountByStatus(block.CleanupSuccess) == len(final.Hosts) {
		if err := v.UnlinkStore(final.Gbid); err != nil {
			return out, fmt.Errorf("removing backing file for %s: %w", blockName, err)
		}
		if err := block.Unlink(v, blockName); err != nil {
			return out, fmt.Errorf("removing metadata for %s: %w", blockName, err)
		}
		return out, nil
	}

	unclean := len(final.Hosts) - final.CountByStatus(block.CleanupSuccess)
	return out, fmt.Errorf("cleanup left %d host(s) unclean for %s", unclean, blockName)
}

// ListCli is the Coordinator.ListCli RPC handler. It holds the volume lock
// for the duration of the directory read so the listing is a consistent
// snapshot.
func (s *Server) ListCli(args *rpcapi.ListCliArgs, reply *rpcapi.Response) error {
	v, err := s.openVolume(args.Volume, "")
	if err != nil {
		*reply = rpcapi.Response{Out: fmt.Sprintf("opening volume %s: %v", args.Volume, err), Exit: gberrors.ExitCode(err)}
		return nil
	}
	defer v.Close()

	unlock, err := v.Lock()
	if err != nil {
		*reply = rpcapi.Response{Out: fmt.Sprintf("locking volume %s: %v", args.Volume, err), Exit: gberrors.ExitCode(err)}
		return nil
	}
	defer unlock.Unlock()

	names, err := block.List(v)
	if err != nil {
		*reply = rpcapi.Response{Out: fmt.Sprintf("listing volume %s: %v", args.Volume, err), Exit: gberrors.ExitCode(err)}
		return nil
	}

	out := strings.Join(names, "\n")
	if len(names) == 0 {
		out = fmt.Sprintf("no blocks found on volume %s", args.Volume)
	}
	*reply = rpcapi.Response{Out: out, Exit: 0}
	return nil
}

// InfoCli is the Coordinator.InfoCli RPC handler.
func (s *Server) InfoCli(args *rpcapi.InfoCliArgs, reply *rpcapi.Response) error {
	v, err := s.openVolume(args.Volume, "")
	if err != nil {
		*reply = rpcapi.Response{Out: fmt.Sprintf("opening volume %s: %v", args.Volume, err), Exit: gberrors.ExitCode(err)}
		return nil
	}
	defer v.Close()

	unlock, err := v.Lock()
	if err != nil {
		*reply = rpcapi.Response{Out: fmt.Sprintf("locking volume %s: %v", args.Volume, err), Exit: gberrors.ExitCode(err)}
		return nil
	}
	defer unlock.Unlock()

	meta, err := block.Open(v, args.BlockName)
	if err != nil {
		var rerr error = err
		if block.IsNotFound(err) {
			rerr = &gberrors.ErrBlockNotFound{BlockName: args.BlockName}
		}
		*reply = rpcapi.Response{Out: rerr.Error(), Exit: gberrors.ExitCode(rerr)}
		return nil
	}

	*reply = rpcapi.Response{Out: infoText(meta), Exit: 0}
	return nil
}

func infoText(m *block.MetaInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "NAME: %s\n", m.BlockName)
	fmt.Fprintf(&b, "VOLUME: %s\n", m.Volume)
	fmt.Fprintf(&b, "GBID: %s\n", m.Gbid)
	fmt.Fprintf(&b, "SIZE: %d\n", m.Size)
	fmt.Fprintf(&b, "MULTIPATH: %d\n", m.Mpath)
	fmt.Fprintf(&b, "BLOCK CONFIG NODE(S): %s", strings.Join(m.AddrsByStatus(block.ConfigSuccess), " "))
	return b.String()
}
