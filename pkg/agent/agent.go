// Package agent implements the node-facing RPC service: it shells out to
// the local iSCSI CLI tool (targetcli) to create or delete one block's
// target configuration on this host. The agent is stateless between calls
// and never attempts self-repair; a non-zero exit is returned to the
// coordinator as-is.
package agent

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/lithammer/dedent"

	"github.com/syldej/gluster-block/internal/glog"
	"github.com/syldej/gluster-block/pkg/rpcapi"
)

// maxCapturedOutput is the cap on combined stdout+stderr text returned to
// the coordinator.
const maxCapturedOutput = 4096

// iqnPrefix is the fixed IQN namespace every block's target is created
// under.
const iqnPrefix = "iqn.2016-12.org.gluster-block:"

const tcliPath = "targetcli"

// Server is the node-facing RPC service. Two overlapping invocations on the
// same node are serialized by execMu, because the underlying targetcli
// configuration store is not safe for concurrent writers.
type Server struct {
	// Hostname is used as the portal address; tests override it to avoid
	// depending on os.Hostname.
	Hostname string

	execMu sync.Mutex
}

// NewServer constructs a Server bound to the local hostname.
func NewServer() (*Server, error) {
	host, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("gethostname: %w", err)
	}
	return &Server{Hostname: host}, nil
}

var createScriptTmpl = dedent.Dedent(`
	targetcli set global auto_add_default_portal=false
	targetcli /backstores/user:glfs create %[1]s %[2]d %[3]s@%[4]s/block-store/%[5]s %[5]s
	targetcli /iscsi create %[6]s%[5]s
	targetcli /iscsi/%[6]s%[5]s/tpg1/luns create /backstores/user:glfs/%[1]s
	targetcli /iscsi/%[6]s%[5]s/tpg1/portals create %[7]s
	targetcli /iscsi/%[6]s%[5]s/tpg1 set attribute generate_node_acls=1 demo_mode_write_protect=0
	targetcli / saveconfig
`)

// buildCreateCommand renders the idempotent target-creation sequence as a
// single "&&"-joined command line (the dedent template above is only an
// authoring convenience).
func buildCreateCommand(blockName string, size uint64, volumeName, volfileserver, gbid, hostname string) string {
	filled := fmt.Sprintf(strings.TrimSpace(createScriptTmpl),
		blockName, size, volumeName, volfileserver, gbid, iqnPrefix, hostname)
	lines := strings.Split(filled, "\n")
	return strings.Join(lines, " && ")
}

var deleteScriptTmpl = dedent.Dedent(`
	targetcli /backstores/user:glfs delete %[1]s
	targetcli /iscsi delete %[2]s%[3]s
	targetcli / saveconfig
`)

// buildDeleteCommand removes the backstore, then the IQN, then saves.
func buildDeleteCommand(blockName, gbid string) string {
	filled := fmt.Sprintf(strings.TrimSpace(deleteScriptTmpl), blockName, iqnPrefix, gbid)
	lines := strings.Split(filled, "\n")
	return strings.Join(lines, " && ")
}

// run executes command through the shell, capturing up to
// maxCapturedOutput bytes of combined stdout+stderr, and returns the exit
// status faithfully.
func (s *Server) run(command string) rpcapi.Response {
	s.execMu.Lock()
	defer s.execMu.Unlock()

	cmd := exec.Command("/bin/sh", "-c", command) // #nosec G204 -- command is built from fixed templates, not user input
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	err := cmd.Run()
	out := buf.String()
	if len(out) > maxCapturedOutput {
		out = out[:maxCapturedOutput]
	}

	exit := 0
	if err != nil {
		if ee, ok := err.(*exec.ExitError); ok {
			exit = ee.ExitCode()
		} else {
			exit = -1
		}
		glog.Errorf("command failed (exit %d): %s: %v", exit, tcliPath, err)
	}

	return rpcapi.Response{Out: out, Exit: exit}
}

// Create is the Agent.Create RPC handler.
func (s *Server) Create(args *rpcapi.CreateArgs, reply *rpcapi.Response) error {
	cmd := buildCreateCommand(args.BlockName, args.Size, args.Volume, args.VolFileServer, args.Gbid, s.Hostname)
	*reply = s.run(cmd)
	return nil
}

// Delete is the Agent.Delete RPC handler. If a resource is already absent
// the underlying command may fail and that exit status is returned
// faithfully; the coordinator decides what to do with it.
func (s *Server) Delete(args *rpcapi.DeleteArgs, reply *rpcapi.Response) error {
	cmd := buildDeleteCommand(args.BlockName, args.Gbid)
	*reply = s.run(cmd)
	return nil
}
