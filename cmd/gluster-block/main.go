// Command gluster-block is the CLI client: it dials the coordinator's
// "Coordinator" RPC program for exactly one call per invocation and prints
// the reply text, exiting with the reply's exit code.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/syldej/gluster-block/pkg/coordinator"
	"github.com/syldej/gluster-block/pkg/rpcapi"
	"github.com/syldej/gluster-block/pkg/rpctransport"
)

var coordinatorAddr string

func main() {
	root := &cobra.Command{
		Use:   "gluster-block",
		Short: "Provision iSCSI block devices on top of a distributed volume",
	}
	root.PersistentFlags().StringVar(&coordinatorAddr, "coordinator", "localhost",
		"address of the gluster-block coordinator daemon")

	root.AddCommand(newCreateCmd(), newDeleteCmd(), newListCmd(), newInfoCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(-1)
	}
}

// splitVolumeBlock parses the "<volume>/<block-name>" addressing scheme
// shared by create/delete/info.
func splitVolumeBlock(arg string) (volume, block string, err error) {
	volume, block, ok := strings.Cut(arg, "/")
	if !ok || volume == "" || block == "" {
		return "", "", fmt.Errorf("expected <volume>/<block-name>, got %q", arg)
	}
	return volume, block, nil
}

// parseSize accepts a plain byte count or one with a binary-unit suffix
// (Ki, Mi, Gi, Ti), e.g. "1Gi" or "1073741824".
func parseSize(s string) (uint64, error) {
	units := map[string]uint64{"Ki": 1 << 10, "Mi": 1 << 20, "Gi": 1 << 30, "Ti": 1 << 40}
	for suffix, mult := range units {
		if strings.HasSuffix(s, suffix) {
			n, err := strconv.ParseUint(strings.TrimSuffix(s, suffix), 10, 64)
			if err != nil {
				return 0, fmt.Errorf("parsing size %q: %w", s, err)
			}
			return n * mult, nil
		}
	}
	return strconv.ParseUint(s, 10, 64)
}

func dial(serviceMethod string, args interface{}) {
	var reply rpcapi.Response
	if err := rpctransport.Call(coordinatorAddr, serviceMethod, args, &reply); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(-1)
	}
	fmt.Println(reply.Out)
	os.Exit(reply.Exit)
}

func newCreateCmd() *cobra.Command {
	var (
		hosts         string
		ha            uint32
		size          string
		volfileserver string
	)
	cmd := &cobra.Command{
		Use:   "create <volume>/<block-name>",
		Short: "Create a new block device, configured across ha hosts",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, cliArgs []string) {
			volumeName, blockName, err := splitVolumeBlock(cliArgs[0])
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(-1)
			}
			if _, err := coordinator.ParseHosts(hosts); err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(-1)
			}
			n, err := parseSize(size)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(-1)
			}
			dial("Coordinator.CreateCli", &rpcapi.CreateCliArgs{
				Volume:        volumeName,
				VolFileServer: volfileserver,
				BlockHosts:    hosts,
				BlockName:     blockName,
				Size:          n,
				Mpath:         ha,
			})
		},
	}
	cmd.Flags().StringVar(&hosts, "hosts", "", "comma-delimited candidate host list")
	cmd.Flags().Uint32Var(&ha, "ha", 1, "multipath factor: number of hosts to configure")
	cmd.Flags().StringVar(&size, "size", "", "block size, e.g. 1Gi")
	cmd.Flags().StringVar(&volfileserver, "volfileserver", "", "volume file server hostname passed through to agents")
	_ = cmd.MarkFlagRequired("hosts")
	_ = cmd.MarkFlagRequired("size")
	return cmd
}

// newDeleteCmd always requests deleteall=true; the coordinator's only other
// cleanup caller is its own create-unwind path, and that one always passes
// false.
func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <volume>/<block-name>",
		Short: "Delete a block device",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, cliArgs []string) {
			volumeName, blockName, err := splitVolumeBlock(cliArgs[0])
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(-1)
			}
			dial("Coordinator.DeleteCli", &rpcapi.DeleteCliArgs{
				Volume:    volumeName,
				BlockName: blockName,
				Deleteall: true,
			})
		},
	}
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <volume>",
		Short: "List block devices on a volume",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, cliArgs []string) {
			dial("Coordinator.ListCli", &rpcapi.ListCliArgs{Volume: cliArgs[0]})
		},
	}
}

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <volume>/<block-name>",
		Short: "Show a block device's metadata",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, cliArgs []string) {
			volumeName, blockName, err := splitVolumeBlock(cliArgs[0])
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(-1)
			}
			dial("Coordinator.InfoCli", &rpcapi.InfoCliArgs{Volume: volumeName, BlockName: blockName})
		},
	}
}
