// Package rpcapi defines the wire request/response types for both RPC
// programs: the CLI-facing one (CreateCli, DeleteCli, ListCli, InfoCli) and
// the node-facing one (Create, Delete). Field tags are consumed by the
// msgpack codec in pkg/rpctransport.
package rpcapi

// Response is shared by every call in both programs. Exit == 0 means
// success; positive values are errno-style; negative values denote a
// generic internal failure.
type Response struct {
	Out  string `codec:"out"`
	Exit int    `codec:"exit"`
}

// CreateCliArgs is the argument to Coordinator.CreateCli.
type CreateCliArgs struct {
	Volume        string `codec:"volume"`
	VolFileServer string `codec:"volfileserver"`
	BlockHosts    string `codec:"block_hosts"` // comma-delimited
	BlockName     string `codec:"block_name"`
	Size          uint64 `codec:"size"`
	Mpath         uint32 `codec:"mpath"`
}

// DeleteCliArgs is the argument to Coordinator.DeleteCli. Deleteall asks for
// cleanup on every host not already at CLEANUPSUCCESS, including the ones at
// CONFIGSUCCESS.
type DeleteCliArgs struct {
	Volume    string `codec:"volume"`
	BlockName string `codec:"block_name"`
	Deleteall bool   `codec:"deleteall"`
}

// ListCliArgs is the argument to Coordinator.ListCli.
type ListCliArgs struct {
	Volume string `codec:"volume"`
}

// InfoCliArgs is the argument to Coordinator.InfoCli.
type InfoCliArgs struct {
	Volume    string `codec:"volume"`
	BlockName string `codec:"block_name"`
}

// CreateArgs is the argument to Agent.Create.
type CreateArgs struct {
	Volume        string `codec:"volume"`
	VolFileServer string `codec:"volfileserver"`
	BlockName     string `codec:"block_name"`
	Gbid          string `codec:"gbid"`
	Size          uint64 `codec:"size"`
}

// DeleteArgs is the argument to Agent.Delete.
type DeleteArgs struct {
	BlockName string `codec:"block_name"`
	Gbid      string `codec:"gbid"`
}
