// Package rpctransport carries every RPC in the system: a fixed TCP port,
// one connection per call (dial, call, close; no pooling, no pipelining),
// and host-level timeouts. The wire codec is msgpack via
// hashicorp/net-rpc-msgpackrpc wrapping the standard library's net/rpc for
// dispatch. The two RPC programs are addressed as net/rpc service names:
// "Coordinator" for the CLI-facing one, "Agent" for the node-facing one.
package rpctransport

import (
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"time"

	msgpackrpc "github.com/hashicorp/net-rpc-msgpackrpc/v2"
)

// DefaultPort is the fixed TCP port both RPC programs listen on.
const DefaultPort = 24009

const (
	// ConnectTimeout bounds the initial TCP handshake.
	ConnectTimeout = 25 * time.Second
	// CallTimeout bounds the full request/response round trip after
	// connect.
	CallTimeout = 25 * time.Second
)

// ErrTransport marks failures at the transport layer (dial/round-trip),
// distinguishable from an application non-zero exit.
type ErrTransport struct {
	Addr string
	Err  error
}

func (e *ErrTransport) Error() string {
	return fmt.Sprintf("rpc transport to %s: %v", e.Addr, e.Err)
}

func (e *ErrTransport) Unwrap() error { return e.Err }

// HostPort appends the fixed port to a bare host/address.
func HostPort(addr string) string {
	if _, _, err := net.SplitHostPort(addr); err == nil {
		return addr
	}
	return fmt.Sprintf("%s:%d", addr, DefaultPort)
}

// Call opens a fresh TCP connection to addr, issues exactly one RPC
// (serviceMethod, e.g. "Agent.Create"), awaits the single response, and
// closes the connection. It never reuses a connection across calls and
// never pipelines.
func Call(addr, serviceMethod string, args, reply interface{}) error {
	conn, err := net.DialTimeout("tcp", HostPort(addr), ConnectTimeout)
	if err != nil {
		return &ErrTransport{Addr: addr, Err: err}
	}

	client := rpc.NewClientWithCodec(msgpackrpc.NewCodec(false, true, conn))
	defer client.Close()

	call := client.Go(serviceMethod, args, reply, make(chan *rpc.Call, 1))
	select {
	case c := <-call.Done:
		if c.Error != nil {
			return &ErrTransport{Addr: addr, Err: c.Error}
		}
		return nil
	case <-time.After(CallTimeout):
		conn.Close()
		return &ErrTransport{Addr: addr, Err: fmt.Errorf("%s timed out after %s", serviceMethod, CallTimeout)}
	}
}

// Serve accepts connections on listener forever, dispatching each one to an
// *rpc.Server carrying every service in services, keyed by the name
// serviceMethod strings address them under ("Coordinator", "Agent").
// RegisterName rather than Register is required here because both service
// implementations are, incidentally, named Server in their own packages;
// net/rpc would otherwise collide on that type name. Each connection gets
// its own msgpack codec; the server loop never pools or multiplexes
// connections, mirroring the client side.
func Serve(listener net.Listener, services map[string]interface{}) error {
	server := rpc.NewServer()
	for name, svc := range services {
		if err := server.RegisterName(name, svc); err != nil {
			return fmt.Errorf("registering rpc service %s: %w", name, err)
		}
	}

	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		go func(c net.Conn) {
			defer c.Close()
			server.ServeCodec(msgpackrpc.NewCodec(false, false, c))
		}(conn)
	}
}
