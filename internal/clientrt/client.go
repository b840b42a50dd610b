// Package clientrt is the CLI-facing half of unport: a control-socket
// client plus the "start" flow that spawns a project's dev server,
// registers it with the daemon, and keeps it registered until the child
// exits or the user interrupts it.
package clientrt

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/stanley-fork/unport/internal/protocol"
	"github.com/stanley-fork/unport/internal/unporterr"
)

// Client speaks the control-socket protocol over a single short-lived
// connection per call, mirroring the daemon's one-request/one-response
// model from the CLI side.
type Client struct {
	socketPath string
	timeout    time.Duration
}

// New returns a Client that dials socketPath.
func New(socketPath string) *Client {
	return &Client{socketPath: socketPath, timeout: 5 * time.Second}
}

// send opens a connection, writes one request line, reads one response
// line, and closes the connection.
func (c *Client) send(req protocol.Request) (protocol.Response, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return protocol.Response{}, unporterr.Wrap(unporterr.KindDaemonUnavailable,
			fmt.Errorf("%w: %v", unporterr.ErrDaemonUnavailable, err))
	}
	defer conn.Close()

	data, err := protocol.Encode(req)
	if err != nil {
		return protocol.Response{}, err
	}
	if _, err := conn.Write(data); err != nil {
		return protocol.Response{}, fmt.Errorf("write request: %w", err)
	}

	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return protocol.Response{}, fmt.Errorf("read response: %w", err)
	}

	var resp protocol.Response
	if err := json.Unmarshal([]byte(line), &resp); err != nil {
		return protocol.Response{}, fmt.Errorf("decode response: %w", err)
	}
	if resp.Type == protocol.RespError {
		return resp, fmt.Errorf("%s", resp.Error)
	}
	return resp, nil
}

// GetPort asks the daemon to allocate a loopback port.
func (c *Client) GetPort() (uint16, error) {
	resp, err := c.send(protocol.Request{Type: protocol.GetPort})
	if err != nil {
		return 0, err
	}
	return resp.Port, nil
}

// Register binds domain to port/pid/directory.
func (c *Client) Register(domain string, port uint16, pid int, directory string) error {
	_, err := c.send(protocol.Request{
		Type: protocol.Register, Domain: domain, Port: port, Pid: pid, Directory: directory,
	})
	return err
}

// Unregister removes domain's binding.
func (c *Client) Unregister(domain string) error {
	_, err := c.send(protocol.Request{Type: protocol.Unregister, Domain: domain})
	return err
}

// Stop unregisters domain and signals its owning process to terminate.
func (c *Client) Stop(domain string) error {
	_, err := c.send(protocol.Request{Type: protocol.Stop, Domain: domain})
	return err
}

// Shutdown asks the daemon to begin its own graceful shutdown.
func (c *Client) Shutdown() error {
	_, err := c.send(protocol.Request{Type: protocol.Shutdown})
	return err
}

// List returns every currently registered binding.
func (c *Client) List() ([]protocol.Binding, error) {
	resp, err := c.send(protocol.Request{Type: protocol.List})
	if err != nil {
		return nil, err
	}
	return resp.Services, nil
}
