package chaos

import (
	"context"
	"net"
)

// timeoutError mimics an expired read deadline
type timeoutError struct{}

func (timeoutError) Error() string   { return "chaos: i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

var _ net.Error = timeoutError{}

// conn injects stalled reads and delayed writes. A stalled read consumes
// nothing from the underlying connection, so no bytes are lost.
type conn struct {
	net.Conn
	chaos  *Chaos
	target string
}

// WrapConn wraps nc so that reads and writes go through fault injection for target
func (c *Chaos) WrapConn(nc net.Conn, target string) net.Conn {
	return &conn{Conn: nc, chaos: c, target: target}
}

func (c *conn) Read(p []byte) (int, error) {
	if c.chaos.MaybeStall(c.target, "read") {
		return 0, timeoutError{}
	}
	return c.Conn.Read(p)
}

func (c *conn) Write(p []byte) (int, error) {
	if err := c.chaos.MaybeDelay(context.Background(), c.target, "write"); err != nil {
		return 0, err
	}
	return c.Conn.Write(p)
}
