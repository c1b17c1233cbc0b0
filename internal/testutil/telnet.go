package testutil

import (
	"fmt"
	"net"
	"regexp"
	"strings"
	"testing"
	"time"
)

// DefaultTimeout bounds Expect.
const DefaultTimeout = 3 * time.Second

var ansiCSI = regexp.MustCompile(`\x1b\[[0-9;?]*[@-~]`)

// Clean removes telnet option negotiation and ANSI styling from raw session
// output.
func Clean(raw string) string {
	var b strings.Builder
	for i := 0; i < len(raw); i++ {
		if raw[i] == 0xff && i+2 < len(raw) && raw[i+1] >= 0xfb && raw[i+1] <= 0xfe {
			i += 2
			continue
		}
		b.WriteByte(raw[i])
	}
	return ansiCSI.ReplaceAllString(b.String(), "")
}

// TelnetClient is a line-oriented telnet test client.
type TelnetClient struct {
	conn    net.Conn
	t       *testing.T
	pending string
}

// NewTelnetClient dials addr and returns a test client.
//
// Precondition: addr must be a valid "host:port" string with a listening server.
// Postcondition: Returns a connected TelnetClient or fails the test.
func NewTelnetClient(t *testing.T, addr string) *TelnetClient {
	t.Helper()
	start := time.Now()

	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		t.Fatalf("connecting to %s: %v [%s]", addr, err, time.Since(start))
	}
	t.Cleanup(func() { conn.Close() })

	t.Logf("telnet client connected to %s [%s]", addr, time.Since(start))
	return &TelnetClient{conn: conn, t: t}
}

// ReadUntil reads until the cleaned output contains substr and returns the
// cleaned output up to and including the match. Output after the match is
// kept for the next read.
//
// Precondition: substr must be non-empty.
func (c *TelnetClient) ReadUntil(substr string, timeout time.Duration) string {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(timeout))

	var raw strings.Builder
	raw.WriteString(c.pending)
	c.pending = ""
	tmp := make([]byte, 1024)
	for {
		text := Clean(raw.String())
		if i := strings.Index(text, substr); i >= 0 {
			end := i + len(substr)
			c.pending = text[end:]
			return text[:end]
		}
		n, err := c.conn.Read(tmp)
		if n > 0 {
			raw.Write(tmp[:n])
		}
		if err != nil {
			c.t.Fatalf("reading until %q: got %q, error: %v", substr, Clean(raw.String()), err)
		}
	}
}

// Expect is ReadUntil with DefaultTimeout.
func (c *TelnetClient) Expect(substr string) string {
	c.t.Helper()
	return c.ReadUntil(substr, DefaultTimeout)
}

// Send writes a line of text to the server, appending \r\n.
//
// Precondition: text should not contain trailing newline characters.
func (c *TelnetClient) Send(text string) {
	c.t.Helper()
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if _, err := fmt.Fprintf(c.conn, "%s\r\n", text); err != nil {
		c.t.Fatalf("sending %q: %v", text, err)
	}
}

// Close closes the underlying connection.
func (c *TelnetClient) Close() {
	c.conn.Close()
}
