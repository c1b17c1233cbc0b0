package telnet

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

// Telnet command bytes (RFC 854).
const (
	IAC  byte = 255
	DONT byte = 254
	DO   byte = 253
	WONT byte = 252
	WILL byte = 251
	SB   byte = 250
	GA   byte = 249
	NOP  byte = 241
	SE   byte = 240

	OptEcho            byte = 1
	OptSuppressGoAhead byte = 3
	OptNAWS            byte = 31
	OptLinemode        byte = 34
)

type scanState int

const (
	stData scanState = iota
	stCommand
	stOption
	stSub
	stSubIAC
)

// decoder strips telnet commands from a byte stream. It keeps its state
// between calls, so a command split across two reads is still removed.
type decoder struct {
	state scanState
}

// feed consumes one byte and reports the data byte it yields, if any. An
// escaped IAC yields a literal 0xFF.
func (d *decoder) feed(b byte) (byte, bool) {
	switch d.state {
	case stCommand:
		switch b {
		case WILL, WONT, DO, DONT:
			d.state = stOption
		case SB:
			d.state = stSub
		case IAC:
			d.state = stData
			return IAC, true
		default:
			d.state = stData
		}
	case stOption:
		d.state = stData
	case stSub:
		if b == IAC {
			d.state = stSubIAC
		}
	case stSubIAC:
		if b == SE {
			d.state = stData
		} else {
			d.state = stSub
		}
	default:
		if b == IAC {
			d.state = stCommand
			return 0, false
		}
		return b, true
	}
	return 0, false
}

// FilterIAC removes telnet command sequences from input. An incomplete
// trailing command is dropped.
func FilterIAC(input []byte) []byte {
	var d decoder
	out := make([]byte, 0, len(input))
	for _, b := range input {
		if c, ok := d.feed(b); ok {
			out = append(out, c)
		}
	}
	return out
}

// Conn wraps a TCP connection with telnet command filtering and line-based
// reading. Writes are serialized, so game notifications and command replies
// may be written from different goroutines.
type Conn struct {
	raw    net.Conn
	reader *bufio.Reader
	dec    decoder
	id     string
	mu     sync.Mutex

	readTimeout  time.Duration
	writeTimeout time.Duration
}

// NewConn wraps a raw TCP connection.
//
// Precondition: raw must be a valid, open network connection.
func NewConn(raw net.Conn, readTimeout, writeTimeout time.Duration) *Conn {
	return &Conn{
		raw:          raw,
		reader:       bufio.NewReaderSize(raw, 4096),
		readTimeout:  readTimeout,
		writeTimeout: writeTimeout,
	}
}

// ID returns the session identifier assigned by the Acceptor.
func (c *Conn) ID() string {
	return c.id
}

// Negotiate asks the client to suppress go-ahead.
func (c *Conn) Negotiate() error {
	return c.Write([]byte{IAC, WILL, OptSuppressGoAhead})
}

// ReadLine reads one line of input without its terminator. Telnet commands
// and control characters are dropped; backspace and delete erase the
// previous character.
//
// Postcondition: Returns valid UTF-8 text, or an error (including io.EOF).
func (c *Conn) ReadLine() (string, error) {
	if c.readTimeout > 0 {
		_ = c.raw.SetReadDeadline(time.Now().Add(c.readTimeout))
	}

	var line []byte
	for {
		raw, err := c.reader.ReadByte()
		if err != nil {
			return strings.ToValidUTF8(string(line), ""), err
		}
		b, ok := c.dec.feed(raw)
		if !ok {
			continue
		}
		switch {
		case b == '\n':
			return strings.ToValidUTF8(string(line), ""), nil
		case b == '\r':
			if next, err := c.reader.Peek(1); err == nil && (next[0] == '\n' || next[0] == 0) {
				_, _ = c.reader.ReadByte()
			}
			return strings.ToValidUTF8(string(line), ""), nil
		case b == 0x08 || b == 0x7f:
			if len(line) > 0 {
				_, size := utf8.DecodeLastRune(line)
				line = line[:len(line)-size]
			}
		case b < 32 && b != '\t', b == IAC:
		default:
			line = append(line, b)
		}
	}
}

func (c *Conn) deadline() {
	if c.writeTimeout > 0 {
		_ = c.raw.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
}

// WriteLine sends text followed by \r\n. Embedded newlines are converted to
// \r\n.
func (c *Conn) WriteLine(text string) error {
	return c.WriteString(text + "\n")
}

// WriteString sends text, converting bare \n to \r\n.
func (c *Conn) WriteString(text string) error {
	text = strings.ReplaceAll(strings.ReplaceAll(text, "\r\n", "\n"), "\n", "\r\n")
	return c.Write([]byte(text))
}

// Write sends raw bytes to the client.
func (c *Conn) Write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deadline()
	_, err := c.raw.Write(data)
	return err
}

// WritePrompt sends a prompt without a trailing newline.
func (c *Conn) WritePrompt(prompt string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deadline()
	_, err := fmt.Fprint(c.raw, prompt)
	return err
}

// Close closes the underlying TCP connection.
func (c *Conn) Close() error {
	return c.raw.Close()
}

// RemoteAddr returns the remote network address of the client.
func (c *Conn) RemoteAddr() net.Addr {
	return c.raw.RemoteAddr()
}
