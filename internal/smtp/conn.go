// internal/smtp/conn.go
package smtp

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"
)

// maxReplyLine bounds a single reply line to keep a hostile server from
// exhausting memory.
const maxReplyLine = 2048

// conn wraps a net.Conn with buffered CRLF line I/O for the SMTP exchange.
type conn struct {
	nc net.Conn
	r  *bufio.Reader
	w  *bufio.Writer
}

func newConn(nc net.Conn) *conn {
	return &conn{
		nc: nc,
		r:  bufio.NewReaderSize(nc, 4096),
		w:  bufio.NewWriterSize(nc, 4096),
	}
}

// upgrade swaps the underlying connection after a TLS handshake and
// resets the buffers. Any bytes buffered from the plaintext phase are
// discarded, which is correct: the server must not send between the
// STARTTLS 220 and the handshake.
func (c *conn) upgrade(nc net.Conn) {
	c.nc = nc
	c.r = bufio.NewReaderSize(nc, 4096)
	c.w = bufio.NewWriterSize(nc, 4096)
}

func (c *conn) close() error {
	return c.nc.Close()
}

func (c *conn) setDeadline(d time.Duration) {
	if d > 0 {
		c.nc.SetDeadline(time.Now().Add(d))
	}
}

// writeLine writes a single command line terminated by CRLF and flushes.
func (c *conn) writeLine(line string) error {
	if _, err := c.w.WriteString(line); err != nil {
		return err
	}
	if _, err := c.w.WriteString("\r\n"); err != nil {
		return err
	}
	return c.w.Flush()
}

// reply is a parsed SMTP reply, possibly multi-line.
type reply struct {
	code  int
	lines []string
}

// text joins the reply lines for error reporting.
func (r reply) text() string {
	return strings.Join(r.lines, " / ")
}

// readReply reads one reply, following the code-hyphen continuation
// convention for multi-line responses (RFC 5321 section 4.2).
func (c *conn) readReply() (reply, error) {
	var lines []string
	for {
		raw, err := c.readLine()
		if err != nil {
			return reply{}, err
		}
		if len(raw) < 3 {
			return reply{}, fmt.Errorf("short reply line %q", raw)
		}
		code, err := strconv.Atoi(raw[:3])
		if err != nil {
			return reply{}, fmt.Errorf("malformed reply code in %q", raw)
		}
		if len(raw) == 3 {
			lines = append(lines, "")
			return reply{code: code, lines: lines}, nil
		}
		switch raw[3] {
		case '-':
			lines = append(lines, raw[4:])
		case ' ':
			lines = append(lines, raw[4:])
			return reply{code: code, lines: lines}, nil
		default:
			return reply{}, fmt.Errorf("malformed reply separator in %q", raw)
		}
	}
}

func (c *conn) readLine() (string, error) {
	line, err := c.r.ReadString('\n')
	if err != nil {
		return "", err
	}
	if len(line) > maxReplyLine {
		return "", fmt.Errorf("reply line too long (%d bytes)", len(line))
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// dotWriter writes a dot-stuffed DATA body. A body line beginning with
// '.' gains an extra leading '.', and close writes the end-of-data
// marker ".\r\n" (RFC 5321 section 4.5.2).
type dotWriter struct {
	w         *bufio.Writer
	beginLine bool
	closed    bool
}

func newDotWriter(w *bufio.Writer) *dotWriter {
	return &dotWriter{w: w, beginLine: true}
}

func (d *dotWriter) Write(p []byte) (int, error) {
	if d.closed {
		return 0, io.ErrClosedPipe
	}
	written := 0
	for _, b := range p {
		if d.beginLine && b == '.' {
			if err := d.w.WriteByte('.'); err != nil {
				return written, err
			}
		}
		if err := d.w.WriteByte(b); err != nil {
			return written, err
		}
		written++
		d.beginLine = b == '\n'
	}
	return written, nil
}

// Close terminates the DATA body. If the last write did not end on a
// line boundary a CRLF is added before the marker.
func (d *dotWriter) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	if !d.beginLine {
		if _, err := d.w.WriteString("\r\n"); err != nil {
			return err
		}
	}
	if _, err := d.w.WriteString(".\r\n"); err != nil {
		return err
	}
	return d.w.Flush()
}
