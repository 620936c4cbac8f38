package comm

import (
	"bufio"
	"bytes"
	"io"
	"net"
	"time"
)

// Terminator wraps a ReadWriter, appending Tx to every Write and reading
// through Rx on every Read.  The Rx byte is not returned
type Terminator struct {
	rw     io.ReadWriter
	br     *bufio.Reader
	Tx, Rx byte
}

// NewTerminator wraps rw
func NewTerminator(rw io.ReadWriter, tx, rx byte) *Terminator {
	return &Terminator{rw: rw, br: bufio.NewReader(rw), Tx: tx, Rx: rx}
}

// Write sends b followed by the Tx terminator
func (t *Terminator) Write(b []byte) (int, error) {
	buf := make([]byte, 0, len(b)+1)
	buf = append(append(buf, b...), t.Tx)
	n, err := t.rw.Write(buf)
	if n > len(b) {
		n = len(b)
	}
	return n, err
}

// ReadMessage reads one terminated message of any length.  The Rx byte is
// not returned
func (t *Terminator) ReadMessage() ([]byte, error) {
	msg, err := t.br.ReadBytes(t.Rx)
	if err != nil {
		if len(msg) > 0 && err == io.EOF {
			return msg, ErrTerminatorNotFound
		}
		return nil, err
	}
	return bytes.TrimSuffix(msg, []byte{t.Rx}), nil
}

// Read reads one terminated message into b.  If b is too small the
// remainder of the message is discarded; use ReadMessage for long replies
func (t *Terminator) Read(b []byte) (int, error) {
	msg, err := t.ReadMessage()
	return copy(b, msg), err
}

// Timeout sets a deadline on the underlying net.Conn before every Read and Write
type Timeout struct {
	io.ReadWriter
	conn    net.Conn
	timeout time.Duration
}

// NewTimeout wraps rw.  conn is the network connection at the bottom of the
// stack, it may be nil for connections without deadlines (e.g. serial ports,
// which carry their own read timeout)
func NewTimeout(rw io.ReadWriter, conn net.Conn, timeout time.Duration) *Timeout {
	return &Timeout{ReadWriter: rw, conn: conn, timeout: timeout}
}

func (t *Timeout) deadline() {
	if t.conn != nil {
		t.conn.SetDeadline(time.Now().Add(t.timeout))
	}
}

// Read with a deadline
func (t *Timeout) Read(b []byte) (int, error) {
	t.deadline()
	return t.ReadWriter.Read(b)
}

// Write with a deadline
func (t *Timeout) Write(b []byte) (int, error) {
	t.deadline()
	return t.ReadWriter.Write(b)
}
