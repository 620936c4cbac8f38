/*Package comm provides the connection plumbing shared by the instruments on a
crossbar test bench.

Two shapes of connection are supported:
	1.  RemoteDevice, a single long-lived link that is opened once and held, used
		for the microcontroller on a serial port
	2.  Pool, a small set of connections made on demand and reclaimed when idle,
		used for LAN instruments speaking SCPI

Both reach the hardware through TCP or a serial port.  Opening is retried with
an exponential backoff since instruments do not like being connection thrashed.
*/
package comm

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/tarm/serial"
)

var (
	// ErrNotConnected is generated when .Conn is nil and Send or Recv is called.
	ErrNotConnected = errors.New("conn is nil, not connected to remote")

	// ErrTerminatorNotFound is generated when the termination byte is not found in a response
	ErrTerminatorNotFound = errors.New("termination byte not found")
)

// Flusher discards buffered, unread input
type Flusher interface {
	Flush() error
}

/*RemoteDevice has an address and a connection to it

if IsSerial is true, SerialConf is used to open the port and Addr is ignored.

the device is concurrent-safe when the embedded mutex is used around
transactions
*/
type RemoteDevice struct {
	sync.Mutex

	Addr       string
	IsSerial   bool
	SerialConf *serial.Config
	Timeout    time.Duration
	Conn       io.ReadWriteCloser
}

// NewRemoteDevice creates a new RemoteDevice instance.  conf may be nil for
// network devices
func NewRemoteDevice(addr string, isSerial bool, conf *serial.Config) RemoteDevice {
	return RemoteDevice{
		Addr:       addr,
		IsSerial:   isSerial,
		SerialConf: conf,
		Timeout:    3 * time.Second}
}

// Open the connection, setting the Conn variable
func (rd *RemoteDevice) Open() error {
	if rd.Conn != nil {
		return nil
	}
	conn, err := Dial(rd.Addr, rd.IsSerial, rd.SerialConf, rd.Timeout)
	if err != nil {
		return err
	}
	rd.Conn = conn
	return nil
}

// Close the connection, nil-ing the Conn variable
func (rd *RemoteDevice) Close() error {
	if rd.Conn == nil {
		return nil
	}
	err := rd.Conn.Close()
	if err == nil {
		rd.Conn = nil
	}
	return err
}

// Write writes b in full to the remote
func (rd *RemoteDevice) Write(b []byte) error {
	if rd.Conn == nil {
		return ErrNotConnected
	}
	_, err := rd.Conn.Write(b)
	return err
}

// ReadFull reads exactly n bytes from the remote
func (rd *RemoteDevice) ReadFull(n int) ([]byte, error) {
	if rd.Conn == nil {
		return nil, ErrNotConnected
	}
	buf := make([]byte, n)
	_, err := io.ReadFull(rd.Conn, buf)
	return buf, err
}

// Flush discards any input waiting on the connection.  Serial ports flush
// their driver buffer; other connections are drained until a short read
// deadline expires
func (rd *RemoteDevice) Flush() error {
	if rd.Conn == nil {
		return ErrNotConnected
	}
	if f, ok := rd.Conn.(Flusher); ok {
		return f.Flush()
	}
	if c, ok := rd.Conn.(net.Conn); ok {
		buf := make([]byte, 256)
		for {
			c.SetReadDeadline(time.Now().Add(10 * time.Millisecond))
			_, err := c.Read(buf)
			if err != nil {
				c.SetReadDeadline(time.Time{})
				var ne net.Error
				if errors.As(err, &ne) && ne.Timeout() {
					return nil
				}
				return err
			}
		}
	}
	return nil
}

// Dial opens a serial port or TCP connection, retrying with an exponential
// backoff for up to three seconds.  A refused connection is not retried
func Dial(addr string, isSerial bool, conf *serial.Config, timeout time.Duration) (io.ReadWriteCloser, error) {
	var (
		conn       io.ReadWriteCloser
		wasTimeout bool
		lastErr    error
	)
	op := func() error {
		var err error
		if isSerial {
			if conf == nil {
				return fmt.Errorf("comm: no serial configuration for %s", addr)
			}
			conn, err = serial.OpenPort(conf)
		} else {
			conn, err = TCPSetup(addr, timeout)
		}
		if err != nil {
			if strings.Contains(strings.ToLower(err.Error()), "refused") {
				wasTimeout = false
				return backoff.Permanent(err)
			}
			wasTimeout = true
			lastErr = err
			return err
		}
		wasTimeout = false
		return nil
	}
	err := backoff.Retry(op, &backoff.ExponentialBackOff{
		InitialInterval:     25 * time.Millisecond,
		RandomizationFactor: 0.,
		Multiplier:          2.,
		MaxInterval:         1 * time.Second,
		MaxElapsedTime:      3 * time.Second,
		Clock:               backoff.SystemClock})
	if err == nil {
		return conn, nil
	}
	if wasTimeout {
		return nil, fmt.Errorf("connection timeout to %s: %w", addr, lastErr)
	}
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return nil, perm.Err
	}
	return nil, err
}

// TCPSetup opens a new TCP connection with a timeout on connect
func TCPSetup(addr string, timeout time.Duration) (net.Conn, error) {
	return net.DialTimeout("tcp", addr, timeout)
}
