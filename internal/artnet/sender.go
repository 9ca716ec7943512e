package artnet

import (
	"context"
	"net"
	"strconv"
	"sync"

	"github.com/pkg/errors"
)

// ErrClosed is returned by Send after Close
var ErrClosed = errors.New("artnet: sender closed")

// Sender delivers Art-Net payloads to one target
type Sender interface {
	Send(payload []byte) error
	Close() error
}

// DialFunc opens a Sender for ip:port
type DialFunc func(ip string, port int) (Sender, error)

// UDPSender sends datagrams from an unconnected UDP socket with broadcast enabled
type UDPSender struct {
	conn   *net.UDPConn
	target *net.UDPAddr

	mu     sync.Mutex
	closed bool
}

// Dial opens a UDP socket for sending to ip:port
func Dial(ip string, port int) (Sender, error) {
	target, err := net.ResolveUDPAddr("udp4", net.JoinHostPort(ip, strconv.Itoa(port)))
	if err != nil {
		return nil, errors.Wrapf(err, "resolving art-net target %s:%d", ip, port)
	}

	lc := net.ListenConfig{Control: enableBroadcast}
	pc, err := lc.ListenPacket(context.Background(), "udp4", ":0")
	if err != nil {
		return nil, errors.Wrap(err, "opening art-net socket")
	}

	return &UDPSender{
		conn:   pc.(*net.UDPConn),
		target: target,
	}, nil
}

// Send writes one datagram to the target
func (s *UDPSender) Send(payload []byte) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}

	if _, err := s.conn.WriteToUDP(payload, s.target); err != nil {
		return errors.Wrapf(err, "sending to %s", s.target)
	}
	return nil
}

// Close closes the socket. Closing twice is a no-op.
func (s *UDPSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.conn.Close()
}

// Target returns the destination address
func (s *UDPSender) Target() *net.UDPAddr {
	return s.target
}

// LocalAddr returns the address the socket is bound to
func (s *UDPSender) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}
