package phy

import (
	"fmt"
	"net"
	"os"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"golang.org/x/sys/unix"
)

const (
	ethHeaderLen = 14
	ethFCSLen    = 4
)

// InjectSink replays recovered frames onto a network interface through an
// AF_PACKET socket, so that ordinary capture tools can observe them.
// It requires CAP_NET_RAW.
type InjectSink struct {
	iface    *net.Interface
	file     *os.File
	stripFCS bool
	logger   log.Logger
}

func newPacketSocket() (fd int, err error) {

	// protocol 0: the socket transmits but receives nothing
	fd, err = unix.Socket(unix.AF_PACKET, unix.SOCK_RAW, 0)
	if err != nil {
		return -1, fmt.Errorf("socket: %v", err)
	}

	// make the socket nonblocking so we can use it with the runtime poller
	if err = unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("failed to set socket nonblocking: %v", err)
	}

	// set the socket CLOEXEC to prevent passing it to child processes
	flags, err := unix.FcntlInt(uintptr(fd), unix.F_GETFD, 0)
	if err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("fcntl(F_GETFD): %v", err)
	}

	_, err = unix.FcntlInt(uintptr(fd), unix.F_SETFD, flags|unix.FD_CLOEXEC)
	if err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("fcntl(F_SETFD, FD_CLOEXEC): %v", err)
	}

	return
}

// NewInjectSink opens a packet socket bound to the named interface.  When
// stripFCS is set the trailing frame check sequence of each frame is
// dropped before transmission, leaving the kernel to append its own.
func NewInjectSink(ifname string, stripFCS bool, logger log.Logger) (*InjectSink, error) {
	if logger == nil {
		logger = log.NewNopLogger()
	}

	iface, err := net.InterfaceByName(ifname)
	if err != nil {
		return nil, fmt.Errorf("failed to obtain details of interface \"%s\": %v", ifname, err)
	}

	fd, err := newPacketSocket()
	if err != nil {
		return nil, fmt.Errorf("failed to create packet socket: %v", err)
	}

	sa := unix.SockaddrLinklayer{
		Ifindex: iface.Index,
	}
	err = unix.Bind(fd, &sa)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("failed to bind socket: %v", err)
	}

	return &InjectSink{
		iface:    iface,
		file:     os.NewFile(uintptr(fd), "ethphy-inject"),
		stripFCS: stripFCS,
		logger:   log.With(logger, "component", "inject sink", "interface", ifname),
	}, nil
}

// Close closes the socket.
func (s *InjectSink) Close() (err error) {
	if s.file != nil {
		err = s.file.Close()
		s.file = nil
	}
	return
}

// HandleEvent implements EventHandler.
func (s *InjectSink) HandleEvent(event interface{}) {
	ev, ok := event.(*FrameEvent)
	if !ok || s.file == nil {
		return
	}
	b := injectPayload(ev.Frame.Octets, s.stripFCS)
	if b == nil {
		return
	}
	if _, err := s.file.Write(b); err != nil {
		level.Error(s.logger).Log(
			"message", "failed to inject frame",
			"frame", ev.Frame.Seq,
			"error", err)
	}
}

// injectPayload returns the octets to transmit for a frame, or nil if the
// frame is too short to carry an Ethernet header.
func injectPayload(octets []byte, stripFCS bool) []byte {
	if stripFCS {
		if len(octets) < ethHeaderLen+ethFCSLen {
			return nil
		}
		octets = octets[:len(octets)-ethFCSLen]
	}
	if len(octets) < ethHeaderLen {
		return nil
	}
	return octets
}
