package socket

import (
	"encoding/binary"

	"github.com/enclavekernel/libos/errno"
	"golang.org/x/sys/unix"
)

// NetlinkHeaderSize is sizeof(struct nlmsghdr): len(4) + type(2) + flags(2)
// + seq(4) + pid(4).
const NetlinkHeaderSize = 16

// ValidNetlinkHeader reports whether buf starts with a well-formed
// nlmsghdr, per spec.md §4.4.5: buf is at least NetlinkHeaderSize long,
// the header's length field is at least NetlinkHeaderSize and does not
// exceed len(buf), and the message type is >= 0x10 (above the reserved
// control range).
func ValidNetlinkHeader(buf []byte) bool {
	if len(buf) < NetlinkHeaderSize {
		return false
	}
	length := binary.LittleEndian.Uint32(buf[0:4])
	msgType := binary.LittleEndian.Uint16(buf[4:6])
	return length >= NetlinkHeaderSize && length <= uint32(len(buf)) && msgType >= 0x10
}

// NetlinkSocket is a Netlink DatagramSocket. When unconnected, sendmsg
// needs no explicit address: the socket supplies dst_pid=0, dst_groups=0,
// per spec.md §4.4.5.
type NetlinkSocket struct {
	*DatagramSocket
}

// DefaultNetlinkAddr is the implicit destination for an unconnected
// Netlink send: the kernel (pid 0), no multicast groups.
func DefaultNetlinkAddr() *unix.SockaddrNetlink {
	return &unix.SockaddrNetlink{Family: unix.AF_NETLINK, Pid: 0, Groups: 0}
}

// Send fills in DefaultNetlinkAddr when msg.Addr is nil, then enqueues
// normally.
func (n *NetlinkSocket) Send(msg DatagramMsg) error {
	if msg.Addr == nil {
		msg.Addr = DefaultNetlinkAddr()
	}
	return n.DatagramSocket.Send(msg)
}

// Shutdown is unsupported for Netlink sockets and returns EOPNOTSUPP.
func (n *NetlinkSocket) Shutdown(int) error {
	return errno.EOPNOTSUPP
}
