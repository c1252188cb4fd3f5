//go:build linux

package ioring_test

import (
	"testing"
	"time"

	"github.com/enclavekernel/libos/ioring"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestLoopbackProvider_ReadWriteRoundTrip(t *testing.T) {
	lp, err := ioring.NewLoopbackProvider()
	require.NoError(t, err)
	defer lp.Close()

	f, err := unix.Open("/tmp", unix.O_TMPFILE|unix.O_RDWR, 0o600)
	if err != nil {
		t.Skipf("O_TMPFILE unsupported: %v", err)
	}
	defer unix.Close(f)

	payload := []byte("round trip")
	wdone := make(chan struct{})
	lp.SubmitWrite(f, payload, 0, func(n int32, err error) {
		require.NoError(t, err)
		require.EqualValues(t, len(payload), n)
		close(wdone)
	})

	deadline := time.After(2 * time.Second)
	for {
		lp.TriggerCallbacks()
		select {
		case <-wdone:
			goto readBack
		case <-deadline:
			t.Fatal("write did not complete")
		default:
			time.Sleep(time.Millisecond)
		}
	}

readBack:
	buf := make([]byte, len(payload))
	rdone := make(chan struct{})
	lp.SubmitRead(f, buf, 0, func(n int32, err error) {
		require.NoError(t, err)
		require.EqualValues(t, len(payload), n)
		close(rdone)
	})

	deadline = time.After(2 * time.Second)
	for {
		lp.TriggerCallbacks()
		select {
		case <-rdone:
			require.Equal(t, payload, buf)
			return
		case <-deadline:
			t.Fatal("read did not complete")
		default:
			time.Sleep(time.Millisecond)
		}
	}
}

func TestLoopbackProvider_AcceptConnect(t *testing.T) {
	lp, err := ioring.NewLoopbackProvider()
	require.NoError(t, err)
	defer lp.Close()

	listenFd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	require.NoError(t, err)
	defer unix.Close(listenFd)
	require.NoError(t, unix.Bind(listenFd, &unix.SockaddrInet4{Port: 0, Addr: [4]byte{127, 0, 0, 1}}))
	require.NoError(t, unix.Listen(listenFd, 1))

	sa, err := unix.Getsockname(listenFd)
	require.NoError(t, err)
	addr := sa.(*unix.SockaddrInet4)

	clientFd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	require.NoError(t, err)
	defer unix.Close(clientFd)

	var acceptedFd int32 = -1
	accepted := make(chan struct{})
	lp.SubmitAccept(listenFd, func(newfd int32, err error) {
		require.NoError(t, err)
		acceptedFd = newfd
		close(accepted)
	})

	connected := make(chan struct{})
	lp.SubmitConnect(clientFd, &unix.SockaddrInet4{Port: addr.Port, Addr: [4]byte{127, 0, 0, 1}}, func(err error) {
		require.NoError(t, err)
		close(connected)
	})

	deadline := time.After(3 * time.Second)
	for {
		lp.TriggerCallbacks()
		select {
		case <-accepted:
			select {
			case <-connected:
				require.GreaterOrEqual(t, acceptedFd, int32(0))
				unix.Close(int(acceptedFd))
				return
			case <-deadline:
				t.Fatal("connect did not complete")
			default:
				time.Sleep(time.Millisecond)
			}
		case <-deadline:
			t.Fatal("accept did not complete")
		default:
			time.Sleep(time.Millisecond)
		}
	}
}
