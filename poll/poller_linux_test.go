//go:build linux

package poll_test

import (
	"testing"

	"github.com/enclavekernel/libos/poll"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestPoller_PipeBecomesReadableOnWrite(t *testing.T) {
	fds := make([]int, 2)
	require.NoError(t, unix.Pipe(fds))
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])

	p, err := poll.NewPoller()
	require.NoError(t, err)
	defer p.Close()

	require.NoError(t, unix.SetNonblock(fds[0], true))
	pollee, err := p.Register(int32(fds[0]), 1, poll.In)
	require.NoError(t, err)

	obs := pollee.Observe(poll.In)
	defer obs.Cancel()

	_, err = unix.Write(fds[1], []byte("x"))
	require.NoError(t, err)

	n, err := p.Poll(1000)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	select {
	case ev := <-obs.Ready():
		require.True(t, ev.Has(poll.In))
	default:
		t.Fatal("expected readiness notification")
	}
}

func TestPoller_UnregisterThenRegisterAgain(t *testing.T) {
	fds := make([]int, 2)
	require.NoError(t, unix.Pipe(fds))
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])

	p, err := poll.NewPoller()
	require.NoError(t, err)
	defer p.Close()

	_, err = p.Register(int32(fds[0]), 1, poll.In)
	require.NoError(t, err)
	require.NoError(t, p.Unregister(int32(fds[0])))

	_, err = p.Register(int32(fds[0]), 2, poll.In)
	require.NoError(t, err)
}

func TestPoller_RegisterDuplicateFails(t *testing.T) {
	fds := make([]int, 2)
	require.NoError(t, unix.Pipe(fds))
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])

	p, err := poll.NewPoller()
	require.NoError(t, err)
	defer p.Close()

	_, err = p.Register(int32(fds[0]), 1, poll.In)
	require.NoError(t, err)
	_, err = p.Register(int32(fds[0]), 1, poll.In)
	require.ErrorIs(t, err, poll.ErrFDAlreadyRegistered)
}
