//go:build linux

package blockdev_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/enclavekernel/libos/blockdev"
	"github.com/enclavekernel/libos/ioring"
	"github.com/stretchr/testify/require"
)

func drain(t *testing.T, provider *ioring.LoopbackProvider, done <-chan struct{}, timeout time.Duration) {
	t.Helper()
	deadline := time.After(timeout)
	for {
		provider.TriggerCallbacks()
		select {
		case <-done:
			return
		case <-deadline:
			t.Fatal("submission did not complete in time")
		default:
			time.Sleep(time.Millisecond)
		}
	}
}

func TestFileDevice_SmallRoundTrip(t *testing.T) {
	provider, err := ioring.NewLoopbackProvider()
	require.NoError(t, err)
	defer provider.Close()

	path := filepath.Join(t.TempDir(), "small.img")
	dev, err := blockdev.NewFileDevice(path, 4, provider)
	require.NoError(t, err)
	defer dev.Close()

	payload := []byte("small file round trip")
	wreq := &blockdev.BioReq{Payload: blockdev.BioPayload{Kind: blockdev.BioWrite, Bufs: []blockdev.BlockBuf{payload}}}
	wsub := dev.Submit(wreq)
	drain(t, provider, wsub.Done(), 2*time.Second)
	_, err = wsub.Wait(context.Background())
	require.NoError(t, err)

	buf := make([]byte, len(payload))
	rreq := &blockdev.BioReq{Payload: blockdev.BioPayload{Kind: blockdev.BioRead, Bufs: []blockdev.BlockBuf{buf}}}
	rsub := dev.Submit(rreq)
	drain(t, provider, rsub.Done(), 2*time.Second)
	_, err = rsub.Wait(context.Background())
	require.NoError(t, err)
	require.Equal(t, payload, buf)
}

func TestFileDevice_16MiBRoundTrip(t *testing.T) {
	provider, err := ioring.NewLoopbackProvider()
	require.NoError(t, err)
	defer provider.Close()

	const size = 16 * 1024 * 1024
	blocks := uint64(size / blockdev.BlockSize)
	path := filepath.Join(t.TempDir(), "large.img")
	dev, err := blockdev.NewFileDevice(path, blocks, provider)
	require.NoError(t, err)
	defer dev.Close()

	payload := make([]byte, size)
	for i := range payload {
		payload[i] = byte(i)
	}

	wreq := &blockdev.BioReq{Payload: blockdev.BioPayload{Kind: blockdev.BioWrite, Bufs: []blockdev.BlockBuf{payload}}}
	wsub := dev.Submit(wreq)
	drain(t, provider, wsub.Done(), 10*time.Second)
	n, err := wsub.Wait(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, size, n)

	buf := make([]byte, size)
	rreq := &blockdev.BioReq{Payload: blockdev.BioPayload{Kind: blockdev.BioRead, Bufs: []blockdev.BlockBuf{buf}}}
	rsub := dev.Submit(rreq)
	drain(t, provider, rsub.Done(), 10*time.Second)
	_, err = rsub.Wait(context.Background())
	require.NoError(t, err)
	require.Equal(t, payload, buf)
}
