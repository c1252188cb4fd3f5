package blockdev_test

import (
	"context"
	"testing"

	"github.com/enclavekernel/libos/blockdev"
	"github.com/stretchr/testify/require"
)

func TestMemDevice_WriteThenReadRoundTrip(t *testing.T) {
	dev := blockdev.NewMemDevice(4)
	payload := []byte("hello block device")

	wreq := &blockdev.BioReq{Payload: blockdev.BioPayload{
		Kind:  blockdev.BioWrite,
		Block: 0,
		Bufs:  []blockdev.BlockBuf{payload},
	}}
	wsub := dev.Submit(wreq)
	_, err := wsub.Wait(context.Background())
	require.NoError(t, err)

	buf := make([]byte, len(payload))
	rreq := &blockdev.BioReq{Payload: blockdev.BioPayload{
		Kind:  blockdev.BioRead,
		Block: 0,
		Bufs:  []blockdev.BlockBuf{buf},
	}}
	rsub := dev.Submit(rreq)
	_, err = rsub.Wait(context.Background())
	require.NoError(t, err)
	require.Equal(t, payload, buf)
}

func TestMemDevice_OutOfRangeReturnsError(t *testing.T) {
	dev := blockdev.NewMemDevice(1)
	req := &blockdev.BioReq{Payload: blockdev.BioPayload{
		Kind:  blockdev.BioWrite,
		Block: 10,
		Bufs:  []blockdev.BlockBuf{make([]byte, 16)},
	}}
	sub := dev.Submit(req)
	_, err := sub.Wait(context.Background())
	require.Error(t, err)
}

func TestMemDevice_TotalBlocks(t *testing.T) {
	dev := blockdev.NewMemDevice(8)
	require.EqualValues(t, 8, dev.TotalBlocks())
}
