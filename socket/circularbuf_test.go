package socket_test

import (
	"testing"

	"github.com/enclavekernel/libos/socket"
	"github.com/stretchr/testify/require"
)

func TestCircularBuf_WriteReadRoundTrip(t *testing.T) {
	buf := socket.NewCircularBuf(8)
	n := buf.Write([]byte("hello"))
	require.Equal(t, 5, n)

	out := make([]byte, 5)
	n = buf.Read(out)
	require.Equal(t, 5, n)
	require.Equal(t, "hello", string(out))
	require.True(t, buf.Empty())
}

func TestCircularBuf_CapacityIsLenMinusOne(t *testing.T) {
	buf := socket.NewCircularBuf(4)
	require.Equal(t, 4, buf.Producible())
	n := buf.Write([]byte("abcdef"))
	require.Equal(t, 4, n)
	require.True(t, buf.Full())
}

func TestCircularBuf_WrapAround(t *testing.T) {
	buf := socket.NewCircularBuf(4)
	buf.Write([]byte("abcd"))

	out := make([]byte, 2)
	buf.Read(out)
	require.Equal(t, "ab", string(out))

	n := buf.Write([]byte("ef"))
	require.Equal(t, 2, n)

	rest := make([]byte, 4)
	n = buf.Read(rest)
	require.Equal(t, 4, n)
	require.Equal(t, "cdef", string(rest[:n]))
}

func TestCircularBuf_ProduceConsumeWithoutCopy(t *testing.T) {
	buf := socket.NewCircularBuf(8)
	slice := buf.FirstProducerSlice()
	copy(slice, []byte("xyz"))
	buf.ProduceWithoutCopy(3)
	require.Equal(t, 3, buf.Consumable())

	got := buf.FirstConsumerSlice()
	require.Equal(t, "xyz", string(got[:3]))
	buf.ConsumeWithoutCopy(3)
	require.True(t, buf.Empty())
}
