package ioring_test

import (
	"testing"

	"github.com/enclavekernel/libos/ioring"
	"github.com/stretchr/testify/require"
)

func TestRequestSlab_Lifecycle(t *testing.T) {
	slab := ioring.NewRequestSlab[string]()
	r := slab.Get()
	require.Equal(t, ioring.ReqInit, r.State())

	r.Payload = "hello"
	r.Submit()
	require.Equal(t, ioring.ReqSubmitted, r.State())

	r.Complete(42, nil)
	require.Equal(t, ioring.ReqCompleted, r.State())
	n, err := r.Result()
	require.NoError(t, err)
	require.EqualValues(t, 42, n)

	slab.Put(r)
}

func TestRequestSlab_SubmitFromWrongStatePanics(t *testing.T) {
	slab := ioring.NewRequestSlab[int]()
	r := slab.Get()
	r.Submit()
	require.Panics(t, func() { r.Submit() })
}

func TestRequestSlab_CompleteFromWrongStatePanics(t *testing.T) {
	slab := ioring.NewRequestSlab[int]()
	r := slab.Get()
	require.Panics(t, func() { r.Complete(0, nil) })
}

func TestRequestSlab_ReuseResetsState(t *testing.T) {
	slab := ioring.NewRequestSlab[int]()
	r1 := slab.Get()
	r1.Payload = 7
	r1.Submit()
	r1.Complete(1, nil)
	slab.Put(r1)

	r2 := slab.Get()
	require.Equal(t, ioring.ReqInit, r2.State())
	require.Equal(t, 0, r2.Payload)
}
