package process_test

import (
	"errors"
	"testing"

	"github.com/enclavekernel/libos/errno"
	"github.com/enclavekernel/libos/process"
	"github.com/stretchr/testify/require"
)

func TestClone_MissingMandatoryFlagsReturnsEINVAL(t *testing.T) {
	p := process.NewProcess(nil)

	_, err := p.Clone(process.CloneRequest{Flags: process.CLONE_VM})
	require.True(t, errors.Is(err, errno.EINVAL))
}

func TestClone_RejectedFlagReturnsEINVALEvenWithMandatorySet(t *testing.T) {
	p := process.NewProcess(nil)
	mandatory := process.CLONE_VM | process.CLONE_THREAD | process.CLONE_SIGHAND |
		process.CLONE_FILES | process.CLONE_FS | process.CLONE_SETTLS | process.CLONE_SYSVSEM

	_, err := p.Clone(process.CloneRequest{Flags: mandatory | process.CLONE_VFORK})
	require.True(t, errors.Is(err, errno.EINVAL))
}

func TestClone_FullMandatorySetSucceedsWithDistinctTid(t *testing.T) {
	p := process.NewProcess(nil)
	mandatory := process.CLONE_VM | process.CLONE_THREAD | process.CLONE_SIGHAND |
		process.CLONE_FILES | process.CLONE_FS | process.CLONE_SETTLS | process.CLONE_SYSVSEM

	child, err := p.Clone(process.CloneRequest{Flags: mandatory})
	require.NoError(t, err)
	require.NotEqual(t, p.MainThread().Tid, child.Tid)
}

func TestClone_IgnoredFlagsDoNotAffectValidity(t *testing.T) {
	p := process.NewProcess(nil)
	mandatory := process.CLONE_VM | process.CLONE_THREAD | process.CLONE_SIGHAND |
		process.CLONE_FILES | process.CLONE_FS | process.CLONE_SETTLS | process.CLONE_SYSVSEM

	_, err := p.Clone(process.CloneRequest{Flags: mandatory | process.CLONE_DETACHED | process.CLONE_IO | process.CLONE_PARENT})
	require.NoError(t, err)
}

func TestClone_ChildSetTIDWritesNewTid(t *testing.T) {
	p := process.NewProcess(nil)
	mandatory := process.CLONE_VM | process.CLONE_THREAD | process.CLONE_SIGHAND |
		process.CLONE_FILES | process.CLONE_FS | process.CLONE_SETTLS | process.CLONE_SYSVSEM

	var settid uint32
	child, err := p.Clone(process.CloneRequest{
		Flags:       mandatory | process.CLONE_CHILD_SETTID,
		ChildSetTID: &settid,
	})
	require.NoError(t, err)
	require.EqualValues(t, child.Tid, settid)
}
