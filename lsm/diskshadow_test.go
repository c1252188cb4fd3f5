package lsm_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/enclavekernel/libos/blockdev"
	"github.com/enclavekernel/libos/lsm"
	"github.com/stretchr/testify/require"
)

func TestDiskShadow_WriteCheckpointLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	dev := blockdev.NewMemDevice(16)
	shadow, err := lsm.NewDiskShadow(dev, 0, 4)
	require.NoError(t, err)

	payload := []byte("catalog snapshot contents")
	require.NoError(t, shadow.Write(ctx, payload))
	shadow.Checkpoint()

	got, err := shadow.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestDiskShadow_SecondWriteSupersedesFirstOnLoad(t *testing.T) {
	ctx := context.Background()
	dev := blockdev.NewMemDevice(16)
	shadow, err := lsm.NewDiskShadow(dev, 0, 4)
	require.NoError(t, err)

	require.NoError(t, shadow.Write(ctx, []byte("first")))
	shadow.Checkpoint()
	require.NoError(t, shadow.Write(ctx, []byte("second")))
	shadow.Checkpoint()

	got, err := shadow.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, []byte("second"), got)
}

func TestDiskShadow_HostSnapshotStagedViaRenameio(t *testing.T) {
	ctx := context.Background()
	dev := blockdev.NewMemDevice(16)
	shadow, err := lsm.NewDiskShadow(dev, 0, 4)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "catalog.snapshot")
	shadow = shadow.WithHostSnapshot(path)

	require.NoError(t, shadow.Write(ctx, []byte("snapshot me")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "snapshot me")
}
