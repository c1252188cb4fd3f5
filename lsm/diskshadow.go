package lsm

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/enclavekernel/libos/blockdev"
	"github.com/google/renameio/v2"
	"golang.org/x/crypto/chacha20poly1305"
)

// shadowBlocksDefault is the number of 4 KiB blocks one shadow copy
// occupies; BITC/DST payloads are small, but padded up to a whole number
// of blocks per spec.md §4.6's "size padded up to block".
const shadowBlocksDefault = 4

// DiskShadow is a two-copy shadow-paging view over a fixed HBA pair:
// Write seals and stages data into the standby copy, tagging it with a
// monotonic generation; Checkpoint flips which copy the next Write
// targets. Load does not consult the checkpoint: a chunk is durable the
// moment either copy's write succeeds, since Load always prefers the
// higher generation and falls back to the other copy if one is missing
// or fails its MAC.
//
// Unlike BIT nodes, a shadow copy has no parent to hand it a MAC or a
// plaintext length, so each block self-describes its ciphertext length in
// a cleartext 4-byte header ahead of the nonce -- the length isn't
// secret, only the payload is.
type DiskShadow struct {
	mu         sync.Mutex
	device     blockdev.Device
	hba        [2]uint64
	blocks     int
	key        blockKey
	generation uint64
	active     int

	// hostPath, if set, also stages every Write through
	// github.com/google/renameio/v2 as a regular file -- the
	// non-enclave reference path used in tests, composing with (not
	// replacing) the two-copy on-device shadow above.
	hostPath string
}

func NewDiskShadow(device blockdev.Device, hbaA, hbaB uint64) (*DiskShadow, error) {
	key, err := newBlockKey()
	if err != nil {
		return nil, err
	}
	return &DiskShadow{device: device, hba: [2]uint64{hbaA, hbaB}, blocks: shadowBlocksDefault, key: key}, nil
}

// WithHostSnapshot enables the additional renameio-staged host file
// snapshot described above.
func (d *DiskShadow) WithHostSnapshot(path string) *DiskShadow {
	d.hostPath = path
	return d
}

const shadowHeaderSize = 4 // cleartext ciphertext-length prefix

// sealShadow seals plain into a fixed totalBlocks*BlockSize-byte block:
// [4-byte ciphertext length][nonce][ciphertext+tag][zero padding].
func sealShadow(key blockKey, plain []byte, totalBlocks int) ([]byte, error) {
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, chacha20poly1305.NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	ciphertext := aead.Seal(nil, nonce, plain, nil)

	need := shadowHeaderSize + len(nonce) + len(ciphertext)
	capacity := totalBlocks * BlockSize
	if need > capacity {
		return nil, fmt.Errorf("lsm: sealShadow: %d bytes exceeds shadow capacity %d", need, capacity)
	}

	out := make([]byte, capacity)
	binary.LittleEndian.PutUint32(out[0:shadowHeaderSize], uint32(len(ciphertext)))
	copy(out[shadowHeaderSize:], nonce)
	copy(out[shadowHeaderSize+len(nonce):], ciphertext)
	return out, nil
}

// openShadow reverses sealShadow, failing closed on any corruption or
// length mismatch.
func openShadow(key blockKey, raw []byte) ([]byte, error) {
	if len(raw) < shadowHeaderSize+chacha20poly1305.NonceSize {
		return nil, fmt.Errorf("lsm: openShadow: block too short")
	}
	ctLen := int(binary.LittleEndian.Uint32(raw[0:shadowHeaderSize]))
	need := shadowHeaderSize + chacha20poly1305.NonceSize + ctLen
	if ctLen < chacha20poly1305.Overhead || need > len(raw) {
		return nil, fmt.Errorf("lsm: openShadow: invalid ciphertext length")
	}

	nonce := raw[shadowHeaderSize : shadowHeaderSize+chacha20poly1305.NonceSize]
	ciphertext := raw[shadowHeaderSize+chacha20poly1305.NonceSize : need]

	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, err
	}
	return aead.Open(nil, nonce, ciphertext, nil)
}

// Write seals data (generation-stamped) into the standby copy. Once it
// succeeds, Load returns data whether or not Checkpoint is called, since
// its generation is the highest; Checkpoint only decides which copy the
// next Write overwrites.
func (d *DiskShadow) Write(ctx context.Context, data []byte) error {
	d.mu.Lock()
	standby := 1 - d.active
	gen := d.generation + 1
	d.mu.Unlock()

	plain := make([]byte, 8+len(data))
	binary.LittleEndian.PutUint64(plain[0:8], gen)
	copy(plain[8:], data)

	padded, err := sealShadow(d.key, plain, d.blocks)
	if err != nil {
		return err
	}

	bufs := make([]blockdev.BlockBuf, d.blocks)
	for i := range bufs {
		bufs[i] = padded[i*BlockSize : (i+1)*BlockSize]
	}
	req := &blockdev.BioReq{Payload: blockdev.BioPayload{Kind: blockdev.BioWrite, Block: d.hba[standby], Bufs: bufs}}
	sub := d.device.Submit(req)
	if _, err := sub.Wait(ctx); err != nil {
		return err
	}

	if d.hostPath != "" {
		if err := renameio.WriteFile(d.hostPath, plain, 0o600); err != nil {
			return err
		}
	}

	d.mu.Lock()
	d.generation = gen
	d.mu.Unlock()
	return nil
}

// Checkpoint flips the active copy to whichever was most recently
// written, per spec.md §4.6's "checkpoint flips the active bitmap and
// persists it" -- here "persisted" by virtue of the generation number
// already written durably in Write.
func (d *DiskShadow) Checkpoint() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.active = 1 - d.active
}

// Load reads both shadow copies, verifying each decrypts and discarding
// any that doesn't (corrupt/never-written), then returns the payload from
// whichever remaining copy has the higher generation.
func (d *DiskShadow) Load(ctx context.Context) ([]byte, error) {
	type candidate struct {
		gen  uint64
		data []byte
	}
	var candidates []candidate

	for slot := 0; slot < 2; slot++ {
		raw := make([]byte, d.blocks*BlockSize)
		req := &blockdev.BioReq{Payload: blockdev.BioPayload{Kind: blockdev.BioRead, Block: d.hba[slot], Bufs: []blockdev.BlockBuf{raw}}}
		sub := d.device.Submit(req)
		if _, err := sub.Wait(ctx); err != nil {
			continue
		}
		plain, err := openShadow(d.key, raw)
		if err != nil {
			continue
		}
		if len(plain) < 8 {
			continue
		}
		gen := binary.LittleEndian.Uint64(plain[0:8])
		candidates = append(candidates, candidate{gen: gen, data: append([]byte(nil), plain[8:]...)})
	}

	if len(candidates) == 0 {
		return nil, fmt.Errorf("lsm: DiskShadow.Load: no valid shadow copy")
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.gen > best.gen {
			best = c
		}
	}

	d.mu.Lock()
	d.generation = best.gen
	d.mu.Unlock()
	return best.data, nil
}
