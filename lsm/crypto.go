package lsm

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// BlockSize matches blockdev.BlockSize, duplicated as a package-local
// constant.
const BlockSize = 4096

// blockKey is a fresh random AEAD key, one per BIT, rotated for free on
// every minor compaction per spec.md §4.6.
type blockKey [chacha20poly1305.KeySize]byte

func newBlockKey() (blockKey, error) {
	var k blockKey
	if _, err := rand.Read(k[:]); err != nil {
		return blockKey{}, err
	}
	return k, nil
}

// sealBlock authenticated-encrypts plaintext into a fixed BlockSize-byte
// block: a random nonce followed by ciphertext+tag, zero-padded to fill
// the block. The tag (last chacha20poly1305.Overhead bytes of the
// ciphertext) is also returned separately, for the parent block to store
// as this block's MAC.
func sealBlock(key blockKey, plaintext []byte) (block []byte, mac []byte, err error) {
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, nil, err
	}
	nonce := make([]byte, chacha20poly1305.NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, err
	}
	ciphertext := aead.Seal(nil, nonce, plaintext, nil)
	if len(nonce)+len(ciphertext) > BlockSize {
		return nil, nil, fmt.Errorf("lsm: sealBlock: plaintext too large for one %d-byte block", BlockSize)
	}
	block = make([]byte, BlockSize)
	copy(block, nonce)
	copy(block[len(nonce):], ciphertext)
	mac = append([]byte(nil), ciphertext[len(ciphertext)-chacha20poly1305.Overhead:]...)
	return block, mac, nil
}

// openBlock reverses sealBlock, verifying the plaintext's length-prefixed
// shape is consistent via the caller's subsequent decode. wantMAC, if
// non-nil, must match the block's trailing authentication tag before
// decryption is attempted -- this is the "verify the MAC against the
// parent's stored MAC" step spec.md §4.6 requires before decrypting.
func openBlock(key blockKey, block []byte, wantMAC []byte, ciphertextLen int) ([]byte, error) {
	if len(block) < chacha20poly1305.NonceSize+ciphertextLen {
		return nil, fmt.Errorf("lsm: openBlock: block too short")
	}
	nonce := block[:chacha20poly1305.NonceSize]
	ciphertext := block[chacha20poly1305.NonceSize : chacha20poly1305.NonceSize+ciphertextLen]

	if wantMAC != nil {
		gotMAC := ciphertext[len(ciphertext)-chacha20poly1305.Overhead:]
		if !macEqual(gotMAC, wantMAC) {
			return nil, fmt.Errorf("lsm: openBlock: MAC mismatch")
		}
	}

	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, err
	}
	return aead.Open(nil, nonce, ciphertext, nil)
}

func macEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	var diff byte
	for i := range a {
		diff |= a[i] ^ b[i]
	}
	return diff == 0
}
