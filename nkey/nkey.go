// Package nkey implements the NATS NKey scheme: Ed25519 keys carried
// as base32 strings with a type prefix and a CRC-16/ARC checksum.
// Seeds begin with 'S', user public keys with 'U'.
package nkey

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base32"
	"errors"
	"fmt"
)

var (
	// ErrInvalidSeed reports a seed that failed to decode.
	ErrInvalidSeed = errors.New("invalid nkey seed")
	// ErrInvalidNonce reports an empty server nonce.
	ErrInvalidNonce = errors.New("invalid nonce")
	// ErrSigningFailed reports a failed signature operation.
	ErrSigningFailed = errors.New("nkey signing failed")
)

// Prefix bytes are 5-bit type tags stored in the top bits of the
// first raw byte. 18 ('S') marks a seed, 20 ('U') a user key.
const (
	prefixSeed byte = 18 << 3 // 'S'
	prefixUser byte = 20 << 3 // 'U'
)

var b32 = base32.StdEncoding.WithPadding(base32.NoPadding)

// crc16 computes CRC-16/ARC (polynomial 0xA001, reflected, initial
// value 0).
func crc16(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		crc ^= uint16(b)
		for i := 0; i < 8; i++ {
			if crc&1 != 0 {
				crc = crc>>1 ^ 0xA001
			} else {
				crc >>= 1
			}
		}
	}
	return crc
}

// KeyPair holds a decoded user seed and its derived Ed25519 keys.
type KeyPair struct {
	seed []byte
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
}

// FromSeed decodes a user seed ("SU..."), verifies its checksum, and
// derives the Ed25519 key pair.
func FromSeed(seed string) (*KeyPair, error) {
	raw, err := b32.DecodeString(seed)
	if err != nil {
		return nil, fmt.Errorf("%w: not base32: %v", ErrInvalidSeed, err)
	}
	if len(raw) < 4 {
		return nil, fmt.Errorf("%w: too short", ErrInvalidSeed)
	}

	payload, sum := raw[:len(raw)-2], raw[len(raw)-2:]
	want := crc16(payload)
	got := uint16(sum[0]) | uint16(sum[1])<<8
	if want != got {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrInvalidSeed)
	}

	// The seed prefix occupies the top 5 bits of byte 0; the public
	// key type is split across the low 3 bits of byte 0 and the top
	// 5 bits of byte 1.
	if payload[0]&0xf8 != prefixSeed {
		return nil, fmt.Errorf("%w: not a seed prefix", ErrInvalidSeed)
	}
	pubPrefix := (payload[0]&0x07)<<5 | (payload[1]&0xf8)>>3
	if pubPrefix != prefixUser {
		return nil, fmt.Errorf("%w: not a user seed", ErrInvalidSeed)
	}

	rawSeed := payload[2:]
	if len(rawSeed) != ed25519.SeedSize {
		return nil, fmt.Errorf("%w: seed is %d bytes, want %d", ErrInvalidSeed, len(rawSeed), ed25519.SeedSize)
	}

	priv := ed25519.NewKeyFromSeed(rawSeed)
	kp := &KeyPair{
		seed: rawSeed,
		priv: priv,
		pub:  priv.Public().(ed25519.PublicKey),
	}
	return kp, nil
}

// Generate creates a fresh random user key pair.
func Generate() (*KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &KeyPair{seed: priv.Seed(), priv: priv, pub: pub}, nil
}

// PublicKey returns the 'U'-prefixed base32 form of the public key.
func (kp *KeyPair) PublicKey() string {
	raw := make([]byte, 0, 1+ed25519.PublicKeySize+2)
	raw = append(raw, prefixUser)
	raw = append(raw, kp.pub...)
	sum := crc16(raw)
	raw = append(raw, byte(sum), byte(sum>>8))
	return b32.EncodeToString(raw)
}

// Seed re-encodes the seed in its 'SU' transportable form.
func (kp *KeyPair) Seed() string {
	// Byte 0 carries the seed tag in its top 5 bits and the top 3
	// bits of the user tag; byte 1 carries the user tag's low 5 bits.
	raw := make([]byte, 0, 2+ed25519.SeedSize+2)
	raw = append(raw, prefixSeed|prefixUser>>5, (prefixUser&0x1f)<<3)
	raw = append(raw, kp.seed...)
	sum := crc16(raw)
	raw = append(raw, byte(sum), byte(sum>>8))
	return b32.EncodeToString(raw)
}

// Sign signs the nonce bytes with the private key.
func (kp *KeyPair) Sign(nonce []byte) ([]byte, error) {
	if len(nonce) == 0 {
		return nil, ErrInvalidNonce
	}
	if kp.priv == nil {
		return nil, fmt.Errorf("%w: no private key", ErrSigningFailed)
	}
	return ed25519.Sign(kp.priv, nonce), nil
}

// Wipe clears the private key material.
func (kp *KeyPair) Wipe() {
	for i := range kp.seed {
		kp.seed[i] = 0
	}
	for i := range kp.priv {
		kp.priv[i] = 0
	}
	kp.priv = nil
}
