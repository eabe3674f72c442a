// Package lthash implements an additive lattice multiset hash. The state is
// 256 little-endian 64-bit lanes. Two interleaved masks split each lane into
// two 32-bit halves, each made of two 16-bit subfields separated by 16-bit
// gaps. Addition happens separately inside every 16-bit subfield; carries
// crossing a subfield boundary are discarded by the masks, which is what
// makes removal exact.
package lthash

import (
	"crypto/sha512"
	"encoding/binary"

	"github.com/bsv-blockchain/coinstatsindex/errors"
	"golang.org/x/crypto/chacha20"
)

// SerializedLen is the byte length of a serialized LtHash state.
const SerializedLen = 2048

const (
	lanes = 256

	maskA = uint64(0xffff0000ffff0000)
	maskB = ^maskA
)

// LtHash is the empty set when zero valued.
type LtHash struct {
	checksum [lanes]uint64
}

// New returns the empty multiset.
func New() *LtHash {
	return &LtHash{}
}

// NewFromElement returns the single-element set for a 32-byte element key.
// The element expands through a ChaCha20 keystream (zero nonce) into 2048
// bytes, read as 256 little-endian 64-bit lanes.
func NewFromElement(element [32]byte) *LtHash {
	var nonce [12]byte

	cipher, err := chacha20.NewUnauthenticatedCipher(element[:], nonce[:])
	if err != nil {
		// key and nonce lengths are fixed, so this is unreachable
		panic(err)
	}

	stream := make([]byte, SerializedLen)
	cipher.XORKeyStream(stream, stream)

	l := &LtHash{}
	for pos := 0; pos < lanes; pos++ {
		l.checksum[pos] = binary.LittleEndian.Uint64(stream[pos*8:])
	}

	return l
}

// Add unions another set into this one.
func (l *LtHash) Add(other *LtHash) {
	for pos := 0; pos < lanes; pos++ {
		v1 := l.checksum[pos]
		v2 := other.checksum[pos]
		v3a := ((v1 & maskA) + (v2 & maskA)) & maskA
		v3b := ((v1 & maskB) + (v2 & maskB)) & maskB
		l.checksum[pos] = v3a | v3b
	}
}

// Remove subtracts another set from this one. The operand is negated within
// each subfield before adding: the complement of b relative to the opposite
// mask is the two's complement of b inside its own subfield.
func (l *LtHash) Remove(other *LtHash) {
	for pos := 0; pos < lanes; pos++ {
		v1 := l.checksum[pos]
		v2 := other.checksum[pos]
		v3a := ((v1 & maskA) + (maskB - (v2 & maskA))) & maskA
		v3b := ((v1 & maskB) + (maskA - (v2 & maskB))) & maskB
		l.checksum[pos] = v3a | v3b
	}
}

// Insert adds a single element.
func (l *LtHash) Insert(element [32]byte) {
	l.Add(NewFromElement(element))
}

// RemoveElement removes a single element.
func (l *LtHash) RemoveElement(element [32]byte) {
	l.Remove(NewFromElement(element))
}

// Clone returns an independent copy of the state.
func (l *LtHash) Clone() *LtHash {
	c := &LtHash{}
	c.checksum = l.checksum

	return c
}

// Bytes serializes the state as 2048 bytes in little-endian lane order. The
// empty set serializes as all zeroes.
func (l *LtHash) Bytes() []byte {
	buf := make([]byte, SerializedLen)
	for pos := 0; pos < lanes; pos++ {
		binary.LittleEndian.PutUint64(buf[pos*8:], l.checksum[pos])
	}

	return buf
}

// SetBytes replaces the state with a previously serialized one.
func (l *LtHash) SetBytes(b []byte) error {
	if len(b) != SerializedLen {
		return errors.NewInvalidArgumentError("lthash state must be %d bytes, got %d", SerializedLen, len(b))
	}

	for pos := 0; pos < lanes; pos++ {
		l.checksum[pos] = binary.LittleEndian.Uint64(b[pos*8:])
	}

	return nil
}

// Finalize returns the 32-byte digest tag: SHA-512 truncated to its first
// half, over the serialized state.
func (l *LtHash) Finalize() [32]byte {
	var tag [32]byte

	sum := sha512.Sum512(l.Bytes())
	copy(tag[:], sum[:32])

	return tag
}

// Equal reports whether two states represent the same multiset.
func (l *LtHash) Equal(other *LtHash) bool {
	return l.checksum == other.checksum
}
