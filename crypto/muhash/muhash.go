// Package muhash implements MuHash3072, a multiplicative multiset hash in
// the group of residues modulo the 3072-bit safe prime 2^3072 - 1103717.
//
// Elements are 32-byte digests. Each element expands to a 3072-bit residue
// through a ChaCha20 keystream keyed by the element, and is multiplied into
// the state on insert and into the denominator on remove. The state is
// commutative, associative and invertible: insert followed by remove of the
// same element restores the prior state bit-exactly.
package muhash

import (
	"crypto/sha512"
	"math/big"

	"github.com/bsv-blockchain/coinstatsindex/errors"
	"golang.org/x/crypto/chacha20"
)

// SerializedLen is the byte length of a serialized MuHash3072 state: 3072
// bits little-endian.
const SerializedLen = 384

const elementLen = 32

var (
	prime    *big.Int
	primeEx  *big.Int // prime - 2, the Fermat inverse exponent
	bigOne   = big.NewInt(1)
	bigCDiff = big.NewInt(1103717)
)

func init() {
	prime = new(big.Int).Lsh(bigOne, 3072)
	prime.Sub(prime, bigCDiff)
	primeEx = new(big.Int).Sub(prime, big.NewInt(2))
}

// MuHash3072 keeps the state as a numerator and denominator so that removals
// cost one multiplication. The division, a single modular inverse, is
// deferred until the state is normalized for serialization or finalization.
type MuHash3072 struct {
	numerator   *big.Int
	denominator *big.Int
}

// New returns the empty multiset, the multiplicative identity.
func New() *MuHash3072 {
	return &MuHash3072{
		numerator:   big.NewInt(1),
		denominator: big.NewInt(1),
	}
}

// expand maps a 32-byte element to a residue in [0, prime). The ChaCha20
// keystream (zero nonce, zero counter) keyed by the element yields 384
// bytes, interpreted as a little-endian integer.
func expand(element [elementLen]byte) *big.Int {
	var nonce [12]byte

	cipher, err := chacha20.NewUnauthenticatedCipher(element[:], nonce[:])
	if err != nil {
		// key and nonce lengths are fixed, so this is unreachable
		panic(err)
	}

	stream := make([]byte, SerializedLen)
	cipher.XORKeyStream(stream, stream)

	n := new(big.Int).SetBytes(reverse(stream))

	return n.Mod(n, prime)
}

// Insert multiplies the element's expansion into the state.
func (m *MuHash3072) Insert(element [elementLen]byte) {
	m.numerator.Mul(m.numerator, expand(element))
	m.numerator.Mod(m.numerator, prime)
}

// Remove divides the element's expansion out of the state.
func (m *MuHash3072) Remove(element [elementLen]byte) {
	m.denominator.Mul(m.denominator, expand(element))
	m.denominator.Mod(m.denominator, prime)
}

// Mul combines another state into this one (multiset union).
func (m *MuHash3072) Mul(other *MuHash3072) {
	m.numerator.Mul(m.numerator, other.numerator)
	m.numerator.Mod(m.numerator, prime)
	m.denominator.Mul(m.denominator, other.denominator)
	m.denominator.Mod(m.denominator, prime)
}

// Div removes another state from this one (multiset difference).
func (m *MuHash3072) Div(other *MuHash3072) {
	m.numerator.Mul(m.numerator, other.denominator)
	m.numerator.Mod(m.numerator, prime)
	m.denominator.Mul(m.denominator, other.numerator)
	m.denominator.Mod(m.denominator, prime)
}

// Clone returns an independent copy of the state.
func (m *MuHash3072) Clone() *MuHash3072 {
	return &MuHash3072{
		numerator:   new(big.Int).Set(m.numerator),
		denominator: new(big.Int).Set(m.denominator),
	}
}

// normalize folds the denominator into the numerator with a single modular
// inverse, computed as denominator^(prime-2) per Fermat's little theorem.
func (m *MuHash3072) normalize() error {
	if m.denominator.Cmp(bigOne) == 0 {
		return nil
	}

	if m.denominator.Sign() == 0 {
		return errors.NewInvariantError("muhash denominator is zero")
	}

	inv := new(big.Int).Exp(m.denominator, primeEx, prime)
	m.numerator.Mul(m.numerator, inv)
	m.numerator.Mod(m.numerator, prime)
	m.denominator.Set(bigOne)

	return nil
}

// Bytes serializes the normalized state as 384 little-endian bytes.
func (m *MuHash3072) Bytes() ([]byte, error) {
	if err := m.normalize(); err != nil {
		return nil, err
	}

	buf := make([]byte, SerializedLen)
	m.numerator.FillBytes(buf)

	return reverse(buf), nil
}

// SetBytes replaces the state with a previously serialized one.
func (m *MuHash3072) SetBytes(b []byte) error {
	if len(b) != SerializedLen {
		return errors.NewInvalidArgumentError("muhash state must be %d bytes, got %d", SerializedLen, len(b))
	}

	n := new(big.Int).SetBytes(reverse(b))
	if n.Cmp(prime) >= 0 {
		return errors.NewCorruptError("muhash state out of range")
	}

	m.numerator = n
	m.denominator = big.NewInt(1)

	return nil
}

// Finalize returns the 32-byte digest tag: SHA-512 truncated to its first
// half, over the serialized state.
func (m *MuHash3072) Finalize() ([32]byte, error) {
	var tag [32]byte

	b, err := m.Bytes()
	if err != nil {
		return tag, err
	}

	sum := sha512.Sum512(b)
	copy(tag[:], sum[:32])

	return tag, nil
}

// Equal reports whether two states represent the same multiset.
func (m *MuHash3072) Equal(other *MuHash3072) bool {
	a, err := m.Bytes()
	if err != nil {
		return false
	}

	b, err := other.Bytes()
	if err != nil {
		return false
	}

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}

func reverse(b []byte) []byte {
	out := make([]byte, len(b))
	for i, v := range b {
		out[len(b)-1-i] = v
	}

	return out
}
