// Package multiset exposes the homomorphic multiset hashes behind one
// interface so the index can bind either construction at startup.
package multiset

import (
	"bytes"

	"github.com/bsv-blockchain/coinstatsindex/crypto/lthash"
	"github.com/bsv-blockchain/coinstatsindex/crypto/muhash"
	"github.com/bsv-blockchain/coinstatsindex/errors"
)

const (
	AlgorithmMuHash = "muhash"
	AlgorithmLtHash = "lthash"
)

// Digest is a rolling hash over a multiset of 32-byte elements. All
// implementations are commutative, associative and invertible: Insert
// followed by Remove of the same element restores the prior state
// bit-exactly, as does Combine followed by Split of the same digest.
type Digest interface {
	// Algorithm names the construction, one of the Algorithm constants.
	Algorithm() string

	// Insert adds an element to the set.
	Insert(element [32]byte)

	// Remove takes an element out of the set.
	Remove(element [32]byte)

	// Combine folds another digest of the same algorithm into this one.
	Combine(other Digest) error

	// Split removes another digest of the same algorithm from this one in a
	// single group operation.
	Split(other Digest) error

	// Bytes returns the canonical serialization: 384 bytes little-endian for
	// muhash, 2048 for lthash.
	Bytes() ([]byte, error)

	// SetBytes replaces the state with a previously serialized one.
	SetBytes(b []byte) error

	// Finalize returns the 32-byte digest tag.
	Finalize() ([32]byte, error)

	// Clone returns an independent copy.
	Clone() Digest

	// Empty returns a fresh identity digest of the same algorithm.
	Empty() Digest
}

// New returns the identity digest for the named algorithm.
func New(algorithm string) (Digest, error) {
	switch algorithm {
	case AlgorithmMuHash:
		return &muHashDigest{muhash.New()}, nil
	case AlgorithmLtHash:
		return &ltHashDigest{lthash.New()}, nil
	default:
		return nil, errors.NewConfigurationError("unknown multiset algorithm %q", algorithm)
	}
}

// Equal reports whether two digests serialize identically.
func Equal(a, b Digest) bool {
	if a.Algorithm() != b.Algorithm() {
		return false
	}

	ab, err := a.Bytes()
	if err != nil {
		return false
	}

	bb, err := b.Bytes()
	if err != nil {
		return false
	}

	return bytes.Equal(ab, bb)
}

type muHashDigest struct {
	h *muhash.MuHash3072
}

func (d *muHashDigest) Algorithm() string           { return AlgorithmMuHash }
func (d *muHashDigest) Insert(element [32]byte)     { d.h.Insert(element) }
func (d *muHashDigest) Remove(element [32]byte)     { d.h.Remove(element) }
func (d *muHashDigest) Bytes() ([]byte, error)      { return d.h.Bytes() }
func (d *muHashDigest) SetBytes(b []byte) error     { return d.h.SetBytes(b) }
func (d *muHashDigest) Finalize() ([32]byte, error) { return d.h.Finalize() }
func (d *muHashDigest) Clone() Digest               { return &muHashDigest{d.h.Clone()} }
func (d *muHashDigest) Empty() Digest               { return &muHashDigest{muhash.New()} }

func (d *muHashDigest) Combine(other Digest) error {
	o, ok := other.(*muHashDigest)
	if !ok {
		return errors.NewInvariantError("cannot combine %s digest into muhash", other.Algorithm())
	}

	d.h.Mul(o.h)

	return nil
}

func (d *muHashDigest) Split(other Digest) error {
	o, ok := other.(*muHashDigest)
	if !ok {
		return errors.NewInvariantError("cannot split %s digest from muhash", other.Algorithm())
	}

	d.h.Div(o.h)

	return nil
}

type ltHashDigest struct {
	h *lthash.LtHash
}

func (d *ltHashDigest) Algorithm() string       { return AlgorithmLtHash }
func (d *ltHashDigest) Insert(element [32]byte) { d.h.Insert(element) }
func (d *ltHashDigest) Remove(element [32]byte) { d.h.RemoveElement(element) }
func (d *ltHashDigest) Bytes() ([]byte, error)  { return d.h.Bytes(), nil }
func (d *ltHashDigest) SetBytes(b []byte) error { return d.h.SetBytes(b) }
func (d *ltHashDigest) Clone() Digest           { return &ltHashDigest{d.h.Clone()} }
func (d *ltHashDigest) Empty() Digest           { return &ltHashDigest{lthash.New()} }

func (d *ltHashDigest) Finalize() ([32]byte, error) {
	return d.h.Finalize(), nil
}

func (d *ltHashDigest) Combine(other Digest) error {
	o, ok := other.(*ltHashDigest)
	if !ok {
		return errors.NewInvariantError("cannot combine %s digest into lthash", other.Algorithm())
	}

	d.h.Add(o.h)

	return nil
}

func (d *ltHashDigest) Split(other Digest) error {
	o, ok := other.(*ltHashDigest)
	if !ok {
		return errors.NewInvariantError("cannot split %s digest from lthash", other.Algorithm())
	}

	d.h.Remove(o.h)

	return nil
}
