package solana

import (
	"crypto/sha256"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// PublicKey is a 32-byte ed25519 public key / account address.
type PublicKey [32]byte

// Well-known program addresses.
var (
	SystemProgramID          = mustPublicKey("11111111111111111111111111111111")
	TokenProgramID           = mustPublicKey("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")
	AssociatedTokenProgramID = mustPublicKey("ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL")
	ComputeBudgetProgramID   = mustPublicKey("ComputeBudget111111111111111111111111111111")
	WrappedSolMint           = mustPublicKey("So11111111111111111111111111111111111111112")
)

func PublicKeyFromBase58(s string) (PublicKey, error) {
	var pk PublicKey
	raw, err := base58.Decode(s)
	if err != nil {
		return pk, fmt.Errorf("invalid base58 address %q: %w", s, err)
	}
	if len(raw) != 32 {
		return pk, fmt.Errorf("invalid address length %d for %q", len(raw), s)
	}
	copy(pk[:], raw)
	return pk, nil
}

func mustPublicKey(s string) PublicKey {
	pk, err := PublicKeyFromBase58(s)
	if err != nil {
		panic(err)
	}
	return pk
}

func (pk PublicKey) String() string {
	return base58.Encode(pk[:])
}

func (pk PublicKey) Equals(other PublicKey) bool {
	return pk == other
}

// IsOnCurve reports whether the key is a valid ed25519 curve point. Program
// derived addresses are, by construction, not on the curve.
func (pk PublicKey) IsOnCurve() bool {
	_, err := new(edwards25519.Point).SetBytes(pk[:])
	return err == nil
}

// pdaMarker terminates the seed list when deriving a program address.
var pdaMarker = []byte("ProgramDerivedAddress")

// FindProgramAddress derives the first off-curve address for the seeds,
// walking the bump seed down from 255.
func FindProgramAddress(seeds [][]byte, programID PublicKey) (PublicKey, uint8, error) {
	for bump := 255; bump >= 0; bump-- {
		h := sha256.New()
		for _, seed := range seeds {
			h.Write(seed)
		}
		h.Write([]byte{uint8(bump)})
		h.Write(programID[:])
		h.Write(pdaMarker)

		var candidate PublicKey
		copy(candidate[:], h.Sum(nil))
		if !candidate.IsOnCurve() {
			return candidate, uint8(bump), nil
		}
	}
	return PublicKey{}, 0, fmt.Errorf("no viable program address for seeds")
}

// AssociatedTokenAddress derives the associated token account of owner for
// mint.
func AssociatedTokenAddress(owner, mint PublicKey) (PublicKey, error) {
	addr, _, err := FindProgramAddress(
		[][]byte{owner[:], TokenProgramID[:], mint[:]},
		AssociatedTokenProgramID,
	)
	if err != nil {
		return PublicKey{}, fmt.Errorf("derive associated token address: %w", err)
	}
	return addr, nil
}
