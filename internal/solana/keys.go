package solana

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	"github.com/mr-tron/base58"
)

// Keypair holds an ed25519 signing key and its public address.
type Keypair struct {
	publicKey  PublicKey
	privateKey ed25519.PrivateKey
}

// GenerateKeypair creates a fresh random keypair.
func GenerateKeypair() (*Keypair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate keypair: %w", err)
	}
	var pk PublicKey
	copy(pk[:], pub)
	return &Keypair{publicKey: pk, privateKey: priv}, nil
}

// KeypairFromBase58 restores a keypair from the base58 encoding of the
// 64-byte ed25519 private key (seed followed by public key).
func KeypairFromBase58(s string) (*Keypair, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("decode private key: %w", err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid private key length %d", len(raw))
	}
	priv := ed25519.PrivateKey(raw)
	var pk PublicKey
	copy(pk[:], priv.Public().(ed25519.PublicKey))
	return &Keypair{publicKey: pk, privateKey: priv}, nil
}

// PublicKey returns the keypair's address.
func (kp *Keypair) PublicKey() PublicKey {
	return kp.publicKey
}

// Address returns the base58 form of the public key.
func (kp *Keypair) Address() string {
	return kp.publicKey.String()
}

// PrivateKeyBase58 returns the base58 encoding of the full 64-byte private
// key, suitable for KeypairFromBase58.
func (kp *Keypair) PrivateKeyBase58() string {
	return base58.Encode(kp.privateKey)
}

// Sign signs the message with the keypair's private key.
func (kp *Keypair) Sign(message []byte) []byte {
	return ed25519.Sign(kp.privateKey, message)
}
