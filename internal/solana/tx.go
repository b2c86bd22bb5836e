package solana

import (
	"bytes"
	"fmt"

	"github.com/mr-tron/base58"
)

// Transaction is a legacy-format transaction under construction.
type Transaction struct {
	message    []byte
	signerKeys []PublicKey
	signatures map[PublicKey][]byte
}

// accountEntry tracks how an account is used across all instructions so the
// message header can be computed.
type accountEntry struct {
	key      PublicKey
	signer   bool
	writable bool
}

// NewTransaction compiles instructions into a legacy message with feePayer as
// the first signer and the given recent blockhash.
func NewTransaction(instructions []Instruction, recentBlockhash string, feePayer PublicKey) (*Transaction, error) {
	blockhash, err := base58.Decode(recentBlockhash)
	if err != nil {
		return nil, fmt.Errorf("decode blockhash: %w", err)
	}
	if len(blockhash) != 32 {
		return nil, fmt.Errorf("invalid blockhash length %d", len(blockhash))
	}

	entries := collectAccounts(instructions, feePayer)

	// Message account order: writable signers, readonly signers, writable
	// non-signers, readonly non-signers. The fee payer leads the first group.
	var ordered []accountEntry
	for _, pick := range []func(accountEntry) bool{
		func(e accountEntry) bool { return e.signer && e.writable },
		func(e accountEntry) bool { return e.signer && !e.writable },
		func(e accountEntry) bool { return !e.signer && e.writable },
		func(e accountEntry) bool { return !e.signer && !e.writable },
	} {
		for _, e := range entries {
			if pick(e) {
				ordered = append(ordered, e)
			}
		}
	}

	index := make(map[PublicKey]uint8, len(ordered))
	var signerKeys []PublicKey
	var numSigners, numReadonlySigners, numReadonlyUnsigned uint8
	for i, e := range ordered {
		index[e.key] = uint8(i)
		if e.signer {
			numSigners++
			signerKeys = append(signerKeys, e.key)
			if !e.writable {
				numReadonlySigners++
			}
		} else if !e.writable {
			numReadonlyUnsigned++
		}
	}

	var msg bytes.Buffer
	msg.Write([]byte{numSigners, numReadonlySigners, numReadonlyUnsigned})
	writeCompactU16(&msg, len(ordered))
	for _, e := range ordered {
		msg.Write(e.key[:])
	}
	msg.Write(blockhash)
	writeCompactU16(&msg, len(instructions))
	for _, ix := range instructions {
		msg.WriteByte(index[ix.ProgramID])
		writeCompactU16(&msg, len(ix.Accounts))
		for _, acc := range ix.Accounts {
			msg.WriteByte(index[acc.PublicKey])
		}
		writeCompactU16(&msg, len(ix.Data))
		msg.Write(ix.Data)
	}

	return &Transaction{
		message:    msg.Bytes(),
		signerKeys: signerKeys,
		signatures: make(map[PublicKey][]byte, len(signerKeys)),
	}, nil
}

func collectAccounts(instructions []Instruction, feePayer PublicKey) []accountEntry {
	order := []PublicKey{feePayer}
	byKey := map[PublicKey]*accountEntry{
		feePayer: {key: feePayer, signer: true, writable: true},
	}
	upsert := func(key PublicKey, signer, writable bool) {
		e, ok := byKey[key]
		if !ok {
			e = &accountEntry{key: key}
			byKey[key] = e
			order = append(order, key)
		}
		e.signer = e.signer || signer
		e.writable = e.writable || writable
	}
	for _, ix := range instructions {
		for _, acc := range ix.Accounts {
			upsert(acc.PublicKey, acc.IsSigner, acc.IsWritable)
		}
		upsert(ix.ProgramID, false, false)
	}

	entries := make([]accountEntry, 0, len(order))
	for _, key := range order {
		entries = append(entries, *byKey[key])
	}
	return entries
}

// Sign records signatures for every provided keypair that the message
// requires.
func (tx *Transaction) Sign(signers ...*Keypair) error {
	required := make(map[PublicKey]bool, len(tx.signerKeys))
	for _, key := range tx.signerKeys {
		required[key] = true
	}
	for _, kp := range signers {
		if !required[kp.PublicKey()] {
			return fmt.Errorf("unexpected signer %s", kp.Address())
		}
		tx.signatures[kp.PublicKey()] = kp.Sign(tx.message)
	}
	return nil
}

// Serialize returns the wire bytes. All required signatures must be present.
func (tx *Transaction) Serialize() ([]byte, error) {
	var out bytes.Buffer
	writeCompactU16(&out, len(tx.signerKeys))
	for _, key := range tx.signerKeys {
		sig, ok := tx.signatures[key]
		if !ok {
			return nil, fmt.Errorf("missing signature for %s", key)
		}
		out.Write(sig)
	}
	out.Write(tx.message)
	return out.Bytes(), nil
}

// SerializeBase58 returns the wire bytes in base58, the encoding bundle
// relays accept.
func (tx *Transaction) SerializeBase58() (string, error) {
	raw, err := tx.Serialize()
	if err != nil {
		return "", err
	}
	return base58.Encode(raw), nil
}

// writeCompactU16 appends the compact-u16 (shortvec) encoding of n.
func writeCompactU16(buf *bytes.Buffer, n int) {
	v := uint16(n)
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v == 0 {
			buf.WriteByte(b)
			return
		}
		buf.WriteByte(b | 0x80)
	}
}
