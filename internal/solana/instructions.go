package solana

import (
	"encoding/binary"

	"github.com/shopspring/decimal"
)

// LamportsPerSol is the number of lamports in one SOL.
const LamportsPerSol = 1_000_000_000

// SolToLamports converts a SOL amount to lamports without float drift.
func SolToLamports(sol float64) uint64 {
	lamports := decimal.NewFromFloat(sol).Mul(decimal.NewFromInt(LamportsPerSol))
	return uint64(lamports.IntPart())
}

// LamportsToSol converts lamports to a SOL amount.
func LamportsToSol(lamports uint64) float64 {
	sol, _ := decimal.NewFromUint64(lamports).Div(decimal.NewFromInt(LamportsPerSol)).Float64()
	return sol
}

// AccountMeta describes one account referenced by an instruction.
type AccountMeta struct {
	PublicKey  PublicKey
	IsSigner   bool
	IsWritable bool
}

// Instruction is a single program invocation inside a transaction.
type Instruction struct {
	ProgramID PublicKey
	Accounts  []AccountMeta
	Data      []byte
}

// System program instruction indices.
const sysTransferIndex = 2

// Compute budget instruction discriminants.
const (
	computeUnitLimitIndex = 2
	computeUnitPriceIndex = 3
)

// Token program instruction indices.
const (
	tokenCloseAccountIndex = 9
	tokenSyncNativeIndex   = 17
)

// NewTransferInstruction moves lamports from one system account to another.
func NewTransferInstruction(from, to PublicKey, lamports uint64) Instruction {
	data := make([]byte, 12)
	binary.LittleEndian.PutUint32(data[0:4], sysTransferIndex)
	binary.LittleEndian.PutUint64(data[4:12], lamports)
	return Instruction{
		ProgramID: SystemProgramID,
		Accounts: []AccountMeta{
			{PublicKey: from, IsSigner: true, IsWritable: true},
			{PublicKey: to, IsSigner: false, IsWritable: true},
		},
		Data: data,
	}
}

// NewComputeUnitLimitInstruction caps the compute units a transaction may
// consume.
func NewComputeUnitLimitInstruction(units uint32) Instruction {
	data := make([]byte, 5)
	data[0] = computeUnitLimitIndex
	binary.LittleEndian.PutUint32(data[1:5], units)
	return Instruction{ProgramID: ComputeBudgetProgramID, Data: data}
}

// NewComputeUnitPriceInstruction sets the priority fee in micro-lamports per
// compute unit.
func NewComputeUnitPriceInstruction(microLamports uint64) Instruction {
	data := make([]byte, 9)
	data[0] = computeUnitPriceIndex
	binary.LittleEndian.PutUint64(data[1:9], microLamports)
	return Instruction{ProgramID: ComputeBudgetProgramID, Data: data}
}

// NewCreateAssociatedTokenAccountInstruction creates owner's associated token
// account for mint, paid for by payer.
func NewCreateAssociatedTokenAccountInstruction(payer, ata, owner, mint PublicKey) Instruction {
	return Instruction{
		ProgramID: AssociatedTokenProgramID,
		Accounts: []AccountMeta{
			{PublicKey: payer, IsSigner: true, IsWritable: true},
			{PublicKey: ata, IsSigner: false, IsWritable: true},
			{PublicKey: owner, IsSigner: false, IsWritable: false},
			{PublicKey: mint, IsSigner: false, IsWritable: false},
			{PublicKey: SystemProgramID, IsSigner: false, IsWritable: false},
			{PublicKey: TokenProgramID, IsSigner: false, IsWritable: false},
		},
	}
}

// NewSyncNativeInstruction updates a wrapped SOL account's token balance to
// match its lamport balance.
func NewSyncNativeInstruction(account PublicKey) Instruction {
	return Instruction{
		ProgramID: TokenProgramID,
		Accounts: []AccountMeta{
			{PublicKey: account, IsSigner: false, IsWritable: true},
		},
		Data: []byte{tokenSyncNativeIndex},
	}
}

// NewCloseAccountInstruction closes a token account, sending its lamports to
// destination.
func NewCloseAccountInstruction(account, destination, owner PublicKey) Instruction {
	return Instruction{
		ProgramID: TokenProgramID,
		Accounts: []AccountMeta{
			{PublicKey: account, IsSigner: false, IsWritable: true},
			{PublicKey: destination, IsSigner: false, IsWritable: true},
			{PublicKey: owner, IsSigner: true, IsWritable: false},
		},
		Data: []byte{tokenCloseAccountIndex},
	}
}
