package models

import "time"

// MixerGroupNamePrefix marks disposable mixing wallet groups. Groups with
// this prefix are hidden from normal group listings and skipped by the
// balance refresher.
const MixerGroupNamePrefix = "MIXER"

// WalletGroup is a named pool of keypairs managed and funded together.
// SolBalance and TokenBalance are aggregate caches refreshed asynchronously.
type WalletGroup struct {
	ID              uint      `json:"id" gorm:"primaryKey"`
	Name            string    `json:"name" gorm:"uniqueIndex"`
	NumberOfWallets int       `json:"number_of_wallets"`
	SolBalance      float64   `json:"sol_balance" gorm:"default:0"`
	TokenBalance    float64   `json:"token_balance" gorm:"default:0"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Wallet is a single keypair. The private key is stored encrypted; balances
// are eventually consistent caches written by the balance refresher.
type Wallet struct {
	Address             string    `json:"address" gorm:"primaryKey;type:varchar(64)"`
	EncryptedPrivateKey string    `json:"-"`
	WalletGroupID       uint      `json:"wallet_group_id" gorm:"index:idx_wallet_eligibility,priority:1"`
	SolBalance          float64   `json:"sol_balance" gorm:"index:idx_wallet_eligibility,priority:2;default:0"`
	TokenBalance        float64   `json:"token_balance" gorm:"index:idx_wallet_eligibility,priority:3;default:0"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}
