package store

import (
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"dex-task-service/internal/models"
	"dex-task-service/internal/solana"
	"dex-task-service/pkg/encryption"
)

// ErrNoEligibleWallet is returned when a group holds no wallet meeting the
// requested balance minimums.
var ErrNoEligibleWallet = errors.New("no eligible wallet in group")

// WalletStore persists wallet groups and their encrypted keys.
type WalletStore struct {
	db     *gorm.DB
	cipher *encryption.Cipher
}

func NewWalletStore(db *gorm.DB, cipher *encryption.Cipher) *WalletStore {
	return &WalletStore{db: db, cipher: cipher}
}

// CreateGroup creates a wallet group with count freshly generated wallets,
// private keys encrypted at rest.
func (s *WalletStore) CreateGroup(name string, count int) (*models.WalletGroup, error) {
	if count <= 0 {
		return nil, fmt.Errorf("%w: wallet count must be positive", models.ErrValidation)
	}
	group := &models.WalletGroup{Name: name, NumberOfWallets: count}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(group).Error; err != nil {
			return fmt.Errorf("create wallet group %s: %w", name, err)
		}
		wallets := make([]models.Wallet, 0, count)
		for i := 0; i < count; i++ {
			kp, err := solana.GenerateKeypair()
			if err != nil {
				return err
			}
			encrypted, err := s.cipher.Encrypt(kp.PrivateKeyBase58())
			if err != nil {
				return fmt.Errorf("encrypt key for %s: %w", kp.Address(), err)
			}
			wallets = append(wallets, models.Wallet{
				Address:             kp.Address(),
				EncryptedPrivateKey: encrypted,
				WalletGroupID:       group.ID,
			})
		}
		if err := tx.Create(&wallets).Error; err != nil {
			return fmt.Errorf("create wallets for group %s: %w", name, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return group, nil
}

// Group fetches a wallet group by id.
func (s *WalletStore) Group(id uint) (*models.WalletGroup, error) {
	var group models.WalletGroup
	err := s.db.First(&group, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("wallet group %d: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch wallet group %d: %w", id, err)
	}
	return &group, nil
}

// GroupByRef resolves a task-context wallet group reference, which is either
// the numeric group id or the group name.
func (s *WalletStore) GroupByRef(ref string) (*models.WalletGroup, error) {
	if id, err := strconv.ParseUint(ref, 10, 64); err == nil {
		return s.Group(uint(id))
	}
	var group models.WalletGroup
	err := s.db.Where("name = ?", ref).First(&group).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("wallet group %q: %w", ref, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch wallet group %q: %w", ref, err)
	}
	return &group, nil
}

// ListGroups returns all wallet groups.
func (s *WalletStore) ListGroups() ([]models.WalletGroup, error) {
	var groups []models.WalletGroup
	if err := s.db.Order("id ASC").Find(&groups).Error; err != nil {
		return nil, fmt.Errorf("list wallet groups: %w", err)
	}
	return groups, nil
}

// ListRefreshableGroups returns wallet groups subject to periodic balance
// refresh. Mixer scratch groups are excluded.
func (s *WalletStore) ListRefreshableGroups() ([]models.WalletGroup, error) {
	var groups []models.WalletGroup
	err := s.db.Where("name NOT LIKE ?", models.MixerGroupNamePrefix+"%").
		Order("id ASC").Find(&groups).Error
	if err != nil {
		return nil, fmt.Errorf("list refreshable wallet groups: %w", err)
	}
	return groups, nil
}

// WalletByAddress fetches a single wallet, e.g. the master wallet a task
// context names.
func (s *WalletStore) WalletByAddress(address string) (*models.Wallet, error) {
	var wallet models.Wallet
	err := s.db.First(&wallet, "address = ?", address).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("wallet %s: %w", address, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch wallet %s: %w", address, err)
	}
	return &wallet, nil
}

// Wallets returns every wallet in the group.
func (s *WalletStore) Wallets(groupID uint) ([]models.Wallet, error) {
	var wallets []models.Wallet
	err := s.db.Where("wallet_group_id = ?", groupID).Order("address ASC").Find(&wallets).Error
	if err != nil {
		return nil, fmt.Errorf("list wallets of group %d: %w", groupID, err)
	}
	return wallets, nil
}

// Keypair decrypts a wallet's private key into a signing keypair.
func (s *WalletStore) Keypair(wallet *models.Wallet) (*solana.Keypair, error) {
	secret, err := s.cipher.Decrypt(wallet.EncryptedPrivateKey)
	if err != nil {
		return nil, fmt.Errorf("decrypt key of %s: %w", wallet.Address, err)
	}
	return solana.KeypairFromBase58(secret)
}

// RandomEligibleWallet picks a uniformly random wallet in the group whose
// cached balances meet both minimums. Returns ErrNoEligibleWallet when none
// qualifies.
func (s *WalletStore) RandomEligibleWallet(groupID uint, minSol, minToken float64) (*models.Wallet, error) {
	var wallets []models.Wallet
	err := s.db.Where("wallet_group_id = ? AND sol_balance >= ? AND token_balance >= ?",
		groupID, minSol, minToken).Find(&wallets).Error
	if err != nil {
		return nil, fmt.Errorf("query eligible wallets of group %d: %w", groupID, err)
	}
	if len(wallets) == 0 {
		return nil, fmt.Errorf("group %d (minSol=%v minToken=%v): %w", groupID, minSol, minToken, ErrNoEligibleWallet)
	}
	return &wallets[rand.Intn(len(wallets))], nil
}

// UpdateBalances writes refreshed per-wallet balances and the group
// aggregates in one transaction. The two slices are ordered like wallets.
func (s *WalletStore) UpdateBalances(groupID uint, wallets []models.Wallet, solBalances, tokenBalances []float64) error {
	if len(wallets) != len(solBalances) || len(wallets) != len(tokenBalances) {
		return fmt.Errorf("balance slice length mismatch: %d wallets, %d sol, %d token",
			len(wallets), len(solBalances), len(tokenBalances))
	}
	now := time.Now()
	var totalSol, totalToken float64
	return s.db.Transaction(func(tx *gorm.DB) error {
		for i := range wallets {
			totalSol += solBalances[i]
			totalToken += tokenBalances[i]
			err := tx.Model(&models.Wallet{}).Where("address = ?", wallets[i].Address).
				Updates(map[string]any{
					"sol_balance":   solBalances[i],
					"token_balance": tokenBalances[i],
					"updated_at":    now,
				}).Error
			if err != nil {
				return fmt.Errorf("update balance of %s: %w", wallets[i].Address, err)
			}
		}
		err := tx.Model(&models.WalletGroup{}).Where("id = ?", groupID).
			Updates(map[string]any{
				"sol_balance":   totalSol,
				"token_balance": totalToken,
				"updated_at":    now,
			}).Error
		if err != nil {
			return fmt.Errorf("update aggregates of group %d: %w", groupID, err)
		}
		return nil
	})
}

// DeleteGroup removes a group and its wallets. Private keys are gone with the
// rows, so callers should drain balances first.
func (s *WalletStore) DeleteGroup(id uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("wallet_group_id = ?", id).Delete(&models.Wallet{}).Error; err != nil {
			return fmt.Errorf("delete wallets of group %d: %w", id, err)
		}
		if err := tx.Delete(&models.WalletGroup{}, id).Error; err != nil {
			return fmt.Errorf("delete wallet group %d: %w", id, err)
		}
		return nil
	})
}

// NextMixerGroupName builds a unique scratch-group name for a mixer run.
func NextMixerGroupName(taskID string) string {
	short := taskID
	if i := strings.IndexByte(taskID, '-'); i > 0 {
		short = taskID[:i]
	}
	return fmt.Sprintf("%s-%s", models.MixerGroupNamePrefix, short)
}
