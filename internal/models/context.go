package models

import (
	"encoding/json"
	"fmt"
)

// TaskContext is the type-tagged configuration payload of a task. Each task
// type carries its own variant; Validate reports the first bad field.
type TaskContext interface {
	Validate() error
}

// VolumeContext drives the volume strategy.
type VolumeContext struct {
	Bias            float64 `json:"bias"`
	VolumePerMinute float64 `json:"volumePerMinute"`
	TradesPerCycle  int     `json:"tradesPerCycle"`
	WalletGroupID   string  `json:"walletGroupId"`
}

func (c VolumeContext) Validate() error {
	if c.Bias < -1 || c.Bias > 1 {
		return fmt.Errorf("%w: bias must be in [-1, 1], got %v", ErrValidation, c.Bias)
	}
	if c.VolumePerMinute <= 0 {
		return fmt.Errorf("%w: volumePerMinute must be > 0, got %v", ErrValidation, c.VolumePerMinute)
	}
	if c.TradesPerCycle < 1 {
		return fmt.Errorf("%w: tradesPerCycle must be >= 1, got %d", ErrValidation, c.TradesPerCycle)
	}
	if c.WalletGroupID == "" {
		return fmt.Errorf("%w: walletGroupId is required", ErrValidation)
	}
	return nil
}

// BuyRangeContext is the shared shape of the maker and holder payloads:
// fund each wallet from the master and buy a random amount in the range.
type BuyRangeContext struct {
	MasterWalletAddress string  `json:"masterWalletAddress"`
	MinAmountToBuy      float64 `json:"minAmountToBuy"`
	MaxAmountToBuy      float64 `json:"maxAmountToBuy"`
	WalletGroupID       string  `json:"walletGroupId"`
}

func (c BuyRangeContext) Validate() error {
	if c.MasterWalletAddress == "" {
		return fmt.Errorf("%w: masterWalletAddress is required", ErrValidation)
	}
	if c.MinAmountToBuy <= 0 {
		return fmt.Errorf("%w: minAmountToBuy must be > 0, got %v", ErrValidation, c.MinAmountToBuy)
	}
	if c.MaxAmountToBuy < c.MinAmountToBuy {
		return fmt.Errorf("%w: maxAmountToBuy must be >= minAmountToBuy", ErrValidation)
	}
	if c.WalletGroupID == "" {
		return fmt.Errorf("%w: walletGroupId is required", ErrValidation)
	}
	return nil
}

type MakerContext = BuyRangeContext

type HolderContext = BuyRangeContext

// MixerContext drives the mixing protocol: route amountPerWallet from the
// master wallet to every wallet of the group through disposable mixers.
type MixerContext struct {
	MasterWalletAddress string  `json:"masterWalletAddress"`
	AmountPerWallet     float64 `json:"amountPerWallet"`
	WalletGroupID       string  `json:"walletGroupId"`
}

func (c MixerContext) Validate() error {
	if c.MasterWalletAddress == "" {
		return fmt.Errorf("%w: masterWalletAddress is required", ErrValidation)
	}
	if c.AmountPerWallet <= 0 {
		return fmt.Errorf("%w: amountPerWallet must be > 0, got %v", ErrValidation, c.AmountPerWallet)
	}
	if c.WalletGroupID == "" {
		return fmt.Errorf("%w: walletGroupId is required", ErrValidation)
	}
	return nil
}

// SweepContext drives the sweep strategy: drain every wallet of the group
// back into the master wallet.
type SweepContext struct {
	MasterWalletAddress string `json:"masterWalletAddress"`
	WalletGroupID       string `json:"walletGroupId"`
}

func (c SweepContext) Validate() error {
	if c.MasterWalletAddress == "" {
		return fmt.Errorf("%w: masterWalletAddress is required", ErrValidation)
	}
	if c.WalletGroupID == "" {
		return fmt.Errorf("%w: walletGroupId is required", ErrValidation)
	}
	return nil
}

// ParseContext decodes a raw context payload into the variant for taskType
// and validates it.
func ParseContext(taskType TaskType, raw string) (TaskContext, error) {
	if raw == "" || raw == "{}" || raw == "null" {
		return nil, fmt.Errorf("%w: task context is empty", ErrValidation)
	}

	var ctx TaskContext
	var err error
	switch taskType {
	case TaskTypeVolume:
		var c VolumeContext
		err = json.Unmarshal([]byte(raw), &c)
		ctx = c
	case TaskTypeMaker, TaskTypeHolder:
		var c BuyRangeContext
		err = json.Unmarshal([]byte(raw), &c)
		ctx = c
	case TaskTypeMixer:
		var c MixerContext
		err = json.Unmarshal([]byte(raw), &c)
		ctx = c
	case TaskTypeSweep:
		var c SweepContext
		err = json.Unmarshal([]byte(raw), &c)
		ctx = c
	default:
		return nil, fmt.Errorf("%w: unsupported task type %q", ErrValidation, taskType)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: malformed context: %v", ErrValidation, err)
	}
	if err := ctx.Validate(); err != nil {
		return nil, err
	}
	return ctx, nil
}
