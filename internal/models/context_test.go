package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseContext_Volume(t *testing.T) {
	raw := `{"bias": 0.2, "volumePerMinute": 10.5, "tradesPerCycle": 5, "walletGroupId": "wg-1"}`
	ctx, err := ParseContext(TaskTypeVolume, raw)
	assert.NoError(t, err)

	vc, ok := ctx.(VolumeContext)
	assert.True(t, ok)
	assert.Equal(t, 0.2, vc.Bias)
	assert.Equal(t, 10.5, vc.VolumePerMinute)
	assert.Equal(t, 5, vc.TradesPerCycle)
	assert.Equal(t, "wg-1", vc.WalletGroupID)
}

func TestParseContext_EmptyContext(t *testing.T) {
	for _, raw := range []string{"", "{}", "null"} {
		_, err := ParseContext(TaskTypeVolume, raw)
		assert.ErrorIs(t, err, ErrValidation, "raw=%q", raw)
	}
}

func TestParseContext_InvalidFields(t *testing.T) {
	cases := []struct {
		name string
		typ  TaskType
		raw  string
	}{
		{"bias out of range", TaskTypeVolume, `{"bias": 1.5, "volumePerMinute": 1, "tradesPerCycle": 1, "walletGroupId": "wg"}`},
		{"zero volume", TaskTypeVolume, `{"bias": 0, "volumePerMinute": 0, "tradesPerCycle": 1, "walletGroupId": "wg"}`},
		{"zero trades", TaskTypeVolume, `{"bias": 0, "volumePerMinute": 1, "tradesPerCycle": 0, "walletGroupId": "wg"}`},
		{"missing group", TaskTypeVolume, `{"bias": 0, "volumePerMinute": 1, "tradesPerCycle": 1}`},
		{"max below min", TaskTypeMaker, `{"masterWalletAddress": "m", "minAmountToBuy": 0.05, "maxAmountToBuy": 0.01, "walletGroupId": "wg"}`},
		{"missing master", TaskTypeHolder, `{"minAmountToBuy": 0.01, "maxAmountToBuy": 0.05, "walletGroupId": "wg"}`},
		{"zero amount", TaskTypeMixer, `{"masterWalletAddress": "m", "amountPerWallet": 0, "walletGroupId": "wg"}`},
		{"missing group", TaskTypeSweep, `{"masterWalletAddress": "m"}`},
	}
	for _, tc := range cases {
		_, err := ParseContext(tc.typ, tc.raw)
		assert.ErrorIs(t, err, ErrValidation, "%s (%s)", tc.name, tc.typ)
	}
}

func TestParseContext_UnsupportedType(t *testing.T) {
	_, err := ParseContext(TaskType("AIRDROP"), `{"walletGroupId": "wg"}`)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestContextSchemas_CoverAllTypes(t *testing.T) {
	for _, taskType := range TaskTypes {
		assert.Contains(t, ContextSchemas, taskType)
	}
}

func TestTaskTypeAndStatusValid(t *testing.T) {
	assert.True(t, TaskTypeVolume.Valid())
	assert.False(t, TaskType("SNIPER").Valid())
	assert.True(t, TaskStatusPending.Valid())
	assert.False(t, TaskStatus("QUEUED").Valid())
}
