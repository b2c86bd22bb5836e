package models

// ContextSchemas holds the JSON schema for each task type's context payload.
// The API validates incoming contexts against these before persisting; the
// typed validators in context.go re-check inside the worker.
var ContextSchemas = map[TaskType]string{
	TaskTypeVolume: `{
		"type": "object",
		"properties": {
			"bias": {
				"type": "number", "minimum": -1, "maximum": 1,
				"description": "Buy/sell bias (-1 sell heavy, 0 neutral, 1 buy heavy)"
			},
			"volumePerMinute": {
				"type": "number", "exclusiveMinimum": 0,
				"description": "Target volume per minute in SOL"
			},
			"tradesPerCycle": {
				"type": "integer", "minimum": 1,
				"description": "Number of trades to execute per cycle"
			},
			"walletGroupId": {
				"type": "string",
				"description": "ID of the wallet group to trade with"
			}
		},
		"required": ["bias", "volumePerMinute", "tradesPerCycle", "walletGroupId"],
		"additionalProperties": false
	}`,
	TaskTypeMaker: `{
		"type": "object",
		"properties": {
			"masterWalletAddress": {
				"type": "string",
				"description": "Master wallet that funds the makers and receives the sweep"
			},
			"minAmountToBuy": {
				"type": "number", "exclusiveMinimum": 0,
				"description": "Minimum amount of SOL to swap for tokens"
			},
			"maxAmountToBuy": {
				"type": "number", "exclusiveMinimum": 0,
				"description": "Maximum amount of SOL to swap for tokens"
			},
			"walletGroupId": {
				"type": "string",
				"description": "ID of the wallet group to use as maker wallets"
			}
		},
		"required": ["masterWalletAddress", "minAmountToBuy", "maxAmountToBuy", "walletGroupId"],
		"additionalProperties": false
	}`,
	TaskTypeHolder: `{
		"type": "object",
		"properties": {
			"masterWalletAddress": {
				"type": "string",
				"description": "Master wallet that funds the holder wallets"
			},
			"minAmountToBuy": {
				"type": "number", "exclusiveMinimum": 0,
				"description": "Minimum amount of SOL to swap for tokens"
			},
			"maxAmountToBuy": {
				"type": "number", "exclusiveMinimum": 0,
				"description": "Maximum amount of SOL to swap for tokens"
			},
			"walletGroupId": {
				"type": "string",
				"description": "ID of the wallet group to use as holder wallets"
			}
		},
		"required": ["masterWalletAddress", "minAmountToBuy", "maxAmountToBuy", "walletGroupId"],
		"additionalProperties": false
	}`,
	TaskTypeMixer: `{
		"type": "object",
		"properties": {
			"masterWalletAddress": {
				"type": "string",
				"description": "Master wallet the mixed funds originate from"
			},
			"amountPerWallet": {
				"type": "number", "exclusiveMinimum": 0,
				"description": "Amount of SOL to deliver to each wallet"
			},
			"walletGroupId": {
				"type": "string",
				"description": "ID of the wallet group receiving the funds"
			}
		},
		"required": ["masterWalletAddress", "amountPerWallet", "walletGroupId"],
		"additionalProperties": false
	}`,
	TaskTypeSweep: `{
		"type": "object",
		"properties": {
			"masterWalletAddress": {
				"type": "string",
				"description": "Master wallet that receives the swept funds"
			},
			"walletGroupId": {
				"type": "string",
				"description": "ID of the wallet group to sweep"
			}
		},
		"required": ["masterWalletAddress", "walletGroupId"],
		"additionalProperties": false
	}`,
}
