package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Prediction contract ABI, trimmed to the functions the engine calls.
var predictionABI abi.ABI

func init() {
	var err error
	predictionABI, err = abi.JSON(strings.NewReader(`[
		{
			"name": "marketCount",
			"type": "function",
			"stateMutability": "view",
			"inputs": [],
			"outputs": [{"name": "", "type": "uint256"}]
		},
		{
			"name": "getMarket",
			"type": "function",
			"stateMutability": "view",
			"inputs": [{"name": "marketId", "type": "uint256"}],
			"outputs": [
				{"name": "question", "type": "string"},
				{"name": "kind", "type": "uint8"},
				{"name": "optionTitles", "type": "string[]"},
				{"name": "endTime", "type": "uint256"},
				{"name": "liquidity", "type": "uint256"},
				{"name": "minWager", "type": "uint256"},
				{"name": "maxWager", "type": "uint256"},
				{"name": "isActive", "type": "bool"},
				{"name": "isResolved", "type": "bool"},
				{"name": "winningOption", "type": "int256"},
				{"name": "winningOutcome", "type": "uint8"}
			]
		},
		{
			"name": "getOracleSnapshot",
			"type": "function",
			"stateMutability": "view",
			"inputs": [{"name": "marketId", "type": "uint256"}],
			"outputs": [
				{"name": "decrypted", "type": "bool"},
				{"name": "totalVolume", "type": "uint256"},
				{"name": "optionTotals", "type": "uint256[]"},
				{"name": "optionYes", "type": "uint256[]"},
				{"name": "optionNo", "type": "uint256[]"},
				{"name": "traders", "type": "uint256"}
			]
		},
		{
			"name": "getPoolHandles",
			"type": "function",
			"stateMutability": "view",
			"inputs": [{"name": "marketId", "type": "uint256"}],
			"outputs": [
				{"name": "totalPool", "type": "bytes32"},
				{"name": "traders", "type": "bytes32"},
				{"name": "optionTotals", "type": "bytes32[]"},
				{"name": "optionYes", "type": "bytes32[]"},
				{"name": "optionNo", "type": "bytes32[]"}
			]
		},
		{
			"name": "getWagers",
			"type": "function",
			"stateMutability": "view",
			"inputs": [
				{"name": "marketId", "type": "uint256"},
				{"name": "account", "type": "address"}
			],
			"outputs": [
				{"name": "placedAt", "type": "uint256[]"},
				{"name": "optionIdx", "type": "bytes32[]"},
				{"name": "outcome", "type": "bytes32[]"},
				{"name": "amount", "type": "bytes32[]"}
			]
		},
		{
			"name": "getBalanceHandle",
			"type": "function",
			"stateMutability": "view",
			"inputs": [{"name": "account", "type": "address"}],
			"outputs": [{"name": "", "type": "bytes32"}]
		},
		{
			"name": "placeWager",
			"type": "function",
			"inputs": [
				{"name": "marketId", "type": "uint256"},
				{"name": "optionCt", "type": "bytes"},
				{"name": "optionProof", "type": "bytes"},
				{"name": "outcomeCt", "type": "bytes"},
				{"name": "outcomeProof", "type": "bytes"},
				{"name": "amountCt", "type": "bytes"},
				{"name": "amountProof", "type": "bytes"}
			],
			"outputs": []
		},
		{
			"name": "payoutStatus",
			"type": "function",
			"stateMutability": "view",
			"inputs": [
				{"name": "marketId", "type": "uint256"},
				{"name": "account", "type": "address"}
			],
			"outputs": [
				{"name": "participated", "type": "bool"},
				{"name": "requested", "type": "bool"},
				{"name": "processed", "type": "bool"},
				{"name": "claimed", "type": "bool"},
				{"name": "won", "type": "bool"},
				{"name": "amount", "type": "uint256"}
			]
		},
		{
			"name": "requestPayout",
			"type": "function",
			"inputs": [{"name": "marketId", "type": "uint256"}],
			"outputs": []
		},
		{
			"name": "claimPayout",
			"type": "function",
			"inputs": [{"name": "marketId", "type": "uint256"}],
			"outputs": []
		}
	]`))
	if err != nil {
		panic("chain: prediction abi parse: " + err.Error())
	}
}
