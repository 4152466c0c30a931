package domain

import "math/big"

// TransferReceipt is what the transfer collaborator reports for a submitted transfer.
type TransferReceipt struct {
	TxHash string
	Amount *big.Int
}

// WalletBalance is the sending wallet's balance in whole tokens.
type WalletBalance struct {
	Unshielded string `json:"unshieldedBalance"`
	Shielded   string `json:"shieldedBalance"`
}
