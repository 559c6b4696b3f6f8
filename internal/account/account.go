// Package account holds the signing key and nonce counter of the submitting sender.
package account

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// NonceSource is the subset of the RPC client used to seed the nonce counter.
type NonceSource interface {
	GetNonce(ctx context.Context, address string) (uint64, error)
}

// Account holds the sender's key and its local nonce counter.
// Nonces are only ever handed out in increasing order; there is no rollback,
// because a nonce may already be on the wire when a send reports failure.
type Account struct {
	PrivateKey *ecdsa.PrivateKey
	Address    common.Address
	nonce      uint64
	mu         sync.Mutex
}

// NewAccount creates an account from a private key.
func NewAccount(privateKey *ecdsa.PrivateKey) *Account {
	return &Account{
		PrivateKey: privateKey,
		Address:    crypto.PubkeyToAddress(privateKey.PublicKey),
	}
}

// NewAccountFromHex creates an account from a hex-encoded private key, with or without 0x.
func NewAccountFromHex(hexKey string) (*Account, error) {
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return NewAccount(privateKey), nil
}

// ReserveNonce returns the current nonce and advances the counter by one.
func (a *Account) ReserveNonce() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	nonce := a.nonce
	a.nonce++
	return nonce
}

// SetNonce sets the nonce value directly.
func (a *Account) SetNonce(nonce uint64) {
	a.mu.Lock()
	a.nonce = nonce
	a.mu.Unlock()
}

// PeekNonce returns the current nonce without incrementing.
func (a *Account) PeekNonce() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.nonce
}

// Resync seeds the counter from the pending nonce on chain.
// Only moves forward: a lower chain value never rewinds the counter.
func (a *Account) Resync(ctx context.Context, client NonceSource) (uint64, error) {
	nonce, err := client.GetNonce(ctx, a.Address.Hex())
	if err != nil {
		return 0, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if nonce > a.nonce {
		a.nonce = nonce
	}
	return a.nonce, nil
}

// SignTx signs tx for the given chain and returns the signed transaction.
func (a *Account) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	signer := types.LatestSignerForChainID(chainID)
	signed, err := types.SignTx(tx, signer, a.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("sign: %w", err)
	}
	return signed, nil
}
