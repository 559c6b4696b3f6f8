package account

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/gateway-fm/matchstats/internal/account/accounttest"
)

type fakeNonceSource struct {
	nonce uint64
	err   error
}

func (f *fakeNonceSource) GetNonce(ctx context.Context, address string) (uint64, error) {
	return f.nonce, f.err
}

func TestNewAccountFromHex(t *testing.T) {
	want := common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")

	for _, key := range []string{accounttest.PrivateKeys[0], "0x" + accounttest.PrivateKeys[0], " " + accounttest.PrivateKeys[0] + "\n"} {
		acc, err := NewAccountFromHex(key)
		if err != nil {
			t.Fatalf("NewAccountFromHex(%q) error = %v", key, err)
		}
		if acc.Address != want {
			t.Errorf("Address = %s, want %s", acc.Address.Hex(), want.Hex())
		}
	}

	if _, err := NewAccountFromHex("not-a-key"); err == nil {
		t.Error("NewAccountFromHex(invalid) error = nil, want error")
	}
}

func TestReserveNonce(t *testing.T) {
	acc, err := NewAccountFromHex(accounttest.PrivateKeys[0])
	if err != nil {
		t.Fatalf("failed to create account: %v", err)
	}

	acc.SetNonce(100)

	if got := acc.ReserveNonce(); got != 100 {
		t.Errorf("ReserveNonce() = %d, want 100", got)
	}
	if got := acc.ReserveNonce(); got != 101 {
		t.Errorf("ReserveNonce() = %d, want 101", got)
	}
	if got := acc.PeekNonce(); got != 102 {
		t.Errorf("PeekNonce() = %d, want 102", got)
	}
}

func TestReserveNonceConcurrency(t *testing.T) {
	acc, err := NewAccountFromHex(accounttest.PrivateKeys[0])
	if err != nil {
		t.Fatalf("failed to create account: %v", err)
	}

	const goroutines = 50
	var wg sync.WaitGroup
	seen := make(chan uint64, goroutines)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seen <- acc.ReserveNonce()
		}()
	}
	wg.Wait()
	close(seen)

	unique := make(map[uint64]bool)
	for n := range seen {
		if unique[n] {
			t.Errorf("nonce %d handed out twice", n)
		}
		unique[n] = true
	}
	if acc.PeekNonce() != goroutines {
		t.Errorf("PeekNonce() = %d, want %d", acc.PeekNonce(), goroutines)
	}
}

func TestResync(t *testing.T) {
	acc, err := NewAccountFromHex(accounttest.PrivateKeys[1])
	if err != nil {
		t.Fatalf("failed to create account: %v", err)
	}

	got, err := acc.Resync(context.Background(), &fakeNonceSource{nonce: 12})
	if err != nil || got != 12 {
		t.Fatalf("Resync() = %d, %v, want 12", got, err)
	}

	// A lower chain nonce must not rewind the counter.
	acc.SetNonce(20)
	got, err = acc.Resync(context.Background(), &fakeNonceSource{nonce: 15})
	if err != nil || got != 20 {
		t.Errorf("Resync() = %d, %v, want 20", got, err)
	}

	wantErr := errors.New("boom")
	if _, err := acc.Resync(context.Background(), &fakeNonceSource{err: wantErr}); !errors.Is(err, wantErr) {
		t.Errorf("Resync() error = %v, want %v", err, wantErr)
	}
}

func TestSignTx(t *testing.T) {
	acc, err := NewAccountFromHex(accounttest.PrivateKeys[0])
	if err != nil {
		t.Fatalf("failed to create account: %v", err)
	}

	chainID := big.NewInt(31337)
	to := common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     3,
		GasTipCap: big.NewInt(2e9),
		GasFeeCap: big.NewInt(4e9),
		Gas:       120000,
		To:        &to,
		Value:     big.NewInt(0),
	})

	signed, err := acc.SignTx(tx, chainID)
	if err != nil {
		t.Fatalf("SignTx() error = %v", err)
	}

	from, err := types.Sender(types.LatestSignerForChainID(chainID), signed)
	if err != nil {
		t.Fatalf("Sender() error = %v", err)
	}
	if from != acc.Address {
		t.Errorf("recovered sender = %s, want %s", from.Hex(), acc.Address.Hex())
	}
	if signed.Nonce() != 3 {
		t.Errorf("Nonce() = %d, want 3", signed.Nonce())
	}
}
