package nakama

import (
	"context"
	"encoding/json"
	"fmt"

	"rosterd/internal/ports"

	"github.com/heroiclabs/nakama-common/api"
)

// walletReader is the subset of runtime.NakamaModule used to read wallets.
type walletReader interface {
	AccountGetId(ctx context.Context, userID string) (*api.Account, error)
}

// NakamaWalletAdapter implements ports.WalletPort using Nakama's wallet system.
type NakamaWalletAdapter struct {
	nk walletReader
}

// NewNakamaWalletAdapter creates a new wallet adapter.
func NewNakamaWalletAdapter(nk walletReader) *NakamaWalletAdapter {
	return &NakamaWalletAdapter{
		nk: nk,
	}
}

// GetBalance retrieves the current balance of currency for a user.
func (a *NakamaWalletAdapter) GetBalance(ctx context.Context, userID, currency string) (int64, error) {
	account, err := a.nk.AccountGetId(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to get account: %w", err)
	}

	var wallet map[string]int64
	if account.GetWallet() != "" {
		if err := json.Unmarshal([]byte(account.GetWallet()), &wallet); err != nil {
			return 0, fmt.Errorf("failed to unmarshal wallet: %w", err)
		}
	}

	balance, ok := wallet[currency]
	if !ok {
		return 0, fmt.Errorf("wallet of %s has no %s: %w", userID, currency, ports.ErrUnresolved)
	}
	return balance, nil
}

var _ ports.WalletPort = (*NakamaWalletAdapter)(nil)
