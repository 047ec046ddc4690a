package ports

import "context"

// WalletPort reads wallet balances, exposed to ranking as wallet:<currency> metrics.
type WalletPort interface {
	// GetBalance retrieves the balance of currency for a user.
	GetBalance(ctx context.Context, userID, currency string) (int64, error)
}
