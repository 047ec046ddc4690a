package nakama

import (
	"context"
	"encoding/json"
	"fmt"

	"rosterd/internal/ports"

	"github.com/heroiclabs/nakama-common/api"
)

// accountStore is the subset of runtime.NakamaModule used for account metadata.
type accountStore interface {
	AccountGetId(ctx context.Context, userID string) (*api.Account, error)
	AccountUpdateId(ctx context.Context, userID, username string, metadata map[string]interface{}, displayName, timezone, location, langTag, avatarUrl string) error
}

// NakamaAccountAdapter implements ports.AccountPort using Nakama's account API.
type NakamaAccountAdapter struct {
	nk accountStore
}

// NewNakamaAccountAdapter creates a new account adapter.
func NewNakamaAccountAdapter(nk accountStore) *NakamaAccountAdapter {
	return &NakamaAccountAdapter{nk: nk}
}

// UpdateMetadata merges fields into the account metadata of userID.
// Returns an error if the account cannot be read or updated.
func (a *NakamaAccountAdapter) UpdateMetadata(ctx context.Context, userID string, fields map[string]interface{}) error {
	account, err := a.nk.AccountGetId(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get account: %w", err)
	}
	metadata, err := accountMetadata(account)
	if err != nil {
		return err
	}
	for k, v := range fields {
		metadata[k] = v
	}
	return a.nk.AccountUpdateId(ctx, userID, "", metadata, "", "", "", "", "")
}

func accountMetadata(account *api.Account) (map[string]interface{}, error) {
	metadata := make(map[string]interface{})
	if account == nil || account.GetUser() == nil || account.GetUser().GetMetadata() == "" {
		return metadata, nil
	}
	if err := json.Unmarshal([]byte(account.GetUser().GetMetadata()), &metadata); err != nil {
		return nil, fmt.Errorf("failed to unmarshal account metadata: %w", err)
	}
	return metadata, nil
}

var _ ports.AccountPort = (*NakamaAccountAdapter)(nil)
