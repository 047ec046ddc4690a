package nakama

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"rosterd/internal/ports"

	"github.com/heroiclabs/nakama-common/api"
	"github.com/heroiclabs/nakama-common/runtime"
)

const (
	walletKeyPrefix  = "wallet:"
	storageKeyPrefix = "storage:"
	storageValueKey  = "value"
)

// metricStore is the subset of runtime.NakamaModule read by the metric provider.
type metricStore interface {
	AccountGetId(ctx context.Context, userID string) (*api.Account, error)
	StorageRead(ctx context.Context, reads []*runtime.StorageRead) ([]*api.StorageObject, error)
}

// NakamaMetricProvider implements ports.MetricProvider on Nakama accounts:
// wallet:<currency> reads a wallet balance, storage:<key> reads the "value"
// field of a storage object owned by the entity, any other key reads the
// account metadata field of that name.
type NakamaMetricProvider struct {
	nk         metricStore
	wallets    *NakamaWalletAdapter
	collection string
}

// NewNakamaMetricProvider creates a metric provider reading storage objects from collection.
func NewNakamaMetricProvider(nk metricStore, collection string) *NakamaMetricProvider {
	return &NakamaMetricProvider{
		nk:         nk,
		wallets:    NewNakamaWalletAdapter(nk),
		collection: collection,
	}
}

// Resolve implements ports.MetricProvider.
func (p *NakamaMetricProvider) Resolve(ctx context.Context, entityID, key string) (string, error) {
	switch {
	case strings.HasPrefix(key, walletKeyPrefix):
		balance, err := p.wallets.GetBalance(ctx, entityID, strings.TrimPrefix(key, walletKeyPrefix))
		if err != nil {
			return "", err
		}
		return strconv.FormatInt(balance, 10), nil
	case strings.HasPrefix(key, storageKeyPrefix):
		return p.storageValue(ctx, entityID, strings.TrimPrefix(key, storageKeyPrefix))
	default:
		return p.metadataValue(ctx, entityID, key)
	}
}

func (p *NakamaMetricProvider) metadataValue(ctx context.Context, entityID, key string) (string, error) {
	account, err := p.nk.AccountGetId(ctx, entityID)
	if err != nil {
		return "", fmt.Errorf("failed to get account: %w", err)
	}
	metadata, err := accountMetadata(account)
	if err != nil {
		return "", err
	}
	return stringify(entityID, key, metadata[key])
}

func (p *NakamaMetricProvider) storageValue(ctx context.Context, entityID, key string) (string, error) {
	objects, err := p.nk.StorageRead(ctx, []*runtime.StorageRead{{
		Collection: p.collection,
		Key:        key,
		UserID:     entityID,
	}})
	if err != nil {
		return "", fmt.Errorf("failed to read storage %s/%s: %w", p.collection, key, err)
	}
	if len(objects) == 0 {
		return "", fmt.Errorf("%s/storage:%s: %w", entityID, key, ports.ErrUnresolved)
	}

	var doc map[string]interface{}
	if err := json.Unmarshal([]byte(objects[0].GetValue()), &doc); err != nil {
		return "", fmt.Errorf("failed to unmarshal storage object %s/%s: %w", p.collection, key, err)
	}
	return stringify(entityID, key, doc[storageValueKey])
}

func stringify(entityID, key string, v interface{}) (string, error) {
	switch val := v.(type) {
	case nil:
		return "", fmt.Errorf("%s/%s: %w", entityID, key, ports.ErrUnresolved)
	case string:
		return val, nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(val), nil
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return "", fmt.Errorf("%s/%s: %w", entityID, key, err)
		}
		return string(data), nil
	}
}

var _ ports.MetricProvider = (*NakamaMetricProvider)(nil)
