package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dapmarket/marketplace-ledger/internal/entity"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// RemoteRegistry talks to an asset registry node over JSON RPC. Custodian
// lookups are cached briefly; any transfer through this client evicts the
// affected asset so the next lookup observes the new custodian.
type RemoteRegistry struct {
	client *rpcClient
	cache  *cache.Cache
}

type transferParams struct {
	Contract string `json:"contract"`
	TokenId  uint64 `json:"tokenId"`
	From     string `json:"from"`
	To       string `json:"to"`
}

type custodianParams struct {
	Contract string `json:"contract"`
	TokenId  uint64 `json:"tokenId"`
}

func NewRemoteRegistry(url string, timeout int, debug bool) (*RemoteRegistry, error) {
	client, err := newRpcClient(url, timeout, debug)
	if err != nil {
		return nil, err
	}

	return &RemoteRegistry{
		client: client,
		cache:  cache.New(30*time.Second, time.Minute),
	}, nil
}

func (r *RemoteRegistry) CustodianOf(ctx context.Context, asset entity.AssetRef) (string, error) {
	if custodian, found := r.cache.Get(asset.Slug()); found {
		return custodian.(string), nil
	}

	resp, err := r.client.call(ctx, "Registry.CustodianOf", custodianParams{asset.Contract, asset.TokenId})
	if err != nil {
		return "", err
	}
	if resp.Error != nil {
		zap.L().With(zap.String("asset", asset.String()), zap.Error(resp.Error)).Warn("Registry: CustodianOf refused")
		return "", fmt.Errorf("%w: %s", ErrAssetNotFound, resp.Error.Message)
	}

	var custodian string
	if err := json.Unmarshal(resp.Result, &custodian); err != nil {
		return "", err
	}

	r.cache.Set(asset.Slug(), custodian, cache.DefaultExpiration)

	return custodian, nil
}

func (r *RemoteRegistry) Transfer(ctx context.Context, asset entity.AssetRef, from, to string) error {
	resp, err := r.client.call(ctx, "Registry.Transfer", transferParams{asset.Contract, asset.TokenId, from, to})
	if err != nil {
		return err
	}

	r.cache.Delete(asset.Slug())

	if resp.Error != nil {
		zap.L().With(
			zap.String("asset", asset.String()),
			zap.String("from", from),
			zap.String("to", to),
			zap.Error(resp.Error),
		).Warn("Registry: Transfer refused")
		return fmt.Errorf("%w: %s", ErrNotCustodian, resp.Error.Message)
	}

	return nil
}
