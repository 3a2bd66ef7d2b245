package registry

import (
	"context"
	"errors"

	"github.com/dapmarket/marketplace-ledger/internal/entity"
)

var (
	ErrAssetNotFound = errors.New("asset not found")
	ErrNotCustodian  = errors.New("account is not the asset custodian")
	ErrNotApproved   = errors.New("operator is not approved by the custodian")
)

// AssetRegistry is the external collaborator that owns asset custody.
// The ledger holds it as an injected capability and never assumes a
// concrete implementation.
type AssetRegistry interface {
	// CustodianOf returns the current custodian of the asset.
	CustodianOf(ctx context.Context, asset entity.AssetRef) (string, error)

	// Transfer moves custody of the asset from one account to another.
	// The registry enforces that from is the current custodian and that
	// the calling operator has transfer authority over from's assets.
	Transfer(ctx context.Context, asset entity.AssetRef, from, to string) error
}
