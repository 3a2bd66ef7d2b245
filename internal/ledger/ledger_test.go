package ledger_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/dapmarket/marketplace-ledger/internal/entity"
	"github.com/dapmarket/marketplace-ledger/internal/event"
	"github.com/dapmarket/marketplace-ledger/internal/fee"
	"github.com/dapmarket/marketplace-ledger/internal/ledger"
	"github.com/dapmarket/marketplace-ledger/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	escrowAccount = "marketplace"
	feeAccount    = "fee-account"
	seller        = "alice"
	buyer         = "bob"
)

var ctx = context.Background()

type fixture struct {
	ledger   *ledger.Ledger
	registry *registry.MemoryRegistry
	events   *event.Log
}

func newFixture(t *testing.T, feePercent int64) fixture {
	t.Helper()

	policy, err := fee.NewPolicy(feePercent)
	require.NoError(t, err)

	reg := registry.NewMemoryRegistry(escrowAccount)
	events := event.NewLog()

	return fixture{
		ledger:   ledger.New(policy, reg, events, escrowAccount, feeAccount),
		registry: reg,
		events:   events,
	}
}

// mintApproved registers an asset to the seller and grants the escrow
// account transfer authority, the way a seller would before listing.
func (f fixture) mintApproved(tokenId uint64) entity.AssetRef {
	asset := entity.AssetRef{Contract: "dapp-nft", TokenId: tokenId}
	f.registry.Register(asset, seller)
	f.registry.SetApproval(seller, escrowAccount, true)

	return asset
}

func (f fixture) custodian(t *testing.T, asset entity.AssetRef) string {
	t.Helper()

	custodian, err := f.registry.CustodianOf(ctx, asset)
	require.NoError(t, err)

	return custodian
}

func TestCreateListing(t *testing.T) {
	f := newFixture(t, 2)
	asset := f.mintApproved(1)

	id, err := f.ledger.CreateListing(ctx, asset, 300, seller)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), id)

	listing, err := f.ledger.GetListing(id)
	require.NoError(t, err)
	assert.Equal(t, asset, listing.Asset)
	assert.Equal(t, int64(300), listing.Price)
	assert.Equal(t, seller, listing.Seller)
	assert.False(t, listing.Sold)

	assert.Equal(t, escrowAccount, f.custodian(t, asset), "asset must be in escrow after listing")

	require.Equal(t, 1, f.events.Len())
	offered := f.events.All()[0]
	assert.Equal(t, entity.OfferedEvent, offered.Type)
	assert.Equal(t, uint64(1), offered.ListingId)
	assert.Equal(t, asset, offered.Asset)
	assert.Equal(t, int64(300), offered.Price)
	assert.Equal(t, seller, offered.Seller)
}

func TestListingIdsAreDenseAndStrictlyIncreasing(t *testing.T) {
	f := newFixture(t, 2)

	for i := uint64(1); i <= 5; i++ {
		id, err := f.ledger.CreateListing(ctx, f.mintApproved(i), 100, seller)
		require.NoError(t, err)
		assert.Equal(t, i, id)
	}

	assert.Equal(t, uint64(5), f.ledger.ListingCount())
}

func TestCreateListingRejectsNonPositivePrice(t *testing.T) {
	f := newFixture(t, 2)
	asset := f.mintApproved(1)

	for _, price := range []int64{0, -1, -300} {
		_, err := f.ledger.CreateListing(ctx, asset, price, seller)
		assert.ErrorIs(t, err, ledger.ErrInvalidPrice)
	}

	assert.Equal(t, uint64(0), f.ledger.ListingCount(), "no listing may exist after rejections")
	assert.Equal(t, 0, f.events.Len())
	assert.Equal(t, seller, f.custodian(t, asset), "custody must not move on a rejected listing")
}

func TestCreateListingRejectsNonCustodian(t *testing.T) {
	f := newFixture(t, 2)
	asset := entity.AssetRef{Contract: "dapp-nft", TokenId: 1}
	f.registry.Register(asset, "someone-else")
	f.registry.SetApproval(seller, escrowAccount, true)

	_, err := f.ledger.CreateListing(ctx, asset, 300, seller)
	assert.ErrorIs(t, err, ledger.ErrCustody)
	assert.Equal(t, uint64(0), f.ledger.ListingCount())
}

func TestCreateListingRejectsWithoutApproval(t *testing.T) {
	f := newFixture(t, 2)
	asset := entity.AssetRef{Contract: "dapp-nft", TokenId: 1}
	f.registry.Register(asset, seller)

	_, err := f.ledger.CreateListing(ctx, asset, 300, seller)
	assert.ErrorIs(t, err, ledger.ErrCustody)

	assert.Equal(t, uint64(0), f.ledger.ListingCount())
	assert.Equal(t, 0, f.events.Len())
	assert.Equal(t, seller, f.custodian(t, asset))
}

func TestQuoteTotalCharge(t *testing.T) {
	f := newFixture(t, 2)
	id, err := f.ledger.CreateListing(ctx, f.mintApproved(1), 300, seller)
	require.NoError(t, err)

	total, err := f.ledger.QuoteTotalCharge(id)
	require.NoError(t, err)
	assert.Equal(t, int64(306), total)

	_, err = f.ledger.QuoteTotalCharge(0)
	assert.ErrorIs(t, err, ledger.ErrListingNotFound)

	_, err = f.ledger.QuoteTotalCharge(9999)
	assert.ErrorIs(t, err, ledger.ErrListingNotFound)
}

func TestPurchase(t *testing.T) {
	f := newFixture(t, 2)
	asset := f.mintApproved(1)
	id, err := f.ledger.CreateListing(ctx, asset, 300, seller)
	require.NoError(t, err)

	// Paying the bare price is not enough; the fee is on the buyer.
	err = f.ledger.Purchase(ctx, id, buyer, 300)
	assert.ErrorIs(t, err, ledger.ErrInsufficientPayment)

	require.NoError(t, f.ledger.Purchase(ctx, id, buyer, 306))

	listing, err := f.ledger.GetListing(id)
	require.NoError(t, err)
	assert.True(t, listing.Sold)

	assert.Equal(t, int64(300), f.ledger.Balance(seller))
	assert.Equal(t, int64(6), f.ledger.Balance(feeAccount))
	assert.Equal(t, int64(6), f.ledger.AccumulatedFees())
	assert.Equal(t, buyer, f.custodian(t, asset))

	require.Equal(t, 2, f.events.Len())
	bought := f.events.All()[1]
	assert.Equal(t, entity.BoughtEvent, bought.Type)
	assert.Equal(t, id, bought.ListingId)
	assert.Equal(t, asset, bought.Asset)
	assert.Equal(t, int64(300), bought.Price)
	assert.Equal(t, int64(6), bought.Fee)
	assert.Equal(t, seller, bought.Seller)
	assert.Equal(t, buyer, bought.Buyer)
}

func TestPurchaseConservation(t *testing.T) {
	f := newFixture(t, 13)
	id, err := f.ledger.CreateListing(ctx, f.mintApproved(1), 999, seller)
	require.NoError(t, err)

	total, err := f.ledger.QuoteTotalCharge(id)
	require.NoError(t, err)

	require.NoError(t, f.ledger.Purchase(ctx, id, buyer, total))

	assert.Equal(t, total, f.ledger.Balance(seller)+f.ledger.Balance(feeAccount),
		"seller credit plus fee credit must equal the total charged")
}

func TestPurchaseUnknownListing(t *testing.T) {
	f := newFixture(t, 2)

	assert.ErrorIs(t, f.ledger.Purchase(ctx, 0, buyer, 1000), ledger.ErrListingNotFound)
	assert.ErrorIs(t, f.ledger.Purchase(ctx, 9999, buyer, 1000), ledger.ErrListingNotFound)
}

func TestPurchaseExactlyOnce(t *testing.T) {
	f := newFixture(t, 2)
	id, err := f.ledger.CreateListing(ctx, f.mintApproved(1), 300, seller)
	require.NoError(t, err)

	require.NoError(t, f.ledger.Purchase(ctx, id, buyer, 306))

	err = f.ledger.Purchase(ctx, id, "carol", 306)
	assert.ErrorIs(t, err, ledger.ErrAlreadySold)

	listing, err := f.ledger.GetListing(id)
	require.NoError(t, err)
	assert.True(t, listing.Sold)

	assert.Equal(t, int64(300), f.ledger.Balance(seller), "seller must not be credited twice")
	assert.Equal(t, int64(6), f.ledger.AccumulatedFees())
}

func TestPurchaseAcceptsOverpayment(t *testing.T) {
	f := newFixture(t, 2)
	id, err := f.ledger.CreateListing(ctx, f.mintApproved(1), 300, seller)
	require.NoError(t, err)

	require.NoError(t, f.ledger.Purchase(ctx, id, buyer, 500))

	// The excess is kept, not refunded and not credited to anyone.
	assert.Equal(t, int64(300), f.ledger.Balance(seller))
	assert.Equal(t, int64(6), f.ledger.Balance(feeAccount))
}

func TestRejectedPurchaseLeavesStateUntouched(t *testing.T) {
	f := newFixture(t, 2)
	asset := f.mintApproved(1)
	id, err := f.ledger.CreateListing(ctx, asset, 300, seller)
	require.NoError(t, err)

	err = f.ledger.Purchase(ctx, id, buyer, 305)
	require.ErrorIs(t, err, ledger.ErrInsufficientPayment)

	listing, err := f.ledger.GetListing(id)
	require.NoError(t, err)
	assert.False(t, listing.Sold)
	assert.Equal(t, int64(0), f.ledger.Balance(seller))
	assert.Equal(t, int64(0), f.ledger.AccumulatedFees())
	assert.Equal(t, escrowAccount, f.custodian(t, asset))
	assert.Equal(t, 1, f.events.Len(), "no Bought fact on a rejected purchase")
}

// failingRegistry refuses every transfer after a configurable count,
// standing in for a registry that goes away mid-operation.
type failingRegistry struct {
	*registry.MemoryRegistry
	allowed int
}

func (r *failingRegistry) Transfer(ctx context.Context, asset entity.AssetRef, from, to string) error {
	if r.allowed <= 0 {
		return errors.New("registry unavailable")
	}
	r.allowed--

	return r.MemoryRegistry.Transfer(ctx, asset, from, to)
}

func TestPurchaseAbortsWhenCustodyTransferFails(t *testing.T) {
	policy, err := fee.NewPolicy(2)
	require.NoError(t, err)

	mem := registry.NewMemoryRegistry(escrowAccount)
	reg := &failingRegistry{MemoryRegistry: mem, allowed: 1}
	events := event.NewLog()
	l := ledger.New(policy, reg, events, escrowAccount, feeAccount)

	asset := entity.AssetRef{Contract: "dapp-nft", TokenId: 1}
	mem.Register(asset, seller)
	mem.SetApproval(seller, escrowAccount, true)

	id, err := l.CreateListing(ctx, asset, 300, seller)
	require.NoError(t, err)

	// The single allowed transfer was spent on escrow; the purchase one fails.
	err = l.Purchase(ctx, id, buyer, 306)
	require.ErrorIs(t, err, ledger.ErrCustody)

	listing, err := l.GetListing(id)
	require.NoError(t, err)
	assert.False(t, listing.Sold, "listing must stay open when custody cannot move")
	assert.Equal(t, int64(0), l.Balance(seller))
	assert.Equal(t, int64(0), l.AccumulatedFees())
	assert.Equal(t, 1, events.Len())
}

func TestConcurrentPurchasesLinearize(t *testing.T) {
	f := newFixture(t, 2)
	id, err := f.ledger.CreateListing(ctx, f.mintApproved(1), 300, seller)
	require.NoError(t, err)

	const attempts = 16

	var wg sync.WaitGroup
	results := make([]error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = f.ledger.Purchase(ctx, id, buyer, 306)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, ledger.ErrAlreadySold)
		}
	}

	assert.Equal(t, 1, succeeded, "exactly one concurrent purchase may win")
	assert.Equal(t, int64(300), f.ledger.Balance(seller))
	assert.Equal(t, int64(6), f.ledger.AccumulatedFees())
}
