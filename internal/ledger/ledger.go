package ledger

import (
	"context"
	"errors"
	"sync"

	"github.com/dapmarket/marketplace-ledger/internal/entity"
	"github.com/dapmarket/marketplace-ledger/internal/event"
	"github.com/dapmarket/marketplace-ledger/internal/fee"
	"github.com/dapmarket/marketplace-ledger/internal/registry"
	"go.uber.org/zap"
)

var (
	ErrInvalidPrice        = errors.New("price must be greater than zero")
	ErrListingNotFound     = errors.New("listing does not exist")
	ErrAlreadySold         = errors.New("listing is sold already")
	ErrInsufficientPayment = errors.New("payment is below the total charge")
	ErrCustody             = errors.New("custody transfer refused")
)

// Ledger owns the set of listings, their lifecycle and all monetary
// balances. Every mutation runs behind one mutex so concurrent purchase
// attempts against the same listing linearize: exactly one succeeds, the
// rest observe the sale and fail. Reads hand out copies.
//
// Custody follows the listing lifecycle exactly: the escrow account holds
// the asset from creation until sale, the buyer holds it afterwards. A
// rejected operation leaves listings, balances and custody untouched.
type Ledger struct {
	mu sync.RWMutex

	policy   fee.Policy
	registry registry.AssetRegistry
	events   *event.Log

	escrowAccount string
	feeAccount    string

	nextListingId   uint64
	listings        map[uint64]entity.Listing
	balances        map[string]int64
	accumulatedFees int64
}

func New(policy fee.Policy, reg registry.AssetRegistry, events *event.Log, escrowAccount, feeAccount string) *Ledger {
	return &Ledger{
		policy:        policy,
		registry:      reg,
		events:        events,
		escrowAccount: escrowAccount,
		feeAccount:    feeAccount,
		nextListingId: 1,
		listings:      make(map[uint64]entity.Listing),
		balances:      make(map[string]int64),
	}
}

// CreateListing escrows the asset and records a new listing. The caller
// must be the asset's current custodian and must have granted the escrow
// account transfer authority beforehand; both checks are delegated to
// the registry. Listing ids are dense from 1 and never reused.
func (l *Ledger) CreateListing(ctx context.Context, asset entity.AssetRef, price int64, seller string) (uint64, error) {
	if price <= 0 {
		return 0, ErrInvalidPrice
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	custodian, err := l.registry.CustodianOf(ctx, asset)
	if err != nil {
		zap.L().With(zap.String("asset", asset.String()), zap.Error(err)).Error("Ledger: Failed to resolve custodian")
		return 0, ErrCustody
	}
	if custodian != seller {
		zap.L().With(
			zap.String("asset", asset.String()),
			zap.String("seller", seller),
			zap.String("custodian", custodian),
		).Warn("Ledger: Listing refused, seller is not the custodian")
		return 0, ErrCustody
	}

	// Escrow before any ledger write so a registry refusal leaves no trace.
	if err := l.registry.Transfer(ctx, asset, seller, l.escrowAccount); err != nil {
		zap.L().With(zap.String("asset", asset.String()), zap.String("seller", seller), zap.Error(err)).Warn("Ledger: Escrow transfer refused")
		return 0, ErrCustody
	}

	listing := entity.Listing{
		Id:     l.nextListingId,
		Asset:  asset,
		Price:  price,
		Seller: seller,
	}

	l.listings[listing.Id] = listing
	l.nextListingId++

	l.events.Append(entity.MarketplaceEvent{
		Type:      entity.OfferedEvent,
		ListingId: listing.Id,
		Asset:     asset,
		Price:     price,
		Seller:    seller,
	})

	zap.L().With(
		zap.Uint64("listingId", listing.Id),
		zap.String("asset", asset.String()),
		zap.Int64("price", price),
		zap.String("seller", seller),
	).Info("Ledger: Listing created")

	return listing.Id, nil
}

// GetListing returns a copy of the listing record.
func (l *Ledger) GetListing(id uint64) (entity.Listing, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	listing, ok := l.listings[id]
	if !ok {
		return entity.Listing{}, ErrListingNotFound
	}

	return listing, nil
}

// QuoteTotalCharge returns the exact amount a buyer must remit for the
// listing: price plus platform fee.
func (l *Ledger) QuoteTotalCharge(id uint64) (int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	listing, ok := l.listings[id]
	if !ok {
		return 0, ErrListingNotFound
	}

	_, totalCharge := l.policy.Split(listing.Price)

	return totalCharge, nil
}

// Purchase completes the sale of a listing. Validation failures reject
// the call with no observable side effects. On success, as one unit under
// the ledger mutex: the listing is marked sold, the seller is credited
// with the price, the fee account with the fee, custody moves from escrow
// to the buyer and a Bought fact is appended.
//
// Overpayment is accepted and the excess kept; there is no refund path.
func (l *Ledger) Purchase(ctx context.Context, id uint64, buyer string, remitted int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	listing, ok := l.listings[id]
	if !ok {
		return ErrListingNotFound
	}
	if listing.Sold {
		return ErrAlreadySold
	}

	feeAmount, totalCharge := l.policy.Split(listing.Price)
	if remitted < totalCharge {
		return ErrInsufficientPayment
	}

	// Custody moves first: a registry refusal aborts the purchase before
	// any ledger write, so the listing stays unsold and unpaid.
	if err := l.registry.Transfer(ctx, listing.Asset, l.escrowAccount, buyer); err != nil {
		zap.L().With(
			zap.Uint64("listingId", id),
			zap.String("asset", listing.Asset.String()),
			zap.String("buyer", buyer),
			zap.Error(err),
		).Error("Ledger: Purchase custody transfer refused")
		return ErrCustody
	}

	listing.Sold = true
	l.listings[id] = listing

	l.balances[listing.Seller] += listing.Price
	l.balances[l.feeAccount] += feeAmount
	l.accumulatedFees += feeAmount

	l.events.Append(entity.MarketplaceEvent{
		Type:      entity.BoughtEvent,
		ListingId: listing.Id,
		Asset:     listing.Asset,
		Price:     listing.Price,
		Fee:       feeAmount,
		Seller:    listing.Seller,
		Buyer:     buyer,
	})

	zap.L().With(
		zap.Uint64("listingId", id),
		zap.String("buyer", buyer),
		zap.Int64("price", listing.Price),
		zap.Int64("fee", feeAmount),
	).Info("Ledger: Listing sold")

	return nil
}

// Balance returns the credit accumulated by an account through sales.
func (l *Ledger) Balance(account string) int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.balances[account]
}

// AccumulatedFees returns the running total credited to the fee account.
func (l *Ledger) AccumulatedFees() int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.accumulatedFees
}

// ListingCount returns how many listings have ever been created.
func (l *Ledger) ListingCount() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.nextListingId - 1
}
