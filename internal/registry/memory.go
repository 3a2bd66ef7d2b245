package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/dapmarket/marketplace-ledger/internal/entity"
)

// MemoryRegistry is an in-process asset registry. It is the substitute
// used in tests and in single-node deployments where asset custody does
// not live on an external system.
//
// The registry is constructed with the operator account it acts for
// (the marketplace). Transfer mirrors operator-style transfer authority:
// the operator may move an asset away from a custodian only after the
// custodian has approved the operator.
type MemoryRegistry struct {
	mu        sync.RWMutex
	operator  string
	custodian map[entity.AssetRef]string
	approvals map[string]map[string]bool
}

func NewMemoryRegistry(operator string) *MemoryRegistry {
	return &MemoryRegistry{
		operator:  operator,
		custodian: make(map[entity.AssetRef]string),
		approvals: make(map[string]map[string]bool),
	}
}

// Register records an asset with its initial custodian.
func (r *MemoryRegistry) Register(asset entity.AssetRef, custodian string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.custodian[asset] = custodian
}

// SetApproval grants or revokes the operator's authority to move assets
// held by owner.
func (r *MemoryRegistry) SetApproval(owner, operator string, approved bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.approvals[owner] == nil {
		r.approvals[owner] = make(map[string]bool)
	}
	r.approvals[owner][operator] = approved
}

func (r *MemoryRegistry) CustodianOf(ctx context.Context, asset entity.AssetRef) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	custodian, ok := r.custodian[asset]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrAssetNotFound, asset)
	}

	return custodian, nil
}

func (r *MemoryRegistry) Transfer(ctx context.Context, asset entity.AssetRef, from, to string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	custodian, ok := r.custodian[asset]
	if !ok {
		return fmt.Errorf("%w: %s", ErrAssetNotFound, asset)
	}

	if custodian != from {
		return fmt.Errorf("%w: %s is held by %s", ErrNotCustodian, asset, custodian)
	}

	if from != r.operator && !r.approvals[from][r.operator] {
		return fmt.Errorf("%w: %s has not approved %s", ErrNotApproved, from, r.operator)
	}

	r.custodian[asset] = to

	return nil
}
