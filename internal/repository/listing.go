package repository

import (
	"encoding/json"
	"errors"

	"github.com/dapmarket/marketplace-ledger/internal/archive"
	"github.com/dapmarket/marketplace-ledger/internal/entity"
	"github.com/olivere/elastic/v7"
)

var ErrListingNotFound = errors.New("listing not found")

// ListingRepository reads archived listing documents. Used by external
// observers and reporting, not by the purchase path.
type ListingRepository interface {
	GetListing(id uint64) (entity.Listing, error)
	GetListingsBySeller(seller string) ([]entity.Listing, error)
}

type listingRepository struct {
	elastic archive.Index
}

func NewListingRepository(elastic archive.Index) ListingRepository {
	return listingRepository{elastic}
}

func (r listingRepository) GetListing(id uint64) (entity.Listing, error) {
	query := elastic.NewTermQuery("id", id)

	result, err := search(r.elastic.GetClient().
		Search(archive.ListingIndex.Get()).
		Query(query).
		Size(1))

	return r.findOne(result, err)
}

func (r listingRepository) GetListingsBySeller(seller string) ([]entity.Listing, error) {
	query := elastic.NewTermQuery("seller", seller)

	result, err := search(r.elastic.GetClient().
		Search(archive.ListingIndex.Get()).
		Query(query).
		Sort("id", true).
		Size(100))

	if err != nil {
		return nil, err
	}

	listings := make([]entity.Listing, 0)
	for _, hit := range result.Hits.Hits {
		var listing entity.Listing
		if err := json.Unmarshal(hit.Source, &listing); err != nil {
			return nil, err
		}
		listings = append(listings, listing)
	}

	return listings, nil
}

func (r listingRepository) findOne(results *elastic.SearchResult, err error) (entity.Listing, error) {
	if err != nil {
		return entity.Listing{}, err
	}

	if len(results.Hits.Hits) == 0 {
		return entity.Listing{}, ErrListingNotFound
	}

	var listing entity.Listing
	hit := results.Hits.Hits[0]
	err = json.Unmarshal(hit.Source, &listing)

	return listing, err
}
