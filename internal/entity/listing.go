package entity

import (
	"fmt"

	"github.com/gosimple/slug"
)

// AssetRef identifies a single asset inside an external registry.
type AssetRef struct {
	Contract string `json:"contract"`
	TokenId  uint64 `json:"tokenId"`
}

func (a AssetRef) Slug() string {
	return slug.Make(fmt.Sprintf("asset-%d-%s", a.TokenId, a.Contract))
}

func (a AssetRef) String() string {
	return fmt.Sprintf("%s/%d", a.Contract, a.TokenId)
}

// Listing is a permanent record offering one asset for a fixed price.
// Price is in the smallest currency unit and never changes after creation.
// Sold flips false to true exactly once and is never reset.
type Listing struct {
	Id     uint64   `json:"id"`
	Asset  AssetRef `json:"asset"`
	Price  int64    `json:"price"`
	Seller string   `json:"seller"`
	Sold   bool     `json:"sold"`
}

func (l Listing) Slug() string {
	return CreateListingSlug(l.Id)
}

func CreateListingSlug(id uint64) string {
	return slug.Make(fmt.Sprintf("listing-%d", id))
}
