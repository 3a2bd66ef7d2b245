package entity

import (
	"fmt"

	"github.com/gosimple/slug"
)

type EventType string

const (
	OfferedEvent EventType = "Offered"
	BoughtEvent  EventType = "Bought"
)

// MarketplaceEvent is an immutable fact appended to the event log.
// It carries every field an external observer needs to reconstruct
// marketplace history without querying ledger state.
type MarketplaceEvent struct {
	Sequence  uint64    `json:"sequence"`
	Type      EventType `json:"type"`
	ListingId uint64    `json:"listingId"`
	Asset     AssetRef  `json:"asset"`
	Price     int64     `json:"price"`
	Fee       int64     `json:"fee"`
	Seller    string    `json:"seller"`
	Buyer     string    `json:"buyer,omitempty"`
}

func (e MarketplaceEvent) Slug() string {
	return CreateEventSlug(e.Sequence, string(e.Type))
}

func CreateEventSlug(sequence uint64, eventType string) string {
	return slug.Make(fmt.Sprintf("event-%d-%s", sequence, eventType))
}
