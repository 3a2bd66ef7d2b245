package archive

import (
	"fmt"

	"github.com/dapmarket/marketplace-ledger/internal/config"
)

type Indices string

var (
	ListingIndex Indices = "listing"
	EventIndex   Indices = "event"
)

// Sets the network and returns the full string
func (i *Indices) Get() string {
	return fmt.Sprintf("%s.%s.%s", config.Get().Network, config.Get().Index, string(*i))
}

func All() []Indices {
	return []Indices{
		ListingIndex,
		EventIndex,
	}
}
