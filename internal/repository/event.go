package repository

import (
	"encoding/json"
	"errors"

	"github.com/dapmarket/marketplace-ledger/internal/archive"
	"github.com/dapmarket/marketplace-ledger/internal/entity"
	"github.com/olivere/elastic/v7"
)

var ErrEventNotFound = errors.New("event not found")

// EventRepository reads archived marketplace facts back out of
// Elasticsearch for history queries. It never feeds the ledger; the
// ledger's in-memory state is authoritative.
type EventRepository interface {
	GetEventsByListing(listingId uint64) ([]entity.MarketplaceEvent, error)
	GetBestSequence() (uint64, error)
}

type eventRepository struct {
	elastic archive.Index
}

func NewEventRepository(elastic archive.Index) EventRepository {
	return eventRepository{elastic}
}

func (r eventRepository) GetEventsByListing(listingId uint64) ([]entity.MarketplaceEvent, error) {
	query := elastic.NewTermQuery("listingId", listingId)

	result, err := search(r.elastic.GetClient().
		Search(archive.EventIndex.Get()).
		Query(query).
		Sort("sequence", true).
		Size(100))

	return r.findAll(result, err)
}

func (r eventRepository) GetBestSequence() (uint64, error) {
	result, err := search(r.elastic.GetClient().
		Search(archive.EventIndex.Get()).
		Sort("sequence", false).
		Size(1))

	events, err := r.findAll(result, err)
	if err != nil {
		return 0, err
	}
	if len(events) == 0 {
		return 0, nil
	}

	return events[0].Sequence, nil
}

func (r eventRepository) findAll(results *elastic.SearchResult, err error) ([]entity.MarketplaceEvent, error) {
	if err != nil {
		return nil, err
	}

	events := make([]entity.MarketplaceEvent, 0)
	for _, hit := range results.Hits.Hits {
		var event entity.MarketplaceEvent
		if err := json.Unmarshal(hit.Source, &event); err != nil {
			return nil, err
		}
		events = append(events, event)
	}

	return events, nil
}
