package daemon

import (
	"encoding/json"

	"github.com/dapmarket/marketplace-ledger/internal/archive"
	"github.com/dapmarket/marketplace-ledger/internal/config"
	"github.com/dapmarket/marketplace-ledger/internal/entity"
	"github.com/dapmarket/marketplace-ledger/internal/event"
	"github.com/dapmarket/marketplace-ledger/internal/ledger"
	"github.com/dapmarket/marketplace-ledger/internal/messenger"
	"go.uber.org/zap"
)

// Daemon drains the event log and fans each fact out to the archive and
// the message queue. It is strictly downstream of the ledger: a slow or
// failing sink never blocks or rolls back a sale.
type Daemon struct {
	events    *event.Log
	ledger    *ledger.Ledger
	archive   archive.Index
	messenger messenger.MessageService
}

func NewDaemon(events *event.Log, l *ledger.Ledger, index archive.Index, msg messenger.MessageService) *Daemon {
	return &Daemon{
		events:    events,
		ledger:    l,
		archive:   index,
		messenger: msg,
	}
}

func (d *Daemon) Execute() {
	if d.archive == nil && d.messenger == nil {
		zap.L().Info("Daemon: No sinks configured, event log kept in memory only")
		return
	}

	if d.archive != nil {
		d.archive.InstallMappings()
	}

	sub := d.events.Subscribe(config.Get().EventBuffer)

	zap.L().Info("Daemon: Draining event log")

	for ev := range sub {
		d.handle(ev)
	}
}

func (d *Daemon) handle(ev entity.MarketplaceEvent) {
	zap.L().With(
		zap.Uint64("sequence", ev.Sequence),
		zap.String("type", string(ev.Type)),
		zap.Uint64("listingId", ev.ListingId),
	).Debug("Daemon: Handling event")

	if d.archive != nil {
		d.archiveEvent(ev)
	}

	if d.messenger != nil {
		d.publishEvent(ev)
	}
}

func (d *Daemon) archiveEvent(ev entity.MarketplaceEvent) {
	d.archive.AddIndexRequest(archive.EventIndex.Get(), ev)

	// Keep the listing document current alongside its facts.
	if listing, err := d.ledger.GetListing(ev.ListingId); err == nil {
		if ev.Type == entity.OfferedEvent {
			d.archive.AddIndexRequest(archive.ListingIndex.Get(), listing)
		} else {
			d.archive.AddUpdateRequest(archive.ListingIndex.Get(), listing)
		}
	}

	if !d.archive.BatchPersist() && ev.Type == entity.BoughtEvent {
		// Sales are final; do not sit on them until the batch fills.
		d.archive.Persist()
	}
}

func (d *Daemon) publishEvent(ev entity.MarketplaceEvent) {
	body, err := json.Marshal(ev)
	if err != nil {
		zap.L().With(zap.Error(err), zap.Uint64("sequence", ev.Sequence)).Error("Daemon: Failed to encode event")
		return
	}

	if err := d.messenger.SendMessage(messenger.MarketplaceEvents, body); err != nil {
		zap.L().With(zap.Error(err), zap.Uint64("sequence", ev.Sequence)).Error("Daemon: Failed to publish event")
	}
}
