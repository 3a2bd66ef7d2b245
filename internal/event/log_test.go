package event_test

import (
	"testing"
	"time"

	"github.com/dapmarket/marketplace-ledger/internal/entity"
	"github.com/dapmarket/marketplace-ledger/internal/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAssignsDenseSequence(t *testing.T) {
	log := event.NewLog()

	for i := 1; i <= 5; i++ {
		ev := log.Append(entity.MarketplaceEvent{Type: entity.OfferedEvent, ListingId: uint64(i)})
		assert.Equal(t, uint64(i), ev.Sequence)
	}

	assert.Equal(t, 5, log.Len())

	for i, ev := range log.All() {
		assert.Equal(t, uint64(i+1), ev.Sequence)
	}
}

func TestAllReturnsCopy(t *testing.T) {
	log := event.NewLog()
	log.Append(entity.MarketplaceEvent{Type: entity.OfferedEvent, ListingId: 1})

	events := log.All()
	events[0].ListingId = 99

	assert.Equal(t, uint64(1), log.All()[0].ListingId)
}

func TestSubscribeReceivesInOrder(t *testing.T) {
	log := event.NewLog()
	sub := log.Subscribe(10)

	log.Append(entity.MarketplaceEvent{Type: entity.OfferedEvent, ListingId: 1})
	log.Append(entity.MarketplaceEvent{Type: entity.BoughtEvent, ListingId: 1})

	for i := 1; i <= 2; i++ {
		select {
		case ev := <-sub:
			assert.Equal(t, uint64(i), ev.Sequence)
		case <-time.After(time.Second):
			require.FailNow(t, "timed out waiting for event")
		}
	}
}

func TestSlowSubscriberDoesNotBlockAppend(t *testing.T) {
	log := event.NewLog()
	log.Subscribe(1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10; i++ {
			log.Append(entity.MarketplaceEvent{Type: entity.OfferedEvent, ListingId: uint64(i + 1)})
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		require.FailNow(t, "append blocked on a full subscriber")
	}

	assert.Equal(t, 10, log.Len())
}
