package main

import (
	"encoding/json"

	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/dapmarket/marketplace-ledger/internal/config"
	"github.com/dapmarket/marketplace-ledger/internal/entity"
	"github.com/dapmarket/marketplace-ledger/internal/messenger"
	"go.uber.org/zap"
)

// eventSubscriber is a reference consumer: it drains the marketplace
// event queue and logs every fact. External observers reconstructing
// marketplace history start from a copy of this loop.
func main() {
	config.Init()

	messageService, err := messenger.NewMessenger()
	if err != nil {
		zap.L().With(zap.Error(err)).Fatal("Failed to create messenger")
	}

	zap.L().Info("Subscribing to marketplace events")

	messages := make(chan *sqs.Message, 10)
	go messageService.PollMessages(messenger.MarketplaceEvents, messages)

	for message := range messages {
		var ev entity.MarketplaceEvent
		if err := json.Unmarshal([]byte(*message.Body), &ev); err != nil {
			zap.L().With(zap.Error(err)).Error("Failed to read message")
			continue
		}

		zap.L().With(
			zap.Uint64("sequence", ev.Sequence),
			zap.String("type", string(ev.Type)),
			zap.Uint64("listingId", ev.ListingId),
			zap.Int64("price", ev.Price),
			zap.String("seller", ev.Seller),
			zap.String("buyer", ev.Buyer),
		).Info("Marketplace event")

		if err := messageService.DeleteMessage(messenger.MarketplaceEvents, message); err != nil {
			zap.L().With(zap.Error(err)).Error("Failed to delete message")
		}
	}
}
