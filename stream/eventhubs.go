package stream

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azeventhubs"
	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azeventhubs/checkpoints"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"

	"github.com/gatiride/gati-platform/engine/errors"
	"github.com/gatiride/gati-platform/engine/logging"
)

// ConsumerConfig holds Event Hubs consumer configuration.
type ConsumerConfig struct {
	Namespace        string
	EventHubName     string
	ConnectionString string // Optional - if empty, uses managed identity
	ConsumerGroup    string // Default is "$Default"

	// Blob storage backing the checkpoint store.
	StorageConnectionString string
	StorageContainerName    string
}

// Consumer reads the driver-state stream with the processor pattern and
// applies each event to the roster. Checkpoints advance per batch, so a
// crash replays at most one batch per partition; every state write is
// idempotent, which makes replay safe.
type Consumer struct {
	processor *azeventhubs.Processor
	applier   *Applier
	config    ConsumerConfig
	logger    *logging.Logger
}

// NewConsumer creates a consumer with a blob-backed checkpoint store.
func NewConsumer(ctx context.Context, config ConsumerConfig, applier *Applier, logger *logging.Logger) (*Consumer, error) {
	containerClient, err := container.NewClientFromConnectionString(
		config.StorageConnectionString,
		config.StorageContainerName,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create container client: %w", err)
	}

	checkpointStore, err := checkpoints.NewBlobStore(containerClient, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkpoint store: %w", err)
	}

	consumerGroup := config.ConsumerGroup
	if consumerGroup == "" {
		consumerGroup = azeventhubs.DefaultConsumerGroup
	}

	var consumerClient *azeventhubs.ConsumerClient
	if config.ConnectionString != "" {
		consumerClient, err = azeventhubs.NewConsumerClientFromConnectionString(
			config.ConnectionString,
			config.EventHubName,
			consumerGroup,
			nil,
		)
	} else {
		cred, credErr := azidentity.NewDefaultAzureCredential(nil)
		if credErr != nil {
			return nil, fmt.Errorf("failed to create credential: %w", credErr)
		}
		fullyQualifiedNamespace := fmt.Sprintf("%s.servicebus.windows.net", config.Namespace)
		consumerClient, err = azeventhubs.NewConsumerClient(
			fullyQualifiedNamespace,
			config.EventHubName,
			consumerGroup,
			cred,
			nil,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer client: %w", err)
	}

	processor, err := azeventhubs.NewProcessor(consumerClient, checkpointStore, nil)
	if err != nil {
		consumerClient.Close(ctx)
		return nil, fmt.Errorf("failed to create processor: %w", err)
	}

	return &Consumer{
		processor: processor,
		applier:   applier,
		config:    config,
		logger:    logger.WithComponent("stream"),
	}, nil
}

// Run consumes until the context is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	go func() {
		for {
			partitionClient := c.processor.NextPartitionClient(ctx)
			if partitionClient == nil {
				break
			}
			go c.processPartition(ctx, partitionClient)
		}
	}()

	return c.processor.Run(ctx)
}

func (c *Consumer) processPartition(ctx context.Context, partitionClient *azeventhubs.ProcessorPartitionClient) {
	defer partitionClient.Close(ctx)

	log := c.logger.With("partition_id", partitionClient.PartitionID())

	for {
		events, err := partitionClient.ReceiveEvents(ctx, 100, nil)
		if err != nil {
			if ctx.Err() == nil {
				log.Error("receive failed", "error", err)
			}
			return
		}

		for _, event := range events {
			if err := c.applier.ApplyRaw(ctx, event.Body); err != nil {
				// Bad events are dropped after logging; a poison event
				// must not wedge the partition.
				if errors.IsInvalidInput(err) || errors.IsNotFound(err) {
					log.Warn("dropping unprocessable event",
						"sequence_number", event.SequenceNumber,
						"error", err)
					continue
				}
				log.Error("failed to apply event",
					"sequence_number", event.SequenceNumber,
					"error", err)
			}
		}

		if len(events) > 0 {
			if err := partitionClient.UpdateCheckpoint(ctx, events[len(events)-1], nil); err != nil {
				log.Error("checkpoint update failed", "error", err)
			}
		}
	}
}
