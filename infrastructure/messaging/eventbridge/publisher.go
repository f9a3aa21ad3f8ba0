// Package eventbridge publishes entity lifecycle events to an AWS
// EventBridge bus. Consumers subscribe through bus rules; this side only
// emits.
package eventbridge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"go.uber.org/zap"

	"tasknote-backend/application/ports"
)

const eventSource = "tasknote.backend"

// Publisher implements ports.EventPublisher over PutEvents.
type Publisher struct {
	client       *eventbridge.Client
	eventBusName string
	logger       *zap.Logger
}

// NewPublisher creates a publisher bound to the named event bus.
func NewPublisher(client *eventbridge.Client, eventBusName string, logger *zap.Logger) *Publisher {
	return &Publisher{client: client, eventBusName: eventBusName, logger: logger}
}

// Publish sends one entity event. Errors are returned for the caller to log;
// services treat publication as fire-and-forget.
func (p *Publisher) Publish(ctx context.Context, event ports.EntityEvent) error {
	detail, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal entity event: %w", err)
	}

	result, err := p.client.PutEvents(ctx, &eventbridge.PutEventsInput{
		Entries: []types.PutEventsRequestEntry{
			{
				EventBusName: aws.String(p.eventBusName),
				Source:       aws.String(eventSource),
				DetailType:   aws.String(event.EntityType + "." + event.Action),
				Detail:       aws.String(string(detail)),
				Time:         aws.Time(event.OccurredAt),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("publish entity event: %w", err)
	}
	if result.FailedEntryCount > 0 {
		for _, entry := range result.Entries {
			if entry.ErrorCode != nil {
				p.logger.Error("event entry rejected",
					zap.String("errorCode", aws.ToString(entry.ErrorCode)),
					zap.String("errorMessage", aws.ToString(entry.ErrorMessage)),
				)
			}
		}
		return fmt.Errorf("%d event entries failed to publish", result.FailedEntryCount)
	}

	p.logger.Debug("entity event published",
		zap.String("detailType", event.EntityType+"."+event.Action),
		zap.String("entityKey", event.EntityKey),
	)
	return nil
}

// NoopPublisher drops every event. Used when no bus is configured and in
// tests.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, ports.EntityEvent) error { return nil }
