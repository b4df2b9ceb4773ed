package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/domain/notification"
)

// messageSender is the part of *azservicebus.Sender the notifier needs.
type messageSender interface {
	SendMessage(ctx context.Context, message *azservicebus.Message, options *azservicebus.SendMessageOptions) error
	Close(ctx context.Context) error
}

// ServiceBusNotifier publishes run summaries to a queue, one session per company so
// consumers see the runs of a company in order.
type ServiceBusNotifier struct {
	client *azservicebus.Client
	sender messageSender
	queue  string
}

// NewServiceBusNotifier connects to the namespace of connectionString.
func NewServiceBusNotifier(connectionString, queue string) (*ServiceBusNotifier, error) {
	client, err := azservicebus.NewClientFromConnectionString(connectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create service bus client: %w", err)
	}
	sender, err := client.NewSender(queue, nil)
	if err != nil {
		client.Close(context.Background())
		return nil, fmt.Errorf("failed to create service bus sender: %w", err)
	}
	return &ServiceBusNotifier{client: client, sender: sender, queue: queue}, nil
}

func (n *ServiceBusNotifier) NotifyRunCompleted(ctx context.Context, summary notification.RunSummary) error {
	msg, err := newRunMessage(summary)
	if err != nil {
		return err
	}
	if err := n.sender.SendMessage(ctx, msg, nil); err != nil {
		return fmt.Errorf("failed to publish run summary: %w", err)
	}
	slog.Info("Run summary published", "queue", n.queue, "run_id", summary.RunID, "type", summary.Type)
	return nil
}

func newRunMessage(summary notification.RunSummary) (*azservicebus.Message, error) {
	body, err := json.Marshal(summary)
	if err != nil {
		return nil, fmt.Errorf("failed to encode run summary: %w", err)
	}
	contentType := "application/json"
	subject := string(summary.Type)
	messageID := summary.RunID
	sessionID := summary.CompanyID
	return &azservicebus.Message{
		Body:        body,
		ContentType: &contentType,
		Subject:     &subject,
		MessageID:   &messageID,
		SessionID:   &sessionID,
		ApplicationProperties: map[string]any{
			"company_id": summary.CompanyID,
			"period":     summary.Period,
		},
	}, nil
}

func (n *ServiceBusNotifier) Close(ctx context.Context) error {
	if err := n.sender.Close(ctx); err != nil {
		return err
	}
	if n.client != nil {
		return n.client.Close(ctx)
	}
	return nil
}
