package aws

import (
	"context"
	"fmt"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// QueueSender sends messages to a single queue.
type QueueSender interface {
	SendMessage(ctx context.Context, body string) error
}

// SQSSender sends messages to one SQS queue.
type SQSSender struct {
	client   *sqs.Client
	queueURL string
}

// NewSQSSender creates a sender for the given queue URL
func NewSQSSender(cfg sdkaws.Config, queueURL string) *SQSSender {
	return &SQSSender{
		client:   sqs.NewFromConfig(cfg),
		queueURL: queueURL,
	}
}

// SendMessage sends a single message to the queue
func (c *SQSSender) SendMessage(ctx context.Context, body string) error {
	_, err := c.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    sdkaws.String(c.queueURL),
		MessageBody: sdkaws.String(body),
	})
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}
