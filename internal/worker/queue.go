// Package worker long-polls an SQS queue and feeds each received batch to a
// batch.Coordinator. It is the container alternative to the Lambda triggers.
package worker

import "context"

// Message is a received queue message.
type Message struct {
	ID            string
	Body          string
	Attributes    map[string]string
	ReceiptHandle string
}

// Queue is the transport the worker polls.
type Queue interface {
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]Message, error)
	Delete(ctx context.Context, receiptHandle string) error
}
