package jetstream

import (
	"context"

	"github.com/nats-io/nats.go"
)

// ClientInterface is the subset of JetStream the automation service needs to emit events.
type ClientInterface interface {
	// SetupStream creates the stream, or updates it when its config drifted
	SetupStream(ctx context.Context, streamConfig *nats.StreamConfig) error

	// Publish publishes a message to a subject with optional headers and waits for the stream ack
	Publish(ctx context.Context, subject string, data []byte, headers map[string]string) error

	// Close drains and closes the NATS connection
	Close()
}
