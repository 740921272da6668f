package mock

import (
	"context"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/mock"

	"gitlab.com/timkado/api/daisi-crm-automation/internal/jetstream"
)

// ClientMock is a mock implementation of the JetStream Client
type ClientMock struct {
	mock.Mock
}

var _ jetstream.ClientInterface = (*ClientMock)(nil)

// SetupStream mocks the SetupStream method
func (m *ClientMock) SetupStream(ctx context.Context, streamConfig *nats.StreamConfig) error {
	args := m.Called(ctx, streamConfig)
	return args.Error(0)
}

// Publish mocks the Publish method
func (m *ClientMock) Publish(ctx context.Context, subject string, data []byte, headers map[string]string) error {
	args := m.Called(ctx, subject, data, headers)
	return args.Error(0)
}

// Close mocks the Close method
func (m *ClientMock) Close() {
	m.Called()
}
