package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"gitlab.com/timkado/api/daisi-crm-automation/internal/config"
	"gitlab.com/timkado/api/daisi-crm-automation/internal/jetstream"
	"gitlab.com/timkado/api/daisi-crm-automation/internal/model"
	"gitlab.com/timkado/api/daisi-crm-automation/internal/observer"
	"gitlab.com/timkado/api/daisi-crm-automation/internal/tenant"
	"gitlab.com/timkado/api/daisi-crm-automation/pkg/logger"
)

const publishTimeout = 5 * time.Second

// NotificationPublisher announces freshly inserted notifications. Implementations are best-effort.
type NotificationPublisher interface {
	PublishCreated(ctx context.Context, notification model.Notification)
	Stop()
}

// NoopNotificationPublisher discards every event.
type NoopNotificationPublisher struct{}

var _ NotificationPublisher = NoopNotificationPublisher{}

func (NoopNotificationPublisher) PublishCreated(context.Context, model.Notification) {}
func (NoopNotificationPublisher) Stop() {}

// NotificationCreatedEvent is the payload published for each new notification.
type NotificationCreatedEvent struct {
	ID            string    `json:"id"`
	CompanyID     string    `json:"company_id"`
	UserProfileID string    `json:"user_profile_id"`
	Type          string    `json:"type"`
	Message       string    `json:"message"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	CreatedAt     time.Time `json:"created_at"`
}

type publishTask struct {
	logger    *zap.Logger
	companyID string
	subject   string
	msgID     string
	payload   []byte
}

// NATSNotificationPublisher publishes notification events to JetStream from an ants pool.
type NATSNotificationPublisher struct {
	pool        *ants.PoolWithFunc
	client      jetstream.ClientInterface
	baseSubject string
	baseLogger  *zap.Logger
}

var _ NotificationPublisher = (*NATSNotificationPublisher)(nil)

// NewNATSNotificationPublisher creates the publisher and its worker pool.
func NewNATSNotificationPublisher(
	cfg config.PublisherWorkerPoolConfig,
	client jetstream.ClientInterface,
	baseSubject string,
	baseLogger *zap.Logger,
) (*NATSNotificationPublisher, error) {
	p := &NATSNotificationPublisher{
		client:      client,
		baseSubject: baseSubject,
		baseLogger:  baseLogger.Named("notification_publisher"),
	}

	pool, err := ants.NewPoolWithFunc(cfg.PoolSize, func(i interface{}) {
		task, ok := i.(publishTask)
		if !ok {
			p.baseLogger.Error("Invalid publish task type received", zap.Any("data", i))
			return
		}
		p.publish(task)
	},
		ants.WithExpiryDuration(cfg.ExpiryTime),
		ants.WithNonblocking(false),
		ants.WithMaxBlockingTasks(cfg.QueueSize),
		ants.WithPanicHandler(func(err interface{}) {
			p.baseLogger.Error("Panic recovered in notification publisher", zap.Any("panic_error", err), zap.Stack("stack"))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create notification publisher pool: %w", err)
	}
	p.pool = pool

	p.baseLogger.Info("Notification publisher pool initialized",
		zap.Int("pool_size", cfg.PoolSize),
		zap.Int("queue_size", cfg.QueueSize),
		zap.Duration("expiry_time", cfg.ExpiryTime),
	)
	return p, nil
}

// SubjectFor returns the subject events of companyID are published to.
func (p *NATSNotificationPublisher) SubjectFor(companyID string) string {
	return p.baseSubject + "." + companyID
}

// PublishCreated hands the notification to a pool worker for publishing. While every worker
// is busy the caller waits for a free one; once queueSize callers are already waiting the
// event is dropped and counted instead.
func (p *NATSNotificationPublisher) PublishCreated(ctx context.Context, notification model.Notification) {
	companyID := tenant.CompanyOrUnknown(ctx)
	log := logger.FromContextOr(ctx, p.baseLogger).With(zap.String("notification_id", notification.ID))

	payload, err := json.Marshal(NotificationCreatedEvent{
		ID:            notification.ID,
		CompanyID:     companyID,
		UserProfileID: notification.UserProfileID,
		Type:          notification.Type,
		Message:       notification.Message,
		EntityType:    notification.EntityType,
		EntityID:      notification.EntityID,
		CreatedAt:     notification.CreatedAt,
	})
	if err != nil {
		log.Error("Failed to marshal notification event", zap.Error(err))
		observer.IncNotificationEvent(companyID, "failed")
		return
	}

	task := publishTask{
		logger:    log,
		companyID: companyID,
		subject:   p.SubjectFor(companyID),
		msgID:     notification.ID,
		payload:   payload,
	}
	if err := p.pool.Invoke(task); err != nil {
		if errors.Is(err, ants.ErrPoolOverload) || errors.Is(err, ants.ErrPoolClosed) {
			log.Warn("Notification event dropped", zap.Error(err))
		} else {
			log.Error("Failed to submit notification event", zap.Error(err))
		}
		observer.IncNotificationEvent(companyID, "dropped")
	}
}

// publish runs on a pool worker.
func (p *NATSNotificationPublisher) publish(task publishTask) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	headers := map[string]string{"Nats-Msg-Id": task.msgID}
	if err := p.client.Publish(ctx, task.subject, task.payload, headers); err != nil {
		task.logger.Warn("Failed to publish notification event",
			zap.String("subject", task.subject),
			zap.Error(err))
		observer.IncNotificationEvent(task.companyID, "failed")
		return
	}
	task.logger.Debug("Published notification event", zap.String("subject", task.subject))
	observer.IncNotificationEvent(task.companyID, "published")
}

// Stop waits for queued events to be published and releases the pool.
func (p *NATSNotificationPublisher) Stop() {
	if err := p.pool.ReleaseTimeout(publishTimeout); err != nil {
		p.baseLogger.Warn("Notification publisher did not drain in time", zap.Error(err))
		return
	}
	p.baseLogger.Info("Notification publisher stopped")
}
