package planning

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/siting-service/internal/domain"
	"github.com/siting-service/internal/domain/repository"
	"github.com/siting-service/internal/pkg/errors"
	"github.com/siting-service/internal/pkg/validator"
	"github.com/siting-service/internal/worker"
)

const (
	defaultBatchSize    = 20                     // максимум сообщений за раз
	defaultPollInterval = 100 * time.Millisecond // пауза если очередь пуста
	errorBackoff        = time.Second
)

// RequestHandler выполняет запрос на расчёт сценариев
type RequestHandler interface {
	HandleRequest(ctx context.Context, event *domain.ScenarioRequestEvent) *domain.ScenarioDoneEvent
}

// Config - параметры ScenarioWorker
type Config struct {
	ConsumerGroup string
	BatchSize     int64
	PollInterval  time.Duration
	// MaxRetries - попыток публикации результата
	MaxRetries int
	// RequestStream и DoneStream переопределяются в тестах
	RequestStream string
	DoneStream    string
}

// ScenarioWorker обрабатывает запросы на расчёт сценариев из Redis Stream
type ScenarioWorker struct {
	*worker.BaseWorker
	streamRepo   repository.StreamRepository
	handler      RequestHandler
	cfg          Config
	consumerName string
}

// NewScenarioWorker создает новый ScenarioWorker
func NewScenarioWorker(
	streamRepo repository.StreamRepository,
	handler RequestHandler,
	cfg Config,
	logger *zap.Logger,
) *ScenarioWorker {
	hostname, _ := os.Hostname()
	consumerName := fmt.Sprintf("%s-%d", hostname, os.Getpid())

	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 1
	}
	if cfg.RequestStream == "" {
		cfg.RequestStream = domain.StreamScenarioRequest
	}
	if cfg.DoneStream == "" {
		cfg.DoneStream = domain.StreamScenarioDone
	}

	return &ScenarioWorker{
		BaseWorker:   worker.NewBaseWorker("scenario-planning", cfg.ConsumerGroup, logger),
		streamRepo:   streamRepo,
		handler:      handler,
		cfg:          cfg,
		consumerName: consumerName,
	}
}

// Start запускает воркер
func (w *ScenarioWorker) Start(ctx context.Context) error {
	logger := w.Logger()
	logger.Info("Starting ScenarioWorker",
		zap.String("stream", w.cfg.RequestStream),
		zap.String("consumer_group", w.ConsumerGroup()),
		zap.String("consumer_name", w.consumerName),
		zap.Int64("max_batch_size", w.cfg.BatchSize))

	if err := w.streamRepo.CreateConsumerGroup(ctx, w.cfg.RequestStream, w.ConsumerGroup()); err != nil {
		logger.Error("Failed to create consumer group", zap.Error(err))
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	for {
		select {
		case <-w.StopChan():
			logger.Info("Worker stopped")
			return nil

		case <-ctx.Done():
			logger.Info("Context cancelled")
			return ctx.Err()

		default:
			processed, err := w.processBatch(ctx)
			if err != nil {
				logger.Error("Failed to process batch", zap.Error(err))
				w.Sleep(ctx, errorBackoff)
				continue
			}

			if processed == 0 {
				w.Sleep(ctx, w.cfg.PollInterval)
			}
		}
	}
}

// processBatch читает и обрабатывает batch сообщений.
// Возвращает количество прочитанных сообщений.
func (w *ScenarioWorker) processBatch(ctx context.Context) (int, error) {
	logger := w.Logger()

	messages, err := w.streamRepo.ConsumeBatch(
		ctx,
		w.cfg.RequestStream,
		w.ConsumerGroup(),
		w.consumerName,
		w.cfg.BatchSize,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to consume batch: %w", err)
	}

	if len(messages) == 0 {
		return 0, nil
	}

	logger.Info("Processing batch", zap.Int("message_count", len(messages)))

	messageIDs := make([]string, 0, len(messages))
	failed := 0
	for _, msg := range messages {
		event, err := parseMessage(msg)
		if err != nil {
			logger.Warn("Failed to parse message, skipping",
				zap.String("message_id", msg.ID),
				zap.Error(err))
			// ACK битое сообщение чтобы не застревало
			_ = w.streamRepo.AckMessage(ctx, w.cfg.RequestStream, w.ConsumerGroup(), msg.ID)
			continue
		}

		done := w.handle(ctx, event)
		if done.Error != "" {
			failed++
		}
		w.publish(ctx, done)
		messageIDs = append(messageIDs, msg.ID)

		if ctx.Err() != nil {
			break
		}
	}

	if err := w.streamRepo.AckMessages(ctx, w.cfg.RequestStream, w.ConsumerGroup(), messageIDs); err != nil {
		logger.Error("Failed to ack messages", zap.Error(err))
		// Не критично - сообщения будут переобработаны
	}

	logger.Info("Batch processed",
		zap.Int("processed", len(messageIDs)),
		zap.Int("failed", failed))

	return len(messages), nil
}

// handle проверяет запрос и передаёт его обработчику
func (w *ScenarioWorker) handle(ctx context.Context, event *domain.ScenarioRequestEvent) *domain.ScenarioDoneEvent {
	if err := validator.Validate(event); err != nil {
		appErr := errors.ErrInvalidRequest.Withf("%s", validator.Describe(err))
		w.Logger().Warn("Invalid scenario request",
			zap.String("request_id", event.RequestID.String()),
			zap.Error(appErr))
		return &domain.ScenarioDoneEvent{
			RequestID: event.RequestID,
			Region:    event.Region,
			Error:     appErr.Error(),
			ErrorCode: appErr.Code,
		}
	}

	start := time.Now()
	done := w.handler.HandleRequest(ctx, event)

	w.Logger().Info("Scenario request handled",
		zap.String("request_id", event.RequestID.String()),
		zap.String("region", event.Region),
		zap.Bool("success", done.Error == ""),
		zap.Duration("duration", time.Since(start)))
	return done
}

// publish отправляет результат, повторяя до MaxRetries раз
func (w *ScenarioWorker) publish(ctx context.Context, done *domain.ScenarioDoneEvent) {
	var err error
	for attempt := 1; attempt <= w.cfg.MaxRetries; attempt++ {
		if err = w.streamRepo.PublishToStream(ctx, w.cfg.DoneStream, done); err == nil {
			return
		}
		w.Logger().Warn("Failed to publish done event",
			zap.String("request_id", done.RequestID.String()),
			zap.Int("attempt", attempt),
			zap.Error(err))
	}
	w.Logger().Error("Giving up publishing done event",
		zap.String("request_id", done.RequestID.String()),
		zap.Error(err))
}

// parseMessage парсит сообщение из стрима в ScenarioRequestEvent
func parseMessage(msg domain.StreamMessage) (*domain.ScenarioRequestEvent, error) {
	if msg.Data == "" {
		return nil, fmt.Errorf("missing or invalid 'data' field")
	}

	var event domain.ScenarioRequestEvent
	if err := json.Unmarshal([]byte(msg.Data), &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}

	return &event, nil
}
