package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultShutdownTimeout - сколько ждать завершения текущих расчётов
const DefaultShutdownTimeout = 30 * time.Second

// WorkerManager запускает воркеры и останавливает их вместе
type WorkerManager struct {
	workers         []Worker
	logger          *zap.Logger
	shutdownTimeout time.Duration

	wg   sync.WaitGroup
	mu   sync.Mutex
	errs []error
}

func NewWorkerManager(logger *zap.Logger) *WorkerManager {
	return &WorkerManager{
		logger:          logger,
		shutdownTimeout: DefaultShutdownTimeout,
	}
}

// SetShutdownTimeout меняет время ожидания в Stop; d <= 0 игнорируется
func (m *WorkerManager) SetShutdownTimeout(d time.Duration) {
	if d > 0 {
		m.shutdownTimeout = d
	}
}

func (m *WorkerManager) Register(w Worker) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.workers = append(m.workers, w)
	m.logger.Info("Worker registered", zap.String("name", w.Name()))
}

func (m *WorkerManager) snapshot() []Worker {
	m.mu.Lock()
	defer m.mu.Unlock()
	workers := make([]Worker, len(m.workers))
	copy(workers, m.workers)
	return workers
}

// Start запускает каждый воркер в своей горутине и сразу возвращается
func (m *WorkerManager) Start(ctx context.Context) error {
	workers := m.snapshot()
	if len(workers) == 0 {
		return fmt.Errorf("no workers registered")
	}

	m.logger.Info("Starting workers", zap.Int("count", len(workers)))

	for _, w := range workers {
		w := w
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()

			m.logger.Info("Starting worker", zap.String("name", w.Name()))
			err := w.Start(ctx)
			if err == nil || errors.Is(err, context.Canceled) {
				return
			}
			m.logger.Error("Worker failed", zap.String("name", w.Name()), zap.Error(err))

			m.mu.Lock()
			m.errs = append(m.errs, fmt.Errorf("%s: %w", w.Name(), err))
			m.mu.Unlock()
		}()
	}

	return nil
}

// Stop останавливает воркеры и ждёт их не дольше shutdownTimeout
func (m *WorkerManager) Stop() error {
	workers := m.snapshot()
	m.logger.Info("Stopping workers", zap.Int("count", len(workers)))

	for _, w := range workers {
		if err := w.Stop(); err != nil {
			m.logger.Error("Failed to stop worker", zap.String("name", w.Name()), zap.Error(err))
		}
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("All workers stopped gracefully")
	case <-time.After(m.shutdownTimeout):
		m.logger.Warn("Workers shutdown timed out, running scenarios were interrupted",
			zap.Duration("timeout", m.shutdownTimeout))
		return fmt.Errorf("workers shutdown timed out after %v", m.shutdownTimeout)
	}

	return m.Err()
}

// Err - ошибки, с которыми воркеры завершились (кроме отмены контекста)
func (m *WorkerManager) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return errors.Join(m.errs...)
}
