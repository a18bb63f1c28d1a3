package workflow

import (
	"context"
	"errors"
	"time"

	"mixcraft/internal/jobs"
	"mixcraft/internal/logging"
	"mixcraft/internal/services"
)

const dispatchAttempts = 3

// Start re-queues unacknowledged results from a previous run and begins
// consuming results in the background.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	if m.queue == nil {
		m.mu.Unlock()
		return errors.New("workflow queue not configured")
	}

	recovered, err := m.queue.Recover(ctx)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	if recovered > 0 {
		m.logger.Info("re-queued unacknowledged results",
			logging.Int("count", recovered),
			logging.String(logging.FieldEventType, "results_recovered"),
		)
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(1)
	m.mu.Unlock()

	go m.run(runCtx)
	return nil
}

// Stop terminates background processing and waits for completion.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

func (m *Manager) run(ctx context.Context) {
	defer m.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		delivery, err := m.queue.Next(ctx, m.blockTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			m.handleNextError(ctx, err)
			continue
		}
		if delivery == nil {
			continue
		}
		m.process(ctx, delivery)
	}
}

// process dispatches one delivery, retrying failures that may clear up, and
// acknowledges it afterwards whatever the outcome. A result that cannot be
// applied after the retries is logged and dropped; it would fail the same
// way on redelivery.
func (m *Manager) process(ctx context.Context, delivery *jobs.Delivery) {
	result := delivery.Result
	var err error
	for attempt := 1; attempt <= dispatchAttempts; attempt++ {
		err = m.Dispatch(ctx, result)
		if err == nil || permanent(err) || attempt == dispatchAttempts {
			break
		}
		m.logger.Warn("result dispatch failed; retrying",
			logging.Error(err),
			logging.Int("attempt", attempt),
			logging.String(logging.FieldJobType, string(result.Type)),
			logging.String(logging.FieldEventType, "dispatch_retry"),
			logging.String(logging.FieldErrorHint, "check database access"),
			logging.String(logging.FieldImpact, "result will be retried"),
		)
		select {
		case <-ctx.Done():
			// Leave the delivery unacknowledged; the next start re-queues it.
			return
		case <-time.After(m.retryDelay):
		}
	}

	m.recordResult(result, err)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		logging.ErrorWithContext(m.logger, "result dropped", "dispatch_failed",
			logging.Error(err),
			logging.String(logging.FieldJobType, string(result.Type)),
			logging.String(logging.FieldEntityKind, string(result.EntityKind)),
			logging.String("entity_id", result.EntityID),
			logging.String("error_kind", services.Kind(err)),
			logging.String(logging.FieldErrorHint, "inspect the worker result payload"),
			logging.Alert("result_dropped"),
		)
	}
	if ackErr := m.queue.Ack(context.WithoutCancel(ctx), delivery); ackErr != nil {
		m.logger.Warn("result acknowledgement failed; result may be redelivered",
			logging.Error(ackErr),
			logging.String(logging.FieldEventType, "ack_failed"),
			logging.String(logging.FieldErrorHint, "check redis connectivity"),
			logging.String(logging.FieldImpact, "result may be applied twice"),
		)
	}
}

func permanent(err error) bool {
	return errors.Is(err, services.ErrValidation) ||
		errors.Is(err, services.ErrNotFound) ||
		errors.Is(err, services.ErrConflict)
}

func (m *Manager) handleNextError(ctx context.Context, err error) {
	m.setLastError(err)
	m.logger.Error("failed to fetch next result",
		logging.Error(err),
		logging.String(logging.FieldEventType, "result_fetch_failed"),
		logging.String(logging.FieldErrorHint, "check queue backend connectivity"),
	)
	if errors.Is(err, services.ErrValidation) {
		// Malformed entries are already removed; move straight on.
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(m.retryDelay):
	}
}
