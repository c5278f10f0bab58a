// Package worker provides async verification processing for the Pro tier.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/opensource-identity/kestrel/internal/domain"
	"github.com/opensource-identity/kestrel/internal/engine"
)

// Worker consumes submitted verifications from the EventBus and runs them
// through the decision engine.
type Worker struct {
	bus    domain.EventBus
	engine *engine.Engine

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// TenantIDs is the list of tenants to process (empty = global worker)
	TenantIDs []string
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, eng *engine.Engine) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:    bus,
		engine: eng,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start begins processing submissions for the given tenants.
func (w *Worker) Start(cfg Config) error {
	if len(cfg.TenantIDs) == 0 {
		return w.startGlobalWorker()
	}

	for _, tenantID := range cfg.TenantIDs {
		if err := w.startTenantWorker(tenantID); err != nil {
			slog.Error("failed to start worker for tenant",
				"tenant_id", tenantID,
				"error", err,
			)
			continue
		}
	}

	slog.Info("workers started",
		"tenant_count", len(cfg.TenantIDs),
	)

	return nil
}

// startGlobalWorker starts a worker that processes all tenants (for testing/dev).
func (w *Worker) startGlobalWorker() error {
	sub, err := w.bus.Subscribe(w.ctx, "_global", domain.TopicVerificationSubmitted, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("global worker started")
	return nil
}

// startTenantWorker starts a worker for a specific tenant.
func (w *Worker) startTenantWorker(tenantID string) error {
	sub, err := w.bus.Subscribe(w.ctx, tenantID, domain.TopicVerificationSubmitted, func(ctx context.Context, msg *domain.Message) error {
		return w.processVerification(ctx, tenantID, msg)
	})
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("tenant worker started",
		"tenant_id", tenantID,
		"topic", domain.TopicVerificationSubmitted,
	)

	return nil
}

// handleMessage handles messages from the global subscription.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	return w.processVerification(ctx, msg.TenantID, msg)
}

// processVerification runs one submitted verification through the engine.
// The engine itself persists, audits and publishes; the worker only feeds
// it and reports failures back to the bus layer.
func (w *Worker) processVerification(ctx context.Context, tenantID string, msg *domain.Message) error {
	start := time.Now()

	var req engine.EvaluateRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		slog.Error("failed to parse verification message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	if req.TenantID == "" {
		req.TenantID = tenantID
	}
	if req.TraceID == "" {
		req.TraceID = msg.ID
	}

	slog.Debug("processing verification",
		"verification_id", req.VerificationID,
		"tenant_id", req.TenantID,
		"trace_id", req.TraceID,
	)

	result, err := w.engine.Evaluate(ctx, &req)
	if err != nil {
		// Malformed submissions are dropped, not retried.
		if errors.Is(err, engine.ErrInvalidInput) {
			slog.Warn("dropping invalid verification",
				"message_id", msg.ID,
				"verification_id", req.VerificationID,
				"error", err,
			)
			return nil
		}
		slog.Error("verification evaluation failed",
			"verification_id", req.VerificationID,
			"tenant_id", req.TenantID,
			"error", err,
		)
		return err
	}

	slog.Info("verification processed",
		"verification_id", req.VerificationID,
		"tenant_id", req.TenantID,
		"outcome", result.Decision.Outcome,
		"trust_score", result.Decision.RiskScore.TrustScore,
		"alert_count", len(result.Alerts),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// Stop gracefully stops all workers.
func (w *Worker) Stop() error {
	w.cancel()

	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("workers stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
