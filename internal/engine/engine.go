// Package engine wires the scoring, policy, rules and ledger stages into
// the verification decision pipeline.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/opensource-identity/kestrel/internal/domain"
	"github.com/opensource-identity/kestrel/internal/ledger"
	"github.com/opensource-identity/kestrel/internal/policy"
	"github.com/opensource-identity/kestrel/internal/repository"
	"github.com/opensource-identity/kestrel/internal/rules"
	"github.com/opensource-identity/kestrel/internal/scoring"
)

const engineVersion = "kestrel-1.0"

// baselineHistoryLimit bounds how many prior behavioral samples feed one
// evaluation.
const baselineHistoryLimit = 20

// decisionCacheTTL is how long finished decisions stay cached for replay.
const decisionCacheTTL = 24 * time.Hour

// velocityWarnThreshold is the daily per-user submission count above which
// the engine logs a velocity warning.
const velocityWarnThreshold = 10

var (
	// ErrInvalidInput marks a request the engine refuses to score.
	ErrInvalidInput = errors.New("invalid evaluation input")

	// ErrLedgerWrite marks a decision that could not be sealed into the
	// audit ledger. The decision is not returned: every rendered decision
	// must be audited.
	ErrLedgerWrite = errors.New("audit ledger write failed")
)

// Engine runs verification attempts through scoring, policy and audit.
type Engine struct {
	repo      domain.Repository
	cache     domain.Cache
	bus       domain.EventBus
	ledger    *ledger.Ledger
	rules     *rules.Engine
	baselines domain.BaselineStore
	logger    *slog.Logger

	// now is swappable for deterministic tests.
	now func() time.Time
}

// Config carries the engine's collaborators.
type Config struct {
	Repository domain.Repository
	Cache      domain.Cache
	Bus        domain.EventBus
	Ledger     *ledger.Ledger
	Rules      *rules.Engine
	Baselines  domain.BaselineStore
	Logger     *slog.Logger
}

// New creates a decision engine.
func New(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		repo:      cfg.Repository,
		cache:     cfg.Cache,
		bus:       cfg.Bus,
		ledger:    cfg.Ledger,
		rules:     cfg.Rules,
		baselines: cfg.Baselines,
		logger:    logger,
		now:       time.Now,
	}
}

// EvaluateRequest is one verification attempt.
type EvaluateRequest struct {
	VerificationID string              `json:"verificationId"`
	TenantID       string              `json:"tenantId"`
	UserID         string              `json:"userId"`
	Industry       domain.Industry     `json:"industry"`
	Factors        *domain.RiskFactors `json:"factors"`
	TraceID        string              `json:"traceId,omitempty"`
}

// EvaluateResult bundles the decision with everything it produced.
type EvaluateResult struct {
	Decision    *domain.Decision            `json:"decision"`
	Alerts      []*domain.FraudAlert        `json:"alerts,omitempty"`
	AuditRecord *domain.AuditRecord         `json:"auditRecord,omitempty"`
	Synthetic   scoring.SyntheticAssessment `json:"synthetic"`
}

// Evaluate scores a verification attempt and renders a decision.
//
// The pipeline is: validate, replay check, score signals, adapt weights,
// aggregate, apply tenant policy, emit alerts, seal into the audit
// ledger, persist, publish. Replayed verification IDs return the original
// decision without scoring or a second ledger entry.
func (e *Engine) Evaluate(ctx context.Context, req *EvaluateRequest) (*EvaluateResult, error) {
	start := e.now()

	if err := validate(req); err != nil {
		return nil, err
	}

	// Idempotent replay: a verification ID is decided at most once.
	if replay, err := e.findExisting(ctx, req); err != nil {
		return nil, err
	} else if replay != nil {
		e.logger.Info("decision replayed",
			"tenant_id", req.TenantID,
			"verification_id", req.VerificationID,
			"outcome", replay.Outcome,
		)
		replayed := *replay
		replayed.Metadata.Replayed = true
		return &EvaluateResult{Decision: &replayed}, nil
	}

	tenantPolicy, err := e.resolvePolicy(ctx, req.TenantID, req.Industry)
	if err != nil {
		return nil, err
	}

	// Scoring stage.
	baseline, err := e.baselines.History(ctx, req.TenantID, req.UserID, baselineHistoryLimit)
	if err != nil {
		e.logger.Warn("baseline history unavailable, scoring without it",
			"tenant_id", req.TenantID,
			"user_id", req.UserID,
			"error", err,
		)
		baseline = nil
	}

	now := e.now()
	scores := scoring.ScoreAll(req.Factors, baseline, now)
	weights := scoring.AdaptiveWeights(req.Factors)
	result := scoring.Aggregate(req.Factors, scores, weights)
	synthetic := scoring.ScoreSynthetic(req.Factors.Document, req.Factors.Synthetic, now)
	scoringMs := e.now().Sub(start).Milliseconds()

	// Policy stage.
	decisionStart := e.now()
	outcome := policy.Decide(result.TrustScore, tenantPolicy)
	missing := policy.MissingRequiredChecks(req.Factors, tenantPolicy)
	outcome = policy.ApplyGating(outcome, missing)

	alerts := policy.EmitAlerts(policy.AlertInput{
		TenantID:       req.TenantID,
		UserID:         req.UserID,
		VerificationID: req.VerificationID,
		Factors:        req.Factors,
		Scores:         scores,
		Synthetic:      synthetic,
		Timestamp:      now,
	}, tenantPolicy)
	alerts = append(alerts, e.customAlerts(req, tenantPolicy, result, scores, synthetic, now)...)
	decisionMs := e.now().Sub(decisionStart).Milliseconds()

	decision := &domain.Decision{
		VerificationID: req.VerificationID,
		TenantID:       req.TenantID,
		UserID:         req.UserID,
		Outcome:        outcome,
		RiskScore:      result,
		PolicyIndustry: tenantPolicy.Industry,
		Timestamp:      now,
		Metadata: domain.DecisionMetadata{
			TraceID:       req.TraceID,
			ScoringMs:     scoringMs,
			DecisionMs:    decisionMs,
			TotalMs:       e.now().Sub(start).Milliseconds(),
			SignalsScored: len(scores),
			EngineVersion: engineVersion,
		},
	}

	// Audit stage. A decision that cannot be sealed is not returned.
	record, err := e.ledger.Append(ctx, ledger.Entry{
		TenantID:       req.TenantID,
		UserID:         req.UserID,
		VerificationID: req.VerificationID,
		Outcome:        outcome,
		TrustScore:     result.TrustScore,
		RiskTier:       result.RiskTier,
		AlertCount:     len(alerts),
		Timestamp:      now,
	})
	if err != nil {
		e.logger.Error("audit ledger append failed",
			"tenant_id", req.TenantID,
			"verification_id", req.VerificationID,
			"error", err,
		)
		return nil, fmt.Errorf("%w: %v", ErrLedgerWrite, err)
	}

	if err := e.repo.SaveDecision(ctx, req.TenantID, decision); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			// Lost a race with a concurrent evaluation of the same ID;
			// the stored decision wins.
			return e.replayStored(ctx, req)
		}
		return nil, fmt.Errorf("failed to persist decision: %w", err)
	}

	e.finish(ctx, req, decision, alerts, record)

	return &EvaluateResult{
		Decision:    decision,
		Alerts:      alerts,
		AuditRecord: record,
		Synthetic:   synthetic,
	}, nil
}

// GetDecision returns a previously rendered decision.
func (e *Engine) GetDecision(ctx context.Context, tenantID, verificationID string) (*domain.Decision, error) {
	if decision, err := e.cache.GetDecision(ctx, tenantID, verificationID); err == nil && decision != nil {
		return decision, nil
	}
	return e.repo.GetDecision(ctx, tenantID, verificationID)
}

// VerifyAudit walks a user's audit chain and reports its integrity.
func (e *Engine) VerifyAudit(ctx context.Context, tenantID, userID string) (*domain.IntegrityReport, error) {
	return e.ledger.VerifyChainIntegrity(ctx, tenantID, userID)
}

// ReloadRules replaces the custom alert rules from storage.
func (e *Engine) ReloadRules(ctx context.Context, tenantID string) (int, error) {
	configs, err := e.repo.ListAlertRules(ctx, tenantID)
	if err != nil {
		return 0, fmt.Errorf("failed to load alert rules: %w", err)
	}
	if err := e.rules.ReloadRules(configs); err != nil {
		return 0, err
	}
	return e.rules.RulesCount(), nil
}

func validate(req *EvaluateRequest) error {
	if req == nil {
		return fmt.Errorf("%w: request is required", ErrInvalidInput)
	}
	if req.VerificationID == "" {
		return fmt.Errorf("%w: verificationId is required", ErrInvalidInput)
	}
	if req.TenantID == "" {
		return fmt.Errorf("%w: tenantId is required", ErrInvalidInput)
	}
	if req.UserID == "" {
		return fmt.Errorf("%w: userId is required", ErrInvalidInput)
	}
	if req.Factors == nil {
		return fmt.Errorf("%w: factors are required", ErrInvalidInput)
	}
	if req.Factors.Document == nil {
		return fmt.Errorf("%w: document analysis is required", ErrInvalidInput)
	}
	if req.Factors.Face == nil {
		return fmt.Errorf("%w: face analysis is required", ErrInvalidInput)
	}
	return nil
}

// findExisting checks cache then storage for an already-rendered decision.
func (e *Engine) findExisting(ctx context.Context, req *EvaluateRequest) (*domain.Decision, error) {
	if decision, err := e.cache.GetDecision(ctx, req.TenantID, req.VerificationID); err == nil && decision != nil {
		return decision, nil
	}

	decision, err := e.repo.GetDecision(ctx, req.TenantID, req.VerificationID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check for existing decision: %w", err)
	}
	return decision, nil
}

func (e *Engine) replayStored(ctx context.Context, req *EvaluateRequest) (*EvaluateResult, error) {
	decision, err := e.repo.GetDecision(ctx, req.TenantID, req.VerificationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load winning decision: %w", err)
	}
	decision.Metadata.Replayed = true
	return &EvaluateResult{Decision: decision}, nil
}

// resolvePolicy prefers a stored tenant override, falling back to the
// built-in industry preset.
func (e *Engine) resolvePolicy(ctx context.Context, tenantID string, industry domain.Industry) (*domain.IndustryPolicy, error) {
	stored, err := e.repo.GetPolicy(ctx, tenantID, industry)
	if err == nil {
		return stored, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to load tenant policy: %w", err)
	}

	preset, err := policy.PresetFor(industry)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown industry %q", ErrInvalidInput, industry)
	}
	return preset, nil
}

// customAlerts evaluates the tenant's CEL rules over the finished
// aggregation. Rule failures are logged, never fatal.
func (e *Engine) customAlerts(req *EvaluateRequest, tenantPolicy *domain.IndustryPolicy, result domain.RiskScoreResult, scores scoring.Scores, synthetic scoring.SyntheticAssessment, now time.Time) []*domain.FraudAlert {
	if e.rules == nil || e.rules.RulesCount() == 0 {
		return nil
	}

	triggered, errs := e.rules.Evaluate(&rules.EvaluateInput{
		TrustScore: result.TrustScore,
		RiskTier:   result.RiskTier,
		Factors:    req.Factors,
		Scores:     scores,
		Synthetic:  synthetic,
	})
	for _, err := range errs {
		e.logger.Warn("alert rule evaluation failed",
			"tenant_id", req.TenantID,
			"verification_id", req.VerificationID,
			"error", err,
		)
	}

	var alerts []*domain.FraudAlert
	for _, cfg := range triggered {
		if !tenantPolicy.AllowsSeverity(cfg.Severity) {
			continue
		}
		alerts = append(alerts, &domain.FraudAlert{
			AlertID:        uuid.New().String(),
			TenantID:       req.TenantID,
			UserID:         req.UserID,
			VerificationID: req.VerificationID,
			Severity:       cfg.Severity,
			Category:       cfg.Category,
			AlertType:      cfg.AlertType,
			Indicators:     []string{cfg.Name},
			RequiresAction: cfg.Severity == domain.SeverityHigh || cfg.Severity == domain.SeverityCritical,
			Timestamp:      now,
		})
	}
	return alerts
}

// finish runs the best-effort tail of the pipeline: alert persistence,
// replay cache, event publication, baseline growth. Failures here are
// logged but do not undo the decision.
func (e *Engine) finish(ctx context.Context, req *EvaluateRequest, decision *domain.Decision, alerts []*domain.FraudAlert, record *domain.AuditRecord) {
	for _, alert := range alerts {
		if err := e.repo.SaveFraudAlert(ctx, req.TenantID, alert); err != nil {
			e.logger.Error("failed to persist fraud alert",
				"tenant_id", req.TenantID,
				"alert_id", alert.AlertID,
				"error", err,
			)
		}
	}

	if err := e.cache.SetDecision(ctx, req.TenantID, req.VerificationID, decision, decisionCacheTTL); err != nil {
		e.logger.Warn("failed to cache decision",
			"tenant_id", req.TenantID,
			"verification_id", req.VerificationID,
			"error", err,
		)
	}

	if req.Factors.Behavioral != nil {
		if err := e.baselines.Append(ctx, req.TenantID, req.UserID, req.Factors.Behavioral); err != nil {
			e.logger.Warn("failed to append behavioral baseline",
				"tenant_id", req.TenantID,
				"user_id", req.UserID,
				"error", err,
			)
		}
	}

	// Per-user submission velocity over a rolling day. Retry storms and
	// credential-stuffing runs show up here before they show up anywhere else.
	if count, err := e.cache.IncrementCounter(ctx, req.TenantID, "verifications:"+req.UserID, 24*time.Hour); err == nil && count > velocityWarnThreshold {
		e.logger.Warn("high verification velocity",
			"tenant_id", req.TenantID,
			"user_id", req.UserID,
			"count_24h", count,
		)
	}

	e.publish(ctx, req.TenantID, domain.TopicDecision, decision)
	for _, alert := range alerts {
		e.publish(ctx, req.TenantID, domain.TopicAlert, alert)
	}
	e.publish(ctx, req.TenantID, domain.TopicAuditAppended, record)
}

func (e *Engine) publish(ctx context.Context, tenantID, topic string, payload any) {
	if e.bus == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if err := e.bus.Publish(ctx, tenantID, topic, data); err != nil {
		e.logger.Warn("failed to publish event",
			"tenant_id", tenantID,
			"topic", topic,
			"error", err,
		)
	}
}
