package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/opensource-identity/kestrel/internal/domain"
	"github.com/opensource-identity/kestrel/internal/engine"
	"github.com/opensource-identity/kestrel/internal/policy"
	"github.com/opensource-identity/kestrel/internal/repository"
	"github.com/opensource-identity/kestrel/internal/rules"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	engine  *engine.Engine
	repo    domain.Repository
	cache   domain.Cache
	bus     domain.EventBus
	rules   *rules.Engine
	version string
}

// NewHandler creates a new API handler.
func NewHandler(eng *engine.Engine, repo domain.Repository, cache domain.Cache, bus domain.EventBus, ruleEngine *rules.Engine, version string) *Handler {
	return &Handler{
		engine:  eng,
		repo:    repo,
		cache:   cache,
		bus:     bus,
		rules:   ruleEngine,
		version: version,
	}
}

// EvaluateRequest is the request body for POST /evaluate.
type EvaluateRequest struct {
	VerificationID string              `json:"verificationId"`
	UserID         string              `json:"userId"`
	Industry       domain.Industry     `json:"industry"`
	Factors        *domain.RiskFactors `json:"factors"`
}

// Evaluate handles POST /evaluate requests.
func (h *Handler) Evaluate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	traceID := GetTraceID(ctx)

	var req EvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	result, err := h.engine.Evaluate(ctx, &engine.EvaluateRequest{
		VerificationID: req.VerificationID,
		TenantID:       tenantID,
		UserID:         req.UserID,
		Industry:       req.Industry,
		Factors:        req.Factors,
		TraceID:        traceID,
	})
	if err != nil {
		if errors.Is(err, engine.ErrInvalidInput) {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": err.Error(),
			})
			return
		}
		slog.Error("evaluation failed",
			"verification_id", req.VerificationID,
			"tenant_id", tenantID,
			"error", err,
		)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "evaluation failed",
		})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// GetDecision retrieves a decision by verification ID.
func (h *Handler) GetDecision(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	verificationID := chi.URLParam(r, "id")

	if verificationID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "verification id is required",
		})
		return
	}

	decision, err := h.engine.GetDecision(ctx, tenantID, verificationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "decision not found",
			})
			return
		}
		slog.Error("failed to get decision", "id", verificationID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load decision",
		})
		return
	}

	writeJSON(w, http.StatusOK, decision)
}

// ListUserDecisions returns a user's decisions since an optional RFC 3339
// timestamp (default: last 30 days).
func (h *Handler) ListUserDecisions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	userID := chi.URLParam(r, "userId")

	since := time.Now().AddDate(0, 0, -30)
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "since must be an RFC 3339 timestamp",
			})
			return
		}
		since = parsed
	}

	decisions, err := h.repo.ListDecisionsByUser(ctx, tenantID, userID, since)
	if err != nil {
		slog.Error("failed to list decisions", "user_id", userID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list decisions",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"decisions": decisions,
		"count":     len(decisions),
	})
}

// ListAlerts returns fraud alerts, optionally filtered by user and severity.
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	userID := r.URL.Query().Get("userId")
	severity := domain.Severity(r.URL.Query().Get("severity"))

	alerts, err := h.repo.ListFraudAlerts(ctx, tenantID, userID, severity)
	if err != nil {
		slog.Error("failed to list alerts", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list alerts",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

// ListAuditRecords returns a user's audit chain in append order.
func (h *Handler) ListAuditRecords(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	userID := chi.URLParam(r, "userId")

	records, err := h.repo.ListAuditRecords(ctx, tenantID, userID)
	if err != nil {
		slog.Error("failed to list audit records", "user_id", userID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list audit records",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"records": records,
		"count":   len(records),
	})
}

// VerifyAuditChain walks a user's audit chain and reports its integrity.
func (h *Handler) VerifyAuditChain(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	userID := chi.URLParam(r, "userId")

	report, err := h.engine.VerifyAudit(ctx, tenantID, userID)
	if err != nil {
		slog.Error("audit verification failed", "user_id", userID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "audit verification failed",
		})
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// ListPolicies returns the tenant's stored policy overrides.
func (h *Handler) ListPolicies(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	policies, err := h.repo.ListPolicies(ctx, tenantID)
	if err != nil {
		slog.Error("failed to list policies", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list policies",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"policies":   policies,
		"count":      len(policies),
		"industries": policy.Industries(),
	})
}

// GetPolicy returns the effective policy for an industry: the tenant's
// stored override when present, else the built-in preset.
func (h *Handler) GetPolicy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	industry := domain.Industry(chi.URLParam(r, "industry"))

	stored, err := h.repo.GetPolicy(ctx, tenantID, industry)
	if err == nil {
		writeJSON(w, http.StatusOK, stored)
		return
	}
	if !errors.Is(err, repository.ErrNotFound) {
		slog.Error("failed to get policy", "industry", industry, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load policy",
		})
		return
	}

	preset, err := policy.PresetFor(industry)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "unknown industry",
		})
		return
	}
	writeJSON(w, http.StatusOK, preset)
}

// PutPolicy stores a tenant policy override for an industry.
func (h *Handler) PutPolicy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	industry := domain.Industry(chi.URLParam(r, "industry"))

	var p domain.IndustryPolicy
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	p.Industry = industry
	p.TenantID = tenantID
	if err := p.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	if err := h.repo.SavePolicy(ctx, tenantID, &p); err != nil {
		slog.Error("failed to save policy", "industry", industry, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save policy",
		})
		return
	}

	slog.Info("policy updated", "tenant_id", tenantID, "industry", industry)
	writeJSON(w, http.StatusOK, &p)
}

// ListRules returns all loaded alert rules from the engine.
// Rules are loaded from the database at startup and can be reloaded via
// POST /rules/reload.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	loadedRules := h.rules.GetLoadedRules()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules":  loadedRules,
		"count":  len(loadedRules),
		"source": "database",
	})
}

// GetRule retrieves a rule by ID from the loaded engine rules.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "id")

	if ruleID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "rule id is required",
		})
		return
	}

	for _, rule := range h.rules.GetLoadedRules() {
		if rule.ID == ruleID {
			writeJSON(w, http.StatusOK, rule)
			return
		}
	}

	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "rule not found",
	})
}

// CreateRuleRequest is the request body for creating an alert rule.
type CreateRuleRequest struct {
	ID          string                `json:"id"`
	Name        string                `json:"name"`
	Description string                `json:"description,omitempty"`
	Expression  string                `json:"expression"`
	Severity    domain.Severity       `json:"severity"`
	Category    domain.SignalCategory `json:"category"`
	AlertType   string                `json:"alertType"`
	Enabled     bool                  `json:"enabled"`
}

// CreateRule creates a new alert rule and saves it to the database.
// After saving, call POST /rules/reload to hot-reload into the engine.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var req CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.ID == "" || req.Name == "" || req.Expression == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id, name, and expression are required",
		})
		return
	}

	ruleConfig := &domain.AlertRuleConfig{
		ID:          req.ID,
		TenantID:    tenantID,
		Name:        req.Name,
		Description: req.Description,
		Version:     "1.0.0",
		Expression:  req.Expression,
		Severity:    req.Severity,
		Category:    req.Category,
		AlertType:   req.AlertType,
		Enabled:     req.Enabled,
	}

	// Compile check before persisting
	if err := h.rules.ValidateRule(ruleConfig); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid CEL expression: " + err.Error(),
		})
		return
	}

	if err := h.repo.SaveAlertRule(ctx, tenantID, ruleConfig); err != nil {
		slog.Error("failed to save alert rule", "id", ruleConfig.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save rule",
		})
		return
	}

	slog.Info("alert rule created", "id", ruleConfig.ID, "name", ruleConfig.Name)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"rule":    ruleConfig,
		"message": "Rule created. Call POST /rules/reload to apply changes.",
	})
}

// ReloadRules reloads all alert rules from the database into the engine.
// This enables hot-reloading without server restart.
func (h *Handler) ReloadRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	count, err := h.engine.ReloadRules(ctx, tenantID)
	if err != nil {
		slog.Error("failed to reload rules", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload rules: " + err.Error(),
		})
		return
	}

	slog.Info("rules reloaded from database", "count", count)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "rules reloaded successfully",
		"count":   count,
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
