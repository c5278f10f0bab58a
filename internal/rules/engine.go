// Package rules provides the CEL-Go based custom alert rule engine.
// Tenants express extra fraud conditions over the score breakdown of a
// finished aggregation; each triggered rule raises an additional alert.
package rules

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/opensource-identity/kestrel/internal/domain"
	"github.com/opensource-identity/kestrel/internal/scoring"
)

// Engine compiles and evaluates tenant alert rules.
type Engine struct {
	mu            sync.RWMutex
	env           *cel.Env
	compiledRules map[string]*CompiledRule
}

// CompiledRule holds a pre-compiled CEL program.
type CompiledRule struct {
	Config  *domain.AlertRuleConfig
	Program cel.Program
}

// NewEngine creates a new alert rule engine.
func NewEngine() (*Engine, error) {
	// CEL environment over the aggregation breakdown
	env, err := cel.NewEnv(
		cel.Variable("trust_score", cel.IntType),
		cel.Variable("risk_tier", cel.StringType),
		cel.Variable("document_score", cel.DoubleType),
		cel.Variable("biometric_score", cel.DoubleType),
		cel.Variable("behavioral_score", cel.DoubleType),
		cel.Variable("historical_score", cel.DoubleType),
		cel.Variable("synthetic_risk", cel.DoubleType),
		cel.Variable("liveness", cel.DoubleType),
		cel.Variable("ocr_confidence", cel.DoubleType),
		cel.Variable("flags", cel.ListType(cel.StringType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:           env,
		compiledRules: make(map[string]*CompiledRule),
	}, nil
}

// ValidateRule compiles a rule without loading it.
func (e *Engine) ValidateRule(cfg *domain.AlertRuleConfig) error {
	if cfg == nil {
		return fmt.Errorf("rule config is required")
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	_, err := e.compileRule(cfg)
	return err
}

// LoadRule compiles and loads a rule into the engine.
func (e *Engine) LoadRule(cfg *domain.AlertRuleConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	compiled, err := e.compileRule(cfg)
	if err != nil {
		return err
	}

	e.compiledRules[cfg.ID] = compiled
	return nil
}

// LoadRules compiles and loads multiple rules.
func (e *Engine) LoadRules(configs []*domain.AlertRuleConfig) error {
	for _, cfg := range configs {
		if cfg.Enabled {
			if err := e.LoadRule(cfg); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReloadRules clears all existing rules and loads new ones.
// This enables hot-reloading of rules from the database.
func (e *Engine) ReloadRules(configs []*domain.AlertRuleConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	newRules := make(map[string]*CompiledRule)
	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}
		compiled, err := e.compileRule(cfg)
		if err != nil {
			return err
		}
		newRules[cfg.ID] = compiled
	}

	e.compiledRules = newRules
	return nil
}

// RulesCount returns the number of loaded rules.
func (e *Engine) RulesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiledRules)
}

// GetLoadedRules returns the currently loaded rule configurations.
func (e *Engine) GetLoadedRules() []*domain.AlertRuleConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()

	rules := make([]*domain.AlertRuleConfig, 0, len(e.compiledRules))
	for _, compiled := range e.compiledRules {
		rules = append(rules, compiled.Config)
	}
	return rules
}

// EvaluateInput carries the aggregation breakdown into rule evaluation.
type EvaluateInput struct {
	TrustScore int
	RiskTier   domain.RiskTier
	Factors    *domain.RiskFactors
	Scores     scoring.Scores
	Synthetic  scoring.SyntheticAssessment
}

// Evaluate runs all loaded rules and returns the configs of those that
// triggered. A rule that fails to evaluate is skipped; rule errors never
// fail the verification.
func (e *Engine) Evaluate(input *EvaluateInput) ([]*domain.AlertRuleConfig, []error) {
	e.mu.RLock()
	compiled := make([]*CompiledRule, 0, len(e.compiledRules))
	for _, rule := range e.compiledRules {
		compiled = append(compiled, rule)
	}
	e.mu.RUnlock()

	if len(compiled) == 0 {
		return nil, nil
	}

	activation := e.activation(input)

	var triggered []*domain.AlertRuleConfig
	var errs []error
	for _, rule := range compiled {
		out, _, err := rule.Program.Eval(activation)
		if err != nil {
			errs = append(errs, fmt.Errorf("rule %s: %w", rule.Config.ID, err))
			continue
		}
		if b, ok := out.(types.Bool); ok && bool(b) {
			triggered = append(triggered, rule.Config)
		}
	}

	return triggered, errs
}

func (e *Engine) activation(input *EvaluateInput) map[string]any {
	categoryScore := func(cat domain.SignalCategory) float64 {
		if s, ok := input.Scores[cat]; ok {
			return s.NormalizedScore
		}
		return 0
	}

	var liveness, ocrConfidence float64
	if input.Factors != nil {
		if input.Factors.Face != nil {
			liveness = input.Factors.Face.LivenessScore
		}
		if input.Factors.Document != nil {
			ocrConfidence = input.Factors.Document.Confidence
		}
	}

	var flags []string
	for _, s := range input.Scores {
		flags = append(flags, s.Flags...)
	}

	return map[string]any{
		"trust_score":      int64(input.TrustScore),
		"risk_tier":        string(input.RiskTier),
		"document_score":   categoryScore(domain.CategoryDocument),
		"biometric_score":  categoryScore(domain.CategoryFace),
		"behavioral_score": categoryScore(domain.CategoryBehavioral),
		"historical_score": categoryScore(domain.CategoryHistorical),
		"synthetic_risk":   input.Synthetic.RiskScore,
		"liveness":         liveness,
		"ocr_confidence":   ocrConfidence,
		"flags":            flags,
	}
}

// Close cleans up the engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiledRules = make(map[string]*CompiledRule)
	return nil
}

func (e *Engine) compileRule(cfg *domain.AlertRuleConfig) (*CompiledRule, error) {
	ast, issues := e.env.Compile(cfg.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile rule %s: %w", cfg.ID, issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("rule %s: expression must return bool, got %s", cfg.ID, ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for rule %s: %w", cfg.ID, err)
	}

	return &CompiledRule{
		Config:  cfg,
		Program: program,
	}, nil
}
