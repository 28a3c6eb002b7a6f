// Package policy implements the security policy engine: prioritized rules
// with boolean conditions, per-subject exemptions, and a violation log.
package policy

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"blackroad.io/operator/internal/database"
	"blackroad.io/operator/internal/logging"
	"blackroad.io/operator/internal/metrics"
	"blackroad.io/operator/internal/util"
	"blackroad.io/operator/models"
)

// DefaultViolationWindow is the look-back used when none is given.
const DefaultViolationWindow = 24

// Engine evaluates access requests against the rules stored in SQLite.
// It is safe for concurrent use.
type Engine struct {
	db          *sql.DB
	logger      *zap.Logger
	cache       *conditionCache
	concurrency int
	now         func() time.Time
}

// NewEngine creates a policy engine. Concurrency bounds parallel evaluations
// in EvaluateBatch.
//
// Parameters:
//   - db: Migrated database connection
//   - logger: Zap logger for structured logging
//   - concurrency: Maximum parallel evaluations per batch (minimum 1)
func NewEngine(db *sql.DB, logger *zap.Logger, concurrency int) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &Engine{
		db:          db,
		logger:      logger,
		cache:       newConditionCache(),
		concurrency: concurrency,
		now:         time.Now,
	}
}

// AddRule validates and stores a new enabled rule.
//
// Returns models.ErrDuplicateRule when the rule ID is taken,
// models.ErrInvalidAction or models.ErrInvalidCondition for bad input.
func (e *Engine) AddRule(ctx context.Context, req *models.PolicyRuleCreateRequest) (*models.PolicyRule, error) {
	if err := util.ValidateRuleID(req.RuleID); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidRequest, err)
	}
	if req.Name == "" {
		return nil, fmt.Errorf("%w: rule name is required", models.ErrInvalidRequest)
	}
	if !req.Action.Valid() {
		return nil, fmt.Errorf("%w: %q", models.ErrInvalidAction, req.Action)
	}
	if _, err := e.cache.get(req.RuleID, req.Condition); err != nil {
		return nil, err
	}

	rule := &models.PolicyRule{
		RuleID:      req.RuleID,
		Name:        req.Name,
		Description: req.Description,
		Condition:   req.Condition,
		Action:      req.Action,
		Priority:    req.Priority,
		Enabled:     true,
		CreatedAt:   e.now().UTC(),
	}

	start := time.Now()
	_, err := e.db.ExecContext(ctx, `
		INSERT INTO policies (rule_id, name, description, condition, action, priority, enabled, created_at)
		VALUES (?, ?, ?, ?, ?, ?, 1, ?)
	`, rule.RuleID, rule.Name, rule.Description, rule.Condition, string(rule.Action), rule.Priority,
		database.FormatTime(rule.CreatedAt))
	metrics.ObserveQuery("policy_insert", start, err)
	if err != nil {
		if database.IsUniqueConstraint(err) {
			return nil, models.ErrDuplicateRule
		}
		return nil, fmt.Errorf("failed to insert rule: %w", err)
	}

	e.logger.Info("policy rule added",
		zap.String(logging.FieldRuleID, rule.RuleID),
		zap.String("action", string(rule.Action)),
		zap.Int("priority", rule.Priority),
	)
	return rule, nil
}

// GetRule returns a rule by ID.
func (e *Engine) GetRule(ctx context.Context, ruleID string) (*models.PolicyRule, error) {
	row := e.db.QueryRowContext(ctx, `
		SELECT rule_id, name, description, condition, action, priority, enabled, created_at
		FROM policies
		WHERE rule_id = ?
	`, ruleID)

	rule, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrRuleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query rule: %w", err)
	}
	return rule, nil
}

// ListRules returns rules in evaluation order: priority descending, then
// rule ID ascending.
func (e *Engine) ListRules(ctx context.Context, includeDisabled bool) ([]models.PolicyRule, error) {
	query := `
		SELECT rule_id, name, description, condition, action, priority, enabled, created_at
		FROM policies
	`
	if !includeDisabled {
		query += " WHERE enabled = 1"
	}
	query += " ORDER BY priority DESC, rule_id ASC"

	start := time.Now()
	rows, err := e.db.QueryContext(ctx, query)
	metrics.ObserveQuery("policy_list", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer rows.Close()

	rules := []models.PolicyRule{}
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rules = append(rules, *rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rules: %w", err)
	}
	return rules, nil
}

// SetRuleEnabled enables or disables a rule.
func (e *Engine) SetRuleEnabled(ctx context.Context, ruleID string, enabled bool) (*models.PolicyRule, error) {
	res, err := e.db.ExecContext(ctx, "UPDATE policies SET enabled = ? WHERE rule_id = ?", database.BoolToInt(enabled), ruleID)
	if err != nil {
		return nil, fmt.Errorf("failed to update rule: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, models.ErrRuleNotFound
	}

	e.logger.Info("policy rule updated", zap.String(logging.FieldRuleID, ruleID), zap.Bool("enabled", enabled))
	return e.GetRule(ctx, ruleID)
}

// DeleteRule removes a rule together with its exemptions and violations.
func (e *Engine) DeleteRule(ctx context.Context, ruleID string) error {
	res, err := e.db.ExecContext(ctx, "DELETE FROM policies WHERE rule_id = ?", ruleID)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrRuleNotFound
	}
	e.cache.forget(ruleID)

	e.logger.Info("policy rule deleted", zap.String(logging.FieldRuleID, ruleID))
	return nil
}

// AddExemption exempts subject from ruleID until req.ExpiresAt, or
// indefinitely when it is nil.
func (e *Engine) AddExemption(ctx context.Context, ruleID string, req *models.PolicyExemptionRequest) (*models.PolicyExemption, error) {
	if req.Subject == "" {
		return nil, fmt.Errorf("%w: subject is required", models.ErrInvalidRequest)
	}
	if _, err := e.GetRule(ctx, ruleID); err != nil {
		return nil, err
	}

	var expires interface{}
	var expiresAt *time.Time
	if req.ExpiresAt != nil {
		t := req.ExpiresAt.UTC()
		expiresAt = &t
		expires = database.FormatTime(t)
	}

	res, err := e.db.ExecContext(ctx, `
		INSERT INTO policy_exemptions (rule_id, subject, expires_at, reason)
		VALUES (?, ?, ?, ?)
	`, ruleID, req.Subject, expires, req.Reason)
	if err != nil {
		return nil, fmt.Errorf("failed to insert exemption: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read exemption id: %w", err)
	}

	e.logger.Info("policy exemption granted",
		zap.String(logging.FieldRuleID, ruleID),
		zap.String(logging.FieldSubject, req.Subject),
		zap.Timep("expires_at", expiresAt),
	)
	return &models.PolicyExemption{
		ID:        id,
		RuleID:    ruleID,
		Subject:   req.Subject,
		ExpiresAt: expiresAt,
		Reason:    req.Reason,
	}, nil
}

// EvaluateAccess evaluates subject's access to resource.
//
// Enabled rules run in priority order. Rules the subject is exempt from are
// skipped, and a condition that fails to evaluate does not match. The first
// matching deny records a HIGH severity violation and ends evaluation.
// The decision is deny when a violation was recorded, otherwise the action
// of the first matching rule, otherwise allow.
func (e *Engine) EvaluateAccess(ctx context.Context, subject, resource string, attrs map[string]interface{}) (*models.AccessDecision, error) {
	start := time.Now()
	defer func() { metrics.PolicyEvaluationDuration.Observe(time.Since(start).Seconds()) }()

	rules, err := e.ListRules(ctx, false)
	if err != nil {
		return nil, err
	}
	exempt, err := e.activeExemptions(ctx, subject)
	if err != nil {
		return nil, err
	}

	log := logging.ForComponent(ctx, e.logger, "policy", "evaluate").With(
		zap.String(logging.FieldSubject, subject),
		zap.String(logging.FieldResource, resource),
	)

	env := conditionEnv(subject, resource, attrs)
	decision := &models.AccessDecision{
		Subject:    subject,
		Resource:   resource,
		Decisions:  []models.RuleDecision{},
		Violations: []string{},
	}

	for _, rule := range rules {
		if exempt[rule.RuleID] {
			log.Debug("subject exempt from rule", zap.String(logging.FieldRuleID, rule.RuleID))
			continue
		}

		if !e.matches(rule, env, log) {
			continue
		}

		decision.Decisions = append(decision.Decisions, models.RuleDecision{
			RuleID:   rule.RuleID,
			Action:   rule.Action,
			Priority: rule.Priority,
		})

		if rule.Action == models.ActionDeny {
			violationID, err := e.recordViolation(ctx, rule.RuleID, subject, resource, attrs)
			if err != nil {
				return nil, err
			}
			decision.Violations = append(decision.Violations, violationID)
			break
		}
	}

	switch {
	case len(decision.Violations) > 0:
		decision.Decision = models.ActionDeny
	case len(decision.Decisions) > 0:
		decision.Decision = decision.Decisions[0].Action
	default:
		decision.Decision = models.ActionAllow
	}
	decision.Timestamp = e.now().UTC()

	metrics.PolicyDecisions.WithLabelValues(string(decision.Decision)).Inc()
	if decision.Decision == models.ActionDeny {
		log.Warn("access denied",
			zap.String(logging.FieldDecision, string(decision.Decision)),
			zap.Strings("violations", decision.Violations),
		)
	} else {
		log.Debug("access evaluated",
			zap.String(logging.FieldDecision, string(decision.Decision)),
			zap.Int("matched_rules", len(decision.Decisions)),
		)
	}
	return decision, nil
}

// EvaluateBatch evaluates requests concurrently and returns decisions in
// input order. The first error cancels the remaining evaluations.
func (e *Engine) EvaluateBatch(ctx context.Context, requests []models.AccessRequest) ([]*models.AccessDecision, error) {
	results := make([]*models.AccessDecision, len(requests))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i := range requests {
		req := requests[i]
		g.Go(func() error {
			d, err := e.EvaluateAccess(gctx, req.Subject, req.Resource, req.Context)
			if err != nil {
				return fmt.Errorf("request %d: %w", i, err)
			}
			results[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// GetViolations returns violations recorded in the last hours hours, newest
// first. An empty subject matches every subject.
func (e *Engine) GetViolations(ctx context.Context, subject string, hours int) ([]models.PolicyViolation, error) {
	if hours == 0 {
		hours = DefaultViolationWindow
	}
	if err := util.ValidateLookbackHours(hours); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidRequest, err)
	}

	cutoff := database.FormatTime(e.now().Add(-time.Duration(hours) * time.Hour))
	query := `
		SELECT violation_id, rule_id, timestamp, subject, resource, details, severity
		FROM policy_violations
		WHERE timestamp > ?
	`
	args := []interface{}{cutoff}
	if subject != "" {
		query += " AND subject = ?"
		args = append(args, subject)
	}
	query += " ORDER BY timestamp DESC"

	start := time.Now()
	rows, err := e.db.QueryContext(ctx, query, args...)
	metrics.ObserveQuery("violation_list", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to query violations: %w", err)
	}
	defer rows.Close()

	violations := []models.PolicyViolation{}
	for rows.Next() {
		var (
			v       models.PolicyViolation
			ts      string
			details sql.NullString
		)
		if err := rows.Scan(&v.ViolationID, &v.RuleID, &ts, &v.Subject, &v.Resource, &details, &v.Severity); err != nil {
			return nil, fmt.Errorf("failed to scan violation: %w", err)
		}
		if v.Timestamp, err = database.ParseTime(ts); err != nil {
			return nil, err
		}
		if details.Valid && details.String != "" {
			if err := json.Unmarshal([]byte(details.String), &v.Details); err != nil {
				return nil, fmt.Errorf("failed to decode violation details: %w", err)
			}
		}
		violations = append(violations, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate violations: %w", err)
	}
	return violations, nil
}

func (e *Engine) matches(rule models.PolicyRule, env map[string]interface{}, log *zap.Logger) bool {
	program, err := e.cache.get(rule.RuleID, rule.Condition)
	if err != nil {
		log.Warn("rule condition does not compile", zap.String(logging.FieldRuleID, rule.RuleID), zap.Error(err))
		return false
	}
	matched, err := evaluate(program, env)
	if err != nil {
		log.Debug("rule condition failed", zap.String(logging.FieldRuleID, rule.RuleID), zap.Error(err))
		return false
	}
	return matched
}

// activeExemptions returns the rule IDs subject is currently exempt from.
func (e *Engine) activeExemptions(ctx context.Context, subject string) (map[string]bool, error) {
	rows, err := e.db.QueryContext(ctx, `
		SELECT rule_id FROM policy_exemptions
		WHERE subject = ? AND (expires_at IS NULL OR expires_at > ?)
	`, subject, database.FormatTime(e.now()))
	if err != nil {
		return nil, fmt.Errorf("failed to query exemptions: %w", err)
	}
	defer rows.Close()

	exempt := make(map[string]bool)
	for rows.Next() {
		var ruleID string
		if err := rows.Scan(&ruleID); err != nil {
			return nil, fmt.Errorf("failed to scan exemption: %w", err)
		}
		exempt[ruleID] = true
	}
	return exempt, rows.Err()
}

func (e *Engine) recordViolation(ctx context.Context, ruleID, subject, resource string, attrs map[string]interface{}) (string, error) {
	if attrs == nil {
		attrs = map[string]interface{}{}
	}
	details, err := json.Marshal(attrs)
	if err != nil {
		return "", fmt.Errorf("failed to encode violation details: %w", err)
	}

	violationID := uuid.New().String()
	start := time.Now()
	_, err = e.db.ExecContext(ctx, `
		INSERT INTO policy_violations (violation_id, rule_id, timestamp, subject, resource, details, severity)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, violationID, ruleID, database.FormatTime(e.now()), subject, resource, string(details), models.SeverityHigh)
	metrics.ObserveQuery("violation_insert", start, err)
	if err != nil {
		return "", fmt.Errorf("failed to record violation: %w", err)
	}

	metrics.PolicyViolations.WithLabelValues(ruleID).Inc()
	return violationID, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRule(row rowScanner) (*models.PolicyRule, error) {
	var (
		rule      models.PolicyRule
		action    string
		enabled   int
		createdAt string
	)
	if err := row.Scan(&rule.RuleID, &rule.Name, &rule.Description, &rule.Condition,
		&action, &rule.Priority, &enabled, &createdAt); err != nil {
		return nil, err
	}
	rule.Action = models.PolicyAction(action)
	rule.Enabled = enabled == 1

	t, err := database.ParseTime(createdAt)
	if err != nil {
		return nil, err
	}
	rule.CreatedAt = t
	return &rule, nil
}
