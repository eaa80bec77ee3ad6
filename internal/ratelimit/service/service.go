// Package service implements admission control with interchangeable
// strategies, selected per action by the caller.
package service

import (
	"context"
	"log/slog"
	"math"
	"time"

	"werkstattguard/internal/audit"
	"werkstattguard/internal/ratelimit/config"
	"werkstattguard/internal/ratelimit/metrics"
	"werkstattguard/internal/ratelimit/models"
	"werkstattguard/internal/ratelimit/store"
	dErrors "werkstattguard/pkg/domain-errors"
)

// SecurityAuditor receives violation events. Denials are funneled through
// the shared audit trail, never into a private violations table.
type SecurityAuditor interface {
	LogSecurityEvent(ctx context.Context, se audit.SecurityEvent) (*audit.Event, error)
}

// Geolocator resolves an IP address to a location. Used only by the
// geographical strategy.
type Geolocator interface {
	Locate(ctx context.Context, ip string) (models.Location, error)
}

// LoadFunc reports current system load in [0, 1]. The adaptive strategy
// scales limits down as load rises.
type LoadFunc func(now time.Time) float64

// BusinessHoursLoad is a coarse time-of-day stand-in for a real load
// signal: weekday business hours count as loaded, nights and weekends as
// quiet. Deployments with real telemetry should inject their own LoadFunc.
func BusinessHoursLoad(now time.Time) float64 {
	switch now.Weekday() {
	case time.Saturday, time.Sunday:
		return 0.2
	}
	if h := now.Hour(); h >= 8 && h < 18 {
		return 0.6
	}
	return 0.2
}

// Manager performs admission checks. It holds no per-request state; all
// counters live in the injected store, so any number of instances can run
// behind a load balancer as long as they share a Redis-backed store.
type Manager struct {
	store   store.Store
	actions map[models.Action]config.ActionConfig
	buckets map[models.Action]config.BucketConfig
	auditor SecurityAuditor
	geo     Geolocator
	load    LoadFunc
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(mx *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mx }
}

// WithAuditor sets the audit sink for violations.
func WithAuditor(a SecurityAuditor) Option {
	return func(m *Manager) { m.auditor = a }
}

// WithGeolocator sets the IP geolocation collaborator.
func WithGeolocator(g Geolocator) Option {
	return func(m *Manager) { m.geo = g }
}

// WithLoadFunc replaces the business-hours heuristic with a real load signal.
func WithLoadFunc(f LoadFunc) Option {
	return func(m *Manager) { m.load = f }
}

// WithActionConfig overrides the limit for one action.
func WithActionConfig(action models.Action, cfg config.ActionConfig) Option {
	return func(m *Manager) { m.actions[action] = cfg }
}

// WithBucketConfig sets the token-bucket tuning for one action.
func WithBucketConfig(action models.Action, cfg config.BucketConfig) Option {
	return func(m *Manager) { m.buckets[action] = cfg }
}

// WithFailMode overrides the fail policy for one action.
func WithFailMode(action models.Action, mode config.FailMode) Option {
	return func(m *Manager) {
		cfg := m.actions[action]
		cfg.FailMode = mode
		m.actions[action] = cfg
	}
}

// WithClock overrides the time source. Tests use this for determinism.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// New creates a rate limit manager over the given store.
func New(st store.Store, opts ...Option) (*Manager, error) {
	if st == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "rate limit store is required")
	}
	m := &Manager{
		store:   st,
		actions: config.Defaults(),
		buckets: make(map[models.Action]config.BucketConfig),
		load:    BusinessHoursLoad,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// CheckRateLimit runs the sliding-window strategy for one
// (identifier, action) pair: prune attempts older than the window, record
// this one, and allow while the window holds no more than the limit.
func (m *Manager) CheckRateLimit(ctx context.Context, identifier string, action models.Action) (*models.Result, error) {
	cfg, err := m.actionConfig(action)
	if err != nil {
		return nil, err
	}
	now := m.now()

	key := models.NewKey(models.StrategySlidingWindow, action, identifier)
	count, oldest, err := m.store.Observe(ctx, key.String(), now, cfg.Window)
	if err != nil {
		return m.applyFailPolicy(ctx, models.StrategySlidingWindow, action, cfg, err)
	}

	result := m.windowResult(models.StrategySlidingWindow, cfg.Requests, cfg.Window, count, oldest, now)
	m.finishCheck(ctx, action, identifier, result, count)
	return result, nil
}

// CheckTokenBucket runs the token-bucket strategy. Cost lets expensive
// operations spend more than one token per call.
func (m *Manager) CheckTokenBucket(ctx context.Context, identifier string, action models.Action, cost float64) (*models.Result, error) {
	cfg, err := m.actionConfig(action)
	if err != nil {
		return nil, err
	}
	if cost <= 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "cost must be positive")
	}
	bucket, ok := m.buckets[action]
	if !ok {
		bucket = config.DefaultBucket
	}
	if cost > bucket.Capacity {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "cost exceeds bucket capacity")
	}
	now := m.now()

	key := models.NewKey(models.StrategyTokenBucket, action, identifier)
	remaining, allowed, err := m.store.Take(ctx, key.String(), bucket.Capacity, bucket.RefillRate, cost, now)
	if err != nil {
		return m.applyFailPolicy(ctx, models.StrategyTokenBucket, action, cfg, err)
	}

	result := &models.Result{
		Allowed:   allowed,
		Limit:     int(bucket.Capacity),
		Remaining: int(remaining),
		Strategy:  models.StrategyTokenBucket,
		ResetAt:   now,
	}
	if !allowed && bucket.RefillRate > 0 {
		wait := time.Duration((cost - remaining) / bucket.RefillRate * float64(time.Second))
		result.RetryAfter = wait
		result.ResetAt = now.Add(wait)
	}
	m.finishCheck(ctx, action, identifier, result, int(bucket.Capacity)-int(remaining))
	return result, nil
}

// CheckAdaptiveRateLimit scales the action's base limit by the identifier's
// trust score and the current system load, then runs a sliding window
// against the scaled limit. The trust score is nudged up on every allowed
// request and dropped sharply on every denial.
func (m *Manager) CheckAdaptiveRateLimit(ctx context.Context, identifier string, action models.Action) (*models.Result, error) {
	cfg, err := m.actionConfig(action)
	if err != nil {
		return nil, err
	}
	now := m.now()

	profile, err := m.store.GetTrust(ctx, identifier)
	if err != nil {
		return m.applyFailPolicy(ctx, models.StrategyAdaptive, action, cfg, err)
	}
	score := config.TrustScoreInitial
	if profile != nil {
		score = profile.Score
	}

	trustMult := config.TrustMultiplierMin + score*(config.TrustMultiplierMax-config.TrustMultiplierMin)
	loadMult := loadMultiplier(m.load(now))
	limit := int(math.Round(float64(cfg.Requests) * trustMult * loadMult))
	if limit < 1 {
		limit = 1
	}

	key := models.NewKey(models.StrategyAdaptive, action, identifier)
	count, oldest, err := m.store.Observe(ctx, key.String(), now, cfg.Window)
	if err != nil {
		return m.applyFailPolicy(ctx, models.StrategyAdaptive, action, cfg, err)
	}

	result := m.windowResult(models.StrategyAdaptive, limit, cfg.Window, count, oldest, now)
	m.updateTrust(ctx, identifier, score, result.Allowed, now)
	m.finishCheck(ctx, action, identifier, result, count)
	return result, nil
}

// CheckProgressiveRateLimit runs the base sliding window but escalates
// repeat offenders: each violation beyond the first imposes a lockout of
// min(violations x 2, 24) hours. Violation counts decay with violation-free
// time.
func (m *Manager) CheckProgressiveRateLimit(ctx context.Context, identifier string, action models.Action) (*models.Result, error) {
	cfg, err := m.actionConfig(action)
	if err != nil {
		return nil, err
	}
	now := m.now()

	key := models.NewKey(models.StrategyProgressivePenalty, action, identifier)
	state, err := m.store.GetPenalty(ctx, key.String())
	if err != nil {
		return m.applyFailPolicy(ctx, models.StrategyProgressivePenalty, action, cfg, err)
	}
	if state == nil {
		state = &models.PenaltyState{}
	}
	decayViolations(state, now)

	if state.LockedUntil.After(now) {
		result := &models.Result{
			Allowed:    false,
			Limit:      cfg.Requests,
			Remaining:  0,
			ResetAt:    state.LockedUntil,
			RetryAfter: state.LockedUntil.Sub(now),
			Strategy:   models.StrategyProgressivePenalty,
		}
		m.finishCheck(ctx, action, identifier, result, cfg.Requests+state.Violations)
		return result, nil
	}

	count, oldest, err := m.store.Observe(ctx, key.String(), now, cfg.Window)
	if err != nil {
		return m.applyFailPolicy(ctx, models.StrategyProgressivePenalty, action, cfg, err)
	}

	result := m.windowResult(models.StrategyProgressivePenalty, cfg.Requests, cfg.Window, count, oldest, now)
	if !result.Allowed {
		state.Violations++
		state.LastViolation = now
		// The first violation costs nothing beyond the base window; repeat
		// offenders are locked out for min(violations x 2h, 24h).
		if state.Violations > 1 {
			lockout := time.Duration(state.Violations) * config.LockoutHoursPerViolation * time.Hour
			if lockout > config.LockoutMax {
				lockout = config.LockoutMax
			}
			state.LockedUntil = now.Add(lockout)
			result.ResetAt = state.LockedUntil
			result.RetryAfter = lockout
			if m.metrics != nil {
				m.metrics.LockoutsSet.Inc()
			}
		}
	}
	if err := m.store.SavePenalty(ctx, key.String(), *state); err != nil && m.logger != nil {
		m.logger.ErrorContext(ctx, "failed to save penalty state",
			"action", string(action), "error", err)
	}

	m.finishCheck(ctx, action, identifier, result, count)
	return result, nil
}

// CheckGeographicalRateLimit scales the action's limit by the caller's
// country tier: home market full limit, EU 0.8x, the secondary market 0.6x,
// everywhere else 0.3x.
func (m *Manager) CheckGeographicalRateLimit(ctx context.Context, identifier, ip string, action models.Action) (*models.Result, error) {
	cfg, err := m.actionConfig(action)
	if err != nil {
		return nil, err
	}
	if m.geo == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "geolocator is not configured")
	}
	now := m.now()

	tier := config.TierOther
	loc, err := m.geo.Locate(ctx, ip)
	if err != nil {
		// Unknown origin gets the most conservative tier rather than a
		// denial; geolocation is advisory, not an ACL.
		if m.logger != nil {
			m.logger.WarnContext(ctx, "geolocation lookup failed",
				"error", err)
		}
	} else {
		tier = config.CountryTier(loc.Country)
	}

	limit := int(math.Round(float64(cfg.Requests) * tier))
	if limit < 1 {
		limit = 1
	}

	key := models.NewKey(models.StrategyGeographical, action, identifier)
	count, oldest, err := m.store.Observe(ctx, key.String(), now, cfg.Window)
	if err != nil {
		return m.applyFailPolicy(ctx, models.StrategyGeographical, action, cfg, err)
	}

	result := m.windowResult(models.StrategyGeographical, limit, cfg.Window, count, oldest, now)
	m.finishCheck(ctx, action, identifier, result, count)
	return result, nil
}

func (m *Manager) actionConfig(action models.Action) (config.ActionConfig, error) {
	cfg, ok := m.actions[action]
	if !ok {
		return config.ActionConfig{}, dErrors.New(dErrors.CodeInvalidInput, "unknown rate limit action")
	}
	return cfg, nil
}

// windowResult translates a window observation into an admission result.
func (m *Manager) windowResult(strategy models.Strategy, limit int, window time.Duration, count int, oldest, now time.Time) *models.Result {
	result := &models.Result{
		Allowed:   count <= limit,
		Limit:     limit,
		Remaining: limit - count,
		ResetAt:   oldest.Add(window),
		Strategy:  strategy,
	}
	if result.Remaining < 0 {
		result.Remaining = 0
	}
	if !result.Allowed {
		result.RetryAfter = result.ResetAt.Sub(now)
		if result.RetryAfter <= 0 {
			result.RetryAfter = time.Second
		}
	}
	return result
}

// applyFailPolicy handles a store failure according to the action's fail
// mode. Rate limiting is a secondary defense, so most actions fail open;
// password reset fails closed because the limit is the primary control
// there.
func (m *Manager) applyFailPolicy(ctx context.Context, strategy models.Strategy, action models.Action, cfg config.ActionConfig, cause error) (*models.Result, error) {
	if m.logger != nil {
		m.logger.ErrorContext(ctx, "rate limit store unavailable",
			"strategy", string(strategy),
			"action", string(action),
			"fail_mode", string(cfg.FailMode),
			"error", cause)
	}

	if cfg.FailMode == config.FailClosed {
		if m.metrics != nil {
			m.metrics.FailClosed.WithLabelValues(string(action)).Inc()
		}
		return &models.Result{
			Allowed:    false,
			Limit:      cfg.Requests,
			ResetAt:    m.now().Add(cfg.Window),
			RetryAfter: cfg.Window,
			Strategy:   strategy,
		}, nil
	}

	if m.metrics != nil {
		m.metrics.FailOpen.WithLabelValues(string(action)).Inc()
	}
	return &models.Result{
		Allowed:    true,
		Limit:      cfg.Requests,
		Remaining:  cfg.Requests,
		ResetAt:    m.now().Add(cfg.Window),
		Strategy:   strategy,
		FailedOpen: true,
	}, nil
}

// finishCheck records metrics and, on denial, the violation event.
func (m *Manager) finishCheck(ctx context.Context, action models.Action, identifier string, result *models.Result, observed int) {
	if m.metrics != nil {
		m.metrics.RecordCheck(string(result.Strategy), string(action), result.Allowed)
	}
	if result.Allowed {
		return
	}
	m.logViolation(ctx, models.Violation{
		Action:     action,
		Identifier: identifier,
		Strategy:   result.Strategy,
		Observed:   observed,
		Limit:      result.Limit,
		Severity:   violationSeverity(observed, result.Limit),
		OccurredAt: m.now().UTC(),
	})
}

// logViolation writes the denial into the shared audit trail.
func (m *Manager) logViolation(ctx context.Context, v models.Violation) {
	if m.auditor == nil {
		return
	}
	_, err := m.auditor.LogSecurityEvent(ctx, audit.SecurityEvent{
		EventType: "rate_limit_exceeded",
		Severity:  auditSeverity(v.Severity),
		IPAddress: violationIP(v.Identifier),
		Action:    string(v.Action),
		Outcome:   audit.OutcomeDenied,
		Details: map[string]any{
			"identifier": v.Identifier,
			"strategy":   string(v.Strategy),
			"observed":   v.Observed,
			"limit":      v.Limit,
		},
	})
	if err != nil && m.logger != nil {
		m.logger.ErrorContext(ctx, "failed to audit rate limit violation",
			"action", string(v.Action), "error", err)
	}
}

// violationSeverity grades how far past the limit the caller is.
func violationSeverity(observed, limit int) models.ViolationSeverity {
	if limit <= 0 {
		return models.ViolationHigh
	}
	ratio := float64(observed) / float64(limit)
	switch {
	case ratio >= 3:
		return models.ViolationHigh
	case ratio >= 2:
		return models.ViolationMedium
	default:
		return models.ViolationLow
	}
}

func auditSeverity(v models.ViolationSeverity) audit.Severity {
	switch v {
	case models.ViolationHigh:
		return audit.SeverityHigh
	case models.ViolationMedium:
		return audit.SeverityMedium
	default:
		return audit.SeverityLow
	}
}

// violationIP passes the identifier through as the event IP when it looks
// like one; usernames stay out of the IP column.
func violationIP(identifier string) string {
	for _, r := range identifier {
		if (r < '0' || r > '9') && r != '.' && r != ':' &&
			(r < 'a' || r > 'f') && (r < 'A' || r > 'F') {
			return ""
		}
	}
	return identifier
}

// updateTrust nudges the identifier's score and persists it.
func (m *Manager) updateTrust(ctx context.Context, identifier string, score float64, allowed bool, now time.Time) {
	if allowed {
		score += config.TrustRewardAllowed
	} else {
		score -= config.TrustPenaltyDenied
	}
	score = math.Max(0, math.Min(1, score))

	err := m.store.SaveTrust(ctx, models.TrustProfile{
		Identifier: identifier,
		Score:      score,
		UpdatedAt:  now.UTC(),
	})
	if err != nil {
		if m.logger != nil {
			m.logger.ErrorContext(ctx, "failed to save trust profile", "error", err)
		}
		return
	}
	if m.metrics != nil {
		m.metrics.TrustUpdates.Inc()
	}
}

// loadMultiplier maps load in [0, 1] to the limit multiplier, decreasing
// from 1.0 at idle to 0.1 at saturation.
func loadMultiplier(load float64) float64 {
	load = math.Max(0, math.Min(1, load))
	return config.LoadMultiplierMax - load*(config.LoadMultiplierMax-config.LoadMultiplierMin)
}

// decayViolations erases one recorded violation per violation-free decay
// interval.
func decayViolations(state *models.PenaltyState, now time.Time) {
	if state.Violations == 0 || state.LastViolation.IsZero() {
		return
	}
	decayed := int(now.Sub(state.LastViolation) / config.ViolationDecayInterval)
	if decayed <= 0 {
		return
	}
	state.Violations -= decayed
	if state.Violations < 0 {
		state.Violations = 0
	}
}
