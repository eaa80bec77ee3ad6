package models

import "time"

// Action names a rate-limited operation. Limits are configured per action.
type Action string

const (
	ActionLogin         Action = "login"
	ActionRegister      Action = "register"
	ActionAPI           Action = "api"
	ActionPasswordReset Action = "password_reset"
	ActionMFA           Action = "mfa"
	ActionWorkshopData  Action = "workshop_data"
)

// Strategy names a rate-limiting algorithm. Callers pick the strategy
// appropriate to the action; the strategies keep independent state.
type Strategy string

const (
	StrategySlidingWindow      Strategy = "sliding_window"
	StrategyTokenBucket        Strategy = "token_bucket"
	StrategyAdaptive           Strategy = "adaptive"
	StrategyProgressivePenalty Strategy = "progressive_penalty"
	StrategyGeographical       Strategy = "geographical"
)

// Result is the outcome of an admission check. Every strategy reports the
// applied limit, what is left, and when a denied caller may retry.
type Result struct {
	Allowed    bool          `json:"allowed"`
	Limit      int           `json:"limit"`
	Remaining  int           `json:"remaining"`
	ResetAt    time.Time     `json:"reset_at"`
	RetryAfter time.Duration `json:"retry_after"`

	// Strategy records which algorithm produced the result.
	Strategy Strategy `json:"strategy"`

	// FailedOpen is set when a store error forced the configured fail-open
	// policy; the request was allowed without a real check.
	FailedOpen bool `json:"failed_open,omitempty"`
}

// ViolationSeverity grades how far past the limit a caller pushed.
type ViolationSeverity string

const (
	ViolationLow    ViolationSeverity = "low"
	ViolationMedium ViolationSeverity = "medium"
	ViolationHigh   ViolationSeverity = "high"
)

// Violation describes one denied request for the audit trail.
type Violation struct {
	Action     Action            `json:"action"`
	Identifier string            `json:"identifier"`
	Strategy   Strategy          `json:"strategy"`
	Observed   int               `json:"observed"`
	Limit      int               `json:"limit"`
	Severity   ViolationSeverity `json:"severity"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// Bucket is token-bucket state: the tokens available at the moment of the
// last refill. Tokens owed since then are computed lazily from wall-clock
// elapsed time, never by a background timer.
type Bucket struct {
	Tokens     float64   `json:"tokens"`
	LastRefill time.Time `json:"last_refill"`
}

// PenaltyState is the progressive-penalty counter for one (action,
// identifier) pair.
type PenaltyState struct {
	Violations    int       `json:"violations"`
	LastViolation time.Time `json:"last_violation"`
	LockedUntil   time.Time `json:"locked_until"`
}

// TrustProfile is the persisted per-identifier reputation used by the
// adaptive strategy. Score moves slowly up on allowed requests and sharply
// down on denials, clamped to [0, 1].
type TrustProfile struct {
	Identifier string    `json:"identifier"`
	Score      float64   `json:"score"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Location is the geolocation result for an IP address.
type Location struct {
	Country string `json:"country"`
	Region  string `json:"region,omitempty"`
	City    string `json:"city,omitempty"`
}
