// Package config holds per-action rate limit settings and the strategy
// tuning constants.
package config

import (
	"time"

	"werkstattguard/internal/ratelimit/models"
)

// FailMode decides what happens when the rate limit store is unreachable.
// Open allows the request, closed denies it. Rate limiting is a secondary
// defense, so open is the default; actions where the limit is the primary
// control (password reset) run closed.
type FailMode string

const (
	FailOpen   FailMode = "open"
	FailClosed FailMode = "closed"
)

// ActionConfig is the sliding-window limit for one action.
type ActionConfig struct {
	Requests int
	Window   time.Duration
	FailMode FailMode
}

// Defaults returns the per-action limits. Callers may override individual
// entries before constructing the manager.
func Defaults() map[models.Action]ActionConfig {
	return map[models.Action]ActionConfig{
		models.ActionLogin:         {Requests: 5, Window: 15 * time.Minute, FailMode: FailOpen},
		models.ActionRegister:      {Requests: 3, Window: time.Hour, FailMode: FailOpen},
		models.ActionAPI:           {Requests: 100, Window: time.Minute, FailMode: FailOpen},
		models.ActionPasswordReset: {Requests: 2, Window: time.Hour, FailMode: FailClosed},
		models.ActionMFA:           {Requests: 5, Window: 5 * time.Minute, FailMode: FailOpen},
		models.ActionWorkshopData:  {Requests: 10, Window: time.Minute, FailMode: FailOpen},
	}
}

// BucketConfig is the token-bucket tuning for one action.
type BucketConfig struct {
	Capacity   float64
	RefillRate float64 // tokens per second
}

// DefaultBucket is used for actions without an explicit bucket config.
var DefaultBucket = BucketConfig{Capacity: 10, RefillRate: 1}

// Adaptive strategy bounds.
const (
	// TrustScoreInitial is the score assigned to an identifier on first
	// sight.
	TrustScoreInitial = 0.5

	// TrustRewardAllowed nudges the score up on each allowed request.
	TrustRewardAllowed = 0.01

	// TrustPenaltyDenied drops the score on each denied request.
	TrustPenaltyDenied = 0.1

	// Trust multiplier range applied to the base limit.
	TrustMultiplierMin = 0.2
	TrustMultiplierMax = 2.0

	// Load multiplier range. Lower as load increases.
	LoadMultiplierMin = 0.1
	LoadMultiplierMax = 1.0
)

// Progressive penalty tuning.
const (
	// LockoutHoursPerViolation scales lockout length with the violation
	// count.
	LockoutHoursPerViolation = 2

	// LockoutMax caps the escalating lockout.
	LockoutMax = 24 * time.Hour

	// ViolationDecayInterval is how much violation-free time erases one
	// recorded violation.
	ViolationDecayInterval = 24 * time.Hour
)

// Country tiers for the geographical strategy. The home market keeps the
// full limit; unknown origins get the most conservative share.
const (
	HomeCountry      = "DE"
	SecondaryCountry = "CH"

	TierHome      = 1.0
	TierEU        = 0.8
	TierSecondary = 0.6
	TierOther     = 0.3
)

// euCountries is the EU-27 by ISO 3166-1 alpha-2 code, minus the home
// country which has its own tier.
var euCountries = map[string]bool{
	"AT": true, "BE": true, "BG": true, "HR": true, "CY": true, "CZ": true,
	"DK": true, "EE": true, "FI": true, "FR": true, "GR": true, "HU": true,
	"IE": true, "IT": true, "LV": true, "LT": true, "LU": true, "MT": true,
	"NL": true, "PL": true, "PT": true, "RO": true, "SK": true, "SI": true,
	"ES": true, "SE": true,
}

// CountryTier returns the limit multiplier for a caller's country.
func CountryTier(country string) float64 {
	switch {
	case country == HomeCountry:
		return TierHome
	case country == SecondaryCountry:
		return TierSecondary
	case euCountries[country]:
		return TierEU
	default:
		return TierOther
	}
}
