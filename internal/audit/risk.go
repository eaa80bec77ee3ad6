package audit

// severityBaseScore maps severity to the base risk score.
var severityBaseScore = map[Severity]int{
	SeverityLow:      2,
	SeverityMedium:   5,
	SeverityHigh:     8,
	SeverityCritical: 10,
}

// sensitiveResources are resource types whose access raises the risk score.
var sensitiveResources = map[string]bool{
	"workshop_data": true,
	"bank_details":  true,
	"tax_records":   true,
	"auth_factors":  true,
	"user_profile":  true,
}

const (
	minRiskScore = 1
	maxRiskScore = 10

	// SuspiciousRiskThreshold is the score at or above which an event counts
	// as suspicious in security metrics.
	SuspiciousRiskThreshold = 7
)

// riskScore computes the 1-10 risk score for an event: base score from
// severity, +2 for failed/denied outcomes, +2 for sensitive resources,
// +3 when the details flag a suspicious pattern.
func riskScore(e Event) int {
	score := severityBaseScore[e.Severity]
	if score == 0 {
		score = severityBaseScore[SeverityLow]
	}

	if e.Outcome == OutcomeFailed || e.Outcome == OutcomeDenied {
		score += 2
	}
	if sensitiveResources[e.ResourceType] {
		score += 2
	}
	if suspicious, ok := e.Details[DetailSuspicious].(bool); ok && suspicious {
		score += 3
	}

	if score < minRiskScore {
		return minRiskScore
	}
	if score > maxRiskScore {
		return maxRiskScore
	}
	return score
}

// IsSuspicious reports whether an event meets the suspicious bar used by
// security metrics: risk score at the threshold or critical severity.
func IsSuspicious(e Event) bool {
	return e.RiskScore >= SuspiciousRiskThreshold || e.Severity == SeverityCritical
}
