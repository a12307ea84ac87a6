package model

import "strings"

// Decision is the evaluator's categorical verdict.
type Decision string

// Decision constants.
const (
	DecisionAccept Decision = "accept"
	DecisionReject Decision = "reject"
)

// SecurityThreshold is the minimum security score for an accepted listing.
const SecurityThreshold = 70

// EvaluationResult is the Security Evaluator's output for one (profile, listing) pair.
type EvaluationResult struct {
	FinalDecision Decision `json:"final_decision"`
	Reasons       []string `json:"reasons"`
	SecurityScore int      `json:"security_score"`
	Relevant      bool     `json:"relevant"`
}

// NormalizeDecision trims and lowercases a free-form decision without
// mapping it, so an empty or unknown value stays distinguishable from an
// explicit "reject".
func NormalizeDecision(s string) Decision {
	return Decision(strings.ToLower(strings.TrimSpace(s)))
}

// ParseDecision normalizes a free-form decision. Anything other than
// "accept" maps to DecisionReject.
func ParseDecision(s string) Decision {
	if NormalizeDecision(s) == DecisionAccept {
		return DecisionAccept
	}
	return DecisionReject
}

// ClampSecurityScore bounds a score to [0, 100].
func ClampSecurityScore(score int) int {
	switch {
	case score < 0:
		return 0
	case score > 100:
		return 100
	default:
		return score
	}
}

// StatusFor derives the persisted status. Both the decision and the score
// must clear the bar.
func StatusFor(result EvaluationResult) ListingStatus {
	if result.FinalDecision == DecisionAccept && result.SecurityScore >= SecurityThreshold {
		return StatusAccepted
	}
	return StatusRejected
}

// JoinReasons flattens evaluator reasons into the stored form.
func JoinReasons(reasons []string) string {
	return strings.Join(reasons, "; ")
}

// Badge returns the human label for a security score.
func Badge(securityScore int) string {
	switch {
	case securityScore >= 96:
		return "Safe"
	case securityScore >= 86:
		return "Low risk"
	case securityScore >= SecurityThreshold:
		return "Scam alert"
	default:
		return "Rejected"
	}
}
