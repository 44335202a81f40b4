package usecase

import "strings"

// ParseDecision reads the validator's verdict out of its output text.
//
// Approves only on an explicit "DECISION: APPROVE" or "DECISION:APPROVE"
// marker, case-insensitive. Anything else — empty output, malformed output,
// an explicit reject — kills the story. Ambiguity must never publish.
func ParseDecision(output string) bool {
	upper := strings.ToUpper(output)
	return strings.Contains(upper, "DECISION: APPROVE") ||
		strings.Contains(upper, "DECISION:APPROVE")
}
