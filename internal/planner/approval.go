package planner

import (
	"regexp"
	"strings"
)

// ApprovalSignal is the parsed intent of a chat message with respect to a
// pending plan. A message can name a plan explicitly or rely on the most
// recent pending one.
type ApprovalSignal struct {
	IsApproval  bool
	IsRejection bool
	PlanID      string
}

var planIDPattern = regexp.MustCompile(`\bplan_[0-9a-f]{8}\b`)

var approvalPhrases = []string{
	"yes", "y", "yes please", "yep", "yeah", "sure", "ok", "okay",
	"approve", "approved", "confirm", "confirmed", "go ahead", "do it",
	"proceed", "run it", "execute", "sounds good", "lgtm",
}

var rejectionPhrases = []string{
	"no", "n", "nope", "cancel", "cancelled", "reject", "rejected",
	"stop", "abort", "don't", "dont", "do not", "never mind", "nevermind",
	"forget it", "discard",
}

// DetectPlanApproval inspects a chat message for an approve or reject
// intent. Rejection wins when a message could read either way.
func DetectPlanApproval(message string) ApprovalSignal {
	signal := ApprovalSignal{PlanID: planIDPattern.FindString(strings.ToLower(message))}

	normalized := " " + normalizeText(message) + " "
	for _, phrase := range rejectionPhrases {
		if strings.Contains(normalized, " "+phrase+" ") {
			signal.IsRejection = true
			return signal
		}
	}
	for _, phrase := range approvalPhrases {
		if strings.Contains(normalized, " "+phrase+" ") {
			signal.IsApproval = true
			return signal
		}
	}
	return signal
}
