package diffsync

import (
	"strings"

	"github.com/harun/agentdiff/pkg/diffengine"
)

// Outcome is the result of reconciling one view against a document change
type Outcome string

const (
	// OutcomeConverged means the view's sides are equal
	OutcomeConverged Outcome = "converged"
	// OutcomeNoReplacement means the view has no search/replace pair
	OutcomeNoReplacement Outcome = "no_replacement"
	// OutcomeAlreadyApplied means the live text already contains the replacement
	OutcomeAlreadyApplied Outcome = "already_applied"
	// OutcomeAnchorMissing means the search text is no longer in the live text
	OutcomeAnchorMissing Outcome = "anchor_missing"
	// OutcomeNoChange means reconciling would not alter the preview
	OutcomeNoChange Outcome = "no_change"
	// OutcomeApplied means the preview was rewritten
	OutcomeApplied Outcome = "applied"
)

// Reconcile re-applies a search/replace pair to live text for a view whose
// sides are left and right. It returns the text the view's right side should
// show when the outcome is OutcomeApplied.
func Reconcile(left, right, search, replace, live string) (string, Outcome) {
	if left == right {
		return "", OutcomeConverged
	}

	replace = strings.TrimSpace(replace)
	if strings.Contains(live, replace) {
		return "", OutcomeAlreadyApplied
	}

	search = strings.TrimSpace(search)
	if search == "" || !strings.Contains(live, search) {
		return "", OutcomeAnchorMissing
	}

	reconciled := diffengine.ApplyReplacement(live, search, replace, false)
	// Compare text, not length: an equal-length replacement still rewrites.
	if reconciled == live || reconciled == right {
		return "", OutcomeNoChange
	}
	return reconciled, OutcomeApplied
}

// reconcileView runs Reconcile for v against live text
func reconcileView(v View, live string) (string, Outcome) {
	left, right := v.Left(), v.Right()
	if left == right {
		return "", OutcomeConverged
	}

	search, replace, ok := v.Replacement()
	if !ok {
		return "", OutcomeNoReplacement
	}
	return Reconcile(left, right, search, replace, live)
}
