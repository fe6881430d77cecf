// Package lifecycle implements the role-gated status state machine shared by
// appointments and lab/imaging orders. It is the only component that decides
// whether a status change may happen; callers persist the outcome.
package lifecycle

import "fmt"

// DenialReason classifies why a transition was refused.
type DenialReason string

const (
	NotAllowedFromCurrentState DenialReason = "NotAllowedFromCurrentState"
	RoleNotPermitted           DenialReason = "RoleNotPermitted"
	MissingRequiredPayload     DenialReason = "MissingRequiredPayload"
)

// Denial is the error returned for a refused transition. The entity is left
// untouched; callers map it onto their conflict/authorization responses.
type Denial struct {
	From   string
	To     string
	Role   string
	Reason DenialReason
}

func (d *Denial) Error() string {
	return fmt.Sprintf("transition %s -> %s by %s denied: %s", d.From, d.To, d.Role, d.Reason)
}

// Outcome is the result of a granted transition request. Changed is false when
// the requested status equals the current one; such requests succeed without
// producing a new history entry.
type Outcome struct {
	Status  string
	Changed bool
}

// Rules is one entity family's transition and permission tables.
type Rules struct {
	// Transitions maps a status to the statuses reachable from it. A status
	// with no entry is terminal.
	Transitions map[string][]string
	// RoleTargets maps a role to the statuses it may request at all,
	// independent of the current state. A role asking for a status outside
	// its set is denied RoleNotPermitted even when the state transition
	// itself would be invalid.
	RoleTargets map[string][]string
	// PayloadRequired marks target statuses that must be accompanied by a
	// non-empty payload (e.g. a result on order completion).
	PayloadRequired map[string]bool
}

// Terminal reports whether the status has no outgoing transitions.
func (r *Rules) Terminal(status string) bool {
	return len(r.Transitions[status]) == 0
}

// Apply validates a requested transition. Checks run in a fixed order:
// idempotence, role permission, state reachability, payload presence.
func (r *Rules) Apply(current, requested, role string, hasPayload bool) (Outcome, error) {
	if requested == current {
		return Outcome{Status: current, Changed: false}, nil
	}
	if !contains(r.RoleTargets[role], requested) {
		return Outcome{}, &Denial{From: current, To: requested, Role: role, Reason: RoleNotPermitted}
	}
	if !contains(r.Transitions[current], requested) {
		return Outcome{}, &Denial{From: current, To: requested, Role: role, Reason: NotAllowedFromCurrentState}
	}
	if r.PayloadRequired[requested] && !hasPayload {
		return Outcome{}, &Denial{From: current, To: requested, Role: role, Reason: MissingRequiredPayload}
	}
	return Outcome{Status: requested, Changed: true}, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
