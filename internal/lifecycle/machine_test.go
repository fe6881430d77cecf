package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRules() *Rules {
	return &Rules{
		Transitions: map[string][]string{
			"pending":     {"in_progress", "cancelled"},
			"in_progress": {"completed", "cancelled"},
		},
		RoleTargets: map[string][]string{
			"doctor": {"in_progress", "completed", "cancelled"},
			"admin":  {"in_progress", "completed", "cancelled"},
		},
		PayloadRequired: map[string]bool{"completed": true},
	}
}

func TestApply(t *testing.T) {
	rules := testRules()

	tests := []struct {
		name       string
		current    string
		requested  string
		role       string
		hasPayload bool
		wantReason DenialReason
		wantStatus string
	}{
		{name: "start work", current: "pending", requested: "in_progress", role: "doctor", hasPayload: false, wantStatus: "in_progress"},
		{name: "complete with payload", current: "in_progress", requested: "completed", role: "doctor", hasPayload: true, wantStatus: "completed"},
		{name: "complete without payload", current: "in_progress", requested: "completed", role: "doctor", wantReason: MissingRequiredPayload},
		{name: "skip ahead", current: "pending", requested: "completed", role: "doctor", hasPayload: true, wantReason: NotAllowedFromCurrentState},
		{name: "role without target", current: "pending", requested: "in_progress", role: "patient", wantReason: RoleNotPermitted},
		{name: "unknown role", current: "pending", requested: "cancelled", role: "visitor", wantReason: RoleNotPermitted},
		{name: "terminal state", current: "cancelled", requested: "in_progress", role: "admin", wantReason: NotAllowedFromCurrentState},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome, err := rules.Apply(tt.current, tt.requested, tt.role, tt.hasPayload)
			if tt.wantReason != "" {
				var denial *Denial
				require.ErrorAs(t, err, &denial)
				assert.Equal(t, tt.wantReason, denial.Reason)
				return
			}
			require.NoError(t, err)
			assert.True(t, outcome.Changed)
			assert.Equal(t, tt.wantStatus, outcome.Status)
		})
	}
}

func TestApplyIdempotentSameStatus(t *testing.T) {
	rules := testRules()

	// Same-status requests succeed without any permission or state check,
	// including in terminal states and for roles with no targets at all.
	for _, status := range []string{"pending", "in_progress", "completed", "cancelled"} {
		outcome, err := rules.Apply(status, status, "patient", false)
		require.NoError(t, err, "status %s", status)
		assert.False(t, outcome.Changed)
		assert.Equal(t, status, outcome.Status)
	}
}

func TestRoleCheckedBeforeState(t *testing.T) {
	rules := testRules()

	// A role asking for a status outside its set is denied RoleNotPermitted
	// in every state, even when the transition would also be state-invalid.
	for _, current := range []string{"pending", "in_progress", "cancelled"} {
		_, err := rules.Apply(current, "completed", "patient", true)
		var denial *Denial
		require.ErrorAs(t, err, &denial)
		assert.Equal(t, RoleNotPermitted, denial.Reason, "from %s", current)
	}
}

func TestTerminal(t *testing.T) {
	rules := testRules()

	assert.False(t, rules.Terminal("pending"))
	assert.False(t, rules.Terminal("in_progress"))
	assert.True(t, rules.Terminal("completed"))
	assert.True(t, rules.Terminal("cancelled"))
}
