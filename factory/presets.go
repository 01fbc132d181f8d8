package factory

import (
	"encoding/json"

	"github.com/warp/points-engine/discipline"
	"github.com/warp/points-engine/generic"
)

// =============================================================================
// PRESET POLICY DOCUMENTS
// =============================================================================

const (
	StandardPolicyID  = "points-standard"
	QuarterlyPolicyID = "points-quarterly"
)

// StandardPolicyJSON is the built-in 150-point policy with monthly tardy
// escalation.
func StandardPolicyJSON() string {
	return mustMarshal(ToJSON(StandardPolicyID, "Standard Attendance Points", discipline.DefaultConfig()))
}

// QuarterlyPolicyJSON is the standard policy with tardy counters that roll
// over per calendar quarter, as earlier policy generations priced them.
func QuarterlyPolicyJSON() string {
	cfg := discipline.DefaultConfig()
	cfg.EscalationPeriod = generic.PeriodQuarterly
	return mustMarshal(ToJSON(QuarterlyPolicyID, "Quarterly Escalation Points", cfg))
}

func mustMarshal(pj PolicyJSON) string {
	b, err := json.MarshalIndent(pj, "", "  ")
	if err != nil {
		panic(err)
	}
	return string(b)
}
