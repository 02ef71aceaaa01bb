package judge

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Decision is the outcome of one validation request.
type Decision string

const (
	DecisionAllow Decision = "allow"
	DecisionDeny  Decision = "deny"
)

// Verdict is the allow/deny outcome plus rationale produced for one
// validation request. Alternative is meaningful only on deny; a value on
// allow is ignored downstream rather than rejected.
type Verdict struct {
	Decision    Decision  `json:"decision"`
	Message     string    `json:"message"`
	Alternative string    `json:"alternative,omitempty"`
	ProducedAt  time.Time `json:"produced_at"`
}

// Fallback verdict text, returned whenever the oracle fails. Deliberately
// fixed so the failure path is deterministic and fail-closed.
const (
	fallbackMessage     = "Sorry, I can't process your request right now. Please try again later."
	fallbackAlternative = "Take a short break away from your phone."
)

// FallbackVerdict is the fixed fail-closed verdict used when the judge
// oracle times out, errors, or returns something unparsable.
func FallbackVerdict(now time.Time) Verdict {
	return Verdict{
		Decision:    DecisionDeny,
		Message:     fallbackMessage,
		Alternative: fallbackAlternative,
		ProducedAt:  now,
	}
}

// verdictResponse is the JSON shape expected from the oracle.
type verdictResponse struct {
	Decision    string `json:"decision"`
	Message     string `json:"message"`
	Alternative string `json:"alternative,omitempty"`
}

// parseVerdict parses the oracle's raw output into a Verdict.
//
// Models sometimes wrap JSON in markdown code fences; those are stripped
// first. A decision outside {allow, deny} (wrong casing included) is
// coerced to deny. A response that is not JSON at all is an error and the
// caller falls back.
func parseVerdict(content string, now time.Time) (Verdict, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var resp verdictResponse
	if err := json.Unmarshal([]byte(content), &resp); err != nil {
		return Verdict{}, fmt.Errorf("parse verdict: %w", err)
	}

	decision := Decision(strings.ToLower(strings.TrimSpace(resp.Decision)))
	if decision != DecisionAllow && decision != DecisionDeny {
		decision = DecisionDeny
	}

	return Verdict{
		Decision:    decision,
		Message:     resp.Message,
		Alternative: resp.Alternative,
		ProducedAt:  now,
	}, nil
}
