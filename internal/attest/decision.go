package attest

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"strings"

	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// Severity ranks a risk finding. The canonical codec maps each value to a
// fixed one-byte code, so the set can only grow under a new scheme.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var severityCodes = map[Severity]uint8{
	SeverityLow:      0,
	SeverityMedium:   1,
	SeverityHigh:     2,
	SeverityCritical: 3,
}

var severityFromCode = lo.Invert(severityCodes)

// Valid reports whether s is one of the four defined severities.
func (s Severity) Valid() bool {
	_, ok := severityCodes[s]
	return ok
}

// RiskFinding describes one identified hazard in the assessed sample.
type RiskFinding struct {
	Category    string   `json:"category"`
	Severity    Severity `json:"severity"`
	Explanation string   `json:"explanation"`
}

// Verdict is the structured outcome of a water-quality judgment.
type Verdict struct {
	// Score is the overall health score in [0,1]. It is canonicalized at
	// micro-unit precision (see ScoreScale); finer distinctions are not
	// representable under scheme v1.
	Score float64 `json:"score"`
	// Flags maps a use case (e.g. "drinking", "irrigation") to suitability.
	Flags map[string]bool `json:"flags"`
	// Risks lists identified hazards, ordered by the producer.
	Risks []RiskFinding `json:"risks"`
	// Remediation is the ordered sequence of treatment steps.
	Remediation []string `json:"remediation"`
}

// DecisionRecord is the assessment to be attested. Once constructed it must
// not be mutated; a correction is a new record, so previously issued
// attestations stay verifiable against their original content.
type DecisionRecord struct {
	Subject    string  `json:"subject"`
	Verdict    Verdict `json:"verdict"`
	ProducedAt int64   `json:"produced_at"`
}

// Clone returns a deep copy so the caller's record cannot alias the bundle's.
func (d *DecisionRecord) Clone() DecisionRecord {
	out := *d
	out.Verdict.Flags = maps.Clone(d.Verdict.Flags)
	out.Verdict.Risks = slices.Clone(d.Verdict.Risks)
	out.Verdict.Remediation = slices.Clone(d.Verdict.Remediation)
	return out
}

// Validate checks structural and range constraints. It runs before
// canonicalization on the attest path and again on the verify path, so a
// bundle built from invalid input is caught even if the signature checks out.
func (d *DecisionRecord) Validate() error {
	if d == nil {
		return errors.Wrap(ErrInvalidDecision, "decision is nil")
	}
	if strings.TrimSpace(d.Subject) == "" {
		return errors.Wrap(ErrInvalidDecision, "subject is empty")
	}
	if d.ProducedAt <= 0 {
		return errors.Wrap(ErrInvalidDecision, "produced_at must be a positive unix timestamp")
	}
	if math.IsNaN(d.Verdict.Score) || math.IsInf(d.Verdict.Score, 0) {
		return errors.Wrap(ErrInvalidDecision, "score is not a finite number")
	}
	if d.Verdict.Score < 0 || d.Verdict.Score > 1 {
		return errors.Wrapf(ErrInvalidDecision, "score %v outside [0,1]", d.Verdict.Score)
	}
	for key := range d.Verdict.Flags {
		if key == "" {
			return errors.Wrap(ErrInvalidDecision, "flag key is empty")
		}
	}
	for i, risk := range d.Verdict.Risks {
		if strings.TrimSpace(risk.Category) == "" {
			return errors.Wrapf(ErrInvalidDecision, "risk %d has empty category", i)
		}
		if !risk.Severity.Valid() {
			return errors.Wrapf(ErrInvalidDecision, "risk %d has unknown severity %q", i, risk.Severity)
		}
	}
	// Policy: a decision that names risks must also name remediation.
	if len(d.Verdict.Risks) > 0 && len(d.Verdict.Remediation) == 0 {
		return errors.Wrap(ErrInvalidDecision, "risks present but remediation is empty")
	}
	if lo.SomeBy(d.Verdict.Remediation, func(step string) bool {
		return strings.TrimSpace(step) == ""
	}) {
		return errors.Wrap(ErrInvalidDecision, "remediation contains an empty step")
	}
	return nil
}

// sortedFlagKeys returns the flag keys in the total order used by the
// canonical codec.
func (v *Verdict) sortedFlagKeys() []string {
	keys := lo.Keys(v.Flags)
	slices.Sort(keys)
	return keys
}

func (s Severity) code() (uint8, error) {
	code, ok := severityCodes[s]
	if !ok {
		return 0, fmt.Errorf("unknown severity %q", s)
	}
	return code, nil
}
