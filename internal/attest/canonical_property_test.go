package attest

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// genDecision produces structurally valid decision records for property runs.
func genDecision() gopter.Gen {
	genRisk := gopter.CombineGens(
		gen.Identifier(),
		gen.OneConstOf(SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical),
		gen.AlphaString(),
	).Map(func(values []interface{}) RiskFinding {
		return RiskFinding{
			Category:    values[0].(string),
			Severity:    values[1].(Severity),
			Explanation: values[2].(string),
		}
	})

	return gopter.CombineGens(
		gen.Identifier(),
		gen.Float64Range(0, 1),
		gen.MapOf(gen.Identifier(), gen.Bool()),
		gen.SliceOf(genRisk),
		gen.SliceOf(gen.Identifier()),
		gen.Int64Range(1, math.MaxInt32),
	).Map(func(values []interface{}) *DecisionRecord {
		d := &DecisionRecord{
			Subject: values[0].(string),
			Verdict: Verdict{
				Score:       values[1].(float64),
				Flags:       values[2].(map[string]bool),
				Risks:       values[3].([]RiskFinding),
				Remediation: values[4].([]string),
			},
			ProducedAt: values[5].(int64),
		}
		// Keep the remediation policy satisfied.
		if len(d.Verdict.Risks) > 0 && len(d.Verdict.Remediation) == 0 {
			d.Verdict.Remediation = []string{"retest sample"}
		}
		return d
	})
}

// normalForm reduces a record to the information scheme v1 actually encodes,
// so distinctness can be judged at the scheme's own precision.
func normalForm(d *DecisionRecord) string {
	keys := d.Verdict.sortedFlagKeys()
	flags := make([]string, 0, len(keys))
	for _, k := range keys {
		flags = append(flags, fmt.Sprintf("%s=%t", k, d.Verdict.Flags[k]))
	}
	sort.Strings(flags)
	return fmt.Sprintf("%q|%d|%d|%v|%v|%v",
		d.Subject, d.ProducedAt, scaledScore(d.Verdict.Score), flags, d.Verdict.Risks, d.Verdict.Remediation)
}

func TestCanonicalDecision_DeterminismProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("re-encoding and map rebuild yield identical bytes", prop.ForAll(
		func(d *DecisionRecord) bool {
			first, err := CanonicalDecision(d)
			if err != nil {
				return false
			}

			// Rebuild the flags map so iteration/insertion order differs.
			rebuilt := d.Clone()
			rebuilt.Verdict.Flags = make(map[string]bool, len(d.Verdict.Flags))
			keys := d.Verdict.sortedFlagKeys()
			for i := len(keys) - 1; i >= 0; i-- {
				rebuilt.Verdict.Flags[keys[i]] = d.Verdict.Flags[keys[i]]
			}

			second, err := CanonicalDecision(&rebuilt)
			if err != nil {
				return false
			}
			return bytes.Equal(first, second)
		},
		genDecision(),
	))

	properties.TestingRun(t)
}

func TestCanonicalDecision_InjectivityProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("distinct records canonicalize to distinct bytes", prop.ForAll(
		func(a, b *DecisionRecord) bool {
			ca, err := CanonicalDecision(a)
			if err != nil {
				return false
			}
			cb, err := CanonicalDecision(b)
			if err != nil {
				return false
			}
			return bytes.Equal(ca, cb) == (normalForm(a) == normalForm(b))
		},
		genDecision(),
		genDecision(),
	))

	properties.TestingRun(t)
}

func TestCanonicalDecision_ParseRoundTripProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("parse(encode(d)) re-encodes to the same bytes", prop.ForAll(
		func(d *DecisionRecord) bool {
			raw, err := CanonicalDecision(d)
			if err != nil {
				return false
			}
			parsed, err := ParseCanonicalDecision(raw)
			if err != nil {
				return false
			}
			again, err := CanonicalDecision(parsed)
			if err != nil {
				return false
			}
			if !bytes.Equal(raw, again) {
				return false
			}
			return normalForm(d) == normalForm(parsed)
		},
		genDecision(),
	))

	properties.TestingRun(t)
}
