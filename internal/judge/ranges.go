package judge

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/trufnetwork/waterjudge/internal/attest"
)

// ReferenceRange bounds an acceptable strip-test reading. Max of zero means
// any detectable amount is out of range.
type ReferenceRange struct {
	Analyte string
	Min     float64
	Max     float64
	Unit    string
}

// StripReferenceRanges lists qualitative guidance bounds for common strip
// analytes (drinking-water oriented).
var StripReferenceRanges = []ReferenceRange{
	{Analyte: "total alkalinity", Min: 40, Max: 240, Unit: "mg/L"},
	{Analyte: "ph", Min: 6.8, Max: 8.4, Unit: ""},
	{Analyte: "hydrogen sulfide", Min: 0, Max: 0, Unit: "mg/L"},
	{Analyte: "iron", Min: 0, Max: 0.3, Unit: "mg/L"},
	{Analyte: "copper", Min: 0, Max: 1, Unit: "mg/L"},
	{Analyte: "lead", Min: 0, Max: 15, Unit: "µg/L"},
	{Analyte: "manganese", Min: 0, Max: 0.1, Unit: "mg/L"},
	{Analyte: "total chlorine", Min: 0, Max: 3, Unit: "mg/L"},
	{Analyte: "free chlorine", Min: 0, Max: 3, Unit: "mg/L"},
	{Analyte: "nitrate", Min: 0, Max: 10, Unit: "mg/L"},
	{Analyte: "nitrite", Min: 0, Max: 1, Unit: "mg/L"},
	{Analyte: "sulfate", Min: 0, Max: 200, Unit: "mg/L"},
	{Analyte: "zinc", Min: 0, Max: 5, Unit: "mg/L"},
	{Analyte: "sodium chloride", Min: 0, Max: 250, Unit: "mg/L"},
	{Analyte: "fluoride", Min: 0, Max: 4, Unit: "mg/L"},
}

// ReferenceRangesText renders the table as plain text for engine prompts.
func ReferenceRangesText() string {
	lines := lo.Map(StripReferenceRanges, func(r ReferenceRange, _ int) string {
		unit := r.Unit
		if unit != "" {
			unit = " " + unit
		}
		if r.Max == 0 {
			return fmt.Sprintf("%s: 0%s", titleCase(r.Analyte), unit)
		}
		return fmt.Sprintf("%s: %s - %s%s", titleCase(r.Analyte),
			formatBound(r.Min), formatBound(r.Max), unit)
	})
	return strings.Join(lines, "\n")
}

var numberPattern = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

// EvaluateStrip converts raw strip readings into risk findings by comparing
// each numeric reading against its reference range. Non-numeric readings and
// unknown analytes are skipped; the engine still sees them in the prompt.
func EvaluateStrip(values map[string]string) []attest.RiskFinding {
	var findings []attest.RiskFinding

	keys := lo.Keys(values)
	slices.Sort(keys)
	for _, key := range keys {
		rr, ok := lookupRange(key)
		if !ok {
			continue
		}
		match := numberPattern.FindString(values[key])
		if match == "" {
			continue
		}
		reading, err := strconv.ParseFloat(match, 64)
		if err != nil {
			continue
		}

		switch {
		case reading > rr.Max:
			findings = append(findings, attest.RiskFinding{
				Category: rr.Analyte,
				Severity: exceedanceSeverity(reading, rr),
				Explanation: fmt.Sprintf("%s reading %s above reference maximum %s%s",
					rr.Analyte, formatBound(reading), formatBound(rr.Max), unitSuffix(rr)),
			})
		case reading < rr.Min:
			findings = append(findings, attest.RiskFinding{
				Category: rr.Analyte,
				Severity: attest.SeverityMedium,
				Explanation: fmt.Sprintf("%s reading %s below reference minimum %s%s",
					rr.Analyte, formatBound(reading), formatBound(rr.Min), unitSuffix(rr)),
			})
		}
	}
	return findings
}

func lookupRange(analyte string) (ReferenceRange, bool) {
	normalized := strings.ToLower(strings.TrimSpace(analyte))
	normalized = strings.ReplaceAll(normalized, "_", " ")
	return lo.Find(StripReferenceRanges, func(r ReferenceRange) bool {
		return r.Analyte == normalized
	})
}

// exceedanceSeverity grades how far a reading sits above its bound.
func exceedanceSeverity(reading float64, rr ReferenceRange) attest.Severity {
	if rr.Max == 0 {
		// Zero-tolerance analytes: any detection is already serious.
		return attest.SeverityHigh
	}
	ratio := reading / rr.Max
	switch {
	case ratio >= 3:
		return attest.SeverityCritical
	case ratio >= 1.5:
		return attest.SeverityHigh
	default:
		return attest.SeverityMedium
	}
}

func unitSuffix(rr ReferenceRange) string {
	if rr.Unit == "" {
		return ""
	}
	return " " + rr.Unit
}

func formatBound(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		if w == "ph" {
			words[i] = "pH"
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
