package judge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trufnetwork/waterjudge/internal/attest"
)

func TestEvaluateStrip(t *testing.T) {
	t.Run("WithinRange", func(t *testing.T) {
		findings := EvaluateStrip(map[string]string{
			"iron": "0.2 mg/L",
			"ph":   "7.2",
		})
		assert.Empty(t, findings)
	})

	t.Run("AboveMaximum", func(t *testing.T) {
		findings := EvaluateStrip(map[string]string{"iron": "0.4 mg/L"})
		require.Len(t, findings, 1)
		assert.Equal(t, "iron", findings[0].Category)
		assert.Equal(t, attest.SeverityMedium, findings[0].Severity)
		assert.Contains(t, findings[0].Explanation, "above reference maximum")
	})

	t.Run("SeverityGrading", func(t *testing.T) {
		cases := []struct {
			reading  string
			severity attest.Severity
		}{
			{"0.4", attest.SeverityMedium},   // 1.3x of 0.3
			{"0.5", attest.SeverityHigh},     // 1.7x
			{"1.0", attest.SeverityCritical}, // 3.3x
		}
		for _, tc := range cases {
			findings := EvaluateStrip(map[string]string{"iron": tc.reading})
			require.Len(t, findings, 1, "reading %s", tc.reading)
			assert.Equal(t, tc.severity, findings[0].Severity, "reading %s", tc.reading)
		}
	})

	t.Run("ZeroToleranceAnalyte", func(t *testing.T) {
		findings := EvaluateStrip(map[string]string{"hydrogen_sulfide": "0.1 mg/L"})
		require.Len(t, findings, 1)
		assert.Equal(t, attest.SeverityHigh, findings[0].Severity)
	})

	t.Run("BelowMinimum", func(t *testing.T) {
		findings := EvaluateStrip(map[string]string{"total_alkalinity": "20 mg/L"})
		require.Len(t, findings, 1)
		assert.Equal(t, attest.SeverityMedium, findings[0].Severity)
		assert.Contains(t, findings[0].Explanation, "below reference minimum")
	})

	t.Run("SkipsUnknownAndNonNumeric", func(t *testing.T) {
		findings := EvaluateStrip(map[string]string{
			"unobtainium": "9000",
			"iron":        "murky",
		})
		assert.Empty(t, findings)
	})

	t.Run("DeterministicOrder", func(t *testing.T) {
		values := map[string]string{
			"nitrate": "20 mg/L",
			"iron":    "0.5 mg/L",
			"lead":    "40 µg/L",
		}
		first := EvaluateStrip(values)
		second := EvaluateStrip(values)
		require.Equal(t, first, second)
		require.Len(t, first, 3)
		// Sorted by analyte key.
		assert.Equal(t, "iron", first[0].Category)
		assert.Equal(t, "lead", first[1].Category)
		assert.Equal(t, "nitrate", first[2].Category)
	})
}

func TestReferenceRangesText(t *testing.T) {
	text := ReferenceRangesText()
	assert.Contains(t, text, "Total Alkalinity: 40 - 240 mg/L")
	assert.Contains(t, text, "pH: 6.8 - 8.4")
	assert.Contains(t, text, "Lead: 0 - 15 µg/L")
	assert.Contains(t, text, "Hydrogen Sulfide: 0 mg/L")
}
