package attest

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDecision() *DecisionRecord {
	return &DecisionRecord{
		Subject: "sample-42",
		Verdict: Verdict{
			Score: 0.8,
			Flags: map[string]bool{"drinking": false, "bathing": true},
			Risks: []RiskFinding{
				{Category: "iron", Severity: SeverityMedium, Explanation: "elevated iron"},
			},
			Remediation: []string{"boil for 5 minutes", "use iron filter"},
		},
		ProducedAt: 1700000000,
	}
}

func TestCanonicalDecision_Deterministic(t *testing.T) {
	first := sampleDecision()

	// Same logical record, flags inserted in the opposite order.
	second := sampleDecision()
	second.Verdict.Flags = map[string]bool{}
	second.Verdict.Flags["bathing"] = true
	second.Verdict.Flags["drinking"] = false

	a, err := CanonicalDecision(first)
	require.NoError(t, err)
	b, err := CanonicalDecision(second)
	require.NoError(t, err)
	require.Equal(t, a, b, "field-wise equal records must canonicalize identically")
}

func TestCanonicalDecision_Layout(t *testing.T) {
	d := sampleDecision()
	raw, err := CanonicalDecision(d)
	require.NoError(t, err)

	require.Equal(t, uint8(1), raw[0], "version byte")
	require.Equal(t, uint8(1), raw[1], "algorithm byte")
	require.Equal(t, uint64(1700000000), binary.BigEndian.Uint64(raw[2:10]))

	subjectLen := binary.LittleEndian.Uint32(raw[10:14])
	require.Equal(t, uint32(len("sample-42")), subjectLen)
	require.Equal(t, "sample-42", string(raw[14:14+subjectLen]))

	scoreOffset := 14 + int(subjectLen)
	require.Equal(t, uint64(800000), binary.BigEndian.Uint64(raw[scoreOffset:scoreOffset+8]),
		"score 0.8 serializes as 800000 micro-units")
}

func TestCanonicalDecision_RoundTrip(t *testing.T) {
	d := sampleDecision()
	raw, err := CanonicalDecision(d)
	require.NoError(t, err)

	parsed, err := ParseCanonicalDecision(raw)
	require.NoError(t, err)

	require.Equal(t, d.Subject, parsed.Subject)
	require.Equal(t, d.ProducedAt, parsed.ProducedAt)
	require.InDelta(t, d.Verdict.Score, parsed.Verdict.Score, 1.0/ScoreScale)
	require.Equal(t, d.Verdict.Flags, parsed.Verdict.Flags)
	require.Equal(t, d.Verdict.Risks, parsed.Verdict.Risks)
	require.Equal(t, d.Verdict.Remediation, parsed.Verdict.Remediation)

	// Re-encoding the parsed record reproduces the exact bytes.
	again, err := CanonicalDecision(parsed)
	require.NoError(t, err)
	require.Equal(t, raw, again)
}

func TestParseCanonicalDecision_Truncated(t *testing.T) {
	raw, err := CanonicalDecision(sampleDecision())
	require.NoError(t, err)

	_, err = ParseCanonicalDecision(raw[:len(raw)-1])
	require.Error(t, err)
	assert.Contains(t, err.Error(), "remediation")
}

func TestParseCanonicalDecision_TrailingBytes(t *testing.T) {
	raw, err := CanonicalDecision(sampleDecision())
	require.NoError(t, err)

	_, err = ParseCanonicalDecision(append(raw, 0xFF, 0xFF))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "trailing bytes")
}

func TestParseCanonicalDecision_UnknownVersion(t *testing.T) {
	raw, err := CanonicalDecision(sampleDecision())
	require.NoError(t, err)

	raw[0] = 9
	_, err = ParseCanonicalDecision(raw)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported canonical version")
}

func TestCanonicalDecision_AdjacentStringsDisambiguated(t *testing.T) {
	// "ab","c" and "a","bc" concatenate identically without prefixes; the
	// length prefixes must keep them apart.
	now := time.Now().Unix()
	first := &DecisionRecord{
		Subject:    "s",
		Verdict:    Verdict{Score: 0.5, Remediation: []string{"ab", "c"}},
		ProducedAt: now,
	}
	second := &DecisionRecord{
		Subject:    "s",
		Verdict:    Verdict{Score: 0.5, Remediation: []string{"a", "bc"}},
		ProducedAt: now,
	}

	a, err := CanonicalDecision(first)
	require.NoError(t, err)
	b, err := CanonicalDecision(second)
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}
