package attest

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// Scheme identifiers bind a canonical byte layout and signature algorithm
// together. Any change to field order, precision, or encoding requires a new
// identifier; behavior under an existing identifier never changes.
const (
	// SchemeV1 is the only scheme this implementation produces: the layout
	// below, signed with secp256k1 over keccak256(canonical bytes).
	SchemeV1 = "v1"

	schemeV1Version   uint8 = 1
	schemeV1Algorithm uint8 = 1 // secp256k1 / keccak-256

	// ScoreScale fixes the serialized precision of the verdict score.
	// Scores are rounded to micro-units so that producer and verifier agree
	// on bytes regardless of platform float formatting.
	ScoreScale = 1_000_000
)

// CanonicalDecision serializes a decision record into the scheme v1 byte
// layout. The function is deterministic: field order is fixed, the flags map
// is sorted by key, and every variable-length section is length-prefixed so
// adjacent values can never be re-split ambiguously.
//
// Layout:
//
//	1 byte    version
//	1 byte    algorithm
//	8 bytes   produced_at (big-endian)
//	4 + n     subject (length-prefixed)
//	8 bytes   score in micro-units (big-endian)
//	4 bytes   flag count (big-endian), then per flag (sorted by key):
//	            4 + k key, 1 byte value
//	4 bytes   risk count (big-endian), then per risk:
//	            1 byte severity, 4 + c category, 4 + e explanation
//	4 bytes   remediation count (big-endian), then 4 + s per step
//
// Length prefixes are little-endian uint32; fixed-width integers are
// big-endian. CanonicalDecision cannot fail for a record that passed
// Validate; the error return only guards against unvalidated input.
func CanonicalDecision(d *DecisionRecord) ([]byte, error) {
	if d == nil {
		return nil, fmt.Errorf("decision is nil")
	}

	var buf bytes.Buffer
	buf.WriteByte(schemeV1Version)
	buf.WriteByte(schemeV1Algorithm)

	writeUint64(&buf, uint64(d.ProducedAt))
	writeLengthPrefixed(&buf, []byte(d.Subject))
	writeUint64(&buf, scaledScore(d.Verdict.Score))

	keys := d.Verdict.sortedFlagKeys()
	writeUint32(&buf, uint32(len(keys)))
	for _, key := range keys {
		writeLengthPrefixed(&buf, []byte(key))
		if d.Verdict.Flags[key] {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	}

	writeUint32(&buf, uint32(len(d.Verdict.Risks)))
	for i, risk := range d.Verdict.Risks {
		code, err := risk.Severity.code()
		if err != nil {
			return nil, fmt.Errorf("risk %d: %w", i, err)
		}
		buf.WriteByte(code)
		writeLengthPrefixed(&buf, []byte(risk.Category))
		writeLengthPrefixed(&buf, []byte(risk.Explanation))
	}

	writeUint32(&buf, uint32(len(d.Verdict.Remediation)))
	for _, step := range d.Verdict.Remediation {
		writeLengthPrefixed(&buf, []byte(step))
	}

	return buf.Bytes(), nil
}

// ParseCanonicalDecision decodes scheme v1 canonical bytes back into a
// decision record. Every length prefix is validated and trailing bytes are
// rejected so storage corruption or tampering is diagnosed precisely.
func ParseCanonicalDecision(data []byte) (*DecisionRecord, error) {
	if len(data) < 2+8 {
		return nil, fmt.Errorf("canonical decision too short: got %d bytes", len(data))
	}
	if data[0] != schemeV1Version {
		return nil, fmt.Errorf("unsupported canonical version %d", data[0])
	}
	if data[1] != schemeV1Algorithm {
		return nil, fmt.Errorf("unsupported canonical algorithm %d", data[1])
	}
	cursor := 2

	d := &DecisionRecord{}
	d.ProducedAt = int64(binary.BigEndian.Uint64(data[cursor : cursor+8]))
	cursor += 8

	var err error
	var chunk []byte
	if chunk, cursor, err = readLengthPrefixed(data, cursor); err != nil {
		return nil, fmt.Errorf("decode subject: %w", err)
	}
	d.Subject = string(chunk)

	if len(data) < cursor+8 {
		return nil, fmt.Errorf("canonical decision truncated before score")
	}
	d.Verdict.Score = float64(binary.BigEndian.Uint64(data[cursor:cursor+8])) / ScoreScale
	cursor += 8

	flagCount, cursor, err := readUint32(data, cursor, "flag count")
	if err != nil {
		return nil, err
	}
	if flagCount > 0 {
		d.Verdict.Flags = make(map[string]bool, flagCount)
	}
	for i := uint32(0); i < flagCount; i++ {
		if chunk, cursor, err = readLengthPrefixed(data, cursor); err != nil {
			return nil, fmt.Errorf("decode flag %d key: %w", i, err)
		}
		if len(data) < cursor+1 {
			return nil, fmt.Errorf("canonical decision truncated in flag %d value", i)
		}
		d.Verdict.Flags[string(chunk)] = data[cursor] != 0
		cursor++
	}

	riskCount, cursor, err := readUint32(data, cursor, "risk count")
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < riskCount; i++ {
		if len(data) < cursor+1 {
			return nil, fmt.Errorf("canonical decision truncated in risk %d severity", i)
		}
		severity, ok := severityFromCode[data[cursor]]
		if !ok {
			return nil, fmt.Errorf("risk %d has unknown severity code %d", i, data[cursor])
		}
		cursor++

		risk := RiskFinding{Severity: severity}
		if chunk, cursor, err = readLengthPrefixed(data, cursor); err != nil {
			return nil, fmt.Errorf("decode risk %d category: %w", i, err)
		}
		risk.Category = string(chunk)
		if chunk, cursor, err = readLengthPrefixed(data, cursor); err != nil {
			return nil, fmt.Errorf("decode risk %d explanation: %w", i, err)
		}
		risk.Explanation = string(chunk)
		d.Verdict.Risks = append(d.Verdict.Risks, risk)
	}

	stepCount, cursor, err := readUint32(data, cursor, "remediation count")
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < stepCount; i++ {
		if chunk, cursor, err = readLengthPrefixed(data, cursor); err != nil {
			return nil, fmt.Errorf("decode remediation step %d: %w", i, err)
		}
		d.Verdict.Remediation = append(d.Verdict.Remediation, string(chunk))
	}

	if cursor != len(data) {
		return nil, fmt.Errorf("canonical decision has %d trailing bytes", len(data)-cursor)
	}
	return d, nil
}

// scaledScore rounds to micro-units. The precision loss is defined behavior
// of scheme v1, not drift: both ends compute the same integer.
func scaledScore(score float64) uint64 {
	return uint64(math.Round(score * ScoreScale))
}

func writeUint64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

// writeLengthPrefixed emits a little-endian uint32 length followed by the bytes.
func writeLengthPrefixed(buf *bytes.Buffer, data []byte) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(len(data)))
	buf.Write(b[:])
	buf.Write(data)
}

// readLengthPrefixed decodes a little-endian uint32 length followed by that many bytes.
func readLengthPrefixed(data []byte, cursor int) ([]byte, int, error) {
	if len(data) < cursor+4 {
		return nil, cursor, fmt.Errorf("truncated length prefix at offset %d", cursor)
	}

	length := binary.LittleEndian.Uint32(data[cursor : cursor+4])
	cursor += 4

	if len(data) < cursor+int(length) {
		return nil, cursor, fmt.Errorf("declared length %d exceeds remaining %d bytes", length, len(data)-cursor)
	}

	chunk := data[cursor : cursor+int(length)]
	cursor += int(length)
	return bytes.Clone(chunk), cursor, nil
}

func readUint32(data []byte, cursor int, field string) (uint32, int, error) {
	if len(data) < cursor+4 {
		return 0, cursor, fmt.Errorf("canonical decision truncated before %s", field)
	}
	v := binary.BigEndian.Uint32(data[cursor : cursor+4])
	return v, cursor + 4, nil
}
