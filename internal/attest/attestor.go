package attest

import (
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// AttestationBundle is the signed artifact exchanged with consumers. It
// carries the decision in full so verification is self-contained. Created
// once, never mutated.
type AttestationBundle struct {
	Decision  DecisionRecord `json:"decision"`
	Signature hexutil.Bytes  `json:"signature"`
	Signer    string         `json:"signer"`
	SchemeID  string         `json:"scheme_id"`
}

// Attestor turns validated decision records into attestation bundles.
type Attestor struct {
	signer *JudgeSigner
	logger *zap.Logger
}

func NewAttestor(signer *JudgeSigner, logger *zap.Logger) *Attestor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Attestor{signer: signer, logger: logger}
}

// Attest validates, canonicalizes, and signs a decision record. Issuance is
// atomic: on any failure an error is returned and no partial bundle leaves
// this function.
func (a *Attestor) Attest(decision *DecisionRecord) (*AttestationBundle, error) {
	if err := decision.Validate(); err != nil {
		return nil, err
	}

	canonical, err := CanonicalDecision(decision)
	if err != nil {
		// Unreachable for a validated record; surfaced for completeness.
		return nil, errors.Wrap(err, "canonicalize decision")
	}

	signature, err := a.signer.SignKeccak256(canonical)
	if err != nil {
		return nil, errors.Wrap(err, "sign canonical decision")
	}

	bundle := &AttestationBundle{
		Decision:  decision.Clone(),
		Signature: signature,
		Signer:    a.signer.Address(),
		SchemeID:  SchemeV1,
	}

	a.logger.Debug("attestation issued",
		zap.String("subject", decision.Subject),
		zap.String("signer", bundle.Signer),
		zap.Int("canonical_bytes", len(canonical)))
	return bundle, nil
}
