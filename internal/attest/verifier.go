package attest

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// VerificationResult classifies the outcome of verifying a bundle. Every
// possible input, including hostile ones, maps to exactly one variant.
type VerificationResult string

const (
	// ResultValid: the signature is authentic for the embedded decision and
	// was produced by the declared signer.
	ResultValid VerificationResult = "valid"
	// ResultSignatureMismatch: the cryptographic check failed, or the
	// recovered signer does not match the declared one. A definite negative,
	// never a "maybe".
	ResultSignatureMismatch VerificationResult = "signature_mismatch"
	// ResultUnknownScheme: the bundle declares a scheme this verifier does
	// not implement. Distinct from tampering; future schemes are expected.
	ResultUnknownScheme VerificationResult = "unknown_scheme"
	// ResultMalformedDecision: the embedded decision fails the same
	// validation the attestor applies, so the bundle could never have been
	// legitimately issued.
	ResultMalformedDecision VerificationResult = "malformed_decision"
)

// Verifier checks attestation bundles without any trust in their origin. It
// holds no key material; the signer is recovered from the signature itself.
type Verifier struct {
	logger *zap.Logger
}

func NewVerifier(logger *zap.Logger) *Verifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Verifier{logger: logger}
}

// Verify recomputes the canonical bytes of the embedded decision, recovers
// the signing key from the signature, and compares it against the declared
// signer. The error return carries diagnostic detail and is nil exactly when
// the result is ResultValid.
//
// Verify authenticates the signature; it does not decide whether the signer
// is one the caller trusts. Pair it with SignerAllowed for pinning.
func (v *Verifier) Verify(bundle *AttestationBundle) (VerificationResult, error) {
	if bundle == nil {
		return ResultMalformedDecision, fmt.Errorf("bundle is nil")
	}
	if bundle.SchemeID != SchemeV1 {
		return ResultUnknownScheme, fmt.Errorf("scheme %q is not supported", bundle.SchemeID)
	}
	if err := bundle.Decision.Validate(); err != nil {
		return ResultMalformedDecision, err
	}

	canonical, err := CanonicalDecision(&bundle.Decision)
	if err != nil {
		return ResultMalformedDecision, err
	}
	digest := crypto.Keccak256(canonical)

	if len(bundle.Signature) != crypto.SignatureLength {
		return ResultSignatureMismatch, fmt.Errorf("signature must be %d bytes, got %d", crypto.SignatureLength, len(bundle.Signature))
	}
	// Normalize recovery ID to the compact {0,1} form expected by SigToPub.
	normalized := append([]byte(nil), bundle.Signature...)
	recoveryID, err := toCompactRecoveryID(normalized[64])
	if err != nil {
		return ResultSignatureMismatch, fmt.Errorf("normalize recovery id: %w", err)
	}
	normalized[64] = recoveryID

	recovered, err := crypto.SigToPub(digest, normalized)
	if err != nil {
		return ResultSignatureMismatch, fmt.Errorf("recover public key from signature: %w", err)
	}
	recoveredAddr := crypto.PubkeyToAddress(*recovered)

	if !common.IsHexAddress(bundle.Signer) {
		return ResultSignatureMismatch, fmt.Errorf("declared signer %q is not a valid address", bundle.Signer)
	}
	if recoveredAddr != common.HexToAddress(bundle.Signer) {
		return ResultSignatureMismatch, fmt.Errorf("recovered signer %s does not match declared signer %s",
			recoveredAddr.Hex(), bundle.Signer)
	}

	v.logger.Debug("attestation verified",
		zap.String("subject", bundle.Decision.Subject),
		zap.String("signer", recoveredAddr.Hex()))
	return ResultValid, nil
}

// SignerAllowed reports whether the bundle's declared signer is in the
// caller's allowlist. It does not verify the signature; callers that want
// pinning run Verify first and then this check.
func SignerAllowed(bundle *AttestationBundle, allowed []string) bool {
	if bundle == nil {
		return false
	}
	return lo.SomeBy(allowed, func(addr string) bool {
		return strings.EqualFold(strings.TrimSpace(addr), bundle.Signer)
	})
}

func toCompactRecoveryID(v byte) (byte, error) {
	switch {
	case v <= 1:
		return v, nil
	case v >= 27 && v <= 34:
		return (v - 27) & 1, nil
	default:
		return 0, fmt.Errorf("invalid recovery id %d", v)
	}
}
