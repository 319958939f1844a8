// Package attest implements the attestation pipeline for water-quality judgments.
//
// When a caller submits a decision for attestation, the package:
// 1. Validates the decision record (score range, severity values, remediation policy)
// 2. Canonicalizes it into a deterministic byte layout (scheme v1)
// 3. Signs keccak256(canonical bytes) with the judge's secp256k1 key
// 4. Assembles an AttestationBundle carrying decision, signature, signer and scheme
//
// Key components:
// - JudgeSigner: thread-safe secp256k1 signing with EVM-compatible signatures
// - CanonicalDecision/ParseCanonicalDecision: the scheme v1 byte codec
// - Attestor: atomic issuance (a bundle is either fully valid or not emitted)
// - Verifier: maps every bundle, including hostile ones, to a VerificationResult
//
// The canonical layout is versioned by SchemeID. Changing field order, score
// precision, or any encoding detail requires a new scheme identifier.
package attest
