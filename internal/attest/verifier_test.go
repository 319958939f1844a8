package attest

import (
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestVerifier_TamperedScore(t *testing.T) {
	attestor, _ := newTestAttestor(t)
	verifier := NewVerifier(zap.NewNop())

	bundle, err := attestor.Attest(sampleDecision())
	require.NoError(t, err)

	// Post-signing change of the decision without re-signing.
	bundle.Decision.Verdict.Score = 0.9

	result, err := verifier.Verify(bundle)
	require.Error(t, err)
	assert.Equal(t, ResultSignatureMismatch, result)
}

func TestVerifier_TamperedSignatureBits(t *testing.T) {
	attestor, _ := newTestAttestor(t)
	verifier := NewVerifier(zap.NewNop())

	bundle, err := attestor.Attest(sampleDecision())
	require.NoError(t, err)

	// Flip one bit per byte across R and S. Every flip must yield a definite
	// negative, never a panic or a Valid.
	for i := 0; i < 64; i++ {
		tampered := *bundle
		tampered.Signature = append([]byte(nil), bundle.Signature...)
		tampered.Signature[i] ^= 1 << (i % 8)

		result, _ := verifier.Verify(&tampered)
		assert.Equal(t, ResultSignatureMismatch, result, "flipped bit in signature byte %d", i)
	}
}

func TestVerifier_TamperedCanonicalBytes(t *testing.T) {
	// Below the bundle API: flipping any single bit of the canonical bytes
	// changes the digest, so the recovered signer can no longer match.
	signer, err := NewSignerFromMnemonic(testMnemonic, "")
	require.NoError(t, err)

	canonical, err := CanonicalDecision(sampleDecision())
	require.NoError(t, err)
	signature, err := signer.SignKeccak256(canonical)
	require.NoError(t, err)

	for i := range canonical {
		tampered := append([]byte(nil), canonical...)
		tampered[i] ^= 0x01

		digest := crypto.Keccak256(tampered)
		normalized := append([]byte(nil), signature...)
		normalized[64] -= 27
		recovered, err := crypto.SigToPub(digest, normalized)
		if err != nil {
			continue // recovery failure is also a definite negative
		}
		assert.NotEqual(t, signer.Address(), crypto.PubkeyToAddress(*recovered).Hex(),
			"tampered byte %d must not recover the original signer", i)
	}
}

func TestVerifier_UnknownScheme(t *testing.T) {
	attestor, _ := newTestAttestor(t)
	verifier := NewVerifier(zap.NewNop())

	bundle, err := attestor.Attest(sampleDecision())
	require.NoError(t, err)
	bundle.SchemeID = "v2"

	result, err := verifier.Verify(bundle)
	require.Error(t, err)
	assert.Equal(t, ResultUnknownScheme, result,
		"a future scheme is not tampering and not validity")
}

func TestVerifier_MalformedDecision(t *testing.T) {
	attestor, _ := newTestAttestor(t)
	verifier := NewVerifier(zap.NewNop())

	bundle, err := attestor.Attest(sampleDecision())
	require.NoError(t, err)
	bundle.Decision.Verdict.Score = 3.2

	result, err := verifier.Verify(bundle)
	require.Error(t, err)
	assert.Equal(t, ResultMalformedDecision, result,
		"range violations are reported as malformed, not as signature failures")
}

func TestVerifier_NilAndGarbageBundles(t *testing.T) {
	verifier := NewVerifier(zap.NewNop())

	t.Run("Nil", func(t *testing.T) {
		result, err := verifier.Verify(nil)
		require.Error(t, err)
		assert.Equal(t, ResultMalformedDecision, result)
	})

	t.Run("EmptyBundle", func(t *testing.T) {
		result, err := verifier.Verify(&AttestationBundle{})
		require.Error(t, err)
		assert.Equal(t, ResultUnknownScheme, result)
	})

	t.Run("ShortSignature", func(t *testing.T) {
		bundle := &AttestationBundle{Decision: *sampleDecision(), SchemeID: SchemeV1, Signature: []byte{1, 2, 3}}
		result, err := verifier.Verify(bundle)
		require.Error(t, err)
		assert.Equal(t, ResultSignatureMismatch, result)
	})

	t.Run("GarbageSignerField", func(t *testing.T) {
		attestor, _ := newTestAttestor(t)
		bundle, err := attestor.Attest(sampleDecision())
		require.NoError(t, err)
		bundle.Signer = "not-an-address"

		result, err := verifier.Verify(bundle)
		require.Error(t, err)
		assert.Equal(t, ResultSignatureMismatch, result)
	})
}

func TestVerifier_ReportsWhoSigned(t *testing.T) {
	// A bundle signed by a different, valid key verifies for that signer.
	// Pinning to an expected signer is the caller's decision.
	otherSigner, err := NewSignerFromMnemonic("legal winner thank year wave sausage worth useful legal winner thank yellow", "")
	require.NoError(t, err)
	otherAttestor := NewAttestor(otherSigner, zap.NewNop())
	verifier := NewVerifier(zap.NewNop())

	bundle, err := otherAttestor.Attest(sampleDecision())
	require.NoError(t, err)

	result, err := verifier.Verify(bundle)
	require.NoError(t, err)
	assert.Equal(t, ResultValid, result)
	assert.Equal(t, otherSigner.Address(), bundle.Signer)

	trusted, err := NewSignerFromMnemonic(testMnemonic, "")
	require.NoError(t, err)
	assert.False(t, SignerAllowed(bundle, []string{trusted.Address()}))
	assert.True(t, SignerAllowed(bundle, []string{trusted.Address(), otherSigner.Address()}))
}

func TestVerifier_SwappedSignerMismatch(t *testing.T) {
	attestor, _ := newTestAttestor(t)
	verifier := NewVerifier(zap.NewNop())

	bundle, err := attestor.Attest(sampleDecision())
	require.NoError(t, err)

	// Claiming another identity over a valid signature must fail: the
	// signature binds the bytes to the recovered key, not to the claim.
	bundle.Signer = "0x0000000000000000000000000000000000000001"

	result, err := verifier.Verify(bundle)
	require.Error(t, err)
	assert.Equal(t, ResultSignatureMismatch, result)
}
