package attest

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// Seed derivation parameters follow the BIP-39 construction so keys
	// derived here match wallets fed the same mnemonic sentence.
	seedIterations = 2048
	seedLength     = 64
	seedSaltPrefix = "mnemonic"
)

// JudgeSigner holds the judge's secp256k1 private key for the process
// lifetime and exposes only narrow signing operations. The key is derived
// once at startup and never re-derived mid-process, so concurrent requests
// always observe the same signer identity.
type JudgeSigner struct {
	mu         sync.RWMutex
	privateKey *ecdsa.PrivateKey
}

// NewSignerFromHex builds a signer from a hex-encoded 32-byte private key.
func NewSignerFromHex(hexKey string) (*JudgeSigner, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, errors.Wrap(err, "parse private key")
	}
	return &JudgeSigner{privateKey: key}, nil
}

// NewSignerFromMnemonic derives the signing key from a mnemonic sentence.
// The sentence is normalized (lowercased, single-spaced) and stretched with
// PBKDF2-SHA512 per the BIP-39 seed construction; the first 32 bytes of the
// seed become the key, re-hashed in the astronomically unlikely case they
// fall outside the curve order.
func NewSignerFromMnemonic(mnemonic, passphrase string) (*JudgeSigner, error) {
	normalized := strings.ToLower(strings.Join(strings.Fields(mnemonic), " "))
	if normalized == "" {
		return nil, fmt.Errorf("mnemonic is empty")
	}

	seed := pbkdf2.Key([]byte(normalized), []byte(seedSaltPrefix+passphrase), seedIterations, seedLength, sha512.New)
	defer zeroBytes(seed)

	candidate := seed[:32]
	for attempt := 0; attempt < 8; attempt++ {
		key, err := crypto.ToECDSA(candidate)
		if err == nil {
			return &JudgeSigner{privateKey: key}, nil
		}
		next := sha256.Sum256(candidate)
		candidate = next[:]
	}
	return nil, fmt.Errorf("could not derive a valid secp256k1 key from mnemonic")
}

// SignDigest signs the provided 32-byte digest (already hashed) and returns a
// 65-byte EVM-compatible signature.
func (s *JudgeSigner) SignDigest(digest []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.privateKey == nil {
		return nil, ErrKeyUnavailable
	}
	if len(digest) != crypto.DigestLength {
		return nil, fmt.Errorf("digest must be %d bytes, got %d", crypto.DigestLength, len(digest))
	}

	signature, err := crypto.Sign(digest, s.privateKey)
	if err != nil {
		return nil, errors.Wrap(err, "sign digest")
	}

	// Convert V to EVM-compatible {27,28}. crypto.Sign returns V in various
	// forms ({0,1}, {27,28}, or chain-id offset); normalize to bit 0 and add
	// the EVM offset.
	v := signature[64]
	if v >= 27 {
		v -= 27
	}
	v &= 1
	signature[64] = v + 27
	return signature, nil
}

// SignKeccak256 signs the keccak256 hash of the payload and returns a 65-byte
// [R || S || V] signature with V in {27,28}.
func (s *JudgeSigner) SignKeccak256(payload []byte) ([]byte, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("payload cannot be empty")
	}
	hash := crypto.Keccak256Hash(payload)
	return s.SignDigest(hash.Bytes())
}

// PublicKey returns the uncompressed public key bytes, or nil after Zero.
func (s *JudgeSigner) PublicKey() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.privateKey == nil {
		return nil
	}
	return crypto.FromECDSAPub(&s.privateKey.PublicKey)
}

// Address returns the Ethereum address derived from the public key. This is
// the signer identity carried in every bundle.
func (s *JudgeSigner) Address() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.privateKey == nil {
		return ""
	}
	return crypto.PubkeyToAddress(s.privateKey.PublicKey).Hex()
}

// Zero wipes the key material. Subsequent signing attempts fail with
// ErrKeyUnavailable. Intended for shutdown; there is no re-initialization.
func (s *JudgeSigner) Zero() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.privateKey == nil {
		return
	}
	s.privateKey.D.SetInt64(0)
	s.privateKey = nil
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
