package signing

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"

	"filippo.io/edwards25519"
	"github.com/rs/zerolog"
)

const (
	PublicKeySize  = ed25519.PublicKeySize
	SignatureSize  = ed25519.SignatureSize
	PrivateKeySize = ed25519.PrivateKeySize
	SeedSize       = ed25519.SeedSize
)

var (
	// ErrInvalidKey reports key material of the wrong length, bad encoding, or
	// bytes that do not decode to a curve point.
	ErrInvalidKey = errors.New("invalid public key")

	// ErrInvalidSignature reports a signature of the wrong shape. A well-formed
	// signature that matches no trusted key is not an error.
	ErrInvalidSignature = errors.New("invalid signature")
)

// Signer holds the trusted key set and verifies plugin signatures against it.
// Keys are only ever added; there is no revocation.
type Signer struct {
	log  zerolog.Logger
	mu   sync.RWMutex
	keys map[[PublicKeySize]byte]ed25519.PublicKey
}

// Option configures a Signer.
type Option func(*Signer)

// WithLogger sets the logger verification results are reported to.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Signer) {
		s.log = l
	}
}

// NewSigner creates a Signer with no trusted keys.
func NewSigner(opts ...Option) *Signer {
	s := &Signer{
		log:  zerolog.Nop(),
		keys: make(map[[PublicKeySize]byte]ed25519.PublicKey),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddTrustedKey adds a raw 32-byte ed25519 public key to the trusted set.
func (s *Signer) AddTrustedKey(key []byte) error {
	if len(key) != PublicKeySize {
		return fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidKey, PublicKeySize, len(key))
	}
	if _, err := new(edwards25519.Point).SetBytes(key); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	var id [PublicKeySize]byte
	copy(id[:], key)

	s.mu.Lock()
	s.keys[id] = ed25519.PublicKey(id[:])
	s.mu.Unlock()

	s.log.Debug().Str("key", hex.EncodeToString(key)).Msg("added trusted signing key")
	return nil
}

// AddTrustedKeyHex decodes a 64-character hex key and adds it.
func (s *Signer) AddTrustedKeyHex(hexKey string) error {
	key, err := hex.DecodeString(strings.TrimSpace(hexKey))
	if err != nil {
		return fmt.Errorf("%w: hex decode: %v", ErrInvalidKey, err)
	}
	return s.AddTrustedKey(key)
}

// TrustedKeyCount returns the number of distinct trusted keys.
func (s *Signer) TrustedKeyCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}

// HasTrustedKeys reports whether any key is trusted.
func (s *Signer) HasTrustedKeys() bool {
	return s.TrustedKeyCount() > 0
}

// VerifyPlugin checks signature over wasm against every trusted key. A match
// against any key is sufficient. With no trusted keys configured it returns
// false without error: verification never passes by default.
func (s *Signer) VerifyPlugin(wasm, signature []byte) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.keys) == 0 {
		s.log.Warn().Msg("no trusted keys configured, plugin signature not verified")
		return false, nil
	}

	if len(signature) != SignatureSize {
		return false, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidSignature, SignatureSize, len(signature))
	}

	for _, key := range s.keys {
		if ed25519.Verify(key, wasm, signature) {
			s.log.Debug().Msg("plugin signature verified")
			return true, nil
		}
	}

	s.log.Warn().Int("trusted_keys", len(s.keys)).Msg("plugin signature matched no trusted key")
	return false, nil
}

// VerifyPluginHex decodes a 128-character hex signature and verifies it.
func (s *Signer) VerifyPluginHex(wasm []byte, signatureHex string) (bool, error) {
	sig, err := hex.DecodeString(strings.TrimSpace(signatureHex))
	if err != nil {
		return false, fmt.Errorf("%w: hex decode: %v", ErrInvalidSignature, err)
	}
	return s.VerifyPlugin(wasm, sig)
}

// ComputeChecksum returns the lowercase hex SHA-256 digest of data.
func ComputeChecksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// VerifyChecksum reports whether data hashes to expected, ignoring hex case.
func VerifyChecksum(data []byte, expected string) bool {
	return strings.EqualFold(ComputeChecksum(data), strings.TrimSpace(expected))
}

// GenerateKey creates a new ed25519 key pair.
func GenerateKey() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("generate key: %w", err)
	}
	return pub, priv, nil
}

// Sign produces a detached signature over wasm.
func Sign(priv ed25519.PrivateKey, wasm []byte) []byte {
	return ed25519.Sign(priv, wasm)
}

// ParsePrivateKeyHex accepts either a 32-byte seed or a 64-byte private key,
// hex encoded.
func ParsePrivateKeyHex(s string) (ed25519.PrivateKey, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("decode private key: %w", err)
	}
	switch len(raw) {
	case SeedSize:
		return ed25519.NewKeyFromSeed(raw), nil
	case PrivateKeySize:
		priv := ed25519.PrivateKey(raw)
		seeded := ed25519.NewKeyFromSeed(priv.Seed())
		if !seeded.Equal(priv) {
			return nil, errors.New("private key does not match its embedded public key")
		}
		return priv, nil
	default:
		return nil, fmt.Errorf("private key must be %d or %d bytes, got %d", SeedSize, PrivateKeySize, len(raw))
	}
}
