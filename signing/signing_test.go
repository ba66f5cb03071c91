package signing

import (
	"bytes"
	"crypto/ed25519"
	"encoding/hex"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	emptySHA256      = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	helloWorldSHA256 = "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"
	rfc8032PublicKey = "d75a980182b10ab7d54bfed3c964073a0ee172f3daa62325af021a68f707511a"
)

func testKey(t *testing.T, seedByte byte) ed25519.PrivateKey {
	t.Helper()
	return ed25519.NewKeyFromSeed(bytes.Repeat([]byte{seedByte}, SeedSize))
}

func TestNewSigner(t *testing.T) {
	s := NewSigner()
	assert.Zero(t, s.TrustedKeyCount())
	assert.False(t, s.HasTrustedKeys())
}

func TestAddTrustedKeyHex(t *testing.T) {
	s := NewSigner()
	require.NoError(t, s.AddTrustedKeyHex(rfc8032PublicKey))
	assert.Equal(t, 1, s.TrustedKeyCount())
	assert.True(t, s.HasTrustedKeys())

	require.NoError(t, s.AddTrustedKeyHex(strings.ToUpper(rfc8032PublicKey)))
	assert.Equal(t, 1, s.TrustedKeyCount(), "same key added twice")
}

func TestAddTrustedKeyInvalid(t *testing.T) {
	offCurve := make([]byte, PublicKeySize)
	offCurve[0] = 0x02

	tests := []struct {
		name string
		key  []byte
	}{
		{"empty", nil},
		{"short", make([]byte, 31)},
		{"long", make([]byte, 33)},
		{"not a curve point", offCurve},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSigner()
			err := s.AddTrustedKey(tt.key)
			require.ErrorIs(t, err, ErrInvalidKey)
			assert.Zero(t, s.TrustedKeyCount())
		})
	}
}

func TestAddTrustedKeyHexInvalid(t *testing.T) {
	s := NewSigner()
	assert.ErrorIs(t, s.AddTrustedKeyHex("not-hex"), ErrInvalidKey)
	assert.ErrorIs(t, s.AddTrustedKeyHex("abcd"), ErrInvalidKey)
	assert.Zero(t, s.TrustedKeyCount())
}

func TestVerifyPluginNoKeys(t *testing.T) {
	var buf bytes.Buffer
	s := NewSigner(WithLogger(zerolog.New(&buf)))

	ok, err := s.VerifyPlugin([]byte("wasm"), make([]byte, SignatureSize))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Contains(t, buf.String(), `"level":"warn"`)

	// Shape is not checked before the empty-set answer.
	ok, err = s.VerifyPlugin([]byte("wasm"), []byte{1, 2, 3})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyPlugin(t *testing.T) {
	wasm := []byte("\x00asm\x01\x00\x00\x00")
	trusted := testKey(t, 1)
	other := testKey(t, 2)
	unknown := testKey(t, 3)

	s := NewSigner()
	require.NoError(t, s.AddTrustedKey(other.Public().(ed25519.PublicKey)))
	require.NoError(t, s.AddTrustedKey(trusted.Public().(ed25519.PublicKey)))

	ok, err := s.VerifyPlugin(wasm, Sign(trusted, wasm))
	require.NoError(t, err)
	assert.True(t, ok, "signed by a trusted key")

	ok, err = s.VerifyPlugin(wasm, Sign(unknown, wasm))
	require.NoError(t, err)
	assert.False(t, ok, "signed by an untrusted key")

	ok, err = s.VerifyPlugin(append(wasm, 0), Sign(trusted, wasm))
	require.NoError(t, err)
	assert.False(t, ok, "tampered bytes")

	_, err = s.VerifyPlugin(wasm, make([]byte, 63))
	assert.ErrorIs(t, err, ErrInvalidSignature)
	_, err = s.VerifyPlugin(wasm, make([]byte, 65))
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerifyPluginHex(t *testing.T) {
	wasm := []byte("module")
	priv := testKey(t, 7)

	s := NewSigner()
	require.NoError(t, s.AddTrustedKeyHex(hex.EncodeToString(priv.Public().(ed25519.PublicKey))))

	sigHex := hex.EncodeToString(Sign(priv, wasm))
	require.Len(t, sigHex, 128)

	ok, err := s.VerifyPluginHex(wasm, sigHex)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = s.VerifyPluginHex(wasm, "zz")
	assert.ErrorIs(t, err, ErrInvalidSignature)
	_, err = s.VerifyPluginHex(wasm, sigHex[:126])
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerifyPluginConcurrent(t *testing.T) {
	wasm := []byte("module")
	priv := testKey(t, 9)
	sig := Sign(priv, wasm)

	s := NewSigner()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i == 0 {
				assert.NoError(t, s.AddTrustedKey(priv.Public().(ed25519.PublicKey)))
				return
			}
			_, err := s.VerifyPlugin(wasm, sig)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	ok, err := s.VerifyPlugin(wasm, sig)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestComputeChecksum(t *testing.T) {
	assert.Equal(t, emptySHA256, ComputeChecksum(nil))
	assert.Equal(t, emptySHA256, ComputeChecksum([]byte{}))
	assert.Equal(t, helloWorldSHA256, ComputeChecksum([]byte("hello world")))
	assert.Len(t, ComputeChecksum([]byte("x")), 64)
}

func TestVerifyChecksum(t *testing.T) {
	data := []byte("hello world")
	assert.True(t, VerifyChecksum(data, helloWorldSHA256))
	assert.True(t, VerifyChecksum(data, strings.ToUpper(helloWorldSHA256)))
	assert.False(t, VerifyChecksum(data, emptySHA256))
	assert.False(t, VerifyChecksum(data, ""))
}

func TestParsePrivateKeyHex(t *testing.T) {
	priv := testKey(t, 5)

	got, err := ParsePrivateKeyHex(hex.EncodeToString(priv.Seed()))
	require.NoError(t, err)
	assert.True(t, priv.Equal(got))

	got, err = ParsePrivateKeyHex(hex.EncodeToString(priv))
	require.NoError(t, err)
	assert.True(t, priv.Equal(got))

	tampered := bytes.Clone(priv)
	tampered[40] ^= 0xff
	_, err = ParsePrivateKeyHex(hex.EncodeToString(tampered))
	assert.Error(t, err)

	_, err = ParsePrivateKeyHex("abcd")
	assert.Error(t, err)
}

func TestGenerateKeyRoundTrip(t *testing.T) {
	pub, priv, err := GenerateKey()
	require.NoError(t, err)

	s := NewSigner()
	require.NoError(t, s.AddTrustedKey(pub))

	wasm := []byte("payload")
	ok, err := s.VerifyPlugin(wasm, Sign(priv, wasm))
	require.NoError(t, err)
	assert.True(t, ok)
}
