package hybrid

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/klog/v2"
	"k8s.io/klog/v2/ktesting"
	_ "k8s.io/klog/v2/ktesting/init"

	"github.com/sealpost/sealpost/internal/envelope"
)

var (
	testKeyOnce     sync.Once
	internalTestKey *rsa.PrivateKey
)

// testKey generates and returns a singleton RSA private key for testing purposes,
// to avoid needing to generate a new key for each test.
func testKey() *rsa.PrivateKey {
	testKeyOnce.Do(func() {
		key, err := rsa.GenerateKey(rand.Reader, envelope.MinRSAKeySize)
		if err != nil {
			panic("failed to generate test RSA key: " + err.Error())
		}

		internalTestKey = key
	})

	return internalTestKey
}

func newTestPair(t *testing.T, opts ...Option) (*Encryptor, *Decryptor) {
	t.Helper()

	key := testKey()

	enc, err := NewEncryptor(envelope.StaticKey{Key: &key.PublicKey}, opts...)
	require.NoError(t, err)

	dec, err := NewDecryptor(key, opts...)
	require.NoError(t, err)

	return enc, dec
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) {
	return 0, errors.New("entropy source unavailable")
}

type failingProvider struct{ err error }

func (f failingProvider) PublicKey(context.Context) (*rsa.PublicKey, error) {
	return nil, f.err
}

func TestNewEncryptor_NilProvider(t *testing.T) {
	enc, err := NewEncryptor(nil)
	require.Error(t, err)
	require.Nil(t, enc)
	require.Contains(t, err.Error(), "cannot be nil")
}

func TestEncrypt_DecryptRoundtrip(t *testing.T) {
	enc, dec := newTestPair(t)

	tests := []struct {
		name      string
		plaintext string
	}{
		{"empty", ""},
		{"empty object", "{}"},
		{"json", `{"SITE_ID":"abc","TEST":false,"DISPLAY":"1920x1080"}`},
		{"exactly one block", "0123456789abcdef"},
		{"latin-1", "Grüße, señor"},
		{"large (1 MB)", strings.Repeat("x", 1024*1024)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sealed, err := enc.Encrypt(t.Context(), tt.plaintext)
			require.NoError(t, err)
			require.NotEmpty(t, sealed)

			opened, err := dec.Open(t.Context(), sealed)
			require.NoError(t, err)

			assert.Equal(t, envelope.CharCodeBytes(tt.plaintext), opened.Plaintext)
			assert.Equal(t, tt.plaintext, opened.Text)
			assert.Len(t, opened.IV, 16)
			assert.Len(t, opened.Key, 32)
		})
	}
}

func TestEncrypt_EmptyPlaintextIsOneBlock(t *testing.T) {
	enc, _ := newTestPair(t)

	sealed, err := enc.Encrypt(t.Context(), "")
	require.NoError(t, err)

	env, err := Parse(sealed)
	require.NoError(t, err)

	require.Len(t, env.PayloadCiphertext, 16, "an empty plaintext should encrypt to exactly one padding block")
	require.Len(t, env.KeyWrap, 256, "key wrap should be 256 bytes for RSA 2048")
}

func TestEncrypt_FormatInvariant(t *testing.T) {
	enc, _ := newTestPair(t)

	sealed, err := enc.Encrypt(t.Context(), `{"a":1}`)
	require.NoError(t, err)

	outer, err := base64.StdEncoding.DecodeString(sealed)
	require.NoError(t, err, "envelope should be valid base64")

	parts := strings.Split(string(outer), ":")
	require.Len(t, parts, 2, "decoded envelope should have exactly 2 colon-separated fields")

	for i, part := range parts {
		require.NotEmpty(t, part, "field %d should not be empty", i)

		_, err := base64.StdEncoding.DecodeString(part)
		require.NoError(t, err, "field %d should be valid base64: %s", i, part)
	}
}

func TestEncrypt_KeyWrapShape(t *testing.T) {
	enc, _ := newTestPair(t)

	sealed, err := enc.Encrypt(t.Context(), "{}")
	require.NoError(t, err)

	env, err := Parse(sealed)
	require.NoError(t, err)

	material, err := rsa.DecryptOAEP(sha256.New(), nil, testKey(), env.KeyWrap, nil)
	require.NoError(t, err)

	// 16 bytes of IV and 32 bytes of key, standard base64 with padding
	pattern := regexp.MustCompile(`^[A-Za-z0-9+/]{22}==:[A-Za-z0-9+/]{43}=$`)
	require.Regexp(t, pattern, string(material))
}

func TestEncrypt_NonDeterministic(t *testing.T) {
	enc, _ := newTestPair(t)

	data := "test data for encryption"

	result1, err := enc.Encrypt(t.Context(), data)
	require.NoError(t, err)

	result2, err := enc.Encrypt(t.Context(), data)
	require.NoError(t, err)

	require.NotEqual(t, result1, result2, "Encrypting the same data twice should produce different envelopes")
}

func TestEncrypt_UniqueKeyMaterial(t *testing.T) {
	enc, dec := newTestPair(t)

	const calls = 1000

	ivs := make(map[string]struct{}, calls)
	keys := make(map[string]struct{}, calls)

	for i := 0; i < calls; i++ {
		sealed, err := enc.Encrypt(t.Context(), "same plaintext")
		require.NoError(t, err)

		env, err := Parse(sealed)
		require.NoError(t, err)

		iv, key, err := unwrapKey(dec.privateKey, env.KeyWrap)
		require.NoError(t, err)

		ivs[string(iv)] = struct{}{}
		keys[string(key)] = struct{}{}
	}

	require.Len(t, ivs, calls, "every call should use a fresh IV")
	require.Len(t, keys, calls, "every call should use a fresh AES key")
}

func TestEncrypt_UsesRandomSourceInOrder(t *testing.T) {
	material := make([]byte, 48)
	for i := range material {
		material[i] = byte(i)
	}

	// the AES key is drawn first, then the IV; the OAEP seed comes from whatever follows
	random := io.MultiReader(bytes.NewReader(material), rand.Reader)
	enc, dec := newTestPair(t, WithRandom(random))

	sealed, err := enc.Encrypt(t.Context(), "hello")
	require.NoError(t, err)

	opened, err := dec.Open(t.Context(), sealed)
	require.NoError(t, err)

	require.Equal(t, material[:32], opened.Key)
	require.Equal(t, material[32:], opened.IV)
	require.Equal(t, "hello", opened.Text)
}

func TestEncrypt_NonLatin1IsTruncated(t *testing.T) {
	enc, dec := newTestPair(t)

	tests := []struct {
		name      string
		plaintext string
		wantBytes []byte
		wantText  string
	}{
		{"e acute fits in one byte", "é", []byte{0xE9}, "é"},
		{"euro sign keeps its low byte", "€", []byte{0xAC}, "¬"},
		{"astral plane becomes two surrogate bytes", "😀", []byte{0x3D, 0x00}, "=\x00"},
		{"mixed", "a€b", []byte{'a', 0xAC, 'b'}, "a¬b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sealed, err := enc.Encrypt(t.Context(), tt.plaintext)
			require.NoError(t, err)

			opened, err := dec.Open(t.Context(), sealed)
			require.NoError(t, err)

			require.Equal(t, tt.wantBytes, opened.Plaintext)
			require.Equal(t, tt.wantText, opened.Text)
		})
	}
}

func TestEncrypt_UTF8PlaintextEncoding(t *testing.T) {
	enc, dec := newTestPair(t, WithPlaintextEncoding(envelope.UTF8))

	sealed, err := enc.Encrypt(t.Context(), "é€😀")
	require.NoError(t, err)

	opened, err := dec.Open(t.Context(), sealed)
	require.NoError(t, err)

	require.Equal(t, []byte("é€😀"), opened.Plaintext)
	require.Equal(t, "é€😀", opened.Text)
}

func TestEncrypt_URIComponentEscaping(t *testing.T) {
	enc, dec := newTestPair(t, WithEscaping(envelope.EscapeURIComponent))

	sealed, err := enc.Encrypt(t.Context(), "{}")
	require.NoError(t, err)

	require.NotContains(t, sealed, "+")
	require.NotContains(t, sealed, "/")
	require.NotContains(t, sealed, "=")

	env, err := Parse(sealed)
	require.NoError(t, err)

	material, err := rsa.DecryptOAEP(sha256.New(), nil, testKey(), env.KeyWrap, nil)
	require.NoError(t, err)
	require.Contains(t, string(material), "%3D%3D:", "the IV's base64 padding should be escaped")

	opened, err := dec.Open(t.Context(), sealed)
	require.NoError(t, err)
	require.Equal(t, "{}", opened.Text)
}

func TestEncrypt_RandomSourceFailure(t *testing.T) {
	enc, _ := newTestPair(t, WithRandom(errReader{}))

	sealed, err := enc.Encrypt(t.Context(), "data")
	require.Error(t, err)
	require.Empty(t, sealed)
	require.ErrorIs(t, err, envelope.ErrCryptoUnavailable)
}

func TestEncrypt_KeyProviderFailure(t *testing.T) {
	t.Run("missing key", func(t *testing.T) {
		enc, err := NewEncryptor(envelope.StaticKey{})
		require.NoError(t, err)

		_, err = enc.Encrypt(t.Context(), "data")
		require.ErrorIs(t, err, envelope.ErrKeyImport)
	})

	t.Run("provider error", func(t *testing.T) {
		providerErr := errors.New("jwks endpoint unreachable")

		enc, err := NewEncryptor(failingProvider{err: providerErr})
		require.NoError(t, err)

		_, err = enc.Encrypt(t.Context(), "data")
		require.ErrorIs(t, err, providerErr)
		require.ErrorContains(t, err, "failed to get wrapping key")
	})
}

func TestEncrypt_CanceledContext(t *testing.T) {
	enc, _ := newTestPair(t)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := enc.Encrypt(ctx, "data")
	require.ErrorIs(t, err, context.Canceled)
}

func TestEncrypt_Concurrent(t *testing.T) {
	logger := ktesting.NewLogger(t, ktesting.DefaultConfig)
	ctx := klog.NewContext(t.Context(), logger)

	enc, dec := newTestPair(t)

	const workers = 16

	results := make([]string, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = enc.Encrypt(ctx, "concurrent payload")
		}(i)
	}
	wg.Wait()

	seen := map[string]struct{}{}
	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])

		opened, err := dec.Open(ctx, results[i])
		require.NoError(t, err)
		require.Equal(t, "concurrent payload", opened.Text)

		seen[results[i]] = struct{}{}
	}

	require.Len(t, seen, workers)
}

func recordLogs(t *testing.T) (logr.Logger, ktesting.Buffer) {
	log := ktesting.NewLogger(t, ktesting.NewConfig(ktesting.BufferLogs(true), ktesting.Verbosity(2)))
	testingLogger, ok := log.GetSink().(ktesting.Underlier)
	require.True(t, ok)
	return log, testingLogger.GetBuffer()
}

func TestEncrypt_LogsTypeWithoutPlaintext(t *testing.T) {
	enc, _ := newTestPair(t)

	log, logs := recordLogs(t)
	ctx := klog.NewContext(context.Background(), log)

	_, err := enc.Encrypt(ctx, "very secret payload")
	require.NoError(t, err)

	assert.Contains(t, logs.String(), "sealed payload")
	assert.Contains(t, logs.String(), EncryptionType)
	assert.NotContains(t, logs.String(), "very secret payload")
}
