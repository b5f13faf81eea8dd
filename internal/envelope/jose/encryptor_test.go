package jose

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"strings"
	"sync"
	"testing"

	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwe"
	"github.com/go-logr/logr"
	"github.com/stretchr/testify/require"
	"k8s.io/klog/v2"
	"k8s.io/klog/v2/ktesting"

	"github.com/sealpost/sealpost/internal/envelope"
	"github.com/sealpost/sealpost/internal/envelope/keyfetch"
)

const testKeyID = "test-key-id"

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

func newTestEncryptor(t *testing.T) *Encryptor {
	t.Helper()

	enc, err := NewEncryptor(testKeyID, envelope.StaticKey{Key: &testKey().PublicKey})
	require.NoError(t, err)

	return enc
}

func TestNewEncryptor_NilProvider(t *testing.T) {
	enc, err := NewEncryptor(testKeyID, nil)
	require.Error(t, err)
	require.Nil(t, enc)
	require.Contains(t, err.Error(), "cannot be nil")
}

func TestNewEncryptor_EmptyKeyID(t *testing.T) {
	enc, err := NewEncryptor("", envelope.StaticKey{Key: &testKey().PublicKey})
	require.Error(t, err)
	require.Nil(t, enc)
	require.Contains(t, err.Error(), "keyID cannot be empty")
}

func TestEncrypt_JWEFormat(t *testing.T) {
	enc := newTestEncryptor(t)

	tests := []struct {
		name     string
		dataSize int
	}{
		{"small (10 bytes)", 10},
		{"medium (1 KB)", 1024},
		{"large (1 MB)", 1024 * 1024},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := enc.Encrypt(t.Context(), strings.Repeat("a", tt.dataSize))
			require.NoError(t, err)

			// JWE Compact Serialization has 5 base64url parts separated by dots
			parts := strings.Split(result, ".")
			require.Len(t, parts, 5, "JWE Compact Serialization should have 5 parts")

			for i, part := range parts {
				require.NotEmpty(t, part, "JWE part %d should not be empty", i)

				_, err = base64.RawURLEncoding.DecodeString(part)
				require.NoError(t, err, "JWE part %d should be valid base64url: %s", i, part)
			}
		})
	}
}

func TestEncrypt_EmptyData(t *testing.T) {
	enc := newTestEncryptor(t)

	result, err := enc.Encrypt(t.Context(), "")
	require.Error(t, err)
	require.Empty(t, result)
	require.Contains(t, err.Error(), "cannot be empty")
}

func TestEncrypt_NonDeterministic(t *testing.T) {
	enc := newTestEncryptor(t)

	result1, err := enc.Encrypt(t.Context(), "test data for encryption")
	require.NoError(t, err)

	result2, err := enc.Encrypt(t.Context(), "test data for encryption")
	require.NoError(t, err)

	require.NotEqual(t, result1, result2, "Encrypting the same data twice should produce different JWE outputs")
}

func TestEncrypt_DecryptRoundtrip(t *testing.T) {
	enc := newTestEncryptor(t)

	originalData := "test data for roundtrip encryption and decryption, with UTF-8: é€"

	encrypted, err := enc.Encrypt(t.Context(), originalData)
	require.NoError(t, err)

	// decrypting with the library directly pins the algorithms
	_, err = jwe.Decrypt([]byte(encrypted), jwe.WithKey(jwa.RSA_OAEP_256(), testKey()), jwe.WithContext(t.Context()))
	require.NoError(t, err, "Result should be valid JWE with RSA-OAEP-256 and A256GCM")

	plaintext, kid, err := Decrypt(t.Context(), testKey(), encrypted)
	require.NoError(t, err)
	require.Equal(t, testKeyID, kid, "JWE 'kid' header should match the encryptor's key ID")
	require.Equal(t, originalData, string(plaintext), "Decrypted data should match original data")
}

func TestDecrypt_Errors(t *testing.T) {
	enc := newTestEncryptor(t)

	encrypted, err := enc.Encrypt(t.Context(), "payload")
	require.NoError(t, err)

	t.Run("not a JWE", func(t *testing.T) {
		_, _, err := Decrypt(t.Context(), testKey(), "not.a.jwe")
		require.ErrorIs(t, err, envelope.ErrEncoding)
	})

	t.Run("wrong key", func(t *testing.T) {
		otherKey, err := rsa.GenerateKey(rand.Reader, envelope.MinRSAKeySize)
		require.NoError(t, err)

		_, _, err = Decrypt(t.Context(), otherKey, encrypted)
		require.ErrorIs(t, err, envelope.ErrEncoding)
	})

	t.Run("nil key", func(t *testing.T) {
		_, _, err := Decrypt(t.Context(), nil, encrypted)
		require.ErrorContains(t, err, "cannot be nil")
	})
}

func recordLogs(t *testing.T) (logr.Logger, ktesting.Buffer) {
	log := ktesting.NewLogger(t, ktesting.NewConfig(ktesting.BufferLogs(true), ktesting.Verbosity(2)))
	testingLogger, ok := log.GetSink().(ktesting.Underlier)
	require.True(t, ok)
	return log, testingLogger.GetBuffer()
}

func TestEncrypt_KeyIDFollowsFetchedKey(t *testing.T) {
	otherKey, err := rsa.GenerateKey(rand.Reader, envelope.MinRSAKeySize)
	require.NoError(t, err)

	fake := keyfetch.NewFakeClientWithKey("key-1", &testKey().PublicKey)

	enc, err := NewEncryptor("", fake)
	require.NoError(t, err)

	encrypted, err := enc.Encrypt(t.Context(), "before rotation")
	require.NoError(t, err)

	_, kid, err := Decrypt(t.Context(), testKey(), encrypted)
	require.NoError(t, err)
	require.Equal(t, "key-1", kid)

	// the JWKS endpoint now serves a different key
	fake.Key = &keyfetch.PublicKey{KeyID: "key-2", Key: &otherKey.PublicKey}

	encrypted, err = enc.Encrypt(t.Context(), "after rotation")
	require.NoError(t, err)

	plaintext, kid, err := Decrypt(t.Context(), otherKey, encrypted)
	require.NoError(t, err)
	require.Equal(t, "key-2", kid, "kid should name the key which wrapped the payload")
	require.Equal(t, "after rotation", string(plaintext))
}

func TestEncrypt_KeyIDFallback(t *testing.T) {
	fake := keyfetch.NewFakeClientWithKey("", &testKey().PublicKey)

	enc, err := NewEncryptor("configured-kid", fake)
	require.NoError(t, err)

	encrypted, err := enc.Encrypt(t.Context(), "payload")
	require.NoError(t, err)

	_, kid, err := Decrypt(t.Context(), testKey(), encrypted)
	require.NoError(t, err)
	require.Equal(t, "configured-kid", kid)

	enc, err = NewEncryptor("", fake)
	require.NoError(t, err)

	_, err = enc.Encrypt(t.Context(), "payload")
	require.ErrorIs(t, err, envelope.ErrKeyImport)
}

func TestEncrypt_LogsTypeWithoutPlaintext(t *testing.T) {
	log, logs := recordLogs(t)
	ctx := klog.NewContext(t.Context(), log)

	_, err := newTestEncryptor(t).Encrypt(ctx, "very secret payload")
	require.NoError(t, err)

	require.Contains(t, logs.String(), EncryptionType)
	require.Contains(t, logs.String(), testKeyID)
	require.NotContains(t, logs.String(), "very secret payload")
}
