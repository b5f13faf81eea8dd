package hybrid

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"fmt"
	"io"

	"k8s.io/klog/v2"

	"github.com/sealpost/sealpost/internal/envelope"
	"github.com/sealpost/sealpost/pkg/logs"
)

const (
	// aesKeySize is the size of the AES-256 key in bytes; aes.NewCipher generates cipher.Block based
	// on the size of key passed in
	aesKeySize = 32

	// ivSize is the size of the AES-CBC IV in bytes. NB: reusing an IV with the same key leaks whether two
	// plaintexts share a prefix; both are generated fresh for every call.
	ivSize = aes.BlockSize

	// EncryptionType is the type identifier for this envelope format
	EncryptionType = "RSA-OAEP-AES-CBC"
)

// Compile-time check that Encryptor implements envelope.Encryptor
var _ envelope.Encryptor = (*Encryptor)(nil)

// Encryptor builds hybrid envelopes. It holds no mutable state and is safe for concurrent use as long as its random
// source is.
type Encryptor struct {
	keys envelope.KeyProvider
	opts options
}

// NewEncryptor creates an Encryptor which wraps keys with the public key from keys.
func NewEncryptor(keys envelope.KeyProvider, opts ...Option) (*Encryptor, error) {
	if keys == nil {
		return nil, fmt.Errorf("key provider cannot be nil")
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	return &Encryptor{
		keys: keys,
		opts: o,
	}, nil
}

// Encrypt seals plaintext into a transport envelope. An empty plaintext is valid and encrypts to a single padding
// block. Failures are not retried.
func (e *Encryptor) Encrypt(ctx context.Context, plaintext string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	env, err := e.Seal(ctx, e.opts.plaintextEncoding.Bytes(plaintext))
	if err != nil {
		return "", err
	}

	out := env.Marshal(e.opts.escaping)

	klog.FromContext(ctx).WithName("hybrid").V(logs.Trace).Info("sealed payload",
		"type", EncryptionType,
		"plaintextLength", len(plaintext),
		"envelopeLength", len(out),
		"escaping", e.opts.escaping.String(),
	)

	return out, nil
}

// Seal encrypts raw bytes and returns the unserialized envelope.
func (e *Encryptor) Seal(ctx context.Context, data []byte) (*Envelope, error) {
	publicKey, err := e.keys.PublicKey(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get wrapping key: %w", err)
	}

	if err := envelope.ValidatePublicKey(publicKey); err != nil {
		return nil, err
	}

	key := make([]byte, aesKeySize)
	if _, err := io.ReadFull(e.opts.random, key); err != nil {
		return nil, fmt.Errorf("%w: failed to generate AES key: %w", envelope.ErrCryptoUnavailable, err)
	}
	defer clear(key)

	iv := make([]byte, ivSize)
	if _, err := io.ReadFull(e.opts.random, iv); err != nil {
		return nil, fmt.Errorf("%w: failed to generate IV: %w", envelope.ErrCryptoUnavailable, err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create AES cipher: %w", envelope.ErrCryptoUnavailable, err)
	}

	ciphertext := pkcs7Pad(data)
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, ciphertext)

	keyWrap, err := wrapKey(e.opts.random, publicKey, iv, key, e.opts.escaping)
	if err != nil {
		return nil, err
	}

	return &Envelope{
		PayloadCiphertext: ciphertext,
		KeyWrap:           keyWrap,
	}, nil
}
