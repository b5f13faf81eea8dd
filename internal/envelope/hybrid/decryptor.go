package hybrid

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rsa"
	"fmt"

	"github.com/sealpost/sealpost/internal/envelope"
)

// Opened is the result of decrypting an envelope.
type Opened struct {
	// IV and Key are the symmetric key material recovered from the key wrap.
	IV  []byte
	Key []byte

	// Plaintext is the exact byte sequence that was fed to AES.
	Plaintext []byte

	// Text is Plaintext decoded with the Decryptor's plaintext encoding.
	Text string
}

// Decryptor opens envelopes produced by Encryptor. It is intended for verification and testing; the envelope
// recipient is normally a remote service holding the private key.
type Decryptor struct {
	privateKey *rsa.PrivateKey
	opts       options
}

// NewDecryptor creates a Decryptor for the given RSA private key.
func NewDecryptor(privateKey *rsa.PrivateKey, opts ...Option) (*Decryptor, error) {
	if privateKey == nil {
		return nil, fmt.Errorf("RSA private key cannot be nil")
	}

	if err := envelope.ValidatePublicKey(&privateKey.PublicKey); err != nil {
		return nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	return &Decryptor{
		privateKey: privateKey,
		opts:       o,
	}, nil
}

// Open parses and decrypts an envelope. Malformed input fails with an error wrapping envelope.ErrEncoding.
func (d *Decryptor) Open(ctx context.Context, s string) (*Opened, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	env, err := Parse(s)
	if err != nil {
		return nil, err
	}

	iv, key, err := unwrapKey(d.privateKey, env.KeyWrap)
	if err != nil {
		return nil, err
	}

	if len(env.PayloadCiphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: payload ciphertext length %d is not a multiple of the block size", envelope.ErrEncoding, len(env.PayloadCiphertext))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create AES cipher: %w", envelope.ErrCryptoUnavailable, err)
	}

	padded := make([]byte, len(env.PayloadCiphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(padded, env.PayloadCiphertext)

	plaintext, err := pkcs7Unpad(padded)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt payload: %w", err)
	}

	opened := &Opened{
		IV:        iv,
		Key:       key,
		Plaintext: plaintext,
	}

	if d.opts.plaintextEncoding == envelope.UTF8 {
		opened.Text = string(plaintext)
	} else {
		opened.Text = envelope.CharCodeString(plaintext)
	}

	return opened, nil
}
