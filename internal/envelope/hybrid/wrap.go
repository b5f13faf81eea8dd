package hybrid

import (
	"crypto/rsa"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"github.com/sealpost/sealpost/internal/envelope"
)

// wrapKey encrypts b64(iv) + ":" + b64(key) with RSA-OAEP/SHA-256 and an empty label.
func wrapKey(random io.Reader, publicKey *rsa.PublicKey, iv, key []byte, escaping envelope.Escaping) ([]byte, error) {
	material := envelope.CharCodeBytes(joinSegments(iv, key, escaping))

	wrapped, err := rsa.EncryptOAEP(sha256.New(), random, publicKey, material, nil)
	if err != nil {
		if errors.Is(err, rsa.ErrMessageTooLong) {
			return nil, fmt.Errorf("%w: key material of %d bytes is too long for a %d-bit RSA key", envelope.ErrEncoding, len(material), publicKey.N.BitLen())
		}

		return nil, fmt.Errorf("%w: failed to encrypt AES key with RSA: %w", envelope.ErrCryptoUnavailable, err)
	}

	return wrapped, nil
}

// unwrapKey reverses wrapKey, returning the IV and AES key.
func unwrapKey(privateKey *rsa.PrivateKey, wrapped []byte) ([]byte, []byte, error) {
	material, err := rsa.DecryptOAEP(sha256.New(), nil, privateKey, wrapped, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: failed to decrypt key wrap: %w", envelope.ErrEncoding, err)
	}

	iv, key, err := splitSegments(string(material))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to split key wrap: %w", err)
	}

	if len(iv) != ivSize {
		return nil, nil, fmt.Errorf("%w: IV must be %d bytes, got %d", envelope.ErrEncoding, ivSize, len(iv))
	}

	if len(key) != aesKeySize {
		return nil, nil, fmt.Errorf("%w: AES key must be %d bytes, got %d", envelope.ErrEncoding, aesKeySize, len(key))
	}

	return iv, key, nil
}
