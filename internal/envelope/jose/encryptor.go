// Package jose implements envelope encryption as JWE Compact Serialization, conforming to the interface in the
// envelope package. It uses RSA-OAEP-256 for key encryption and AES-256-GCM for content encryption.
package jose

import (
	"context"
	"crypto/rsa"
	"fmt"

	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwe"
	"k8s.io/klog/v2"

	"github.com/sealpost/sealpost/internal/envelope"
	"github.com/sealpost/sealpost/pkg/logs"
)

// EncryptionType is the type identifier for RSA JWE encryption
const EncryptionType = "JWE-RSA"

// Compile-time check that Encryptor implements envelope.Encryptor
var _ envelope.Encryptor = (*Encryptor)(nil)

// Encryptor provides envelope encryption using RSA-OAEP-256 for key wrapping
// and AES-256-GCM for data encryption, outputting JWE Compact Serialization format.
type Encryptor struct {
	keyID             string
	keys              envelope.KeyProvider
	plaintextEncoding envelope.PlaintextEncoding
}

// NewEncryptor creates a new Encryptor which wraps keys with the public key from keys. If keys implements
// envelope.KeyIDProvider, each message's "kid" header is the ID of the key that wrapped it and keyID may be empty;
// otherwise every message is labelled with keyID.
func NewEncryptor(keyID string, keys envelope.KeyProvider) (*Encryptor, error) {
	if keys == nil {
		return nil, fmt.Errorf("key provider cannot be nil")
	}

	if _, ok := keys.(envelope.KeyIDProvider); !ok && len(keyID) == 0 {
		return nil, fmt.Errorf("keyID cannot be empty")
	}

	return &Encryptor{
		keyID:             keyID,
		keys:              keys,
		plaintextEncoding: envelope.UTF8,
	}, nil
}

// Encrypt performs envelope encryption on plaintext and returns the compact JWE.
// JWE payloads are binary-safe, so the plaintext's UTF-8 bytes are used unchanged.
func (e *Encryptor) Encrypt(ctx context.Context, plaintext string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if len(plaintext) == 0 {
		return "", fmt.Errorf("data to encrypt cannot be empty")
	}

	publicKey, keyID, err := e.publicKey(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get wrapping key: %w", err)
	}

	if err := envelope.ValidatePublicKey(publicKey); err != nil {
		return "", err
	}

	headers := jwe.NewHeaders()
	if err := headers.Set("kid", keyID); err != nil {
		return "", fmt.Errorf("failed to set key ID header: %w", err)
	}

	encrypted, err := jwe.Encrypt(
		e.plaintextEncoding.Bytes(plaintext),
		jwe.WithKey(jwa.RSA_OAEP_256(), publicKey, jwe.WithPerRecipientHeaders(headers)),
		jwe.WithContentEncryption(jwa.A256GCM()),
		jwe.WithCompact(),
	)
	if err != nil {
		return "", fmt.Errorf("%w: failed to encrypt data: %w", envelope.ErrCryptoUnavailable, err)
	}

	klog.FromContext(ctx).WithName("jose").V(logs.Trace).Info("sealed payload", "type", EncryptionType, "kid", keyID, "envelopeLength", len(encrypted))

	return string(encrypted), nil
}

// publicKey returns the wrapping key and the ID to label it with.
func (e *Encryptor) publicKey(ctx context.Context) (*rsa.PublicKey, string, error) {
	if kp, ok := e.keys.(envelope.KeyIDProvider); ok {
		key, keyID, err := kp.PublicKeyWithID(ctx)
		if err != nil {
			return nil, "", err
		}
		if keyID != "" {
			return key, keyID, nil
		}
		if e.keyID == "" {
			return nil, "", fmt.Errorf("%w: key provider returned a key without an ID", envelope.ErrKeyImport)
		}
		return key, e.keyID, nil
	}

	key, err := e.keys.PublicKey(ctx)
	return key, e.keyID, err
}

// Decrypt opens a compact JWE produced by Encryptor, returning the plaintext and the "kid" header.
func Decrypt(ctx context.Context, privateKey *rsa.PrivateKey, compact string) ([]byte, string, error) {
	if privateKey == nil {
		return nil, "", fmt.Errorf("RSA private key cannot be nil")
	}

	msg, err := jwe.Parse([]byte(compact))
	if err != nil {
		return nil, "", fmt.Errorf("%w: failed to parse JWE: %w", envelope.ErrEncoding, err)
	}

	kid, _ := msg.ProtectedHeaders().KeyID()

	plaintext, err := jwe.Decrypt([]byte(compact), jwe.WithKey(jwa.RSA_OAEP_256(), privateKey), jwe.WithContext(ctx))
	if err != nil {
		return nil, "", fmt.Errorf("%w: failed to decrypt JWE: %w", envelope.ErrEncoding, err)
	}

	return plaintext, kid, nil
}
