package envelope

import (
	"context"
	"crypto/rsa"
	"fmt"
)

// MinRSAKeySize is the minimum RSA key size in bits; we'd expect that keys will be larger but 2048 is a sane floor
// to enforce to ensure that a weak key can't accidentally be used
const MinRSAKeySize = 2048

// Encryptor performs envelope encryption on a plaintext string.
type Encryptor interface {
	// Encrypt encrypts plaintext using envelope encryption, returning an opaque string which is safe to use as
	// a request body.
	Encrypt(ctx context.Context, plaintext string) (string, error)
}

// KeyProvider supplies the RSA public key used to wrap symmetric keys.
type KeyProvider interface {
	PublicKey(ctx context.Context) (*rsa.PublicKey, error)
}

// KeyIDProvider is implemented by key providers whose keys carry an identifier, such as a JWKS client. The ID is
// returned together with the key so that both always refer to the same key, even across a key rotation.
type KeyIDProvider interface {
	PublicKeyWithID(ctx context.Context) (*rsa.PublicKey, string, error)
}

// Compile-time check that StaticKey implements KeyProvider
var _ KeyProvider = StaticKey{}

// StaticKey is a KeyProvider which always returns the same key.
type StaticKey struct {
	Key *rsa.PublicKey
}

func (s StaticKey) PublicKey(ctx context.Context) (*rsa.PublicKey, error) {
	if err := ValidatePublicKey(s.Key); err != nil {
		return nil, err
	}

	return s.Key, nil
}

// ValidatePublicKey checks that key is non-nil and at least MinRSAKeySize bits.
// Errors wrap ErrKeyImport.
func ValidatePublicKey(key *rsa.PublicKey) error {
	if key == nil {
		return fmt.Errorf("%w: RSA public key cannot be nil", ErrKeyImport)
	}

	keySize := key.N.BitLen()
	if keySize < MinRSAKeySize {
		return fmt.Errorf("%w: RSA key size must be at least %d bits, got %d bits", ErrKeyImport, MinRSAKeySize, keySize)
	}

	return nil
}

// Escaping controls how base64 segments of an envelope are escaped.
type Escaping int

const (
	// EscapeNone leaves base64 segments untouched.
	EscapeNone Escaping = iota
	// EscapeURIComponent percent-escapes '+', '/' and '=' in base64 segments.
	EscapeURIComponent
)

func (e Escaping) String() string {
	switch e {
	case EscapeNone:
		return "none"
	case EscapeURIComponent:
		return "uri"
	default:
		return fmt.Sprintf("Escaping(%d)", int(e))
	}
}

// ParseEscaping converts a configuration value into an Escaping.
func ParseEscaping(s string) (Escaping, error) {
	switch s {
	case "", "none":
		return EscapeNone, nil
	case "uri", "uri-component":
		return EscapeURIComponent, nil
	}

	return 0, fmt.Errorf("unknown escaping %q (expected none or uri)", s)
}

// PlaintextEncoding controls how a plaintext string is turned into bytes before encryption.
type PlaintextEncoding int

const (
	// CharCode maps each UTF-16 code unit to its low 8 bits. Characters above U+00FF are truncated.
	CharCode PlaintextEncoding = iota
	// UTF8 uses the string's UTF-8 bytes unchanged.
	UTF8
)

func (p PlaintextEncoding) String() string {
	switch p {
	case CharCode:
		return "charcode"
	case UTF8:
		return "utf8"
	default:
		return fmt.Sprintf("PlaintextEncoding(%d)", int(p))
	}
}

// ParsePlaintextEncoding converts a configuration value into a PlaintextEncoding.
func ParsePlaintextEncoding(s string) (PlaintextEncoding, error) {
	switch s {
	case "", "charcode":
		return CharCode, nil
	case "utf8", "utf-8":
		return UTF8, nil
	}

	return 0, fmt.Errorf("unknown plaintext encoding %q (expected charcode or utf8)", s)
}

// Bytes converts s to bytes using the encoding.
func (p PlaintextEncoding) Bytes(s string) []byte {
	if p == UTF8 {
		return []byte(s)
	}

	return CharCodeBytes(s)
}
