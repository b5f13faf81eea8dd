package hybrid

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"

	"github.com/sealpost/sealpost/internal/envelope"
)

// fieldSeparator joins the two halves of both the envelope and the wrapped key material.
const fieldSeparator = ":"

// Envelope is a parsed envelope: the two ciphertexts it carries.
type Envelope struct {
	// PayloadCiphertext is the AES-256-CBC ciphertext of the plaintext.
	PayloadCiphertext []byte
	// KeyWrap is the RSA-OAEP ciphertext of the IV and AES key.
	KeyWrap []byte
}

func encodeSegment(data []byte, escaping envelope.Escaping) string {
	encoded := base64.StdEncoding.EncodeToString(data)
	if escaping == envelope.EscapeURIComponent {
		// base64 only contains '+', '/' and '=' outside the unreserved set, so QueryEscape
		// matches encodeURIComponent here.
		return url.QueryEscape(encoded)
	}

	return encoded
}

// decodeSegment accepts both escaped and unescaped segments. base64 never contains '%' and PathUnescape leaves '+'
// alone, so unescaping an unescaped segment is a no-op.
func decodeSegment(segment string) ([]byte, error) {
	unescaped, err := url.PathUnescape(segment)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", envelope.ErrEncoding, err)
	}

	decoded, err := base64.StdEncoding.DecodeString(unescaped)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", envelope.ErrEncoding, err)
	}

	return decoded, nil
}

func joinSegments(first, second []byte, escaping envelope.Escaping) string {
	return encodeSegment(first, escaping) + fieldSeparator + encodeSegment(second, escaping)
}

func splitSegments(s string) ([]byte, []byte, error) {
	parts := strings.Split(s, fieldSeparator)
	if len(parts) != 2 {
		return nil, nil, fmt.Errorf("%w: expected 2 fields separated by %q, got %d", envelope.ErrEncoding, fieldSeparator, len(parts))
	}

	first, err := decodeSegment(parts[0])
	if err != nil {
		return nil, nil, fmt.Errorf("field 1: %w", err)
	}

	second, err := decodeSegment(parts[1])
	if err != nil {
		return nil, nil, fmt.Errorf("field 2: %w", err)
	}

	return first, second, nil
}

// Marshal serializes the envelope into its transport string.
func (e *Envelope) Marshal(escaping envelope.Escaping) string {
	joined := joinSegments(e.PayloadCiphertext, e.KeyWrap, escaping)
	return encodeSegment(envelope.CharCodeBytes(joined), escaping)
}

// Parse splits a transport string into its two ciphertexts without decrypting anything.
func Parse(s string) (*Envelope, error) {
	outer, err := decodeSegment(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("failed to decode envelope: %w", err)
	}

	payload, keyWrap, err := splitSegments(string(outer))
	if err != nil {
		return nil, fmt.Errorf("failed to split envelope: %w", err)
	}

	if len(payload) == 0 || len(keyWrap) == 0 {
		return nil, fmt.Errorf("%w: envelope fields cannot be empty", envelope.ErrEncoding)
	}

	return &Envelope{
		PayloadCiphertext: payload,
		KeyWrap:           keyWrap,
	}, nil
}
