package hybrid

import (
	"crypto/rand"
	"io"

	"github.com/sealpost/sealpost/internal/envelope"
)

type options struct {
	random            io.Reader
	escaping          envelope.Escaping
	plaintextEncoding envelope.PlaintextEncoding
}

func defaultOptions() options {
	return options{
		random:            rand.Reader,
		escaping:          envelope.EscapeNone,
		plaintextEncoding: envelope.CharCode,
	}
}

// Option configures an Encryptor or Decryptor.
type Option func(*options)

// WithRandom sets the source of the AES key, the IV and the RSA-OAEP seed. It must be cryptographically secure and
// safe for concurrent use if the Encryptor is shared. Defaults to crypto/rand.Reader.
func WithRandom(r io.Reader) Option {
	return func(o *options) {
		if r != nil {
			o.random = r
		}
	}
}

// WithEscaping sets how base64 segments are escaped. Defaults to envelope.EscapeNone.
// Decryption accepts either form, so this only affects encryption.
func WithEscaping(e envelope.Escaping) Option {
	return func(o *options) {
		o.escaping = e
	}
}

// WithPlaintextEncoding sets how plaintext strings are converted to bytes. Defaults to envelope.CharCode.
func WithPlaintextEncoding(p envelope.PlaintextEncoding) Option {
	return func(o *options) {
		o.plaintextEncoding = p
	}
}
