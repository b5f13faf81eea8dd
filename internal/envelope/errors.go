package envelope

import "errors"

var (
	// ErrCryptoUnavailable is returned when the secure random source or a required primitive (AES-CBC, RSA-OAEP)
	// fails. It is not retryable.
	ErrCryptoUnavailable = errors.New("crypto unavailable")

	// ErrKeyImport is returned when a public or private key cannot be parsed or is unsuitable for use.
	// It indicates a configuration defect rather than a runtime condition.
	ErrKeyImport = errors.New("key import failed")

	// ErrEncoding is returned when an intermediate or serialized buffer is malformed.
	ErrEncoding = errors.New("malformed encoding")
)
