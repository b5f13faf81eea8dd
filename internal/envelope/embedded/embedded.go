// Package embedded provides the RSA public key compiled into the sealpost binary.
//
// The embedded key is a development key. Deployments that talk to a real recipient should configure their own key
// with --public-key or --jwks-url; rotating the embedded key requires a rebuild.
package embedded

import (
	"context"
	"crypto/rsa"
	_ "embed"
	"sync"

	"github.com/sealpost/sealpost/internal/envelope"
)

// PublicKeyPEM is the embedded 2048-bit SPKI public key.
//
//go:embed public.pem
var PublicKeyPEM []byte

// KeyID identifies the embedded key in logs and JWE headers.
const KeyID = "sealpost-embedded-dev-1"

var loadKey = sync.OnceValues(func() (*rsa.PublicKey, error) {
	return envelope.LoadPublicKeyFromPEM(PublicKeyPEM)
})

// Compile-time check that Provider implements envelope.KeyProvider
var _ envelope.KeyProvider = Provider{}

// Provider returns the embedded public key. The key is parsed once per process; a parse failure is returned on
// every call and wraps envelope.ErrKeyImport.
type Provider struct{}

func (Provider) PublicKey(_ context.Context) (*rsa.PublicKey, error) {
	return loadKey()
}
