// Package keyfetch provides a client for fetching envelope wrapping keys from an HTTP endpoint.
//
// The client retrieves public keys in JSON Web Key Set (JWKS) format and converts the first usable one into an
// *rsa.PublicKey. Only RSA keys of at least 2048 bits with "alg": "RSA-OAEP-256" and a "kid" are used.
//
// This package uses github.com/lestrrat-go/jwx/v3/jwk for JWK parsing and handling.
package keyfetch
