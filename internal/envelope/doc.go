// Package envelope defines the shared types for hybrid envelope encryption.
//
// Envelope encryption combines asymmetric and symmetric encryption. Asymmetric encryption is slow and can only
// handle small messages, so a fresh symmetric key is generated for every payload, the payload is encrypted with that
// key, and only the symmetric key material is encrypted ("wrapped") with the recipient's RSA public key. The recipient
// unwraps the symmetric key with their RSA private key and uses it to decrypt the payload.
//
// Concrete envelope formats live in subpackages: hybrid implements the colon-joined RSA-OAEP/AES-256-CBC format and
// jwe implements compact JWE. Public keys are supplied by a KeyProvider; see the embedded and keyfetch subpackages.
//
// In some documentation, the asymmetric key is called the "key encryption key" (KEK) and the symmetric key is called
// the "data encryption key" (DEK).
package envelope
