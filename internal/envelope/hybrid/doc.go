// Package hybrid implements the colon-joined RSA-OAEP/AES-256-CBC envelope format.
//
// For each call a fresh AES-256 key and 16-byte IV are drawn from a secure random source. The plaintext is encrypted
// with AES-256-CBC (PKCS#7 padding). The string b64(IV) + ":" + b64(key) is encrypted with RSA-OAEP/SHA-256 under the
// recipient's public key. The envelope is
//
//	b64( b64(payloadCiphertext) + ":" + b64(keyWrapCiphertext) )
//
// where b64 is standard padded base64, optionally percent-escaped (see envelope.Escaping).
package hybrid
