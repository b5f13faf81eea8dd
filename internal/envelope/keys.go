package envelope

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
)

// LoadPublicKeyFromPEM parses an RSA public key from PEM-encoded bytes.
// The PEM block should be of type "PUBLIC KEY" (SPKI) or "RSA PUBLIC KEY" (PKCS1).
// All errors wrap ErrKeyImport.
func LoadPublicKeyFromPEM(pemBytes []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("%w: failed to decode PEM block", ErrKeyImport)
	}

	var rsaKey *rsa.PublicKey

	switch block.Type {
	case "PUBLIC KEY":
		pubKey, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to parse PKIX public key: %w", ErrKeyImport, err)
		}

		var ok bool
		rsaKey, ok = pubKey.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("%w: key is not an RSA public key, got %T", ErrKeyImport, pubKey)
		}

	case "RSA PUBLIC KEY":
		var err error
		rsaKey, err = x509.ParsePKCS1PublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to parse PKCS1 RSA public key: %w", ErrKeyImport, err)
		}

	default:
		return nil, fmt.Errorf("%w: unsupported PEM block type: %s (expected PUBLIC KEY or RSA PUBLIC KEY)", ErrKeyImport, block.Type)
	}

	if err := ValidatePublicKey(rsaKey); err != nil {
		return nil, err
	}

	return rsaKey, nil
}

// LoadPublicKeyFromPEMFile reads and parses an RSA public key from a PEM file.
func LoadPublicKeyFromPEMFile(path string) (*rsa.PublicKey, error) {
	pemBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read PEM file: %w", ErrKeyImport, err)
	}

	return LoadPublicKeyFromPEM(pemBytes)
}

// LoadPrivateKeyFromPEM parses an RSA private key in "RSA PRIVATE KEY" (PKCS1) or "PRIVATE KEY" (PKCS8) form.
func LoadPrivateKeyFromPEM(pemBytes []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("%w: failed to decode PEM block", ErrKeyImport)
	}

	switch block.Type {
	case "RSA PRIVATE KEY":
		key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to parse PKCS1 private key: %w", ErrKeyImport, err)
		}

		return key, nil

	case "PRIVATE KEY":
		parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to parse PKCS8 private key: %w", ErrKeyImport, err)
		}

		key, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("%w: key is not an RSA private key, got %T", ErrKeyImport, parsed)
		}

		return key, nil
	}

	return nil, fmt.Errorf("%w: unsupported PEM block type: %s (expected RSA PRIVATE KEY or PRIVATE KEY)", ErrKeyImport, block.Type)
}

// LoadPrivateKeyFromPEMFile reads and parses an RSA private key from a PEM file.
func LoadPrivateKeyFromPEMFile(path string) (*rsa.PrivateKey, error) {
	pemBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read PEM file: %w", ErrKeyImport, err)
	}

	return LoadPrivateKeyFromPEM(pemBytes)
}

// EncodeKeyPair PEM-encodes key as a PKCS1 private key and an SPKI public key.
func EncodeKeyPair(key *rsa.PrivateKey) (privatePEM []byte, publicPEM []byte, err error) {
	privatePEM = pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})

	publicKeyBytes, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal public key: %w", err)
	}

	publicPEM = pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: publicKeyBytes,
	})

	return privatePEM, publicPEM, nil
}
