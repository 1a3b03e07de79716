package handle

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
)

// Signer signs session challenges with the registry admin's RSA private key.
type Signer struct {
	key *rsa.PrivateKey
}

// LoadSigner reads an RSA private key from a PEM file. Both PKCS#1 and
// PKCS#8 encodings are accepted.
func LoadSigner(path string) (*Signer, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, errors.New("private key file contains no PEM block")
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return &Signer{key: key}, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("private key is %T, expected RSA", parsed)
	}
	return &Signer{key: key}, nil
}

// NewSigner wraps an in-memory key, used by tests.
func NewSigner(key *rsa.PrivateKey) *Signer {
	return &Signer{key: key}
}

// Sign produces a PKCS#1 v1.5 signature over SHA-256 of the concatenated
// server and client nonces, per the Handle session protocol.
func (s *Signer) Sign(serverNonce, clientNonce []byte) ([]byte, error) {
	if s == nil || s.key == nil {
		return nil, errors.New("signer has no key")
	}
	digest := sha256.Sum256(append(append([]byte{}, serverNonce...), clientNonce...))
	signature, err := rsa.SignPKCS1v15(rand.Reader, s.key, crypto.SHA256, digest[:])
	if err != nil {
		return nil, fmt.Errorf("sign challenge: %w", err)
	}
	return signature, nil
}
