package signer

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	"go4.org/wkfs"
)

// SignFunc signs a policy message. Implementations must produce an RSA
// PKCS#1 v1.5 signature over the SHA-1 digest of msg.
type SignFunc func(msg []byte) ([]byte, error)

// CryptoSigner adapts a crypto.Signer holding an RSA key, such as an
// *rsa.PrivateKey or a key held in an HSM, to a SignFunc.
func CryptoSigner(s crypto.Signer) SignFunc {
	return func(msg []byte) ([]byte, error) {
		if _, ok := s.Public().(*rsa.PublicKey); !ok {
			return nil, fmt.Errorf("unsupported key type %T", s.Public())
		}
		digest := sha1.Sum(msg)
		return s.Sign(rand.Reader, digest[:], crypto.SHA1)
	}
}

// RSASigner returns a SignFunc backed by an in-memory RSA key.
func RSASigner(key *rsa.PrivateKey) SignFunc {
	return CryptoSigner(key)
}

// LoadKey reads a PEM encoded RSA private key. Paths beginning with a
// registered well-known prefix (/s3/, /vault/) are read from that backend,
// everything else from the local filesystem.
func LoadKey(path string) (*rsa.PrivateKey, error) {
	data, err := wkfs.ReadFile(path)
	if err != nil {
		return nil, &KeyLoadError{Path: path, Err: err}
	}
	key, err := parseKey(data)
	if err != nil {
		return nil, &KeyLoadError{Path: path, Err: err}
	}
	return key, nil
}

// ParseKey parses an unencrypted PKCS#1 or PKCS#8 PEM encoded RSA private key.
func ParseKey(data []byte) (*rsa.PrivateKey, error) {
	key, err := parseKey(data)
	if err != nil {
		return nil, &KeyLoadError{Err: err}
	}
	return key, nil
}

func parseKey(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("no PEM data found")
	}
	if block.Type == "ENCRYPTED PRIVATE KEY" || block.Headers["Proc-Type"] != "" {
		return nil, errors.New("encrypted keys are not supported")
	}
	switch block.Type {
	case "RSA PRIVATE KEY":
		key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		return key, nil
	case "PRIVATE KEY":
		k, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		key, ok := k.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("expected an RSA key, got %T", k)
		}
		return key, nil
	}
	return nil, fmt.Errorf("unsupported PEM block %q", block.Type)
}
