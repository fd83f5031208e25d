package kalshi

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"os"
	"strings"
	"time"
)

// Signer produces the RSA-PSS request signatures Kalshi requires.
// The signed message is timestamp + method + path, with any query string
// stripped from the path first.
type Signer struct {
	accessKey string
	key       *rsa.PrivateKey
}

// NewSigner loads a PEM private key from disk and pairs it with the
// account's access key id.
func NewSigner(accessKey, keyPath string) (*Signer, error) {
	data, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	key, err := parsePrivateKey(data)
	if err != nil {
		return nil, fmt.Errorf("parse private key %s: %w", keyPath, err)
	}
	return &Signer{accessKey: accessKey, key: key}, nil
}

func parsePrivateKey(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found")
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("not an RSA private key")
	}
	return key, nil
}

// GenerateHeaders signs one request and returns the auth headers.
func (s *Signer) GenerateHeaders(method, path string) (map[string]string, error) {
	timestamp := fmt.Sprintf("%d", time.Now().UnixMilli())

	basePath := path
	if i := strings.IndexByte(basePath, '?'); i >= 0 {
		basePath = basePath[:i]
	}

	sig, err := s.sign(timestamp + method + basePath)
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"Content-Type":            "application/json",
		"KALSHI-ACCESS-KEY":       s.accessKey,
		"KALSHI-ACCESS-SIGNATURE": sig,
		"KALSHI-ACCESS-TIMESTAMP": timestamp,
	}, nil
}

func (s *Signer) sign(msg string) (string, error) {
	digest := sha256.Sum256([]byte(msg))
	sig, err := rsa.SignPSS(rand.Reader, s.key, crypto.SHA256, digest[:], &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthEqualsHash,
		Hash:       crypto.SHA256,
	})
	if err != nil {
		return "", fmt.Errorf("sign request: %w", err)
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}
