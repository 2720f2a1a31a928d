package exchange

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Signer RSA-PSS signs every authenticated request per §6: the ASCII
// bytes `{timestamp}{UPPERCASE_METHOD}{path_without_query}`, SHA-256,
// MGF1-SHA-256, salt length equal to the digest length.
type Signer struct {
	keyID      string
	privateKey *rsa.PrivateKey
	now        func() time.Time
}

// NewSigner parses a PEM-encoded RSA private key (accepting PKCS#1 and
// PKCS#8) and returns a Signer for keyID.
func NewSigner(keyID string, pemBytes []byte) (*Signer, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("decode PEM: no block found")
	}

	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		parsed, err2 := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err2 != nil {
			return nil, fmt.Errorf("parse private key: %w", err2)
		}
		rsaKey, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("private key is not RSA")
		}
		key = rsaKey
	}

	return &Signer{keyID: keyID, privateKey: key, now: time.Now}, nil
}

// SignHeaders returns the three authentication headers for a request to
// path using method.
func (s *Signer) SignHeaders(method, path string) (map[string]string, error) {
	ts := s.now().UnixMilli()
	message := fmt.Sprintf("%d%s%s", ts, strings.ToUpper(method), path)

	digest := sha256.Sum256([]byte(message))
	sig, err := rsa.SignPSS(rand.Reader, s.privateKey, crypto.SHA256, digest[:], &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthEqualsHash,
		Hash:       crypto.SHA256,
	})
	if err != nil {
		return nil, fmt.Errorf("sign: %w", err)
	}

	return map[string]string{
		"KALSHI-ACCESS-KEY":       s.keyID,
		"KALSHI-ACCESS-TIMESTAMP": strconv.FormatInt(ts, 10),
		"KALSHI-ACCESS-SIGNATURE": base64.StdEncoding.EncodeToString(sig),
		"Content-Type":            "application/json",
	}, nil
}
