package redsys

import (
	"crypto/des"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidSecret = errors.New("redsys: secret must be base64 of a 24-byte 3DES key")

// Signer computes HMAC_SHA256_V1 signatures for one merchant secret.
type Signer struct {
	key []byte
}

func NewSigner(secret string) (*Signer, error) {
	key, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSecret, err)
	}
	if len(key) != 24 {
		return nil, ErrInvalidSecret
	}
	return &Signer{key: key}, nil
}

// Sign derives the per-order key by encrypting the order id with 3DES-ECB and
// returns base64(HMAC-SHA256(derived, encodedParams)).
func (s *Signer) Sign(encodedParams, order string) (string, error) {
	block, err := des.NewTripleDESCipher(s.key)
	if err != nil {
		return "", fmt.Errorf("redsys: cipher: %w", err)
	}
	// Right-padded with zero bytes or truncated to one block.
	plain := make([]byte, block.BlockSize())
	copy(plain, order)
	derived := make([]byte, block.BlockSize())
	block.Encrypt(derived, plain)

	mac := hmac.New(sha256.New, derived)
	mac.Write([]byte(encodedParams))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}

// Verify recomputes the signature and compares it in constant time after
// folding the URL-safe alphabet onto the standard one.
func (s *Signer) Verify(encodedParams, order, signature string) (bool, error) {
	expected, err := s.Sign(encodedParams, order)
	if err != nil {
		return false, err
	}
	return hmac.Equal([]byte(normalize(expected)), []byte(normalize(signature))), nil
}

func normalize(sig string) string {
	return strings.NewReplacer("-", "+", "_", "/").Replace(sig)
}
