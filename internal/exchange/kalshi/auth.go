package kalshi

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Auth signs outbound exchange requests. Kalshi authenticates with
// RSA-PSS over timestamp+method+path; the key arrives as either a
// legacy PKCS#1 PEM or a PKCS#8 container, told apart by the PEM
// header text.
type Auth struct {
	key   *rsa.PrivateKey
	keyID string
}

func NewAuth(keyID, pemData string) (*Auth, error) {
	if strings.TrimSpace(keyID) == "" {
		return nil, errors.New("kalshi key id is required")
	}
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, errors.New("no PEM block found in kalshi private key")
	}

	var key *rsa.PrivateKey
	if strings.Contains(pemData, "BEGIN RSA PRIVATE KEY") {
		k, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parse PKCS#1 private key: %w", err)
		}
		key = k
	} else {
		k, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parse PKCS#8 private key: %w", err)
		}
		rsaKey, ok := k.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("kalshi private key is %T, want RSA", k)
		}
		key = rsaKey
	}

	return &Auth{key: key, keyID: keyID}, nil
}

// Headers produces the authentication header set for one request. The
// signed message is timestamp_millis + method + path with any query
// string stripped. PSS draws a fresh random salt per call, so two
// signatures over the same message differ.
//
// A signing failure means the key is unusable; there is no recoverable
// path, so it panics rather than letting a request go out unsigned.
func (a *Auth) Headers(method, path string) map[string]string {
	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
	signPath := path
	if i := strings.Index(path, "?"); i >= 0 {
		signPath = path[:i]
	}

	digest := sha256.Sum256([]byte(ts + method + signPath))
	sig, err := rsa.SignPSS(rand.Reader, a.key, crypto.SHA256, digest[:], &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthEqualsHash,
	})
	if err != nil {
		panic(fmt.Sprintf("kalshi request signing failed, key is unusable: %v", err))
	}

	return map[string]string{
		"KALSHI-ACCESS-KEY":       a.keyID,
		"KALSHI-ACCESS-TIMESTAMP": ts,
		"KALSHI-ACCESS-SIGNATURE": base64.StdEncoding.EncodeToString(sig),
		"Content-Type":            "application/json",
	}
}
