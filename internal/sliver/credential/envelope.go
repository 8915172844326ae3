// Package credential implements the CredentialPipeline:
// verifying a signed JSON envelope against the Observer's RSA public key,
// then decrypting the sealed payload under the cached slice secret, then
// parsing the result into volume records.
package credential

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
)

// Sentinel errors, checked with errors.Is, rather than a bespoke
// exception hierarchy.
var (
	ErrMalformedEnvelope = errors.New("credential: malformed envelope")
	ErrBadSignature      = errors.New("credential: signature verification failed")
	ErrUnknownKey        = errors.New("credential: could not load observer public key")
	ErrDecryptFailed     = errors.New("credential: decryption failed")
	ErrTruncated         = errors.New("credential: sealed blob truncated")
	ErrMalformedData     = errors.New("credential: malformed volume data")
)

// envelope is the wire shape the Observer sends: a base64 payload plus
// an RSA-PSS/SHA-256 signature over the raw (pre-base64) payload bytes.
type envelope struct {
	PayloadB64   string `json:"payload_b64"`
	SignatureB64 string `json:"signature_b64"`
}

// LoadPublicKey reads and parses the Observer's RSA public key from a PEM
// file. Returned errors are always ErrUnknownKey: we can't trust
// anything signed under a key we failed to load.
func LoadPublicKey(path string) (*rsa.PublicKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknownKey, err)
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("%w: not PEM", ErrUnknownKey)
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknownKey, err)
	}
	rsaKey, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: not an RSA key", ErrUnknownKey)
	}
	return rsaKey, nil
}

// VerifyJSON validates envelopeJSON's signature against pub and returns
// the decoded (still-sealed) payload. It never attempts decryption,
// that's Unseal's job, so a signature failure never touches the slice
// secret.
func VerifyJSON(pub *rsa.PublicKey, envelopeJSON []byte) ([]byte, error) {
	var env envelope
	if err := json.Unmarshal(envelopeJSON, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if env.PayloadB64 == "" || env.SignatureB64 == "" {
		return nil, fmt.Errorf("%w: missing payload or signature", ErrMalformedEnvelope)
	}

	payload, err := base64.StdEncoding.DecodeString(env.PayloadB64)
	if err != nil {
		return nil, fmt.Errorf("%w: payload not base64: %v", ErrMalformedEnvelope, err)
	}
	sig, err := base64.StdEncoding.DecodeString(env.SignatureB64)
	if err != nil {
		return nil, fmt.Errorf("%w: signature not base64: %v", ErrMalformedEnvelope, err)
	}

	digest := sha256.Sum256(payload)
	if err := rsa.VerifyPSS(pub, crypto.SHA256, digest[:], sig, nil); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}

	return payload, nil
}

// SignJSON is the inverse of VerifyJSON, used by the Observer side (and
// by tests standing in for it) to produce envelopes this agent accepts.
func SignJSON(priv *rsa.PrivateKey, payload []byte) ([]byte, error) {
	digest := sha256.Sum256(payload)
	sig, err := rsa.SignPSS(rand.Reader, priv, crypto.SHA256, digest[:], nil)
	if err != nil {
		return nil, fmt.Errorf("sign payload: %w", err)
	}
	env := envelope{
		PayloadB64:   base64.StdEncoding.EncodeToString(payload),
		SignatureB64: base64.StdEncoding.EncodeToString(sig),
	}
	return json.Marshal(env)
}
