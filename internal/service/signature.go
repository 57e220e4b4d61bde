package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// SignatureHeader carries the HMAC of a posted sync message body.
const SignatureHeader = "X-Sitegate-Signature"

const signaturePrefix = "sha256="

// SignMessage returns the signature header value for body under secret.
func SignMessage(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// VerifyMessageSignature reports whether sig is SignMessage(secret, body).
// An empty secret disables signing and accepts every body.
func VerifyMessageSignature(secret, body []byte, sig string) bool {
	if len(secret) == 0 {
		return true
	}
	raw, ok := strings.CutPrefix(strings.TrimSpace(sig), signaturePrefix)
	if !ok {
		return false
	}
	got, err := hex.DecodeString(raw)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}
