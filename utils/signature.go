package utils

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

// SignBody returns the Base64 encoded HMAC-SHA256 of body under secret, the form the chat
// platform sends in its signature header.
func SignBody(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks the webhook signature header against the raw request body.
// It never panics; an empty secret or signature is simply not valid.
func VerifySignature(body []byte, signature, secret string) bool {
	signature = strings.TrimSpace(signature)
	if secret == "" || signature == "" {
		return false
	}
	expected := SignBody(body, secret)
	return hmac.Equal([]byte(signature), []byte(expected))
}
