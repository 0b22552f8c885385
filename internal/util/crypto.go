package util

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
)

const (
	codeBytes  = 16
	tokenBytes = 32
)

// GeneratePairingCode returns 128 bits from a CSPRNG, hex-encoded.
// Codes travel inside URLs and QR payloads, never by human transcription,
// so there is no need for a short human-friendly alphabet.
func GeneratePairingCode() (string, error) {
	bytes := make([]byte, codeBytes)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

func GenerateToken() (string, error) {
	bytes := make([]byte, tokenBytes)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// MaskCode keeps a short prefix for log correlation without making the
// full code recoverable from logs.
func MaskCode(code string) string {
	if len(code) <= 4 {
		return "****"
	}
	return code[:4] + "-****"
}
