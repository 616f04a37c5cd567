package cofhe

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

var randReader = rand.Reader

// A permit authorizes this party to decrypt specific on-chain ciphertexts.
// The session itself is established out of band; what this package holds is
// the permit token sent with each request and the sealing key used to open
// sealed decrypt responses. Sealed payloads are AES-256-GCM with the format
// nonce || ciphertext || tag, base64-encoded.

// DeriveSealingKey derives the 32-byte response sealing key from the shared
// permit secret, bound to the permit token via HKDF-SHA256.
func DeriveSealingKey(secret []byte, permitToken string) ([]byte, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("sealing secret must be at least 32 bytes")
	}

	info := []byte("cofhe-sealing-" + permitToken)
	hkdfReader := hkdf.New(sha256.New, secret, nil, info)

	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdfReader, key); err != nil {
		return nil, fmt.Errorf("failed to derive sealing key: %w", err)
	}
	return key, nil
}

// Unseal opens a sealed decrypt response with the derived sealing key.
func Unseal(key []byte, sealed string) ([]byte, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("sealing key must be 32 bytes (AES-256)")
	}

	data, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return nil, fmt.Errorf("sealed payload is not valid base64: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	if len(data) < gcm.NonceSize() {
		return nil, fmt.Errorf("sealed payload too short")
	}

	nonce, ciphertext := data[:gcm.NonceSize()], data[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open sealed payload: %w", err)
	}
	return plaintext, nil
}

// Seal is the inverse of Unseal. The coprocessor does the sealing in
// production; this exists for tests and local tooling.
func Seal(key, plaintext []byte) (string, error) {
	if len(key) != 32 {
		return "", fmt.Errorf("sealing key must be 32 bytes (AES-256)")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(randReader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := gcm.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}
