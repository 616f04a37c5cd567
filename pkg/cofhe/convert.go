package cofhe

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// The coprocessor serializes ciphertext signatures as 0x-prefixed hex strings,
// while the ledger ABI expects raw bytes. The two representations meet only
// here; everything past this boundary works with validated byte slices.

// SignatureFromHex decodes a 0x-prefixed hex signature string.
func SignatureFromHex(s string) ([]byte, error) {
	if !strings.HasPrefix(s, "0x") {
		return nil, fmt.Errorf("signature must be 0x-prefixed hex, got %q", truncate(s, 16))
	}
	raw := s[2:]
	if raw == "" {
		return nil, fmt.Errorf("signature is empty")
	}
	b, err := hex.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("signature is not valid hex: %w", err)
	}
	return b, nil
}

// SignatureToHex encodes a signature as a 0x-prefixed hex string.
func SignatureToHex(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
