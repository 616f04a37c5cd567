package cofhe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/creasty/defaults"
	"go.uber.org/zap"

	"github.com/smartbond/middleware/internal/metrics"
)

// Config holds the coprocessor client settings
type Config struct {
	BaseURL       string
	PermitToken   string
	SealingSecret []byte

	SecurityZone   uint8         `default:"0"`
	RequestTimeout time.Duration `default:"30s"`
}

// Client talks JSON over HTTP to the confidential coprocessor
type Client struct {
	baseURL      string
	permitToken  string
	sealingKey   []byte
	securityZone uint8
	httpClient   *http.Client
	logger       *zap.Logger
}

// NewClient creates a new coprocessor client. A sealing secret is optional;
// without one, sealed decrypt responses are rejected.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if err := defaults.Set(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply client defaults: %w", err)
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("coprocessor base URL is required")
	}

	var sealingKey []byte
	if len(cfg.SealingSecret) > 0 {
		key, err := DeriveSealingKey(cfg.SealingSecret, cfg.PermitToken)
		if err != nil {
			return nil, fmt.Errorf("failed to derive sealing key: %w", err)
		}
		sealingKey = key
	}

	logger.Info("Coprocessor client configured",
		zap.String("base_url", cfg.BaseURL),
		zap.Uint8("security_zone", cfg.SecurityZone),
		zap.Bool("sealing", sealingKey != nil))

	return &Client{
		baseURL:      cfg.BaseURL,
		permitToken:  cfg.PermitToken,
		sealingKey:   sealingKey,
		securityZone: cfg.SecurityZone,
		httpClient:   &http.Client{Timeout: cfg.RequestTimeout},
		logger:       logger,
	}, nil
}

type encryptItem struct {
	Utype     uint8  `json:"utype"`
	Plaintext string `json:"plaintext"`
}

type encryptRequest struct {
	SecurityZone uint8         `json:"securityZone"`
	Values       []encryptItem `json:"values"`
}

type wireCiphertext struct {
	CtHash       string `json:"ctHash"`
	SecurityZone uint8  `json:"securityZone"`
	Utype        uint8  `json:"utype"`
	Signature    string `json:"signature"`
}

type encryptResponse struct {
	Success     bool             `json:"success"`
	Error       string           `json:"error,omitempty"`
	Ciphertexts []wireCiphertext `json:"ciphertexts"`
}

type decryptRequest struct {
	CtHash string `json:"ctHash"`
	Utype  uint8  `json:"utype"`
}

type decryptResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
	Plaintext string `json:"plaintext,omitempty"`
	Sealed    string `json:"sealed,omitempty"`
}

// Encrypt submits an ordered batch of plaintexts and returns the signed
// ciphertexts in the same order. Any failure or partial batch yields
// ErrEncryptionFailed and no ciphertexts.
func (c *Client) Encrypt(ctx context.Context, values []Encryptable) ([]SignedCiphertext, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: empty batch", ErrEncryptionFailed)
	}

	req := encryptRequest{SecurityZone: c.securityZone}
	for _, v := range values {
		req.Values = append(req.Values, encryptItem{
			Utype:     uint8(v.Type),
			Plaintext: strconv.FormatUint(v.Value, 10),
		})
	}

	var resp encryptResponse
	if err := c.post(ctx, "/v1/encrypt", req, &resp); err != nil {
		metrics.CoprocessorRequests.WithLabelValues("encrypt", "error").Inc()
		return nil, fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}

	if !resp.Success {
		metrics.CoprocessorRequests.WithLabelValues("encrypt", "failed").Inc()
		return nil, fmt.Errorf("%w: coprocessor reported failure: %s", ErrEncryptionFailed, resp.Error)
	}
	// A short batch is as useless as no batch; no workflow may proceed with a
	// mix of encrypted and un-encrypted fields.
	if len(resp.Ciphertexts) != len(values) {
		metrics.CoprocessorRequests.WithLabelValues("encrypt", "partial").Inc()
		return nil, fmt.Errorf("%w: expected %d ciphertexts, got %d",
			ErrEncryptionFailed, len(values), len(resp.Ciphertexts))
	}

	out := make([]SignedCiphertext, 0, len(resp.Ciphertexts))
	for i, wire := range resp.Ciphertexts {
		ct, err := parseWireCiphertext(wire)
		if err != nil {
			return nil, fmt.Errorf("%w: ciphertext %d: %v", ErrEncryptionFailed, i, err)
		}
		if ct.Utype != uint8(values[i].Type) {
			return nil, fmt.Errorf("%w: ciphertext %d: type mismatch, requested %d got %d",
				ErrEncryptionFailed, i, values[i].Type, ct.Utype)
		}
		out = append(out, ct)
	}

	metrics.CoprocessorRequests.WithLabelValues("encrypt", "ok").Inc()
	c.logger.Debug("Encrypted batch", zap.Int("count", len(out)))
	return out, nil
}

// Decrypt resolves a ciphertext handle to its plaintext. Fails with
// ErrDecryptionUnavailable when the coprocessor has no authorized result for
// this permit. Idempotent: repeated calls for the same handle yield the same
// plaintext.
func (c *Client) Decrypt(ctx context.Context, handle *big.Int, typ FheType) (uint64, error) {
	if handle == nil {
		return 0, fmt.Errorf("%w: nil handle", ErrDecryptionUnavailable)
	}

	req := decryptRequest{CtHash: "0x" + handle.Text(16), Utype: uint8(typ)}

	var resp decryptResponse
	if err := c.post(ctx, "/v1/decrypt", req, &resp); err != nil {
		metrics.CoprocessorRequests.WithLabelValues("decrypt", "error").Inc()
		return 0, fmt.Errorf("%w: %v", ErrDecryptionUnavailable, err)
	}

	if !resp.Success {
		metrics.CoprocessorRequests.WithLabelValues("decrypt", "failed").Inc()
		return 0, fmt.Errorf("%w: %s", ErrDecryptionUnavailable, resp.Error)
	}

	plaintext := resp.Plaintext
	if resp.Sealed != "" {
		if c.sealingKey == nil {
			return 0, fmt.Errorf("%w: received sealed response without a sealing secret", ErrDecryptionUnavailable)
		}
		opened, err := Unseal(c.sealingKey, resp.Sealed)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrDecryptionUnavailable, err)
		}
		plaintext = string(opened)
	}

	value, err := strconv.ParseUint(plaintext, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: malformed plaintext %q", ErrDecryptionUnavailable, plaintext)
	}

	metrics.CoprocessorRequests.WithLabelValues("decrypt", "ok").Inc()
	return value, nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.permitToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.permitToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("coprocessor request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("coprocessor returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func parseWireCiphertext(wire wireCiphertext) (SignedCiphertext, error) {
	hashStr := wire.CtHash
	base := 10
	if len(hashStr) > 2 && hashStr[:2] == "0x" {
		hashStr = hashStr[2:]
		base = 16
	}
	ctHash, ok := new(big.Int).SetString(hashStr, base)
	if !ok {
		return SignedCiphertext{}, fmt.Errorf("malformed ctHash %q", wire.CtHash)
	}

	sig, err := SignatureFromHex(wire.Signature)
	if err != nil {
		return SignedCiphertext{}, err
	}

	return SignedCiphertext{
		CtHash:       ctHash,
		SecurityZone: wire.SecurityZone,
		Utype:        wire.Utype,
		Signature:    sig,
	}, nil
}
