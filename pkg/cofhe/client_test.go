package cofhe

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

func newTestClient(t *testing.T, serverURL string, sealingSecret []byte) *Client {
	t.Helper()
	client, err := NewClient(Config{
		BaseURL:       serverURL,
		PermitToken:   "permit-123",
		SealingSecret: sealingSecret,
	}, zap.NewNop())
	require.NoError(t, err)
	return client
}

func TestEncrypt(t *testing.T) {
	t.Run("returns ciphertexts in request order", func(t *testing.T) {
		server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/encrypt", r.URL.Path)
			assert.Equal(t, "Bearer permit-123", r.Header.Get("Authorization"))

			var req encryptRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			require.Len(t, req.Values, 4)
			assert.Equal(t, "1000000", req.Values[0].Plaintext)
			assert.Equal(t, uint8(TypeUint64), req.Values[0].Utype)

			resp := encryptResponse{Success: true}
			for i, v := range req.Values {
				resp.Ciphertexts = append(resp.Ciphertexts, wireCiphertext{
					CtHash:       "0x" + big.NewInt(int64(1000+i)).Text(16),
					SecurityZone: req.SecurityZone,
					Utype:        v.Utype,
					Signature:    "0xdeadbeef",
				})
			}
			json.NewEncoder(w).Encode(resp)
		})
		client := newTestClient(t, server.URL, nil)

		cts, err := client.Encrypt(context.Background(), []Encryptable{
			Uint64(1_000_000),
			Uint64(98),
			Uint64(500),
			Uint64(1735689600),
		})
		require.NoError(t, err)
		require.Len(t, cts, 4)
		assert.Equal(t, int64(1000), cts[0].CtHash.Int64())
		assert.Equal(t, int64(1003), cts[3].CtHash.Int64())
		assert.Equal(t, uint8(TypeUint64), cts[0].Utype)
		assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, cts[0].Signature)
	})

	t.Run("partial batch fails entirely", func(t *testing.T) {
		server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(encryptResponse{
				Success: true,
				Ciphertexts: []wireCiphertext{
					{CtHash: "0x1", Utype: uint8(TypeUint64), Signature: "0x01"},
				},
			})
		})
		client := newTestClient(t, server.URL, nil)

		cts, err := client.Encrypt(context.Background(), []Encryptable{Uint64(1), Uint64(2)})
		assert.ErrorIs(t, err, ErrEncryptionFailed)
		assert.Nil(t, cts)
	})

	t.Run("coprocessor failure is reported", func(t *testing.T) {
		server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(encryptResponse{Success: false, Error: "permit expired"})
		})
		client := newTestClient(t, server.URL, nil)

		_, err := client.Encrypt(context.Background(), []Encryptable{Uint64(1)})
		require.ErrorIs(t, err, ErrEncryptionFailed)
		assert.Contains(t, err.Error(), "permit expired")
	})

	t.Run("type mismatch in response fails the batch", func(t *testing.T) {
		server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(encryptResponse{
				Success: true,
				Ciphertexts: []wireCiphertext{
					{CtHash: "0x1", Utype: uint8(TypeUint32), Signature: "0x01"},
				},
			})
		})
		client := newTestClient(t, server.URL, nil)

		_, err := client.Encrypt(context.Background(), []Encryptable{Uint64(1)})
		assert.ErrorIs(t, err, ErrEncryptionFailed)
	})

	t.Run("empty batch is rejected locally", func(t *testing.T) {
		client := newTestClient(t, "http://localhost:0", nil)

		_, err := client.Encrypt(context.Background(), nil)
		assert.ErrorIs(t, err, ErrEncryptionFailed)
	})

	t.Run("http error maps to ErrEncryptionFailed", func(t *testing.T) {
		server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})
		client := newTestClient(t, server.URL, nil)

		_, err := client.Encrypt(context.Background(), []Encryptable{Uint64(1)})
		assert.ErrorIs(t, err, ErrEncryptionFailed)
	})
}

func TestDecrypt(t *testing.T) {
	t.Run("plain response", func(t *testing.T) {
		server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/decrypt", r.URL.Path)

			var req decryptRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "0x2a", req.CtHash)
			assert.Equal(t, uint8(TypeUint64), req.Utype)

			json.NewEncoder(w).Encode(decryptResponse{Success: true, Plaintext: "1000000"})
		})
		client := newTestClient(t, server.URL, nil)

		value, err := client.Decrypt(context.Background(), big.NewInt(42), TypeUint64)
		require.NoError(t, err)
		assert.Equal(t, uint64(1_000_000), value)
	})

	t.Run("sealed response is opened with the derived key", func(t *testing.T) {
		secret := make([]byte, 32)
		for i := range secret {
			secret[i] = byte(i)
		}
		key, err := DeriveSealingKey(secret, "permit-123")
		require.NoError(t, err)
		sealed, err := Seal(key, []byte("98"))
		require.NoError(t, err)

		server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(decryptResponse{Success: true, Sealed: sealed})
		})
		client := newTestClient(t, server.URL, secret)

		value, err := client.Decrypt(context.Background(), big.NewInt(7), TypeUint64)
		require.NoError(t, err)
		assert.Equal(t, uint64(98), value)
	})

	t.Run("sealed response without a sealing secret is rejected", func(t *testing.T) {
		server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(decryptResponse{Success: true, Sealed: "AAAA"})
		})
		client := newTestClient(t, server.URL, nil)

		_, err := client.Decrypt(context.Background(), big.NewInt(7), TypeUint64)
		assert.ErrorIs(t, err, ErrDecryptionUnavailable)
	})

	t.Run("unauthorized decrypt maps to ErrDecryptionUnavailable", func(t *testing.T) {
		server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(decryptResponse{Success: false, Error: "no permit for handle"})
		})
		client := newTestClient(t, server.URL, nil)

		_, err := client.Decrypt(context.Background(), big.NewInt(7), TypeUint64)
		require.ErrorIs(t, err, ErrDecryptionUnavailable)
		assert.Contains(t, err.Error(), "no permit for handle")
	})

	t.Run("nil handle is rejected locally", func(t *testing.T) {
		client := newTestClient(t, "http://localhost:0", nil)

		_, err := client.Decrypt(context.Background(), nil, TypeUint64)
		assert.ErrorIs(t, err, ErrDecryptionUnavailable)
	})
}

func TestParseWireCiphertext(t *testing.T) {
	t.Run("hex ctHash", func(t *testing.T) {
		ct, err := parseWireCiphertext(wireCiphertext{
			CtHash: "0xff", SecurityZone: 0, Utype: 5, Signature: "0x0102",
		})
		require.NoError(t, err)
		assert.Equal(t, int64(255), ct.CtHash.Int64())
	})

	t.Run("decimal ctHash", func(t *testing.T) {
		ct, err := parseWireCiphertext(wireCiphertext{
			CtHash: "255", Utype: 5, Signature: "0x0102",
		})
		require.NoError(t, err)
		assert.Equal(t, int64(255), ct.CtHash.Int64())
	})

	t.Run("malformed ctHash", func(t *testing.T) {
		_, err := parseWireCiphertext(wireCiphertext{CtHash: "xyz", Signature: "0x01"})
		assert.Error(t, err)
	})

	t.Run("malformed signature", func(t *testing.T) {
		_, err := parseWireCiphertext(wireCiphertext{CtHash: "0x1", Signature: "deadbeef"})
		assert.Error(t, err)
	})
}
