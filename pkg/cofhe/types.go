// Package cofhe provides the client for the confidential-compute coprocessor.
//
// Plaintext bond economics never reach the ledger directly; they are encrypted
// here first and referenced on-chain through ciphertext handles. Decryption of
// on-chain handles is only possible through a permit-authorized request to the
// same coprocessor.
package cofhe

import (
	"errors"
	"math/big"
)

// FheType identifies the encrypted integer width understood by the coprocessor.
type FheType uint8

const (
	TypeBool   FheType = 0
	TypeUint8  FheType = 2
	TypeUint16 FheType = 3
	TypeUint32 FheType = 4
	TypeUint64 FheType = 5
)

// Encryptable is a single typed plaintext queued for batch encryption.
type Encryptable struct {
	Type  FheType
	Value uint64
}

// Uint64 wraps a value as an encryptable euint64
func Uint64(v uint64) Encryptable {
	return Encryptable{Type: TypeUint64, Value: v}
}

// EncryptedHandle is an opaque reference to a ciphertext held by the ledger.
type EncryptedHandle struct {
	CtHash       *big.Int
	SecurityZone uint8
	Utype        uint8
}

// SignedCiphertext is an encrypted handle plus the coprocessor signature that
// binds it to the submitting party. It is consumed by exactly one ledger
// transaction; replaying it across transactions is not supported.
type SignedCiphertext struct {
	CtHash       *big.Int
	SecurityZone uint8
	Utype        uint8
	Signature    []byte
}

// Handle returns the unsigned handle portion of the ciphertext
func (c SignedCiphertext) Handle() EncryptedHandle {
	return EncryptedHandle{CtHash: c.CtHash, SecurityZone: c.SecurityZone, Utype: c.Utype}
}

var (
	// ErrEncryptionFailed is returned when the coprocessor reports a failed or
	// partial encryption batch. A partial batch is treated identically to a
	// total failure; callers never see a mix of encrypted and missing values.
	ErrEncryptionFailed = errors.New("cofhe: encryption failed")

	// ErrDecryptionUnavailable is returned when the coprocessor holds no
	// authorized plaintext for the caller, e.g. a missing permit. It is fatal
	// at this layer; any retry belongs to the calling workflow.
	ErrDecryptionUnavailable = errors.New("cofhe: decryption unavailable")
)
