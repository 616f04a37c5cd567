package contracts

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/smartbond/middleware/pkg/cofhe"
)

// InEuint64 is the solidity input struct for an encrypted 64-bit value. Field
// order and types must match the on-chain tuple exactly.
type InEuint64 struct {
	CtHash       *big.Int `abi:"ctHash"`
	SecurityZone uint8    `abi:"securityZone"`
	Utype        uint8    `abi:"utype"`
	Signature    []byte   `abi:"signature"`
}

// InEuint64FromCiphertext adapts a coprocessor ciphertext to the on-chain
// input tuple.
func InEuint64FromCiphertext(ct cofhe.SignedCiphertext) InEuint64 {
	return InEuint64{
		CtHash:       ct.CtHash,
		SecurityZone: ct.SecurityZone,
		Utype:        ct.Utype,
		Signature:    ct.Signature,
	}
}

// BondInfo mirrors the registry's BondInfo tuple. MaturityDate and
// NotionalCap are euint64 ciphertext handles, not plaintext values.
type BondInfo struct {
	Bond                common.Address `abi:"bond"`
	Issuer              common.Address `abi:"issuer"`
	IssueDate           uint64         `abi:"issueDate"`
	MaturityDate        *big.Int       `abi:"maturityDate"`
	SubscriptionEndDate uint64         `abi:"subscriptionEndDate"`
	NotionalCap         *big.Int       `abi:"notionalCap"`
	CurrencyToken       common.Address `abi:"currencyToken"`
	Isin                string         `abi:"isin"`
}

// DecodeBondInfos converts the raw getAllBonds output into typed records.
func DecodeBondInfos(out []any) ([]BondInfo, error) {
	if len(out) != 1 {
		return nil, fmt.Errorf("getAllBonds: expected 1 output value, got %d", len(out))
	}
	infos := *abi.ConvertType(out[0], new([]BondInfo)).(*[]BondInfo)
	return infos, nil
}

// DecodeAddress extracts a single address return value.
func DecodeAddress(out []any) (common.Address, error) {
	if len(out) != 1 {
		return common.Address{}, fmt.Errorf("expected 1 output value, got %d", len(out))
	}
	addr, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("expected address, got %T", out[0])
	}
	return addr, nil
}

// DecodeBig extracts a single uint256 return value.
func DecodeBig(out []any) (*big.Int, error) {
	if len(out) != 1 {
		return nil, fmt.Errorf("expected 1 output value, got %d", len(out))
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("expected *big.Int, got %T", out[0])
	}
	return v, nil
}

// DecodeBool extracts a single bool return value.
func DecodeBool(out []any) (bool, error) {
	if len(out) != 1 {
		return false, fmt.Errorf("expected 1 output value, got %d", len(out))
	}
	v, ok := out[0].(bool)
	if !ok {
		return false, fmt.Errorf("expected bool, got %T", out[0])
	}
	return v, nil
}

// DecodeUint64 extracts a single uint64 return value.
func DecodeUint64(out []any) (uint64, error) {
	if len(out) != 1 {
		return 0, fmt.Errorf("expected 1 output value, got %d", len(out))
	}
	v, ok := out[0].(uint64)
	if !ok {
		return 0, fmt.Errorf("expected uint64, got %T", out[0])
	}
	return v, nil
}

// DecodeString extracts a single string return value.
func DecodeString(out []any) (string, error) {
	if len(out) != 1 {
		return "", fmt.Errorf("expected 1 output value, got %d", len(out))
	}
	v, ok := out[0].(string)
	if !ok {
		return "", fmt.Errorf("expected string, got %T", out[0])
	}
	return v, nil
}

// PayoutStatus is the decoded payoutDecryptStatus result.
type PayoutStatus struct {
	Ready       bool
	PayoutPlain uint64
}

// DecodePayoutStatus converts the raw payoutDecryptStatus output.
func DecodePayoutStatus(out []any) (PayoutStatus, error) {
	if len(out) != 2 {
		return PayoutStatus{}, fmt.Errorf("payoutDecryptStatus: expected 2 output values, got %d", len(out))
	}
	ready, ok := out[0].(bool)
	if !ok {
		return PayoutStatus{}, fmt.Errorf("expected bool, got %T", out[0])
	}
	plain, ok := out[1].(uint64)
	if !ok {
		return PayoutStatus{}, fmt.Errorf("expected uint64, got %T", out[1])
	}
	return PayoutStatus{Ready: ready, PayoutPlain: plain}, nil
}
