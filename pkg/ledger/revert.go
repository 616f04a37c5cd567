package ledger

import (
	"encoding/hex"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/rpc"
)

// errorSelector is the 4-byte selector of the solidity Error(string) ABI.
var errorSelector = [4]byte{0x08, 0xc3, 0x79, 0xa0}

// UnpackRevert decodes the reason string out of Error(string) revert data.
func UnpackRevert(data []byte) (string, bool) {
	if len(data) < 4 || [4]byte(data[:4]) != errorSelector {
		return "", false
	}
	typ, err := abi.NewType("string", "", nil)
	if err != nil {
		return "", false
	}
	unpacked, err := (abi.Arguments{{Type: typ}}).Unpack(data[4:])
	if err != nil || len(unpacked) != 1 {
		return "", false
	}
	reason, ok := unpacked[0].(string)
	return reason, ok
}

// revertReason pulls a revert reason out of an RPC error, either from the
// structured error data or from the conventional message text.
func revertReason(err error) (string, bool) {
	if err == nil {
		return "", false
	}

	// geth-style errors carry the raw revert data
	var dataErr rpc.DataError
	if ok := asDataError(err, &dataErr); ok {
		if data, ok := decodeErrorData(dataErr.ErrorData()); ok {
			if reason, ok := UnpackRevert(data); ok {
				return reason, true
			}
		}
	}

	msg := err.Error()
	const marker = "execution reverted"
	idx := strings.Index(msg, marker)
	if idx < 0 {
		return "", false
	}
	rest := msg[idx+len(marker):]
	rest = strings.TrimPrefix(rest, ":")
	return strings.TrimSpace(rest), true
}

func asDataError(err error, target *rpc.DataError) bool {
	for err != nil {
		if de, ok := err.(rpc.DataError); ok {
			*target = de
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

func decodeErrorData(data any) ([]byte, bool) {
	s, ok := data.(string)
	if !ok {
		return nil, false
	}
	s = strings.TrimPrefix(s, "0x")
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, false
	}
	return b, true
}
