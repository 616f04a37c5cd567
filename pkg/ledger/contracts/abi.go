// Package contracts holds the ABI fragments and typed decode helpers for the
// bond contract suite: factory, registry, bond, asset token and payment token.
package contracts

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

func mustABI(name, def string) *abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("invalid %s ABI: %v", name, err))
	}
	return &parsed
}

const inEuint64Components = `[
	{"name":"ctHash","type":"uint256"},
	{"name":"securityZone","type":"uint8"},
	{"name":"utype","type":"uint8"},
	{"name":"signature","type":"bytes"}
]`

// FactoryABI covers the bond factory entry point.
var FactoryABI = mustABI("factory", `[
	{"type":"function","name":"createBond","stateMutability":"nonpayable","inputs":[
		{"name":"paymentToken","type":"address"},
		{"name":"cap_","type":"tuple","components":`+inEuint64Components+`},
		{"name":"maturityDate_","type":"tuple","components":`+inEuint64Components+`},
		{"name":"priceAtIssue_","type":"tuple","components":`+inEuint64Components+`},
		{"name":"couponRatePerYear_","type":"tuple","components":`+inEuint64Components+`},
		{"name":"isin","type":"string"}
	],"outputs":[
		{"name":"bondAddr","type":"address"},
		{"name":"assetAddr","type":"address"}
	]},
	{"type":"function","name":"registry","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]}
]`)

// RegistryABI covers the bond registry reads used by the read model.
var RegistryABI = mustABI("registry", `[
	{"type":"function","name":"getAllBonds","stateMutability":"view","inputs":[],"outputs":[
		{"name":"","type":"tuple[]","components":[
			{"name":"bond","type":"address"},
			{"name":"issuer","type":"address"},
			{"name":"issueDate","type":"uint64"},
			{"name":"maturityDate","type":"uint256"},
			{"name":"subscriptionEndDate","type":"uint64"},
			{"name":"notionalCap","type":"uint256"},
			{"name":"currencyToken","type":"address"},
			{"name":"isin","type":"string"}
		]}
	]}
]`)

// BondABI covers the per-bond lifecycle methods and views.
var BondABI = mustABI("bond", `[
	{"type":"function","name":"buy","stateMutability":"nonpayable","inputs":[{"name":"paymentAmount","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"closeIssuance","stateMutability":"nonpayable","inputs":[],"outputs":[]},
	{"type":"function","name":"fundUpfront","stateMutability":"nonpayable","inputs":[{"name":"amount","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"redeem","stateMutability":"nonpayable","inputs":[
		{"name":"tokenAmountEnc","type":"tuple","components":`+inEuint64Components+`}
	],"outputs":[]},
	{"type":"function","name":"claimRedeem","stateMutability":"nonpayable","inputs":[],"outputs":[]},
	{"type":"function","name":"issuanceClosed","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"funded","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"issueDate","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint64"}]},
	{"type":"function","name":"subscriptionEndDate","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint64"}]},
	{"type":"function","name":"maturityDate","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"priceAtIssue","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"couponRatePerYear","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"soldNotional","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"totalPayoutRequired","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"payoutEscrowBalance","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"payoutDecryptStatus","stateMutability":"view","inputs":[{"name":"holder","type":"address"}],"outputs":[
		{"name":"ready","type":"bool"},
		{"name":"payoutPlain","type":"uint64"}
	]},
	{"type":"function","name":"pendingPayoutHandle","stateMutability":"view","inputs":[{"name":"holder","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"paymentToken","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"assetToken","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]}
]`)

// AssetTokenABI covers the confidential bond asset token.
var AssetTokenABI = mustABI("asset token", `[
	{"type":"function","name":"setWhitelist","stateMutability":"nonpayable","inputs":[
		{"name":"holder","type":"address"},
		{"name":"status","type":"bool"}
	],"outputs":[]},
	{"type":"function","name":"whitelist","stateMutability":"view","inputs":[{"name":"","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"confidentialBalanceOf","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"cap","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"symbol","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]}
]`)

// PaymentTokenABI covers the ERC-20 settlement token, including the faucet
// mint used on test networks.
var PaymentTokenABI = mustABI("payment token", `[
	{"type":"function","name":"approve","stateMutability":"nonpayable","inputs":[
		{"name":"spender","type":"address"},
		{"name":"amount","type":"uint256"}
	],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"mint","stateMutability":"nonpayable","inputs":[
		{"name":"to","type":"address"},
		{"name":"amount","type":"uint256"}
	],"outputs":[]},
	{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"allowance","stateMutability":"view","inputs":[
		{"name":"owner","type":"address"},
		{"name":"spender","type":"address"}
	],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"decimals","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]}
]`)
