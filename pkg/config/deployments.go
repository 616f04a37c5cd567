package config

import (
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

// Deployments is the per-network contract address book.
type Deployments struct {
	Network      string `yaml:"network"`
	ChainID      int64  `yaml:"chain_id"`
	BondFactory  string `yaml:"bond_factory"`
	BondRegistry string `yaml:"bond_registry"`
	PaymentToken string `yaml:"payment_token"`
}

// LoadDeployments reads and validates the deployment address book
func LoadDeployments(path string) (*Deployments, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read deployments file: %w", err)
	}

	var d Deployments
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("failed to parse deployments file: %w", err)
	}

	for name, addr := range map[string]string{
		"bond_factory":  d.BondFactory,
		"bond_registry": d.BondRegistry,
		"payment_token": d.PaymentToken,
	} {
		if !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("deployments: %s is not a valid address: %q", name, addr)
		}
	}

	return &d, nil
}

// FactoryAddress returns the bond factory address
func (d *Deployments) FactoryAddress() common.Address {
	return common.HexToAddress(d.BondFactory)
}

// RegistryAddress returns the bond registry address
func (d *Deployments) RegistryAddress() common.Address {
	return common.HexToAddress(d.BondRegistry)
}

// PaymentTokenAddress returns the ERC-20 payment token address
func (d *Deployments) PaymentTokenAddress() common.Address {
	return common.HexToAddress(d.PaymentToken)
}
