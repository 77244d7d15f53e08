// Copyright (c) 2026 The multifarm developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/multifarmlabs/multifarm/auth"
	"github.com/multifarmlabs/multifarm/farm"
	"github.com/multifarmlabs/multifarm/farm/storage"
	"github.com/multifarmlabs/multifarm/kv"
	"github.com/multifarmlabs/multifarm/multifarm"
	"github.com/multifarmlabs/multifarm/state"
	"github.com/multifarmlabs/multifarm/token"
)

const testConfig = `
engine: "0x0000000000000000000000000000000000e91e1e"
admins:
  - "0x0000000000000000000000000000000000ad0001"
sources:
  - address: "0x0000000000000000000000000000000000f00d01"
    distributor:
      type: manual
      address: "0x0000000000000000000000000000000000d15701"
shares:
  - source: "0x0000000000000000000000000000000000f00d01"
    asset: "0x0000000000000000000000000000000000a55e01"
    weight: "3"
mints:
  - asset: "0x0000000000000000000000000000000000a55e01"
    holder: "0x0000000000000000000000000000000000a11ce0"
    amount: "1000"
`

func writeConfig(t *testing.T) string {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testConfig), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	cfg, err := loadConfig(writeConfig(t))
	require.NoError(t, err)
	assert.Len(t, cfg.Sources, 1)
	assert.Len(t, cfg.Shares, 1)
	assert.Equal(t, "manual", cfg.Sources[0].Distributor.Type)
}

func TestLoadConfigRejectsMissingEngine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("admins: [\"0x00\"]\n"), 0o600))
	_, err := loadConfig(path)
	assert.Error(t, err)
}

func TestApplyConfig(t *testing.T) {
	cfg, err := loadConfig(writeConfig(t))
	require.NoError(t, err)

	engineAddr := multifarm.MustParseAddress(cfg.Engine)
	st := state.New(kv.NewMemDB())
	book := token.NewBook(storage.NewContext(bookAddressFor(engineAddr), st))
	allow := auth.NewAllowlist(storage.NewContext(engineAddr, st))
	engine := farm.New(engineAddr, st, allow, book)

	require.NoError(t, applyMints(cfg, book))
	require.NoError(t, applyConfig(cfg, engine, allow, book))

	source := multifarm.MustParseAddress(cfg.Sources[0].Address)
	asset := multifarm.MustParseAddress(cfg.Shares[0].Asset)

	weight, err := engine.Weight(source, asset)
	require.NoError(t, err)
	assert.Equal(t, uint256.NewInt(3), weight)
	assert.NotNil(t, engine.DistributorOf(source))

	bal, err := book.BalanceOf(asset, multifarm.MustParseAddress(cfg.Mints[0].Holder))
	require.NoError(t, err)
	assert.Equal(t, uint256.NewInt(1000), bal)

	// a restart re-applies the same config without disturbing state
	require.NoError(t, applyConfig(cfg, engine, allow, book))
	weight, err = engine.Weight(source, asset)
	require.NoError(t, err)
	assert.Equal(t, uint256.NewInt(3), weight)
}
