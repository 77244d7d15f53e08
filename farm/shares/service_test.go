// Copyright (c) 2026 The multifarm developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package shares

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/multifarmlabs/multifarm/farm/storage"
	"github.com/multifarmlabs/multifarm/kv"
	"github.com/multifarmlabs/multifarm/multifarm"
	"github.com/multifarmlabs/multifarm/state"
)

var (
	sourceR = multifarm.BytesToAddress([]byte("source-r"))
	sourceS = multifarm.BytesToAddress([]byte("source-s"))
	assetA  = multifarm.BytesToAddress([]byte("asset-a"))
	assetB  = multifarm.BytesToAddress([]byte("asset-b"))
)

func newService() *Service {
	sctx := storage.NewContext(multifarm.BytesToAddress([]byte("engine")), state.New(kv.NewMemDB()))
	return New(sctx)
}

func TestSetWeight(t *testing.T) {
	svc := newService()

	on, off, err := svc.SetWeight(sourceR, assetA, uint256.NewInt(1))
	require.NoError(t, err)
	assert.True(t, on)
	assert.False(t, off)

	on, off, err = svc.SetWeight(sourceR, assetB, uint256.NewInt(3))
	require.NoError(t, err)
	assert.True(t, on)

	total, err := svc.TotalWeight(sourceR)
	require.NoError(t, err)
	assert.Equal(t, uint256.NewInt(4), total)

	// adjusting an existing weight keeps the total consistent
	on, off, err = svc.SetWeight(sourceR, assetB, uint256.NewInt(5))
	require.NoError(t, err)
	assert.False(t, on)
	assert.False(t, off)

	total, err = svc.TotalWeight(sourceR)
	require.NoError(t, err)
	assert.Equal(t, uint256.NewInt(6), total)

	w, err := svc.Weight(sourceR, assetA)
	require.NoError(t, err)
	assert.Equal(t, uint256.NewInt(1), w)
}

func TestAvailableIndex(t *testing.T) {
	svc := newService()

	available, err := svc.Available(assetA)
	require.NoError(t, err)
	assert.Empty(t, available)

	_, _, err = svc.SetWeight(sourceR, assetA, uint256.NewInt(2))
	require.NoError(t, err)
	_, _, err = svc.SetWeight(sourceS, assetA, uint256.NewInt(2))
	require.NoError(t, err)

	available, err = svc.Available(assetA)
	require.NoError(t, err)
	assert.Equal(t, []multifarm.Address{sourceR, sourceS}, available)

	// nonzero→0 removes from index
	_, off, err := svc.SetWeight(sourceR, assetA, uint256.NewInt(0))
	require.NoError(t, err)
	assert.True(t, off)

	available, err = svc.Available(assetA)
	require.NoError(t, err)
	assert.Equal(t, []multifarm.Address{sourceS}, available)

	// the other asset's index is untouched
	available, err = svc.Available(assetB)
	require.NoError(t, err)
	assert.Empty(t, available)
}

func TestZeroToZeroIsNoTransition(t *testing.T) {
	svc := newService()

	on, off, err := svc.SetWeight(sourceR, assetA, uint256.NewInt(0))
	require.NoError(t, err)
	assert.False(t, on)
	assert.False(t, off)

	available, err := svc.Available(assetA)
	require.NoError(t, err)
	assert.Empty(t, available)
}
