// Copyright (c) 2026 The multifarm developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package storage

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/multifarmlabs/multifarm/farm/reverts"
	"github.com/multifarmlabs/multifarm/kv"
	"github.com/multifarmlabs/multifarm/multifarm"
	"github.com/multifarmlabs/multifarm/state"
)

func newTestContext() *Context {
	return NewContext(multifarm.BytesToAddress([]byte("engine")), state.New(kv.NewMemDB()))
}

func TestCell(t *testing.T) {
	cell := NewCell(newTestContext(), multifarm.BytesToBytes32([]byte("cell")))

	val, err := cell.Get()
	require.NoError(t, err)
	assert.True(t, val.IsZero())

	require.NoError(t, cell.Add(uint256.NewInt(100)))
	require.NoError(t, cell.Sub(uint256.NewInt(40)))

	val, err = cell.Get()
	require.NoError(t, err)
	assert.Equal(t, uint256.NewInt(60), val)
}

func TestCellFailsClosed(t *testing.T) {
	cell := NewCell(newTestContext(), multifarm.BytesToBytes32([]byte("cell")))

	// underflow
	err := cell.Sub(uint256.NewInt(1))
	assert.True(t, errors.Is(err, reverts.ErrOverflow))

	// overflow
	max := new(uint256.Int).SetAllOne()
	cell.Set(max)
	err = cell.Add(uint256.NewInt(1))
	assert.True(t, errors.Is(err, reverts.ErrOverflow))

	// failed arithmetic leaves the cell untouched
	val, err2 := cell.Get()
	require.NoError(t, err2)
	assert.Equal(t, max, val)
}

type record struct {
	Amount *uint256.Int
	Note   []byte
}

func TestMapping(t *testing.T) {
	ctx := newTestContext()
	m := NewMapping[multifarm.Address, *record](ctx, multifarm.BytesToBytes32([]byte("records")))

	key := multifarm.BytesToAddress([]byte("acc"))

	// absent key yields fresh value
	got, err := m.Get(key)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Nil(t, got.Amount)

	want := &record{Amount: uint256.NewInt(7), Note: []byte("n")}
	require.NoError(t, m.Set(key, want))

	got, err = m.Get(key)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// distinct keys do not collide
	other, err := m.Get(multifarm.BytesToAddress([]byte("other")))
	require.NoError(t, err)
	assert.Nil(t, other.Amount)
}

func TestAddressList(t *testing.T) {
	list := NewAddressList(newTestContext(), multifarm.BytesToBytes32([]byte("list")))

	a := multifarm.BytesToAddress([]byte{1})
	b := multifarm.BytesToAddress([]byte{2})

	all, err := list.All()
	require.NoError(t, err)
	assert.Empty(t, all)

	require.NoError(t, list.Add(a))
	require.NoError(t, list.Add(b))
	require.NoError(t, list.Add(a)) // idempotent

	all, err = list.All()
	require.NoError(t, err)
	assert.Equal(t, []multifarm.Address{a, b}, all)

	has, err := list.Contains(a)
	require.NoError(t, err)
	assert.True(t, has)

	require.NoError(t, list.Remove(a))
	has, err = list.Contains(a)
	require.NoError(t, err)
	assert.False(t, has)

	all, err = list.All()
	require.NoError(t, err)
	assert.Equal(t, []multifarm.Address{b}, all)
}
