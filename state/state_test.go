// Copyright (c) 2026 The multifarm developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package state

import (
	"testing"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/multifarmlabs/multifarm/kv"
	"github.com/multifarmlabs/multifarm/multifarm"
)

var (
	testAddr = multifarm.BytesToAddress([]byte("engine"))
	testSlot = multifarm.BytesToBytes32([]byte("slot"))
)

func TestStorageRoundTrip(t *testing.T) {
	st := New(kv.NewMemDB())

	got, err := st.GetStorage(testAddr, testSlot)
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	value := multifarm.BytesToBytes32([]byte{0xca, 0xfe})
	st.SetStorage(testAddr, testSlot, value)

	got, err = st.GetStorage(testAddr, testSlot)
	require.NoError(t, err)
	assert.Equal(t, value, got)

	// resetting to zero deletes the record
	st.SetStorage(testAddr, testSlot, multifarm.Bytes32{})
	raw, err := st.GetRawStorage(testAddr, testSlot)
	require.NoError(t, err)
	assert.Len(t, raw, 0)
}

func TestCheckpointRevert(t *testing.T) {
	st := New(kv.NewMemDB())

	st.SetStorage(testAddr, testSlot, multifarm.BytesToBytes32([]byte{1}))

	cp := st.NewCheckpoint()
	st.SetStorage(testAddr, testSlot, multifarm.BytesToBytes32([]byte{2}))

	got, err := st.GetStorage(testAddr, testSlot)
	require.NoError(t, err)
	assert.Equal(t, multifarm.BytesToBytes32([]byte{2}), got)

	st.RevertTo(cp)
	got, err = st.GetStorage(testAddr, testSlot)
	require.NoError(t, err)
	assert.Equal(t, multifarm.BytesToBytes32([]byte{1}), got)
}

func TestCommitPersists(t *testing.T) {
	store := kv.NewMemDB()
	st := New(store)

	st.SetStorage(testAddr, testSlot, multifarm.BytesToBytes32([]byte{7}))
	require.NoError(t, st.Commit())

	// reopened state sees committed values
	st2 := New(store)
	got, err := st2.GetStorage(testAddr, testSlot)
	require.NoError(t, err)
	assert.Equal(t, multifarm.BytesToBytes32([]byte{7}), got)

	// deletion also persists
	st2.SetStorage(testAddr, testSlot, multifarm.Bytes32{})
	require.NoError(t, st2.Commit())

	st3 := New(store)
	got, err = st3.GetStorage(testAddr, testSlot)
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestEncodeDecodeStorage(t *testing.T) {
	st := New(kv.NewMemDB())

	type record struct {
		A uint64
		B []byte
	}
	want := record{42, []byte("answer")}

	require.NoError(t, st.EncodeStorage(testAddr, testSlot, func() ([]byte, error) {
		return rlp.EncodeToBytes(&want)
	}))

	var got record
	require.NoError(t, st.DecodeStorage(testAddr, testSlot, func(raw []byte) error {
		if len(raw) == 0 {
			return nil
		}
		return rlp.DecodeBytes(raw, &got)
	}))
	assert.Equal(t, want, got)
}

func TestRevertDiscardsFromCommit(t *testing.T) {
	store := kv.NewMemDB()
	st := New(store)

	cp := st.NewCheckpoint()
	st.SetStorage(testAddr, testSlot, multifarm.BytesToBytes32([]byte{9}))
	st.RevertTo(cp)
	require.NoError(t, st.Commit())

	st2 := New(store)
	got, err := st2.GetStorage(testAddr, testSlot)
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}
