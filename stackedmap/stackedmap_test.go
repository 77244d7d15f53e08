// Copyright (c) 2026 The multifarm developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package stackedmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStackedMap(t *testing.T) {
	src := map[string]string{"base": "b"}
	sm := New(func(key any) (any, bool, error) {
		v, ok := src[key.(string)]
		return v, ok, nil
	})

	// source passthrough
	v, found, err := sm.Get("base")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "b", v)

	rev0 := sm.Push()
	sm.Put("k", "v0")
	rev1 := sm.Push()
	sm.Put("k", "v1")

	v, found, _ = sm.Get("k")
	assert.True(t, found)
	assert.Equal(t, "v1", v)

	sm.PopTo(rev1)
	v, found, _ = sm.Get("k")
	assert.True(t, found)
	assert.Equal(t, "v0", v)

	sm.PopTo(rev0)
	_, found, _ = sm.Get("k")
	assert.False(t, found)
	assert.Equal(t, 0, sm.Depth())
}

func TestStackedMapJournal(t *testing.T) {
	sm := New(func(any) (any, bool, error) { return nil, false, nil })

	sm.Push()
	sm.Put("a", 1)
	sm.Push()
	sm.Put("a", 2)
	sm.Put("b", 3)

	var seen []any
	sm.Journal(func(key, value any) bool {
		seen = append(seen, key, value)
		return true
	})
	assert.Equal(t, []any{"a", 1, "a", 2, "b", 3}, seen)

	// popped entries leave the journal
	sm.Pop()
	seen = seen[:0]
	sm.Journal(func(key, value any) bool {
		seen = append(seen, key, value)
		return true
	})
	assert.Equal(t, []any{"a", 1}, seen)

	// traversal stops on false
	count := 0
	sm.Journal(func(key, value any) bool {
		count++
		return false
	})
	assert.Equal(t, 1, count)
}
