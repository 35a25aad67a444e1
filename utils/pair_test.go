package utils

import (
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"peerlearn_server/apperrors"
)

func TestCanonicalPairIsSymmetric(t *testing.T) {
	tests := []struct{ a, b string }{
		{"alice", "bob"},
		{"bob", "alice"},
		{"Zed", "amy"},
		{"user-10", "user-9"},
		{"é", "e"},
	}
	for _, tt := range tests {
		lo1, hi1, err := CanonicalPair(tt.a, tt.b)
		require.NoError(t, err)
		lo2, hi2, err := CanonicalPair(tt.b, tt.a)
		require.NoError(t, err)

		assert.Equal(t, lo1, lo2)
		assert.Equal(t, hi1, hi2)
		assert.Less(t, lo1, hi1)
	}
}

func TestCanonicalPairByteWise(t *testing.T) {
	lo, hi, err := CanonicalPair("amy", "Zed")
	require.NoError(t, err)
	// 'Z' (0x5A) sorts before 'a' (0x61).
	assert.Equal(t, "Zed", lo)
	assert.Equal(t, "amy", hi)
}

func TestCanonicalPairRejectsSelfPair(t *testing.T) {
	_, _, err := CanonicalPair("alice", "alice")
	require.ErrorIs(t, err, apperrors.ErrInvalidPair)

	_, _, err = CanonicalPair("", "bob")
	require.ErrorIs(t, err, apperrors.ErrInvalidArgument)
}

func TestPairKeyIsScopedByCommunity(t *testing.T) {
	assert.NotEqual(t, PairKey("c1", "a", "b"), PairKey("c2", "a", "b"))
	assert.Equal(t, "PAIR#c1#a#b", PairKey("c1", "a", "b"))
}

func TestNewMessageIDIsMonotonic(t *testing.T) {
	now := time.Now()
	var (
		mu  sync.Mutex
		ids []string
		wg  sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				id := NewMessageID(now)
				mu.Lock()
				ids = append(ids, id)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	seen := map[string]bool{}
	for _, id := range ids {
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}

	sequential := []string{NewMessageID(now), NewMessageID(now), NewMessageID(now)}
	assert.True(t, sort.StringsAreSorted(sequential))
}
