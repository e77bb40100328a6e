package acore

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializer_PostRunsFIFO(t *testing.T) {
	s := NewSerializer()
	var mu sync.Mutex
	var got []int
	for i := 0; i < 100; i++ {
		i := i
		require.NoError(t, s.Post(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		}))
	}
	s.Close()
	require.Len(t, got, 100)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestSerializer_CloseDrainsPostedWork(t *testing.T) {
	s := NewSerializer()
	var ran int
	for i := 0; i < 10; i++ {
		require.NoError(t, s.Post(func() { ran++ }))
	}
	s.Close()
	assert.Equal(t, 10, ran)
}

func TestSerializer_PostAfterClose(t *testing.T) {
	s := NewSerializer()
	s.Close()
	assert.ErrorIs(t, s.Post(func() {}), ErrSerializerClosed)
}

func TestSerializer_CloseIdempotent(t *testing.T) {
	s := NewSerializer()
	require.NoError(t, s.Post(func() {}))
	s.Close()
	s.Close()
}
