package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewHash(t *testing.T) {
	h := NewHash([]byte("abc"))
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", h.String())
	assert.Equal(t, "ba7816bf8f01", h.Short())
	assert.Equal(t, h, NewHash([]byte("abc")))
	assert.False(t, h.IsEmpty())
	assert.True(t, Hash("").IsEmpty())
	assert.Equal(t, "abc", Hash("abc").Short())
}
