package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	reg := NewRegistry()

	_, err := reg.Get("missing")
	assert.Error(t, err)

	a := New(Config{}, nil, nil)
	b := New(Config{}, nil, nil)
	reg.Add(a)
	reg.Add(b)

	got, err := reg.Get(a.ID)
	require.NoError(t, err)
	assert.Same(t, a, got)

	assert.Len(t, reg.List(), 2)

	reg.Remove(a.ID)
	_, err = reg.Get(a.ID)
	assert.Error(t, err)
	assert.Len(t, reg.List(), 1)
}
