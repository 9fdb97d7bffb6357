package seen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetAddHas(t *testing.T) {
	t.Parallel()

	s := NewSet("b")
	assert.True(t, s.Add("a"))
	assert.False(t, s.Add("a"))
	assert.True(t, s.Has("a"))
	assert.True(t, s.Has("b"))
	assert.False(t, s.Has("c"))
	assert.Equal(t, []string{"a", "b"}, s.Sorted())
}

func TestEncodeIsSortedAndIndented(t *testing.T) {
	t.Parallel()

	data, err := Encode(NewSet("zeta", "alpha", "mu"))
	require.NoError(t, err)
	assert.Equal(t, "[\n  \"alpha\",\n  \"mu\",\n  \"zeta\"\n]\n", string(data))
}

func TestEncodeEmptySet(t *testing.T) {
	t.Parallel()

	data, err := Encode(Set{})
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(data))
}

func TestDecodeRejectsNonArrays(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{`{"a":1}`, `"str"`, `[1,2]`, `not json`} {
		_, err := Decode([]byte(raw))
		assert.Error(t, err, raw)
	}
}

func TestCloneAndEqual(t *testing.T) {
	t.Parallel()

	s := NewSet("a", "b")
	c := s.Clone()
	assert.True(t, s.Equal(c))
	c.Add("c")
	assert.False(t, s.Equal(c))
	assert.False(t, s.Has("c"))
}

func TestParsePolicy(t *testing.T) {
	t.Parallel()

	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PostConfirm, p)

	p, err = ParsePolicy(" Pre-Persist ")
	require.NoError(t, err)
	assert.Equal(t, PrePersist, p)

	_, err = ParsePolicy("sometimes")
	assert.Error(t, err)
}
