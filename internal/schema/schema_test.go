package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescribePrimitives(t *testing.T) {
	s, err := Describe("hello")
	require.NoError(t, err)
	assert.Equal(t, "string", s)

	s, err = Describe(42)
	require.NoError(t, err)
	assert.Equal(t, "integer", s)
}

func TestDescribeSlice(t *testing.T) {
	s, err := Describe([]string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, "array<string>[3]", s)
}

func TestDescribeStruct(t *testing.T) {
	type Doc struct {
		Title string
		Pages int
	}
	s, err := Describe(Doc{Title: "x", Pages: 1})
	require.NoError(t, err)
	assert.Equal(t, "Doc{Title: string, Pages: integer}", s)
}

func TestDescribeFuncIsUnrenderable(t *testing.T) {
	_, err := Describe(func() {})
	assert.ErrorIs(t, err, ErrUnrenderable)
}

func TestDescribeNil(t *testing.T) {
	s, err := Describe(nil)
	require.NoError(t, err)
	assert.Equal(t, "null", s)
}
