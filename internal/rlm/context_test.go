package rlm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDescribeContextString(t *testing.T) {
	d := describeContext("hello world")
	assert.Equal(t, kindString, d.Kind)
	assert.Equal(t, 11, d.TotalLength)
	assert.Equal(t, []int{11}, d.ChunkLengths)
}

func TestDescribeContextEmptyString(t *testing.T) {
	d := describeContext("")
	assert.Equal(t, kindString, d.Kind)
	assert.Equal(t, 0, d.TotalLength)
	assert.Equal(t, []int{0}, d.ChunkLengths)
}

func TestDescribeContextStringSlice(t *testing.T) {
	d := describeContext([]string{"ab", "cde", "f"})
	assert.Equal(t, kindArray, d.Kind)
	assert.Equal(t, 6, d.TotalLength)
	assert.Equal(t, []int{2, 3, 1}, d.ChunkLengths)
}

func TestDescribeContextObject(t *testing.T) {
	value := map[string]any{"quarters": []any{
		map[string]any{"q": "Q1", "revenue": 10},
		map[string]any{"q": "Q2", "revenue": 30},
	}}
	d := describeContext(value)
	assert.Equal(t, kindObject, d.Kind)
	assert.Equal(t, len(renderToText(value)), d.TotalLength)
	assert.Len(t, d.ChunkLengths, 1)
}
