package rlm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCodeBlocksExtractsInOrder(t *testing.T) {
	p := NewResponseParser()
	content := "some text\n```repl\nvar a = 1;\n```\nmore text\n```repl\nvar b = 2;\n```\ntrailing"

	blocks := p.ParseCodeBlocks(content)

	assert.Len(t, blocks, 2)
	assert.Equal(t, "var a = 1;", blocks[0].Code)
	assert.Equal(t, "var b = 2;", blocks[1].Code)
}

func TestParseCodeBlocksDiscardsEmptyPayloads(t *testing.T) {
	p := NewResponseParser()
	content := "```repl\n   \n```\n```repl\nvar a = 1;\n```"

	blocks := p.ParseCodeBlocks(content)

	assert.Len(t, blocks, 1)
	assert.Equal(t, "var a = 1;", blocks[0].Code)
}

func TestParseCodeBlocksNoBlocks(t *testing.T) {
	p := NewResponseParser()
	blocks := p.ParseCodeBlocks("just plain text, no fences here")
	assert.Empty(t, blocks)
}

func TestParseLegacyFinalLiteral(t *testing.T) {
	p := NewResponseParser()
	result, ok := p.ParseLegacyFinal("FINAL(\"the answer is 42\")", nil)
	assert.True(t, ok)
	assert.Empty(t, result.Err)
	assert.Equal(t, "the answer is 42", result.Message)
}

func TestParseLegacyFinalVarResolved(t *testing.T) {
	p := NewResponseParser()
	locals := map[string]any{"answer": "X7Q2"}
	result, ok := p.ParseLegacyFinal("FINAL_VAR(answer)", locals)
	assert.True(t, ok)
	assert.Empty(t, result.Err)
	assert.Equal(t, "X7Q2", result.Message)
}

func TestParseLegacyFinalVarUnresolved(t *testing.T) {
	p := NewResponseParser()
	result, ok := p.ParseLegacyFinal("FINAL_VAR(missing)", map[string]any{})
	assert.True(t, ok)
	assert.NotEmpty(t, result.Err)
}

func TestParseLegacyFinalNoMatch(t *testing.T) {
	p := NewResponseParser()
	_, ok := p.ParseLegacyFinal("nothing to see here", nil)
	assert.False(t, ok)
}
