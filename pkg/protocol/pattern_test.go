package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatch_SingleNumber(t *testing.T) {
	p := single("1", Number)

	fields, ok := p.Match("!1          231!")
	require.True(t, ok)
	assert.Equal(t, []string{"231"}, fields)

	fields, ok = p.Match("!1         -950!")
	require.True(t, ok)
	assert.Equal(t, []string{"-950"}, fields)

	// Wrong tag
	_, ok = p.Match("!2          231!")
	assert.False(t, ok)

	// Missing closing '!'
	_, ok = p.Match("!1          231")
	assert.False(t, ok)

	// No padding between tag and value
	_, ok = p.Match("!1231!")
	assert.False(t, ok)

	// Empty value
	_, ok = p.Match("!1     !")
	assert.False(t, ok)
}

func TestMatch_MultiField(t *testing.T) {
	p := &ReplyPattern{
		Fields: []Field{{Tag: "6", Kind: Number}, {Tag: "4", Kind: Number}, {Tag: "5", Kind: Number}},
		Closed: true,
	}

	fields, ok := p.Match("!6          300!4          500!5          400!")
	require.True(t, ok)
	assert.Equal(t, []string{"300", "500", "400"}, fields)

	// Padding width is not fixed.
	fields, ok = p.Match("!6   123!4   456!5   789!")
	require.True(t, ok)
	assert.Equal(t, []string{"123", "456", "789"}, fields)

	// Fields out of order fail on the tag check.
	_, ok = p.Match("!4          500!6          300!5          400!")
	assert.False(t, ok)
}

func TestMatch_Word(t *testing.T) {
	p := single("N", Word)

	fields, ok := p.Match("!N CloudWatcher!")
	require.True(t, ok)
	assert.Equal(t, []string{"CloudWatcher"}, fields)
}

func TestMatch_SerialDigits(t *testing.T) {
	p := &ReplyPattern{Fields: []Field{{Tag: "K", Kind: SerialDigits}}, Closed: true}

	fields, ok := p.Match("!K2001\x00!")
	require.True(t, ok)
	assert.Equal(t, []string{"2001"}, fields)

	// Space padding before the NUL is allowed.
	fields, ok = p.Match("!K123   \x00!")
	require.True(t, ok)
	assert.Equal(t, []string{"123"}, fields)

	// Missing NUL
	_, ok = p.Match("!K2001!")
	assert.False(t, ok)
}

func TestMatch_RawBlock(t *testing.T) {
	p := &ReplyPattern{Fields: []Field{{Tag: "M", Kind: RawBlock, Len: 12}}}

	fields, ok := p.Match("!MABCDEFGHIJKL")
	require.True(t, ok)
	assert.Equal(t, []string{"ABCDEFGHIJKL"}, fields)

	// Too short
	_, ok = p.Match("!MABC")
	assert.False(t, ok)
}

func TestMatch_TrailingBytesIgnored(t *testing.T) {
	p := single("Q", Number)

	fields, ok := p.Match("!Q          512!garbage")
	require.True(t, ok)
	assert.Equal(t, []string{"512"}, fields)
}
