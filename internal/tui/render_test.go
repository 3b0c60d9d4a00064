package tui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrinter_PlainOutsideTerminal(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.Reply("**Added** to cart")
	p.Reply("   ")
	p.Notice("thread %s", "t1")

	assert.Equal(t, "**Added** to cart\n\nthread t1\n", buf.String())
}

func TestPrinter_BannerWithoutColor(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).Banner("order")

	out := buf.String()
	assert.Contains(t, out, "workflow: order")
	assert.False(t, strings.Contains(out, "\x1b["), "no escape codes outside a terminal")
}
