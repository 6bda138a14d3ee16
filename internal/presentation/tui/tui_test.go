package tui

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf, "claims")
	assert.Contains(t, buf.String(), "claims desk")
	assert.Contains(t, buf.String(), "|___|_| |_|___/")
}

func TestNewRenderer_PlainWhenPiped(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "out")
	assert.NoError(t, err)
	defer f.Close()

	assert.False(t, IsInteractive(f))
	assert.Nil(t, NewRenderer(f))
}
