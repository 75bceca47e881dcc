package util

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf, "diag", "ColorBlue", "v1.2.3")

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	assert.Greater(t, len(lines), 2)
	for _, l := range lines {
		assert.True(t, strings.HasPrefix(l, ColorBlue), "every line is colored: %q", l)
		assert.True(t, strings.HasSuffix(l, ColorReset))
	}
	assert.Contains(t, lines[len(lines)-1], "v1.2.3")
}

func TestColorCodeUnknown(t *testing.T) {
	assert.Equal(t, ColorReset, colorCode("ColorPink"))
	assert.Equal(t, ColorGreen, colorCode("ColorGreen"))
}
