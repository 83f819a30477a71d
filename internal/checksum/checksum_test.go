package checksum

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDigestIsStableAndContentSensitive(t *testing.T) {
	a := Digest([]byte("workbook bytes"))
	assert.Equal(t, a, Digest([]byte("workbook bytes")))
	assert.Len(t, a, 64)
	assert.NotEqual(t, a, Digest([]byte("workbook bytes v2")))
}
