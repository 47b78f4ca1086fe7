package mime

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

var png = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

func TestDetect(t *testing.T) {
	r := bytes.NewReader(png)
	_, _ = r.Seek(3, io.SeekStart)
	assert.Equal(t, "image/png", Detect(r))
	pos, _ := r.Seek(0, io.SeekCurrent)
	assert.Equal(t, int64(0), pos)

	assert.Equal(t, "image/png", DetectBytes(png))
	assert.Equal(t, fallback, Detect(nil))
}

func TestResolve(t *testing.T) {
	assert.Equal(t, "text/csv", Resolve("text/csv", png))
	assert.Equal(t, "image/png", Resolve("", png))
	assert.Equal(t, "image/png", Resolve(fallback, png))
}

func TestSkipScan(t *testing.T) {
	SkipScan = true
	defer func() { SkipScan = false }()
	assert.Equal(t, fallback, DetectBytes(png))
}
