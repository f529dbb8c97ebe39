package storage

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateImage(t *testing.T) {
	cases := []struct {
		name     string
		filename string
		size     int64
		max      int64
		code     string
	}{
		{"png ok", "shirt.png", 1024, 0, ""},
		{"upper case ext ok", "SHIRT.JPEG", 1024, 0, ""},
		{"webp ok", "a.webp", DefaultMaxImageBytes, 0, ""},
		{"empty", "a.png", 0, 0, "EMPTY_FILE"},
		{"too large default", "a.png", DefaultMaxImageBytes + 1, 0, "FILE_TOO_LARGE"},
		{"too large custom", "a.png", 2048, 1024, "FILE_TOO_LARGE"},
		{"gif rejected", "a.gif", 10, 0, "INVALID_FILE_FORMAT"},
		{"no ext", "README", 10, 0, "INVALID_FILE_FORMAT"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateImage(tc.filename, tc.size, tc.max)
			if tc.code == "" {
				require.NoError(t, err)
				return
			}
			var ue *UploadError
			require.True(t, errors.As(err, &ue))
			assert.Equal(t, tc.code, ue.Code)
		})
	}
}

func TestNewKey(t *testing.T) {
	a := NewKey("Photo.PNG")
	b := NewKey("Photo.PNG")

	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasSuffix(a, ".png"))
	assert.NotContains(t, a, "Photo")
}

func TestContentTypeFor(t *testing.T) {
	assert.Equal(t, "image/jpeg", ContentTypeFor("x.jpg"))
	assert.Equal(t, "image/webp", ContentTypeFor("products/x.webp"))
	assert.Equal(t, "application/octet-stream", ContentTypeFor("x.bin"))
}
