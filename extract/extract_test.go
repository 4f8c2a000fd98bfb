package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextPlainFormats(t *testing.T) {
	for _, name := range []string{"a.txt", "b.md", "c.csv", "d.log"} {
		got, err := Text(name, []byte("hello world"))
		require.NoError(t, err, name)
		assert.Equal(t, "hello world", got)
	}
}

func TestTextInvalidUTF8(t *testing.T) {
	_, err := Text("a.txt", []byte{0xff, 0xfe, 0xfd})
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnsupported)
}

func TestTextUnsupported(t *testing.T) {
	_, err := Text("photo.PNG", []byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestTextCaseInsensitiveExtension(t *testing.T) {
	got, err := Text("NOTES.TXT", []byte("ok"))
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
}

func TestTextBrokenPDF(t *testing.T) {
	_, err := Text("doc.pdf", []byte("not a pdf"))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnsupported)
}
