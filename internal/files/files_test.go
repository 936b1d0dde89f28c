package files_test

import (
	"context"
	"strings"
	"testing"

	"github.com/marniemm/jobsvc/internal/files"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pdfBytes(body string) []byte {
	return []byte("%PDF-1.4\n" + body + "\n%%EOF\n")
}

func TestReadDocument(t *testing.T) {
	doc, err := files.ReadDocument("quote.pdf", strings.NewReader("hello"), 100)
	require.NoError(t, err)
	assert.Equal(t, "quote.pdf", doc.Name)
	assert.Equal(t, []byte("hello"), doc.Data)
}

func TestReadDocument_TooLarge(t *testing.T) {
	_, err := files.ReadDocument("quote.pdf", strings.NewReader("hello world"), 5)
	assert.ErrorIs(t, err, files.ErrTooLarge)
}

func TestSameContent(t *testing.T) {
	a := &files.DocumentContent{Name: "a.pdf", Data: pdfBytes("one")}
	b := &files.DocumentContent{Name: "b.pdf", Data: pdfBytes("one")}
	c := &files.DocumentContent{Name: "a.pdf", Data: pdfBytes("two")}

	// Filename plays no part in identity.
	assert.True(t, a.SameContent(b))
	assert.False(t, a.SameContent(c))
	assert.False(t, a.SameContent(nil))
}

func TestValidatePDF(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{"valid", pdfBytes("content"), nil},
		{"empty", nil, files.ErrEmptyUpload},
		{"wrong header", []byte("JFIF not a pdf %%EOF"), files.ErrNotPDF},
		{"missing trailer", []byte("%PDF-1.4\ncontent"), files.ErrNotPDF},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := &files.DocumentContent{Name: "f.pdf", Data: tt.data}
			err := doc.ValidatePDF()
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestValidateJPEG(t *testing.T) {
	valid := &files.DocumentContent{Name: "p.jpg", Data: []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x01}}
	assert.NoError(t, valid.ValidateJPEG())

	invalid := &files.DocumentContent{Name: "p.jpg", Data: pdfBytes("x")}
	assert.ErrorIs(t, invalid.ValidateJPEG(), files.ErrNotJPEG)
}

func TestDiskStore_SaveAndRead(t *testing.T) {
	store, err := files.NewDiskStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	ref, err := store.Save(ctx, "quote.pdf", strings.NewReader("pdf bytes"))
	require.NoError(t, err)
	require.NotEmpty(t, ref)

	data, err := store.Read(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, []byte("pdf bytes"), data)
}

func TestDiskStore_SaveSanitizesName(t *testing.T) {
	store, err := files.NewDiskStore(t.TempDir())
	require.NoError(t, err)

	ref, err := store.Save(context.Background(), "../../etc/pass wd?.pdf", strings.NewReader("x"))
	require.NoError(t, err)
	assert.NotContains(t, ref, "..")

	data, err := store.Read(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), data)
}

func TestDiskStore_ReadMissing(t *testing.T) {
	store, err := files.NewDiskStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Read(context.Background(), "nope/missing.pdf")
	assert.ErrorIs(t, err, files.ErrNotFound)
}

func TestDiskStore_ReadRejectsTraversal(t *testing.T) {
	store, err := files.NewDiskStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Read(context.Background(), "../outside.pdf")
	assert.ErrorIs(t, err, files.ErrNotFound)
}
