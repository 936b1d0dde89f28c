package files

import (
	"bytes"
	"context"
	"errors"
	"io"
)

var ErrNotFound = errors.New("file not found")

// Store is the document storage interface. Save returns a stable reference
// that can later be passed to Read; the reference is what gets persisted on
// the job record.
type Store interface {
	Save(ctx context.Context, name string, r io.Reader) (string, error)
	Read(ctx context.Context, ref string) ([]byte, error)
}

// DocumentContent holds the fully read bytes of an uploaded document so that
// identity comparisons and validation never depend on stream positions.
type DocumentContent struct {
	Name string
	Data []byte
}

// ReadDocument drains r into a DocumentContent. limit bounds the number of
// bytes read; content at exactly the limit or beyond is rejected.
func ReadDocument(name string, r io.Reader, limit int64) (*DocumentContent, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, ErrTooLarge
	}
	return &DocumentContent{Name: name, Data: data}, nil
}

// SameContent reports whether the two documents are byte-for-byte identical,
// regardless of filename.
func (d *DocumentContent) SameContent(other *DocumentContent) bool {
	if d == nil || other == nil {
		return false
	}
	return bytes.Equal(d.Data, other.Data)
}

func (d *DocumentContent) Reader() io.Reader {
	return bytes.NewReader(d.Data)
}
