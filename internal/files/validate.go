package files

import (
	"bytes"
	"errors"
)

var (
	ErrTooLarge    = errors.New("file exceeds the maximum allowed size")
	ErrNotPDF      = errors.New("this is not a valid PDF file")
	ErrNotJPEG     = errors.New("this is not a valid JPEG file")
	ErrEmptyUpload = errors.New("uploaded file is empty")
)

var (
	pdfHeader  = []byte("%PDF-")
	pdfTrailer = []byte("%%EOF")
	jpegHeader = []byte{0xFF, 0xD8, 0xFF}
)

// ValidatePDF checks the document contents for the PDF header and the EOF
// trailer. The trailer may be followed by whitespace or padding, so the last
// kilobyte is scanned rather than only the final bytes.
func (d *DocumentContent) ValidatePDF() error {
	if len(d.Data) == 0 {
		return ErrEmptyUpload
	}
	if !bytes.HasPrefix(d.Data, pdfHeader) {
		return ErrNotPDF
	}
	tail := d.Data
	if len(tail) > 1024 {
		tail = tail[len(tail)-1024:]
	}
	if !bytes.Contains(tail, pdfTrailer) {
		return ErrNotPDF
	}
	return nil
}

// ValidateJPEG checks the document contents for the JPEG SOI marker.
func (d *DocumentContent) ValidateJPEG() error {
	if len(d.Data) == 0 {
		return ErrEmptyUpload
	}
	if !bytes.HasPrefix(d.Data, jpegHeader) {
		return ErrNotJPEG
	}
	return nil
}
