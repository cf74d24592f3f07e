package workbook

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrUnsupportedFormat is returned for file extensions other than .xlsx, .xls and .csv
var ErrUnsupportedFormat = errors.New("unsupported file format")

// Sheet is one named table of string cells, header row first. ReadError is
// set, and Rows left empty, when the sheet exists but could not be read.
type Sheet struct {
	Name      string
	Rows      [][]string
	ReadError string
}

// Workbook is a decoded upload
type Workbook struct {
	Sheets []Sheet
}

// Decoder turns raw upload bytes into a Workbook
type Decoder interface {
	Decode(name string, data []byte) (*Workbook, error)
}

// Factory selects a decoder from the file extension. Content is never sniffed
// for magic bytes.
type Factory struct{}

// NewFactory creates a new decoder factory
func NewFactory() *Factory {
	return &Factory{}
}

// Decoder returns the decoder for filename
func (f *Factory) Decoder(filename string) (Decoder, error) {
	switch ext := Extension(filename); ext {
	case ".csv":
		return NewCSVDecoder(), nil
	case ".xlsx", ".xls":
		return NewXLSXDecoder(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// Decode picks the decoder for filename and runs it
func (f *Factory) Decode(filename string, data []byte) (*Workbook, error) {
	dec, err := f.Decoder(filename)
	if err != nil {
		return nil, err
	}
	return dec.Decode(filename, data)
}

// Extension returns the lower-cased extension including the dot
func Extension(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}

// IsSupported reports whether filename has an accepted extension
func IsSupported(filename string) bool {
	switch Extension(filename) {
	case ".csv", ".xlsx", ".xls":
		return true
	}
	return false
}
