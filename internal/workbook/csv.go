package workbook

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVDecoder decodes comma or tab separated exports into a single-sheet workbook
type CSVDecoder struct{}

// NewCSVDecoder creates a new CSV decoder
func NewCSVDecoder() *CSVDecoder {
	return &CSVDecoder{}
}

// Decode parses CSV data. The sheet is named after the file.
func (d *CSVDecoder) Decode(name string, data []byte) (*Workbook, error) {
	text, delimiter, err := preprocessCSVData(data)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(strings.NewReader(text))
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV: %w", err)
		}
		// Skip empty rows
		if len(record) == 0 || (len(record) == 1 && strings.TrimSpace(record[0]) == "") {
			continue
		}
		rows = append(rows, record)
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("CSV file is empty")
	}

	sheetName := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	return &Workbook{Sheets: []Sheet{{Name: sheetName, Rows: rows}}}, nil
}

// preprocessCSVData strips a UTF-8 BOM, repairs invalid UTF-8 and detects the delimiter
func preprocessCSVData(data []byte) (string, rune, error) {
	if len(data) == 0 {
		return "", ',', fmt.Errorf("empty CSV data")
	}

	data = bytes.TrimPrefix(data, utf8BOM)

	text := string(data)
	if !utf8.Valid(data) {
		log.Warn().
			Int("bytes", len(data)).
			Msg("CSV is not valid UTF-8, decoding with replacement characters")
		text = strings.ToValidUTF8(text, "\uFFFD")
	}

	text = strings.ReplaceAll(text, "\r\n", "\n")

	// Auto-detect delimiter: count commas vs tabs in first 5 lines
	lines := strings.SplitN(text, "\n", 6)
	sampleSize := 5
	if len(lines) < sampleSize {
		sampleSize = len(lines)
	}

	commaCount := 0
	tabCount := 0
	for i := 0; i < sampleSize; i++ {
		commaCount += strings.Count(lines[i], ",")
		tabCount += strings.Count(lines[i], "\t")
	}

	delimiter := ','
	if tabCount > commaCount {
		delimiter = '\t'
	}

	return text, delimiter, nil
}
