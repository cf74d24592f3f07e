package workbook

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"
)

// XLSXDecoder decodes Office Open XML workbooks, every sheet included
type XLSXDecoder struct{}

// NewXLSXDecoder creates a new XLSX decoder
func NewXLSXDecoder() *XLSXDecoder {
	return &XLSXDecoder{}
}

// Decode reads all sheets. Cell values are read raw so number formats such as
// thousands separators do not leak into the parsed text.
func (d *XLSXDecoder) Decode(name string, data []byte) (*Workbook, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		if strings.Contains(err.Error(), "zip: not a valid zip file") {
			return nil, fmt.Errorf("failed to open workbook %s: %w. (Hint: legacy binary .xls files must be re-saved as .xlsx, CSV files need a .csv extension)", name, err)
		}
		return nil, fmt.Errorf("failed to open workbook %s: %w", name, err)
	}
	defer f.Close()

	sheetNames := f.GetSheetList()
	if len(sheetNames) == 0 {
		return nil, fmt.Errorf("workbook %s has no sheets", name)
	}

	return &Workbook{Sheets: readSheets(f, name, sheetNames)}, nil
}

// rowReader is the part of *excelize.File the sheet loop needs
type rowReader interface {
	GetRows(sheet string, opts ...excelize.Options) ([][]string, error)
}

// readSheets reads every named sheet. One unreadable sheet does not spoil the
// others: it is returned with ReadError set so the upload can report it.
func readSheets(f rowReader, file string, sheetNames []string) []Sheet {
	sheets := make([]Sheet, 0, len(sheetNames))
	for _, sheetName := range sheetNames {
		rows, err := f.GetRows(sheetName, excelize.Options{RawCellValue: true})
		if err != nil {
			log.Warn().
				Err(err).
				Str("file", file).
				Str("sheet", sheetName).
				Msg("Failed to read sheet, skipping")
			sheets = append(sheets, Sheet{Name: sheetName, ReadError: err.Error()})
			continue
		}
		sheets = append(sheets, Sheet{Name: sheetName, Rows: rows})
	}
	return sheets
}
