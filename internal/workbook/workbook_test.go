package workbook

import (
	"errors"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestFactoryDecoder(t *testing.T) {
	factory := NewFactory()
	testCases := []struct {
		name     string
		filename string
		want     string
		wantErr  bool
	}{
		{name: "csv file", filename: "scores.csv", want: "csv"},
		{name: "upper case csv", filename: "SCORES.CSV", want: "csv"},
		{name: "xlsx file", filename: "scores.xlsx", want: "xlsx"},
		{name: "xls file", filename: "scores.xls", want: "xlsx"},
		{name: "unsupported file", filename: "scores.txt", wantErr: true},
		{name: "no extension", filename: "scores", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			dec, err := factory.Decoder(tc.filename)
			if tc.wantErr {
				if !errors.Is(err, ErrUnsupportedFormat) {
					t.Fatalf("Expected ErrUnsupportedFormat, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			switch tc.want {
			case "csv":
				if _, ok := dec.(*CSVDecoder); !ok {
					t.Errorf("Expected CSV decoder, got %T", dec)
				}
			case "xlsx":
				if _, ok := dec.(*XLSXDecoder); !ok {
					t.Errorf("Expected XLSX decoder, got %T", dec)
				}
			}
		})
	}
}

func TestCSVDecoder(t *testing.T) {
	testCases := []struct {
		name      string
		data      []byte
		wantRows  int
		wantFirst string
		wantErr   bool
	}{
		{
			name:      "plain comma separated",
			data:      []byte("ID,Player\n1,Aria\n2,Bram\n"),
			wantRows:  3,
			wantFirst: "ID",
		},
		{
			name:      "byte order mark stripped",
			data:      append([]byte{0xEF, 0xBB, 0xBF}, []byte("ID,Player\r\n1,Aria\r\n")...),
			wantRows:  2,
			wantFirst: "ID",
		},
		{
			name:      "tab separated",
			data:      []byte("ID\tPlayer\n1\tAria\n"),
			wantRows:  2,
			wantFirst: "ID",
		},
		{
			name:      "invalid utf8 replaced",
			data:      []byte("ID,Player\n1,Ar\xffia\n"),
			wantRows:  2,
			wantFirst: "ID",
		},
		{
			name:      "blank lines skipped",
			data:      []byte("ID,Player\n\n1,Aria\n\n"),
			wantRows:  2,
			wantFirst: "ID",
		},
		{
			name:    "empty",
			data:    nil,
			wantErr: true,
		},
		{
			name:    "only a bom",
			data:    []byte{0xEF, 0xBB, 0xBF},
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			wb, err := NewCSVDecoder().Decode("week1.csv", tc.data)
			if tc.wantErr {
				if err == nil {
					t.Fatal("Expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if len(wb.Sheets) != 1 || wb.Sheets[0].Name != "week1" {
				t.Fatalf("Expected single sheet named week1, got %+v", wb.Sheets)
			}
			rows := wb.Sheets[0].Rows
			if len(rows) != tc.wantRows {
				t.Errorf("Expected %d rows, got %d", tc.wantRows, len(rows))
			}
			if rows[0][0] != tc.wantFirst {
				t.Errorf("Expected first cell %q, got %q", tc.wantFirst, rows[0][0])
			}
		})
	}

	wb, err := NewCSVDecoder().Decode("bad.csv", []byte("ID,Player\n1,Ar\xffia\n"))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !strings.Contains(wb.Sheets[0].Rows[1][1], "\uFFFD") {
		t.Errorf("Expected replacement character, got %q", wb.Sheets[0].Rows[1][1])
	}
}

func TestXLSXRoundTrip(t *testing.T) {
	source := &Workbook{Sheets: []Sheet{
		{Name: "Allies", Rows: [][]string{{"ID", "Player"}, {"1", "Aria"}}},
		{Name: "Enemies", Rows: [][]string{{"ID", "Player"}, {"2", "Bram"}, {"3", "Cyra"}}},
	}}

	data, err := EncodeXLSX(source)
	if err != nil {
		t.Fatalf("Expected no error encoding, got %v", err)
	}

	wb, err := NewFactory().Decode("export.xlsx", data)
	if err != nil {
		t.Fatalf("Expected no error decoding, got %v", err)
	}

	if len(wb.Sheets) != 2 {
		t.Fatalf("Expected 2 sheets, got %d", len(wb.Sheets))
	}
	if wb.Sheets[1].Name != "Enemies" || len(wb.Sheets[1].Rows) != 3 {
		t.Errorf("Unexpected second sheet %+v", wb.Sheets[1])
	}
	if wb.Sheets[0].Rows[1][1] != "Aria" {
		t.Errorf("Expected Aria, got %q", wb.Sheets[0].Rows[1][1])
	}
}

func TestXLSXCorruptBytes(t *testing.T) {
	_, err := NewXLSXDecoder().Decode("broken.xlsx", []byte("definitely not a zip"))
	if err == nil {
		t.Fatal("Expected error for corrupt workbook, got nil")
	}
}

// fakeRowReader serves rows per sheet and fails for sheets listed in errs
type fakeRowReader struct {
	rows map[string][][]string
	errs map[string]error
}

func (f fakeRowReader) GetRows(sheet string, opts ...excelize.Options) ([][]string, error) {
	if err := f.errs[sheet]; err != nil {
		return nil, err
	}
	return f.rows[sheet], nil
}

func TestReadSheetsKeepsUnreadableSheets(t *testing.T) {
	reader := fakeRowReader{
		rows: map[string][][]string{"Good": {{"ID"}, {"1"}}},
		errs: map[string]error{"Bad": errors.New("xml: unexpected EOF")},
	}

	sheets := readSheets(reader, "book.xlsx", []string{"Bad", "Good"})

	if len(sheets) != 2 {
		t.Fatalf("Expected 2 sheets, got %d", len(sheets))
	}
	if sheets[0].Name != "Bad" || sheets[0].ReadError != "xml: unexpected EOF" || len(sheets[0].Rows) != 0 {
		t.Errorf("Expected unreadable sheet with its error, got %+v", sheets[0])
	}
	if sheets[1].ReadError != "" || len(sheets[1].Rows) != 2 {
		t.Errorf("Expected readable sheet with 2 rows, got %+v", sheets[1])
	}
}
