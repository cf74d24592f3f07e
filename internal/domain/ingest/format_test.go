package ingest

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestDetectExactHeaders(t *testing.T) {
	for _, format := range []Format{FormatF1, FormatF2, FormatF3} {
		t.Run(format.String(), func(t *testing.T) {
			layout, ok := Detect(ExpectedHeader(format))
			if !ok {
				t.Fatalf("Expected %s to be detected", format)
			}
			if layout.Format != format {
				t.Errorf("Expected format %s, got %s", format, layout.Format)
			}
		})
	}
}

func TestDetectTolerance(t *testing.T) {
	testCases := []struct {
		name     string
		header   func() []string
		wantOK   bool
		expected Format
	}{
		{
			name: "F1 with one renamed column",
			header: func() []string {
				h := ExpectedHeader(FormatF1)
				h[7] = "Dead Units"
				return h
			},
			wantOK:   true,
			expected: FormatF1,
		},
		{
			name: "F1 with two renamed columns",
			header: func() []string {
				h := ExpectedHeader(FormatF1)
				h[7] = "Dead Units"
				h[8] = "Healed Units"
				return h
			},
			wantOK: false,
		},
		{
			name: "F1 truncated by one column",
			header: func() []string {
				return ExpectedHeader(FormatF1)[:10]
			},
			wantOK:   true,
			expected: FormatF1,
		},
		{
			name: "F1 with extra trailing columns",
			header: func() []string {
				return append(ExpectedHeader(FormatF1), "Gems Spent", "Notes")
			},
			wantOK:   true,
			expected: FormatF1,
		},
		{
			name: "BOM and padding on header cells",
			header: func() []string {
				h := ExpectedHeader(FormatF3)
				h[0] = "\ufeff" + h[0]
				h[4] = " power "
				return h
			},
			wantOK:   true,
			expected: FormatF3,
		},
		{
			name: "F2 with one missing column",
			header: func() []string {
				h := ExpectedHeader(FormatF2)
				h[9] = ""
				return h
			},
			wantOK:   true,
			expected: FormatF2,
		},
		{
			name:   "empty header",
			header: func() []string { return nil },
			wantOK: false,
		},
		{
			name: "unrelated sheet",
			header: func() []string {
				return []string{"Date", "Event", "Location", "Notes"}
			},
			wantOK: false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			layout, ok := Detect(tc.header())
			if ok != tc.wantOK {
				t.Fatalf("Expected detected=%v, got %v (format %s)", tc.wantOK, ok, layout.Format)
			}
			if ok && layout.Format != tc.expected {
				t.Errorf("Expected format %s, got %s", tc.expected, layout.Format)
			}
		})
	}
}

// TestDetectProperties verifies the single-column tolerance for every layout
func TestDetectProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	formats := gen.OneConstOf(FormatF1, FormatF2, FormatF3)

	properties.Property("one corrupted column still detects the same format", prop.ForAll(
		func(format Format, pos int) bool {
			h := ExpectedHeader(format)
			h[pos%len(h)] = "corrupted"
			layout, ok := Detect(h)
			return ok && layout.Format == format
		},
		formats,
		gen.IntRange(0, 100),
	))

	properties.Property("two corrupted columns are never detected as the same format", prop.ForAll(
		func(format Format, a, b int) bool {
			h := ExpectedHeader(format)
			i, j := a%len(h), b%len(h)
			if i == j {
				j = (j + 1) % len(h)
			}
			h[i] = "corrupted"
			h[j] = "corrupted"
			layout, ok := Detect(h)
			return !ok || layout.Format != format
		},
		formats,
		gen.IntRange(0, 100),
		gen.IntRange(0, 100),
	))

	properties.TestingRun(t)
}
