package sheets

import (
	"fmt"
	"strings"
)

// quoteSheetName wraps a tab title for use in A1 notation
func quoteSheetName(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

// sheetRange builds an A1 range such as 'Season 3 merits'!A1:E301
func sheetRange(name, a1 string) string {
	if a1 == "" {
		return quoteSheetName(name)
	}
	return fmt.Sprintf("%s!%s", quoteSheetName(name), a1)
}

// columnLetter converts a 1-based column index to its letter form (1 -> A, 27 -> AA)
func columnLetter(col int) string {
	var letters []byte
	for col > 0 {
		col--
		letters = append([]byte{byte('A' + col%26)}, letters...)
		col /= 26
	}
	return string(letters)
}
