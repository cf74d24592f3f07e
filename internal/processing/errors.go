package processing

import (
	"errors"

	"guild_stats/internal/store"
	"guild_stats/internal/workbook"
)

// Sentinel errors matched by callers with errors.Is.
// Data quality problems inside a file are never errors; they are counted skips.
var (
	ErrValidation        = errors.New("invalid request")
	ErrUnsupportedFormat = workbook.ErrUnsupportedFormat
	ErrFileDecode        = errors.New("file could not be decoded")
	ErrNoRecords         = errors.New("no valid player records found")
	ErrStorage           = errors.New("storage operation failed")
	ErrNotFound          = store.ErrNotFound
)

// ErrorClass returns a short label for err, used for metrics
func ErrorClass(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrUnsupportedFormat):
		return "unsupported_format"
	case errors.Is(err, ErrFileDecode):
		return "decode"
	case errors.Is(err, ErrNoRecords):
		return "no_records"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrStorage):
		return "storage"
	default:
		return "error"
	}
}
