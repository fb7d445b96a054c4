package hydrofile

import "errors"

var (
	// ErrMalformedHeader indicates the file header is missing required fields
	// or the column header line could not be located.
	ErrMalformedHeader = errors.New("malformed header")

	// ErrUnsupportedColumnCount indicates a data row carries a different
	// number of amplitude values than the column header declares.
	ErrUnsupportedColumnCount = errors.New("unsupported column count")

	// ErrEmptyFile indicates the file contains a header but no data rows.
	ErrEmptyFile = errors.New("empty file")
)
