package ingest

import "fmt"

// ParseError reports an unreadable or malformed raw file. The file is
// skipped; the site run continues.
type ParseError struct {
	Path string
	// Row is the one-based data row, zero when the whole file failed.
	Row int
	Err error
}

func (e *ParseError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("parsing %s row %d: %v", e.Path, e.Row, e.Err)
	}
	return fmt.Sprintf("parsing %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
