package align

import (
	"errors"
	"fmt"
	"time"

	"github.com/chrissnell/pvreconcile/internal/types"
)

var (
	// ErrBlocklisted marks a date listed as a known corrupt source.
	ErrBlocklisted = errors.New("date is blocklisted")
	// ErrNoWeather means the weather table has no rows for the date.
	ErrNoWeather = errors.New("no weather records for date")
	// ErrLengthMismatch means the power and weather series could not be
	// brought to equal length after filling.
	ErrLengthMismatch = errors.New("power and weather series differ in length after filling")
)

// AlignmentError reports a date that could not be aligned. The date is
// skipped; the site run continues.
type AlignmentError struct {
	SiteID string
	Date   time.Time
	Cause  error
	Detail string
}

func (e *AlignmentError) Error() string {
	msg := fmt.Sprintf("aligning %s on %s: %v", e.SiteID, e.Date.Format(types.DateLayout), e.Cause)
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg
}

func (e *AlignmentError) Unwrap() error {
	return e.Cause
}
