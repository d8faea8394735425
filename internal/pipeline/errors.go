package pipeline

import (
	"errors"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/sells-group/catalog-cli/internal/gateway"
	"github.com/sells-group/catalog-cli/internal/source"
)

// ErrExtractionEmpty is returned when a run finishes its extraction phase
// with neither transcribed text nor structured records.
var ErrExtractionEmpty = eris.New("extraction produced no content")

// SaveError marks the specific failure mode where extraction succeeded but
// the result could not be persisted. Callers surface this differently from
// extraction failures because the work itself was not lost.
type SaveError struct {
	Err error
}

func (e *SaveError) Error() string {
	return fmt.Sprintf("data was extracted but could not be saved: %v", e.Err)
}

func (e *SaveError) Unwrap() error { return e.Err }

// UserMessage translates a pipeline error into a short operator-facing
// message.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var gwErr *gateway.Error
	if errors.As(err, &gwErr) {
		return gwErr.UserMessage()
	}

	var saveErr *SaveError
	if errors.As(err, &saveErr) {
		return "The data was extracted but could not be saved. The extraction result is still available; try saving again."
	}

	var readErr *source.ReadError
	if errors.As(err, &readErr) {
		return "The document could not be read. Check that the file exists and is a valid PDF."
	}

	var fetchErr *source.FetchError
	if errors.As(err, &fetchErr) {
		return "The URL could not be fetched. Check that it is a valid, reachable web address."
	}

	if errors.Is(err, ErrExtractionEmpty) {
		return "Nothing could be extracted from this document. It may be empty, unreadable, or contain no car data."
	}

	return err.Error()
}
