package lookup

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	osexec "os/exec"

	"github.com/Sternrassler/recht-proxy/pkg/invoker"
)

// ErrorKind classifies a failed lookup.
type ErrorKind string

const (
	// KindValidation represents a malformed query.
	KindValidation ErrorKind = "validation"

	// KindBinaryMissing represents a tool that cannot be found or executed.
	KindBinaryMissing ErrorKind = "binary_missing"

	// KindTimeout represents an invocation that timed out or was killed.
	KindTimeout ErrorKind = "timeout"

	// KindLookupFailed represents any other tool failure.
	KindLookupFailed ErrorKind = "lookup_failed"
)

// Messages surfaced to API clients.
const (
	MessageMissingQuery  = "Parameter q fehlt"
	MessageInvalidQuery  = `Gesetz und Vorschrift fehlen oder sind ungültig (z.B. "BGB 1")`
	MessageBinaryMissing = "recht-Binary wurde nicht gefunden"
	MessageTimeout       = "Zeitüberschreitung bei der recht-Abfrage"
	MessageLookupFailed  = "Nicht gefunden oder recht-Fehler"
)

// Status returns the HTTP status code for the kind.
func (k ErrorKind) Status() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the client-facing message for the kind.
func (k ErrorKind) Message() string {
	switch k {
	case KindValidation:
		return MessageInvalidQuery
	case KindBinaryMissing:
		return MessageBinaryMissing
	case KindTimeout:
		return MessageTimeout
	default:
		return MessageLookupFailed
	}
}

// Classify maps an invocation error onto an ErrorKind.
func Classify(err error) ErrorKind {
	switch {
	case errors.Is(err, invoker.ErrBinaryMissing),
		errors.Is(err, osexec.ErrNotFound),
		errors.Is(err, fs.ErrNotExist):
		return KindBinaryMissing
	case errors.Is(err, invoker.ErrTimeout),
		errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	default:
		return KindLookupFailed
	}
}
