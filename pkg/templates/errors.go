package templates

import "errors"

// ErrUnknownKind is returned when no template exists for a broadcast kind;
// this is a caller error, not a transport failure.
var ErrUnknownKind = errors.New("templates: unknown broadcast kind")
