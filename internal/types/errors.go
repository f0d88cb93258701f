package types

import "errors"

// Sentinel errors shared across layers. Repositories and services wrap these
// with fmt.Errorf("...: %w", ...); handlers map them to HTTP statuses with
// errors.Is. Anything that does not match a sentinel is treated as internal
// and never echoed to the caller.
var (
	ErrNotFound            = errors.New("requested item not found")
	ErrConflict            = errors.New("item already exists or conflict")
	ErrUnauthenticated     = errors.New("authentication required or invalid credentials")
	ErrForbidden           = errors.New("action forbidden")
	ErrBadRequest          = errors.New("invalid request")
	ErrBadSignature        = errors.New("invalid webhook signature or payload")
	ErrMissingPrimaryEmail = errors.New("no primary email address found for user")
	ErrInternal            = errors.New("internal server error")
)
