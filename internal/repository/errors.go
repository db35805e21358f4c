// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as the
// account service and handlers to distinguish between failure scenarios
// without inspecting driver-specific errors. For example, ErrEmailExists
// signals a uniqueness violation on the email column, while ErrNotFound
// signals that no row matched the query.
package repository

import "errors"

// ErrEmailExists is returned when an insert or update would violate the
// unique index on users.email. Handlers translate this into HTTP 409.
var ErrEmailExists = errors.New("email already exists")

// ErrUsernameExists is returned when an insert or update would violate the
// unique index on users.username. Handlers translate this into HTTP 409.
var ErrUsernameExists = errors.New("username already exists")

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a conditional update affected no rows because
// its guard no longer holds, such as consuming a token that was already
// consumed by a concurrent request. Handlers translate this into a generic
// invalid-token or conflict response depending on the flow.
var ErrConflict = errors.New("conflict")
