// Package store persists engine state in Redis, the system of record shared
// by every process instance. All serialization happens at this boundary;
// engine logic only ever sees typed records. It also defines the sentinel
// errors that higher layers branch on, so that handlers can distinguish
// failure scenarios without string matching.
package store

import "errors"

// ErrSeatOccupied is returned when a join targets a seat already held by a
// different user that cannot be reconciled as a ghost session. Handlers
// should translate this into an HTTP 409 response.
var ErrSeatOccupied = errors.New("seat occupied")

// ErrInvalidSeat is returned when a seat identifier falls outside the
// configured range for the room. Handlers should translate this into an
// HTTP 400 response.
var ErrInvalidSeat = errors.New("invalid seat")

// ErrItemNotFound is returned when an order references a catalog item that
// does not exist or is inactive. Handlers should translate this into an
// HTTP 404 response.
var ErrItemNotFound = errors.New("item not found")

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not own, such as completing another user's order.
// Handlers should translate this into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrNotFound is returned by lookups when no record exists for the key.
// Corrupt records are deleted and reported as ErrNotFound, since every
// record in the store is re-derivable from user action.
var ErrNotFound = errors.New("not found")
