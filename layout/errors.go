package layout

import "errors"

// ErrNotFound is returned when a page, slot or version does not exist.
var ErrNotFound = errors.New("layout: not found")

// ErrNoPublished is returned when an operation needs a published version and
// the page has never been published.
var ErrNoPublished = errors.New("layout: page has never been published")

// ErrInvalidDocument is returned when a mutation would leave the slot tree
// in an invalid state.
var ErrInvalidDocument = errors.New("layout: invalid document")

// ErrClosed is returned when the service is used after Close.
var ErrClosed = errors.New("layout: service closed")
